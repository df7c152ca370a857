/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: apply.go
Description: Atomic application of patches to the serialized spec form. All
operations run against a deep copy of the mapping tree; any structural
failure discards the copy. The version store re-lints the result before a
new version exists.
*/

package patch

import (
	"fmt"

	"github.com/kleascm/bytemap/pkg/grammar"
)

// Apply runs every operation of a patch against a deep copy of the
// serialized spec. On any failure the original is untouched and the failing
// op index is reported.
func Apply(p *Patch, spec map[string]interface{}) (map[string]interface{}, []string, []int) {
	if ok, errors := p.Validate(); !ok {
		return nil, errors, nil
	}

	working := deepCopyMap(spec)

	for i, op := range p.Ops {
		if err := op.apply(working); err != nil {
			return nil, []string{fmt.Sprintf("failed to apply op %d (%s): %v", i, op.OpType(), err)}, []int{i}
		}
	}

	return working, nil, nil
}

// typesSection fetches the types mapping, creating it when allowed
func typesSection(spec map[string]interface{}, create bool) (map[string]interface{}, error) {
	raw, ok := spec["types"]
	if !ok {
		if !create {
			return nil, fmt.Errorf("%s: spec has no types section", ErrUnknownPath)
		}
		section := make(map[string]interface{})
		spec["types"] = section
		return section, nil
	}
	section, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: types section is not a mapping", ErrUnknownPath)
	}
	return section, nil
}

// typeFields fetches a type's field sequence
func typeFields(spec map[string]interface{}, typeName string) (map[string]interface{}, []interface{}, error) {
	types, err := typesSection(spec, false)
	if err != nil {
		return nil, nil, err
	}
	rawType, ok := types[typeName]
	if !ok {
		return nil, nil, fmt.Errorf("%s: type %s not found", ErrUnknownPath, typeName)
	}
	typeDef, ok := rawType.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("%s: type %s is not a mapping", ErrUnknownPath, typeName)
	}
	rawFields, ok := typeDef["fields"]
	if !ok {
		return typeDef, nil, nil
	}
	fields, ok := rawFields.([]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("%s: type %s fields is not a sequence", ErrUnknownPath, typeName)
	}
	return typeDef, fields, nil
}

// knownFieldType reports whether a field type resolves against the spec:
// a primitive or a declared type name
func knownFieldType(spec map[string]interface{}, name string) bool {
	if grammar.IsPrimitive(name) {
		return true
	}
	types, err := typesSection(spec, false)
	if err != nil {
		return false
	}
	_, ok := types[name]
	return ok
}

func (op *InsertField) apply(spec map[string]interface{}) error {
	typeName := op.Path[1].(string)

	typeDef, fields, err := typeFields(spec, typeName)
	if err != nil {
		return err
	}

	if fieldType, ok := op.FieldDef["type"].(string); ok {
		if !knownFieldType(spec, fieldType) {
			return fmt.Errorf("field type %q is neither a primitive nor a declared type", fieldType)
		}
	}

	index := op.Index
	if index < 0 {
		index = len(fields)
	}
	if index > len(fields) {
		return fmt.Errorf("%s: insert index %d beyond %d fields", ErrIndexOutOfRange, op.Index, len(fields))
	}

	inserted := make([]interface{}, 0, len(fields)+1)
	inserted = append(inserted, fields[:index]...)
	inserted = append(inserted, deepCopyValue(map[string]interface{}(op.FieldDef)))
	inserted = append(inserted, fields[index:]...)
	typeDef["fields"] = inserted
	return nil
}

func (op *UpdateField) apply(spec map[string]interface{}) error {
	typeName := op.Path[1].(string)
	index := op.Path[3].(int)

	_, fields, err := typeFields(spec, typeName)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(fields) {
		return fmt.Errorf("%s: field index %d beyond %d fields", ErrIndexOutOfRange, index, len(fields))
	}

	field, ok := fields[index].(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s: field %d of type %s is not a mapping", ErrUnknownPath, index, typeName)
	}
	for key, value := range op.Updates {
		field[key] = deepCopyValue(value)
	}
	return nil
}

func (op *DeleteField) apply(spec map[string]interface{}) error {
	typeName := op.Path[1].(string)
	index := op.Path[3].(int)

	typeDef, fields, err := typeFields(spec, typeName)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(fields) {
		return fmt.Errorf("%s: field index %d beyond %d fields", ErrIndexOutOfRange, index, len(fields))
	}

	typeDef["fields"] = append(fields[:index:index], fields[index+1:]...)
	return nil
}

func (op *AddType) apply(spec map[string]interface{}) error {
	typeName := op.Path[1].(string)

	types, err := typesSection(spec, true)
	if err != nil {
		return err
	}
	if _, exists := types[typeName]; exists {
		return fmt.Errorf("%s: type %s already exists", ErrDuplicateKey, typeName)
	}

	types[typeName] = deepCopyValue(map[string]interface{}(op.TypeDef))
	return nil
}

func (op *UpdateType) apply(spec map[string]interface{}) error {
	typeName := op.Path[1].(string)

	types, err := typesSection(spec, false)
	if err != nil {
		return err
	}
	rawType, ok := types[typeName]
	if !ok {
		return fmt.Errorf("%s: type %s not found", ErrUnknownPath, typeName)
	}
	typeDef, ok := rawType.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s: type %s is not a mapping", ErrUnknownPath, typeName)
	}

	for key, value := range op.Updates {
		typeDef[key] = deepCopyValue(value)
	}
	return nil
}

func (op *AddRegistryEntry) apply(spec map[string]interface{}) error {
	discriminator, ok := op.Path[1].(string)
	if !ok {
		return fmt.Errorf("%s: registry key must be a string", ErrUnknownPath)
	}
	normalized, err := grammar.NormalizeDiscriminator(discriminator)
	if err != nil {
		return err
	}

	raw, ok := spec["registry"]
	if !ok {
		raw = make(map[string]interface{})
		spec["registry"] = raw
	}
	registry, ok := raw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s: registry section is not a mapping", ErrUnknownPath)
	}

	// Existing keys may be unnormalized in the text form; compare normalized
	for key := range registry {
		if existing, err := grammar.NormalizeDiscriminator(key); err == nil && existing == normalized {
			return fmt.Errorf("%s: registry entry %s already exists", ErrDuplicateKey, normalized)
		}
	}

	registry[normalized] = deepCopyValue(map[string]interface{}(op.Entry))
	return nil
}

// deepCopyMap copies a mapping tree of maps, sequences, and scalars
func deepCopyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[key] = deepCopyValue(value)
	}
	return out
}

// deepCopyValue copies one node of the serialized form
func deepCopyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return deepCopyMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
