/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: json.go
Description: Serialization of patches to and from generic mappings, used by
the version store's persisted log. Paths survive the round trip with their
string/int component types intact.
*/

package patch

import (
	"fmt"
)

// OpToMap converts an operation to a JSON-serializable mapping
func OpToMap(op Op) map[string]interface{} {
	out := map[string]interface{}{
		"op_type": op.OpType(),
		"path":    []interface{}(op.OpPath()),
	}

	switch v := op.(type) {
	case *InsertField:
		out["index"] = v.Index
		out["field_def"] = v.FieldDef
	case *UpdateField:
		out["updates"] = v.Updates
	case *AddType:
		out["type_def"] = v.TypeDef
	case *UpdateType:
		out["updates"] = v.Updates
	case *AddRegistryEntry:
		out["entry"] = v.Entry
	}

	return out
}

// OpFromMap reconstructs an operation from its mapping form. JSON round
// trips turn path indices into float64; they are restored to ints here.
func OpFromMap(m map[string]interface{}) (Op, error) {
	opType, _ := m["op_type"].(string)

	rawPath, ok := m["path"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("op %q has no path", opType)
	}
	path := make(Path, len(rawPath))
	for i, component := range rawPath {
		switch v := component.(type) {
		case float64:
			path[i] = int(v)
		case int:
			path[i] = v
		case string:
			path[i] = v
		default:
			return nil, fmt.Errorf("op %q path component %d has unsupported type %T", opType, i, component)
		}
	}

	switch opType {
	case OpInsertField:
		index := -1
		switch v := m["index"].(type) {
		case float64:
			index = int(v)
		case int:
			index = v
		}
		fieldDef, _ := m["field_def"].(map[string]interface{})
		return &InsertField{Path: path, Index: index, FieldDef: fieldDef}, nil

	case OpUpdateField:
		updates, _ := m["updates"].(map[string]interface{})
		return &UpdateField{Path: path, Updates: updates}, nil

	case OpDeleteField:
		return &DeleteField{Path: path}, nil

	case OpAddType:
		typeDef, _ := m["type_def"].(map[string]interface{})
		return &AddType{Path: path, TypeDef: typeDef}, nil

	case OpUpdateType:
		updates, _ := m["updates"].(map[string]interface{})
		return &UpdateType{Path: path, Updates: updates}, nil

	case OpAddRegistryEntry:
		entry, _ := m["entry"].(map[string]interface{})
		return &AddRegistryEntry{Path: path, Entry: entry}, nil
	}

	return nil, fmt.Errorf("unknown op type %q", opType)
}

// ToMap converts a patch to a JSON-serializable mapping
func (p *Patch) ToMap() map[string]interface{} {
	ops := make([]interface{}, len(p.Ops))
	for i, op := range p.Ops {
		ops[i] = OpToMap(op)
	}
	return map[string]interface{}{
		"description": p.Description,
		"ops":         ops,
	}
}

// FromMap reconstructs a patch from its mapping form
func FromMap(m map[string]interface{}) (*Patch, error) {
	p := &Patch{}
	p.Description, _ = m["description"].(string)

	rawOps, _ := m["ops"].([]interface{})
	for i, rawOp := range rawOps {
		opMap, ok := rawOp.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("patch op %d is not a mapping", i)
		}
		op, err := OpFromMap(opMap)
		if err != nil {
			return nil, err
		}
		p.Ops = append(p.Ops, op)
	}

	return p, nil
}
