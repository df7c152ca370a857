/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: patch.go
Description: Typed, path-addressed edit operations for grammar text.
Operations validate structurally without a grammar in hand and apply to the
serialized (mapping) form of a spec; a Patch is an ordered collection applied
atomically by the version store.
*/

package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// Operation type names
const (
	OpInsertField      = "insert_field"
	OpUpdateField      = "update_field"
	OpDeleteField      = "delete_field"
	OpAddType          = "add_type"
	OpUpdateType       = "update_type"
	OpAddRegistryEntry = "add_registry_entry"
)

// Structural failure kinds
const (
	ErrUnknownPath     = "UnknownPath"
	ErrIndexOutOfRange = "IndexOutOfRange"
	ErrDuplicateKey    = "DuplicateKey"
)

// Path addresses a node in the spec's serialized form. Components are
// strings (mapping keys) or ints (sequence indices).
type Path []interface{}

// validRoots are the spec sections a path may start at
var validRoots = map[string]bool{
	"types":    true,
	"registry": true,
	"endian":   true,
	"record":   true,
	"framing":  true,
	"format":   true,
}

// Valid reports whether the path is well-formed
func (p Path) Valid() bool {
	if len(p) == 0 {
		return false
	}
	root, ok := p[0].(string)
	if !ok || !validRoots[root] {
		return false
	}
	for _, component := range p {
		switch component.(type) {
		case string, int:
		default:
			return false
		}
	}
	return true
}

// identifierKey matches keys rendered in dotted form; other keys are quoted
var identifierKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// String renders the path for error messages, e.g.
// types.Header.fields[0] or registry['0x4E54']
func (p Path) String() string {
	var b strings.Builder
	for i, component := range p {
		switch v := component.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		case string:
			if i == 0 {
				b.WriteString(v)
			} else if !identifierKey.MatchString(v) {
				fmt.Fprintf(&b, "['%s']", v)
			} else {
				b.WriteString(".")
				b.WriteString(v)
			}
		}
	}
	return b.String()
}

// Op is one structural edit to the spec's serialized form
type Op interface {
	// OpType returns the operation type name
	OpType() string
	// OpPath returns the addressed path
	OpPath() Path
	// Validate checks the operation's own structure; it does not require a
	// grammar
	Validate() error
	// apply mutates the serialized spec in place
	apply(spec map[string]interface{}) error
}

// InsertField inserts a field into a type's field list.
// Path addresses the parent type; Index -1 appends.
type InsertField struct {
	Path     Path
	Index    int
	FieldDef map[string]interface{}
}

func (op *InsertField) OpType() string { return OpInsertField }
func (op *InsertField) OpPath() Path   { return op.Path }

func (op *InsertField) Validate() error {
	if !op.Path.Valid() {
		return fmt.Errorf("%s: invalid path %s", ErrUnknownPath, op.Path)
	}
	if len(op.Path) != 2 || op.Path[0] != "types" {
		return fmt.Errorf("%s: path must be types.TypeName, got %s", ErrUnknownPath, op.Path)
	}
	if len(op.FieldDef) == 0 {
		return fmt.Errorf("field_def is empty")
	}
	if _, ok := op.FieldDef["name"]; !ok {
		return fmt.Errorf("field_def missing 'name'")
	}
	if _, ok := op.FieldDef["type"]; !ok {
		return fmt.Errorf("field_def missing 'type'")
	}
	return nil
}

// UpdateField overwrites properties of an existing field.
// Path addresses types.TypeName.fields[i].
type UpdateField struct {
	Path    Path
	Updates map[string]interface{}
}

func (op *UpdateField) OpType() string { return OpUpdateField }
func (op *UpdateField) OpPath() Path   { return op.Path }

func (op *UpdateField) Validate() error {
	if err := validateFieldPath(op.Path); err != nil {
		return err
	}
	if len(op.Updates) == 0 {
		return fmt.Errorf("updates is empty")
	}
	return nil
}

// DeleteField removes a field from a type.
// Path addresses types.TypeName.fields[i].
type DeleteField struct {
	Path Path
}

func (op *DeleteField) OpType() string { return OpDeleteField }
func (op *DeleteField) OpPath() Path   { return op.Path }

func (op *DeleteField) Validate() error {
	return validateFieldPath(op.Path)
}

// AddType adds a new type definition.
// Path addresses types.TypeName; the name must be free.
type AddType struct {
	Path    Path
	TypeDef map[string]interface{}
}

func (op *AddType) OpType() string { return OpAddType }
func (op *AddType) OpPath() Path   { return op.Path }

func (op *AddType) Validate() error {
	if !op.Path.Valid() {
		return fmt.Errorf("%s: invalid path %s", ErrUnknownPath, op.Path)
	}
	if len(op.Path) != 2 || op.Path[0] != "types" {
		return fmt.Errorf("%s: path must be types.TypeName, got %s", ErrUnknownPath, op.Path)
	}
	if len(op.TypeDef) == 0 {
		return fmt.Errorf("type_def is empty")
	}
	fields, ok := op.TypeDef["fields"]
	if !ok {
		return fmt.Errorf("type_def missing 'fields'")
	}
	if _, ok := fields.([]interface{}); !ok {
		return fmt.Errorf("type_def 'fields' must be a sequence")
	}
	return nil
}

// UpdateType overwrites non-field properties of an existing type
type UpdateType struct {
	Path    Path
	Updates map[string]interface{}
}

func (op *UpdateType) OpType() string { return OpUpdateType }
func (op *UpdateType) OpPath() Path   { return op.Path }

func (op *UpdateType) Validate() error {
	if !op.Path.Valid() {
		return fmt.Errorf("%s: invalid path %s", ErrUnknownPath, op.Path)
	}
	if len(op.Path) != 2 || op.Path[0] != "types" {
		return fmt.Errorf("%s: path must be types.TypeName, got %s", ErrUnknownPath, op.Path)
	}
	if len(op.Updates) == 0 {
		return fmt.Errorf("updates is empty")
	}
	return nil
}

// AddRegistryEntry adds a registry entry for a discriminator.
// Path addresses registry.<discriminator>; the key must be free.
type AddRegistryEntry struct {
	Path  Path
	Entry map[string]interface{}
}

func (op *AddRegistryEntry) OpType() string { return OpAddRegistryEntry }
func (op *AddRegistryEntry) OpPath() Path   { return op.Path }

func (op *AddRegistryEntry) Validate() error {
	if !op.Path.Valid() {
		return fmt.Errorf("%s: invalid path %s", ErrUnknownPath, op.Path)
	}
	if len(op.Path) != 2 || op.Path[0] != "registry" {
		return fmt.Errorf("%s: path must be registry.discriminator, got %s", ErrUnknownPath, op.Path)
	}
	if len(op.Entry) == 0 {
		return fmt.Errorf("entry is empty")
	}
	if _, ok := op.Entry["name"]; !ok {
		return fmt.Errorf("entry missing 'name'")
	}
	return nil
}

// validateFieldPath checks a types.TypeName.fields[i] address
func validateFieldPath(p Path) error {
	if !p.Valid() {
		return fmt.Errorf("%s: invalid path %s", ErrUnknownPath, p)
	}
	if len(p) < 4 {
		return fmt.Errorf("%s: path too short for a field: %s", ErrUnknownPath, p)
	}
	if p[0] != "types" || p[2] != "fields" {
		return fmt.Errorf("%s: path must be types.TypeName.fields[i], got %s", ErrUnknownPath, p)
	}
	if _, ok := p[3].(int); !ok {
		return fmt.Errorf("%s: field index must be an integer in %s", ErrUnknownPath, p)
	}
	return nil
}

// Patch is an ordered collection of operations applied atomically
type Patch struct {
	Ops         []Op
	Description string
}

// Validate checks every operation structurally. An empty patch is valid:
// applying it produces a version identical to its parent.
func (p *Patch) Validate() (bool, []string) {
	var errors []string
	for i, op := range p.Ops {
		if err := op.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("op %d (%s): %v", i, op.OpType(), err))
		}
	}
	return len(errors) == 0, errors
}

// Result reports one patch application attempt
type Result struct {
	Success     bool
	NewSpecID   string
	Errors      []string
	RejectedOps []int
}
