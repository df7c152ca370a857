/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: grammar.go
Description: Grammar model for record-stream binary formats. Defines the AST
for types, fields, dispatch, and the registry, plus discriminator literal
normalization. The AST is immutable once it passes lint.
*/

package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FormatRecordStream is the only supported top-level format
const FormatRecordStream = "record_stream"

// Endian is the byte order for multi-byte integers
type Endian string

const (
	EndianLittle      Endian = "little"
	EndianBig         Endian = "big"
	EndianUnspecified Endian = ""
)

// Primitive field type names
const (
	TypeU8    = "u8"
	TypeU16   = "u16"
	TypeU32   = "u32"
	TypeBytes = "bytes"
)

// IsPrimitive reports whether a type name is a built-in primitive
func IsPrimitive(name string) bool {
	switch name {
	case TypeU8, TypeU16, TypeU32, TypeBytes:
		return true
	}
	return false
}

// PrimitiveSize returns the fixed byte size of an integer primitive.
// bytes has no fixed size and returns 0.
func PrimitiveSize(name string) int64 {
	switch name {
	case TypeU8:
		return 1
	case TypeU16:
		return 2
	case TypeU32:
		return 4
	}
	return 0
}

// LengthKind discriminates how a bytes field resolves its length
type LengthKind int

const (
	LengthNone   LengthKind = iota // no length (forbidden for bytes)
	LengthStatic                   // fixed integer length
	LengthField                    // length read from a prior field
	LengthExpr                     // length from an arithmetic expression
)

// Validation rule kinds
const (
	ValidateEquals      = "equals"
	ValidateEqualsField = "equals_field"
	ValidateAllBytes    = "all_bytes"
)

// ValidationRule constrains a parsed field value
type ValidationRule struct {
	Kind      string // equals, equals_field, all_bytes
	IntValue  int64  // for equals
	FieldName string // for equals_field
	ByteValue byte   // for all_bytes
}

// FieldDef is one field in a record type
type FieldDef struct {
	Name         string
	Type         string // primitive name or TypeDef name
	Endian       Endian // optional override; EndianUnspecified inherits
	LengthKind   LengthKind
	LengthStatic int64
	LengthField  string
	LengthExpr   string
	Encoding     string // optional text encoding for bytes
	Validate     *ValidationRule
	Color        string // normalized color (empty if unset)
}

// TypeDef is a named record type
type TypeDef struct {
	Name   string
	Fields []FieldDef
}

// FieldByName returns the field with the given name, if declared
func (t *TypeDef) FieldByName(name string) (*FieldDef, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Dispatch kinds
const (
	DispatchUse    = "use"
	DispatchSwitch = "switch"
)

// Dispatch selects which TypeDef each record parses as
type Dispatch struct {
	Kind    string            // use or switch
	Use     string            // target type for use
	Expr    string            // dotted path like "Hdr.type_raw" for switch
	Cases   map[string]string // normalized discriminator -> type name
	Default string            // fallback type name (may be empty)
}

// FramingDef is the top-level framing declaration
type FramingDef struct {
	Repeat string // only "until_eof"
}

// Decoder kinds for registry entries
const (
	DecodeString     = "string"
	DecodeU16        = "u16"
	DecodeU32        = "u32"
	DecodeHex        = "hex"
	DecodePackedDate = "packed_date_v1"
)

// DecoderDef describes how to render a record's payload
type DecoderDef struct {
	As       string // string, u16, u32, hex, packed_date_v1
	Encoding string // for string
	Endian   Endian // for u16/u32; falls back to the grammar default
	Field    string // explicit target field (optional)
}

// RegistryEntry annotates a discriminator with a name and decoder
type RegistryEntry struct {
	Name   string
	Decode DecoderDef
}

// Grammar is the complete, validated format specification
type Grammar struct {
	Format   string
	Endian   Endian // global default byte order
	Framing  FramingDef
	Types    map[string]*TypeDef
	Dispatch *Dispatch
	Registry map[string]RegistryEntry
}

// TypeNames returns the declared type names sorted for deterministic output
func (g *Grammar) TypeNames() []string {
	names := make([]string, 0, len(g.Types))
	for name := range g.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryKeys returns the registry discriminators sorted
func (g *Grammar) RegistryKeys() []string {
	keys := make([]string, 0, len(g.Registry))
	for key := range g.Registry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// EffectiveEndian resolves a field's byte order: field override first, then
// the grammar default. ok is false when neither is set.
func (g *Grammar) EffectiveEndian(f *FieldDef) (Endian, bool) {
	if f.Endian != EndianUnspecified {
		return f.Endian, true
	}
	if g.Endian != EndianUnspecified {
		return g.Endian, true
	}
	return EndianUnspecified, false
}

var discriminatorPattern = regexp.MustCompile(`^0[xX][0-9A-Fa-f]+$`)

// NormalizeDiscriminator canonicalizes a discriminator literal to
// "0x" + uppercase hex, padded to the smallest even digit count that fits.
// Normalization is idempotent.
func NormalizeDiscriminator(literal string) (string, error) {
	trimmed := strings.TrimSpace(literal)
	if !discriminatorPattern.MatchString(trimmed) {
		return "", fmt.Errorf("discriminator %q is not a hex literal", literal)
	}

	value, err := strconv.ParseUint(trimmed[2:], 16, 64)
	if err != nil {
		return "", fmt.Errorf("discriminator %q out of range", literal)
	}

	digits := len(strconv.FormatUint(value, 16))
	if digits%2 != 0 {
		digits++
	}
	return fmt.Sprintf("0x%0*X", digits, value), nil
}

// FormatDiscriminator renders an integer discriminator at the width of the
// field it was read from, matching normalized registry and case keys.
func FormatDiscriminator(value uint64, byteSize int64) string {
	return fmt.Sprintf("0x%0*X", byteSize*2, value)
}
