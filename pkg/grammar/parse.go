/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: parse.go
Description: YAML decoding for grammar text. Builds the raw grammar AST from
the external text form, applying the length syntactic sugar (integer, field
name, or arithmetic expression) and discriminator normalization. Semantic
validation lives in lint.go.
*/

package grammar

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawField is the YAML shape of a field definition
type rawField struct {
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type"`
	Endian      string                 `yaml:"endian"`
	Length      interface{}            `yaml:"length"`
	LengthField string                 `yaml:"length_field"`
	LengthExpr  string                 `yaml:"length_expr"`
	Encoding    string                 `yaml:"encoding"`
	Validate    map[string]interface{} `yaml:"validate"`
	Color       string                 `yaml:"color"`
}

// rawType is the YAML shape of a type definition
type rawType struct {
	Fields []rawField `yaml:"fields"`
}

// rawSwitch is the YAML shape of a switch dispatch
type rawSwitch struct {
	Expr    string            `yaml:"expr"`
	Cases   map[string]string `yaml:"cases"`
	Default string            `yaml:"default"`
}

// rawRecord is the YAML shape of the record dispatch section
type rawRecord struct {
	Use    string     `yaml:"use"`
	Switch *rawSwitch `yaml:"switch"`
}

// rawDecoder is the YAML shape of a registry decoder
type rawDecoder struct {
	As       string `yaml:"as"`
	Encoding string `yaml:"encoding"`
	Endian   string `yaml:"endian"`
	Field    string `yaml:"field"`
}

// rawRegistryEntry is the YAML shape of a registry entry
type rawRegistryEntry struct {
	Name   string     `yaml:"name"`
	Decode rawDecoder `yaml:"decode"`
}

// rawGrammar is the YAML shape of the whole document
type rawGrammar struct {
	Format   string                      `yaml:"format"`
	Endian   string                      `yaml:"endian"`
	Framing  map[string]string           `yaml:"framing"`
	Types    map[string]rawType          `yaml:"types"`
	Record   *rawRecord                  `yaml:"record"`
	Registry map[string]rawRegistryEntry `yaml:"registry"`
}

// Parse decodes grammar text into an unvalidated AST. Errors here are
// syntactic: malformed YAML, unusable length declarations, malformed
// validation rules. Lint performs the semantic checks.
func Parse(text string) (*Grammar, error) {
	var raw rawGrammar
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}

	g := &Grammar{
		Format:   raw.Format,
		Endian:   Endian(raw.Endian),
		Framing:  FramingDef{Repeat: "until_eof"},
		Types:    make(map[string]*TypeDef),
		Registry: make(map[string]RegistryEntry),
	}

	if raw.Framing != nil {
		if repeat, ok := raw.Framing["repeat"]; ok {
			g.Framing.Repeat = repeat
		}
	}

	if raw.Record != nil {
		dispatch, err := parseDispatch(raw.Record)
		if err != nil {
			return nil, err
		}
		g.Dispatch = dispatch
	}

	for typeName, rawDef := range raw.Types {
		typeDef := &TypeDef{Name: typeName}
		for _, rf := range rawDef.Fields {
			fieldDef, err := parseField(typeName, rf)
			if err != nil {
				return nil, err
			}
			typeDef.Fields = append(typeDef.Fields, fieldDef)
		}
		g.Types[typeName] = typeDef
	}

	for key, rawEntry := range raw.Registry {
		normalized, err := NormalizeDiscriminator(key)
		if err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		g.Registry[normalized] = RegistryEntry{
			Name: rawEntry.Name,
			Decode: DecoderDef{
				As:       rawEntry.Decode.As,
				Encoding: rawEntry.Decode.Encoding,
				Endian:   Endian(rawEntry.Decode.Endian),
				Field:    rawEntry.Decode.Field,
			},
		}
	}

	return g, nil
}

// parseDispatch builds the dispatch variant from the record section
func parseDispatch(record *rawRecord) (*Dispatch, error) {
	if record.Switch != nil {
		cases := make(map[string]string, len(record.Switch.Cases))
		for literal, typeName := range record.Switch.Cases {
			normalized, err := NormalizeDiscriminator(literal)
			if err != nil {
				return nil, fmt.Errorf("switch case: %w", err)
			}
			cases[normalized] = typeName
		}
		return &Dispatch{
			Kind:    DispatchSwitch,
			Expr:    record.Switch.Expr,
			Cases:   cases,
			Default: record.Switch.Default,
		}, nil
	}

	if record.Use != "" {
		return &Dispatch{Kind: DispatchUse, Use: record.Use}, nil
	}

	return nil, fmt.Errorf("record section must specify 'use' or 'switch'")
}

// expressionChars are the characters that mark a length string as an
// arithmetic expression rather than a field reference
const expressionChars = "+-*/()"

// parseField builds a FieldDef, applying the length sugar:
// an integer is a static length, a plain string is a field reference, and
// a string containing operators is an arithmetic expression.
func parseField(typeName string, rf rawField) (FieldDef, error) {
	f := FieldDef{
		Name:     rf.Name,
		Type:     rf.Type,
		Endian:   Endian(rf.Endian),
		Encoding: rf.Encoding,
	}

	// Explicit forms take precedence over the sugar
	switch {
	case rf.LengthField != "":
		f.LengthKind = LengthField
		f.LengthField = rf.LengthField
	case rf.LengthExpr != "":
		f.LengthKind = LengthExpr
		f.LengthExpr = rf.LengthExpr
	case rf.Length != nil:
		switch v := rf.Length.(type) {
		case int:
			f.LengthKind = LengthStatic
			f.LengthStatic = int64(v)
		case int64:
			f.LengthKind = LengthStatic
			f.LengthStatic = v
		case string:
			if strings.ContainsAny(v, expressionChars) {
				f.LengthKind = LengthExpr
				f.LengthExpr = v
			} else {
				f.LengthKind = LengthField
				f.LengthField = v
			}
		default:
			return f, fmt.Errorf(
				"field %s.%s: length must be an integer, field name, or expression",
				typeName, rf.Name)
		}
	}

	if rf.Validate != nil {
		rule, err := parseValidation(typeName, rf.Name, rf.Validate)
		if err != nil {
			return f, err
		}
		f.Validate = rule
	}

	if rf.Color != "" {
		// Normalized by lint; kept raw here so lint can point at the
		// offending field with the original text.
		f.Color = rf.Color
	}

	return f, nil
}

// parseValidation builds a validation rule from its YAML mapping
func parseValidation(typeName, fieldName string, spec map[string]interface{}) (*ValidationRule, error) {
	if v, ok := spec[ValidateEquals]; ok {
		value, err := intLiteral(v)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: equals: %w", typeName, fieldName, err)
		}
		return &ValidationRule{Kind: ValidateEquals, IntValue: value}, nil
	}

	if v, ok := spec[ValidateEqualsField]; ok {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %s.%s: equals_field must name a field", typeName, fieldName)
		}
		return &ValidationRule{Kind: ValidateEqualsField, FieldName: name}, nil
	}

	if v, ok := spec[ValidateAllBytes]; ok {
		value, err := intLiteral(v)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: all_bytes: %w", typeName, fieldName, err)
		}
		if value < 0 || value > 255 {
			return nil, fmt.Errorf("field %s.%s: all_bytes value %d out of byte range", typeName, fieldName, value)
		}
		return &ValidationRule{Kind: ValidateAllBytes, ByteValue: byte(value)}, nil
	}

	return nil, fmt.Errorf("field %s.%s: unrecognized validation rule", typeName, fieldName)
}

// intLiteral accepts a YAML integer or a hex literal string
func intLiteral(v interface{}) (int64, error) {
	switch value := v.(type) {
	case int:
		return int64(value), nil
	case int64:
		return value, nil
	case string:
		if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
			parsed, err := strconv.ParseInt(value[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("bad hex literal %q", value)
			}
			return parsed, nil
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad integer literal %q", value)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("expected an integer literal, got %T", v)
}
