/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: decode.go
Description: Registry-driven field decoding. Renders a parsed record's
payload as a human-readable string using the decoder attached to its
discriminator, or decodes a named field directly by its value tag. Always
returns a value; failures carry a reason, never a panic.
*/

package decode

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/parser"
)

// Decode failure reasons
const (
	ReasonNoRegistry      = "NoRegistry"
	ReasonNoField         = "NoField"
	ReasonInsufficient    = "Insufficient"
	ReasonInvalidEncoding = "InvalidEncoding"
)

// DecodedValue is the immutable result of one decode attempt
type DecodedValue struct {
	Success     bool
	Value       string
	DecoderType string // string, u16, u32, hex, packed_date_v1, none
	FieldPath   string
	Error       string // failure reason with detail
}

// failure builds an unsuccessful result
func failure(decoderType, fieldPath, reason, detail string) DecodedValue {
	msg := reason
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", reason, detail)
	}
	return DecodedValue{
		Success:     false,
		DecoderType: decoderType,
		FieldPath:   fieldPath,
		Error:       msg,
	}
}

// Field decodes one record. With a field name, the named top-level field is
// rendered by its value tag; otherwise the grammar registry selects the
// decoder via the record's discriminator.
func Field(record *parser.ParsedRecord, g *grammar.Grammar, fieldName string) DecodedValue {
	if fieldName != "" {
		return decodeNamed(record, fieldName)
	}
	return decodeRegistry(record, g)
}

// decodeNamed renders a specific field by its value tag
func decodeNamed(record *parser.ParsedRecord, fieldName string) DecodedValue {
	field, ok := record.FieldByName(fieldName)
	if !ok {
		return failure("none", fieldName, ReasonNoField,
			fmt.Sprintf("field %q not found in record", fieldName))
	}

	switch field.Value.Kind {
	case parser.ValueText:
		return DecodedValue{Success: true, Value: field.Value.Text, DecoderType: grammar.DecodeString, FieldPath: fieldName}
	case parser.ValueBytes:
		return DecodedValue{
			Success:     true,
			Value:       parser.DecodeText(field.Value.Bytes, "utf-8"),
			DecoderType: grammar.DecodeString,
			FieldPath:   fieldName,
		}
	case parser.ValueInt:
		return DecodedValue{
			Success:     true,
			Value:       fmt.Sprintf("%d", field.Value.Int),
			DecoderType: grammar.DecodeU32,
			FieldPath:   fieldName,
		}
	}

	return failure("none", fieldName, ReasonNoField, "nested records cannot be decoded directly")
}

// decodeRegistry renders a record's payload through its registry entry
func decodeRegistry(record *parser.ParsedRecord, g *grammar.Grammar) DecodedValue {
	literal, ok := extractDiscriminator(record, g)
	if !ok {
		return failure("none", "", ReasonNoRegistry, "could not extract a discriminator from the record")
	}

	// Registry keys are stored in normalized form; width-formatted
	// discriminators normalize before the probe
	normalized, err := grammar.NormalizeDiscriminator(literal)
	if err != nil {
		return failure("none", "", ReasonNoRegistry, err.Error())
	}

	entry, ok := g.Registry[normalized]
	if !ok {
		return failure("none", "", ReasonNoRegistry,
			fmt.Sprintf("discriminator %s has no registry entry", literal))
	}

	decoder := entry.Decode
	target, path := selectTarget(record, decoder)
	if target == nil {
		return failure(decoder.As, decoder.Field, ReasonNoField, "no suitable field for decoder")
	}

	switch decoder.As {
	case grammar.DecodeString:
		return decodeString(target, path, decoder)
	case grammar.DecodeU16, grammar.DecodeU32:
		return decodeInteger(target, path, decoder, g)
	case grammar.DecodeHex:
		return DecodedValue{
			Success:     true,
			Value:       hex.EncodeToString(target.RawBytes),
			DecoderType: grammar.DecodeHex,
			FieldPath:   path,
		}
	case grammar.DecodePackedDate:
		return decodePackedDate(target, path)
	}

	return failure(decoder.As, path, ReasonInvalidEncoding,
		fmt.Sprintf("unsupported decoder kind %q", decoder.As))
}

// extractDiscriminator recovers the width-formatted discriminator literal;
// callers normalize it before registry lookup.
// The parser stores it on switch-dispatched records; otherwise the dispatch
// expression path is resolved against the field tree.
func extractDiscriminator(record *parser.ParsedRecord, g *grammar.Grammar) (string, bool) {
	if record.TypeDiscriminator != "" {
		return record.TypeDiscriminator, true
	}

	if g.Dispatch == nil || g.Dispatch.Kind != grammar.DispatchSwitch {
		return "", false
	}

	parts := strings.SplitN(g.Dispatch.Expr, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	fieldName := parts[1]

	// The record may itself be the discriminator container, or embed it as
	// a nested field.
	if field, ok := record.FieldByName(fieldName); ok && field.Value.Kind == parser.ValueInt {
		return grammar.FormatDiscriminator(field.Value.Int, field.Size), true
	}
	for _, top := range record.Fields {
		if top.Value.Kind != parser.ValueRecord {
			continue
		}
		for _, nested := range top.Value.Fields {
			if nested.Name == fieldName && nested.Value.Kind == parser.ValueInt {
				return grammar.FormatDiscriminator(nested.Value.Int, nested.Size), true
			}
		}
	}

	return "", false
}

// selectTarget picks the field a decoder applies to: the explicit field if
// named, else the first bytes-typed field for string/hex/packed_date_v1, or
// the first integer field of the decoder's size for u16/u32
func selectTarget(record *parser.ParsedRecord, decoder grammar.DecoderDef) (*parser.ParsedField, string) {
	if decoder.Field != "" {
		if field, ok := record.FieldByName(decoder.Field); ok {
			return field, decoder.Field
		}
		return nil, decoder.Field
	}

	switch decoder.As {
	case grammar.DecodeU16, grammar.DecodeU32:
		want := int64(2)
		if decoder.As == grammar.DecodeU32 {
			want = 4
		}
		for _, field := range record.Fields {
			if field.Value.Kind == parser.ValueInt && field.Size == want {
				return field, field.Name
			}
		}

	default:
		for _, field := range record.Fields {
			if field.Value.Kind == parser.ValueBytes || field.Value.Kind == parser.ValueText {
				return field, field.Name
			}
		}
	}

	return nil, ""
}

// decodeString renders a bytes/text field with the decoder's encoding
func decodeString(field *parser.ParsedField, path string, decoder grammar.DecoderDef) DecodedValue {
	switch field.Value.Kind {
	case parser.ValueText:
		return DecodedValue{Success: true, Value: field.Value.Text, DecoderType: grammar.DecodeString, FieldPath: path}
	case parser.ValueBytes:
		encoding := decoder.Encoding
		if encoding == "" {
			encoding = "ascii"
		}
		return DecodedValue{
			Success:     true,
			Value:       parser.DecodeText(field.Value.Bytes, encoding),
			DecoderType: grammar.DecodeString,
			FieldPath:   path,
		}
	}
	return failure(grammar.DecodeString, path, ReasonNoField, "field is not text or bytes")
}

// decodeInteger renders an integer or prefix of a bytes field as decimal
func decodeInteger(field *parser.ParsedField, path string, decoder grammar.DecoderDef, g *grammar.Grammar) DecodedValue {
	size := int64(2)
	if decoder.As == grammar.DecodeU32 {
		size = 4
	}

	if field.Value.Kind == parser.ValueInt {
		return DecodedValue{
			Success:     true,
			Value:       fmt.Sprintf("%d", field.Value.Int),
			DecoderType: decoder.As,
			FieldPath:   path,
		}
	}

	raw := field.RawBytes
	if int64(len(raw)) < size {
		return failure(decoder.As, path, ReasonInsufficient,
			fmt.Sprintf("need %d bytes, got %d", size, len(raw)))
	}

	// Decoder endian falls back to the grammar default
	endian := decoder.Endian
	if endian == grammar.EndianUnspecified {
		endian = g.Endian
	}

	var value uint64
	if endian == grammar.EndianLittle {
		for i := size - 1; i >= 0; i-- {
			value = value<<8 | uint64(raw[i])
		}
	} else {
		for i := int64(0); i < size; i++ {
			value = value<<8 | uint64(raw[i])
		}
	}

	return DecodedValue{
		Success:     true,
		Value:       fmt.Sprintf("%d", value),
		DecoderType: decoder.As,
		FieldPath:   path,
	}
}

// decodePackedDate renders the 4-byte packed date structure:
// byte0 = day<<3 | flags, byte1 = month<<1 | reserved (must be zero),
// bytes 2-3 = year little endian.
func decodePackedDate(field *parser.ParsedField, path string) DecodedValue {
	raw := field.RawBytes
	if len(raw) < 4 {
		return failure(grammar.DecodePackedDate, path, ReasonInsufficient,
			fmt.Sprintf("need 4 bytes, got %d", len(raw)))
	}

	b0, b1, yearLo, yearHi := raw[0], raw[1], raw[2], raw[3]
	day := int(b0 >> 3)
	month := int(b1 >> 1)
	year := int(yearLo) | int(yearHi)<<8

	if b1&0x01 != 0 || month < 1 || month > 12 || day < 1 || day > 31 || year <= 0 {
		return failure(grammar.DecodePackedDate, path, ReasonInvalidEncoding,
			"bytes do not form a valid packed date")
	}

	return DecodedValue{
		Success:     true,
		Value:       fmt.Sprintf("%04d-%02d-%02d", year, month, day),
		DecoderType: grammar.DecodePackedDate,
		FieldPath:   path,
	}
}
