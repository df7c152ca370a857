/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: parser.go
Description: Deterministic, bounded record parser. Walks a byte reader with a
validated grammar, dispatching each record through use/switch, decoding the
field tree, and capturing failures as record-level errors. The stream halts
at the first failing record; no recovery is attempted.
*/

package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/kleascm/bytemap/pkg/expr"
	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/reader"
)

// Options bounds a parse run. Zero values mean unbounded.
type Options struct {
	Offset      int64 // start offset in the input
	ByteLimit   int64 // max bytes to consume (0 = to EOF)
	RecordLimit int   // max records to emit (0 = unlimited)
}

// boundary is the effective stop offset of a parse run. Overrun errors fire
// only against an explicit byte limit; EOF shortfalls are short reads.
type boundary struct {
	stop    int64
	limited bool
}

// Parser decodes record streams using a validated grammar
type Parser struct {
	grammar   *grammar.Grammar
	evaluator *expr.Evaluator
}

// New creates a parser for a validated grammar
func New(g *grammar.Grammar) *Parser {
	return &Parser{
		grammar:   g,
		evaluator: expr.NewEvaluator(),
	}
}

// Parse decodes records from the reader until EOF, the byte limit, the
// record limit, or the first failing record. The result reflects exactly the
// successful prefix plus the error, and parsing never panics.
func (p *Parser) Parse(r reader.ByteReader, filePath string, opts Options) *ParseResult {
	offset := opts.Offset
	fileSize := r.Size()

	bound := boundary{stop: fileSize}
	if opts.ByteLimit > 0 {
		bound.limited = true
		bound.stop = opts.Offset + opts.ByteLimit
		if bound.stop > fileSize {
			bound.stop = fileSize
			bound.limited = false
		}
	}

	var records []*ParsedRecord
	var errors []string
	stoppedAt := offset

	for offset < bound.stop {
		if opts.RecordLimit > 0 && len(records) >= opts.RecordLimit {
			break
		}

		record := p.parseRecord(r, offset, bound)

		if record.Error == "" && record.Size == 0 {
			record.Error = (&ErrZeroLengthRecord{TypeName: record.TypeName}).Error()
		}

		if record.Error != "" {
			records = append(records, record)
			errors = append(errors, fmt.Sprintf("parse error at %#x: %s", offset, record.Error))
			stoppedAt = offset
			break
		}

		records = append(records, record)
		offset += record.Size
		stoppedAt = offset
	}

	return &ParseResult{
		Records:          records,
		Errors:           errors,
		FilePath:         filePath,
		GrammarFormat:    p.grammar.Format,
		TotalBytesParsed: stoppedAt - opts.Offset,
		ParseStoppedAt:   stoppedAt,
		Timestamp:        time.Now(),
		RecordCount:      len(records),
	}
}

// parseRecord dispatches and decodes one record at the given offset
func (p *Parser) parseRecord(r reader.ByteReader, offset int64, bound boundary) *ParsedRecord {
	dispatch := p.grammar.Dispatch

	if dispatch.Kind == grammar.DispatchUse {
		target := p.grammar.Types[dispatch.Use]
		return p.parseType(r, offset, target, bound, nil)
	}

	// Switch dispatch: tentatively parse the discriminator preamble
	parts := strings.SplitN(dispatch.Expr, ".", 2)
	containerType := p.grammar.Types[parts[0]]

	preamble := p.parseType(r, offset, containerType, bound, nil)
	if preamble.Error != "" {
		return preamble
	}

	discField, ok := preamble.FieldByName(parts[1])
	if !ok || discField.Value.Kind != ValueInt {
		preamble.Error = fmt.Sprintf("dispatch field %s is not an integer in type %s",
			parts[1], parts[0])
		return preamble
	}

	literal := grammar.FormatDiscriminator(discField.Value.Int, discField.Size)

	// Case keys are stored in normalized form; normalize the probe so a
	// width-formatted literal like 0x0065 matches the key 0x65
	normalized, _ := grammar.NormalizeDiscriminator(literal)

	targetName, found := dispatch.Cases[normalized]
	if !found {
		if dispatch.Default == "" {
			preamble.Error = (&ErrNoDispatch{Value: literal}).Error()
			return preamble
		}
		targetName = dispatch.Default
	}

	target := p.grammar.Types[targetName]

	// The preamble's bytes are reused when the target embeds the
	// discriminator type as its leading field.
	record := p.parseType(r, offset, target, bound, preamble)
	record.TypeDiscriminator = literal
	return record
}

// parseType decodes a record of one type starting at offset. A non-nil
// preamble is reused for the leading nested field instead of re-reading.
func (p *Parser) parseType(
	r reader.ByteReader,
	offset int64,
	typeDef *grammar.TypeDef,
	bound boundary,
	preamble *ParsedRecord,
) *ParsedRecord {
	record := &ParsedRecord{
		Offset:   offset,
		TypeName: typeDef.Name,
	}

	context := make(map[string]int64)
	current := offset

	for i := range typeDef.Fields {
		fieldDef := &typeDef.Fields[i]

		field, err := p.parseField(r, current, fieldDef, context, bound, preamble)
		if err != nil {
			record.Size = current - offset
			record.Error = err.Error()
			return record
		}

		record.Fields = append(record.Fields, field)
		p.bindField(context, field)
		current += field.Size
	}

	record.Size = current - offset
	return record
}

// bindField adds a field's integer value to the scope. Nested records
// contribute their field names at the nesting level; the first binding of a
// name wins.
func (p *Parser) bindField(context map[string]int64, field *ParsedField) {
	switch field.Value.Kind {
	case ValueInt:
		bindName(context, field.Name, int64(field.Value.Int))
	case ValueRecord:
		bindNested(context, field.Value.Fields)
	}
}

func bindName(context map[string]int64, name string, value int64) {
	if _, exists := context[name]; !exists {
		context[name] = value
	}
}

func bindNested(context map[string]int64, fields []*ParsedField) {
	for _, f := range fields {
		switch f.Value.Kind {
		case ValueInt:
			bindName(context, f.Name, int64(f.Value.Int))
		case ValueRecord:
			bindNested(context, f.Value.Fields)
		}
	}
}

// parseField decodes a single field at the given offset
func (p *Parser) parseField(
	r reader.ByteReader,
	offset int64,
	fieldDef *grammar.FieldDef,
	context map[string]int64,
	bound boundary,
	preamble *ParsedRecord,
) (*ParsedField, error) {
	// Nested record type
	if nestedType, ok := p.grammar.Types[fieldDef.Type]; ok {
		if preamble != nil && offset == preamble.Offset && fieldDef.Type == preamble.TypeName {
			// Reuse the already-parsed discriminator preamble
			return &ParsedField{
				Name:   fieldDef.Name,
				Value:  RecordValue(preamble.Fields),
				Offset: preamble.Offset,
				Size:   preamble.Size,
				Color:  fieldDef.Color,
			}, nil
		}

		nested := p.parseType(r, offset, nestedType, bound, nil)
		if nested.Error != "" {
			return nil, &ErrFieldFailed{Field: fieldDef.Name, Reason: fmt.Errorf("%s", nested.Error)}
		}

		return &ParsedField{
			Name:   fieldDef.Name,
			Value:  RecordValue(nested.Fields),
			Offset: offset,
			Size:   nested.Size,
			Color:  fieldDef.Color,
		}, nil
	}

	switch fieldDef.Type {
	case grammar.TypeU8, grammar.TypeU16, grammar.TypeU32:
		return p.parseInteger(r, offset, fieldDef, context, bound)
	case grammar.TypeBytes:
		return p.parseBytes(r, offset, fieldDef, context, bound)
	}

	return nil, &ErrFieldFailed{
		Field:  fieldDef.Name,
		Reason: fmt.Errorf("unknown field type %q", fieldDef.Type),
	}
}

// parseInteger decodes a u8/u16/u32 field with its effective endian
func (p *Parser) parseInteger(
	r reader.ByteReader,
	offset int64,
	fieldDef *grammar.FieldDef,
	context map[string]int64,
	bound boundary,
) (*ParsedField, error) {
	size := grammar.PrimitiveSize(fieldDef.Type)

	data, err := p.readExact(r, offset, size, fieldDef.Name, bound)
	if err != nil {
		return nil, err
	}

	var value uint64
	if fieldDef.Type == grammar.TypeU8 {
		value = uint64(data[0])
	} else {
		endian, _ := p.grammar.EffectiveEndian(fieldDef)
		if endian == grammar.EndianBig {
			for _, b := range data {
				value = value<<8 | uint64(b)
			}
		} else {
			for i := len(data) - 1; i >= 0; i-- {
				value = value<<8 | uint64(data[i])
			}
		}
	}

	if fieldDef.Validate != nil {
		if err := p.validateInt(fieldDef, value, context); err != nil {
			return nil, err
		}
	}

	return &ParsedField{
		Name:     fieldDef.Name,
		Value:    IntValue(value),
		RawBytes: data,
		Offset:   offset,
		Size:     size,
		Color:    fieldDef.Color,
	}, nil
}

// parseBytes decodes a bytes field, resolving its length from the static
// declaration, a prior field, or an arithmetic expression
func (p *Parser) parseBytes(
	r reader.ByteReader,
	offset int64,
	fieldDef *grammar.FieldDef,
	context map[string]int64,
	bound boundary,
) (*ParsedField, error) {
	length, err := p.resolveLength(fieldDef, context)
	if err != nil {
		return nil, err
	}

	data, err := p.readExact(r, offset, length, fieldDef.Name, bound)
	if err != nil {
		return nil, err
	}

	if fieldDef.Validate != nil && fieldDef.Validate.Kind == grammar.ValidateAllBytes {
		want := fieldDef.Validate.ByteValue
		for _, b := range data {
			if b != want {
				return nil, &ErrValidationFailed{
					Field:    fieldDef.Name,
					Expected: fmt.Sprintf("all bytes %#02x", want),
					Got:      fmt.Sprintf("%#02x", b),
				}
			}
		}
	}

	value := BytesValue(data)
	if fieldDef.Encoding != "" {
		value = TextValue(DecodeText(data, fieldDef.Encoding))
	}

	return &ParsedField{
		Name:     fieldDef.Name,
		Value:    value,
		RawBytes: data,
		Offset:   offset,
		Size:     length,
		Color:    fieldDef.Color,
	}, nil
}

// resolveLength computes a bytes field's length from its declaration
func (p *Parser) resolveLength(fieldDef *grammar.FieldDef, context map[string]int64) (int64, error) {
	switch fieldDef.LengthKind {
	case grammar.LengthStatic:
		return fieldDef.LengthStatic, nil

	case grammar.LengthField:
		value, ok := context[fieldDef.LengthField]
		if !ok {
			return 0, &ErrFieldFailed{
				Field:  fieldDef.Name,
				Reason: fmt.Errorf("length field %q not in scope", fieldDef.LengthField),
			}
		}
		if value < 0 {
			return 0, &ErrFieldFailed{
				Field:  fieldDef.Name,
				Reason: &expr.ErrInvalidResult{Value: value},
			}
		}
		return value, nil

	case grammar.LengthExpr:
		value, err := p.evaluator.Evaluate(fieldDef.LengthExpr, context)
		if err != nil {
			return 0, &ErrFieldFailed{Field: fieldDef.Name, Reason: err}
		}
		return value, nil
	}

	return 0, &ErrFieldFailed{
		Field:  fieldDef.Name,
		Reason: fmt.Errorf("bytes field has no length declaration"),
	}
}

// readExact reads exactly n bytes or fails with the appropriate error
func (p *Parser) readExact(
	r reader.ByteReader,
	offset int64,
	n int64,
	fieldName string,
	bound boundary,
) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	if bound.limited && offset+n > bound.stop {
		return nil, &ErrBoundaryOverrun{Field: fieldName, End: offset + n, Stop: bound.stop}
	}

	data, err := r.Read(offset, n)
	if err != nil {
		return nil, &ErrFieldFailed{Field: fieldName, Reason: err}
	}
	if int64(len(data)) < n {
		return nil, &ErrShortRead{Field: fieldName, Need: n, Got: int64(len(data))}
	}

	return data, nil
}

// validateInt applies equals, equals_field and all_bytes rules to an integer
// value
func (p *Parser) validateInt(fieldDef *grammar.FieldDef, value uint64, context map[string]int64) error {
	rule := fieldDef.Validate

	switch rule.Kind {
	case grammar.ValidateEquals:
		if int64(value) != rule.IntValue {
			return &ErrValidationFailed{
				Field:    fieldDef.Name,
				Expected: fmt.Sprintf("%d", rule.IntValue),
				Got:      fmt.Sprintf("%d", value),
			}
		}

	case grammar.ValidateEqualsField:
		expected, ok := context[rule.FieldName]
		if !ok {
			return &ErrValidationFailed{
				Field:    fieldDef.Name,
				Expected: fmt.Sprintf("value of %s (not in scope)", rule.FieldName),
				Got:      fmt.Sprintf("%d", value),
			}
		}
		if int64(value) != expected {
			return &ErrValidationFailed{
				Field:    fieldDef.Name,
				Expected: fmt.Sprintf("%d", expected),
				Got:      fmt.Sprintf("%d", value),
			}
		}

	case grammar.ValidateAllBytes:
		// Every raw byte must equal the rule byte, so byte order does not
		// matter and the decoded value can be checked byte by byte.
		for i := int64(0); i < grammar.PrimitiveSize(fieldDef.Type); i++ {
			if b := byte(value >> (8 * uint(i))); b != rule.ByteValue {
				return &ErrValidationFailed{
					Field:    fieldDef.Name,
					Expected: fmt.Sprintf("all bytes %#02x", rule.ByteValue),
					Got:      fmt.Sprintf("%#02x", b),
				}
			}
		}
	}

	return nil
}
