/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: parser_test.go
Description: Tests for the record parser covering the straight-line
use-dispatch loop, switch dispatch with preamble reuse, expression lengths,
validation rules, parse bounds, and the failure vocabulary.
*/

package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/reader"
)

const simpleGrammar = `
format: record_stream
endian: little
framing:
  repeat: until_eof
types:
  R:
    fields:
      - {name: t, type: u16}
      - {name: n, type: u8}
      - {name: p, type: bytes, length: n}
record:
  use: R
`

const dispatchGrammar = `
format: record_stream
endian: little
framing:
  repeat: until_eof
types:
  Hdr:
    fields:
      - {name: type_raw, type: u16}
      - {name: eid, type: u16}
  Rec:
    fields:
      - {name: header, type: Hdr}
      - {name: len, type: u8}
      - {name: payload, type: bytes, length: len}
record:
  switch:
    expr: Hdr.type_raw
    cases: {"0x0065": Rec}
    default: Rec
registry:
  "0x0065":
    name: NameRecord
    decode: {as: string, field: payload, encoding: ascii}
`

// mustLint validates grammar text or fails the test
func mustLint(t *testing.T, text string) *grammar.Grammar {
	t.Helper()
	g, errors, _ := grammar.Lint(text)
	require.Empty(t, errors)
	require.NotNil(t, g)
	return g
}

// TestParseSimpleStream tests the minimal u16/length/bytes loop (two
// records, full coverage, no errors)
func TestParseSimpleStream(t *testing.T) {
	g := mustLint(t, simpleGrammar)
	input := []byte{0x01, 0x00, 0x03, 0x41, 0x42, 0x43, 0x02, 0x00, 0x00}

	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	require.Empty(t, result.Errors)
	require.Equal(t, 2, result.RecordCount)
	assert.Equal(t, int64(9), result.TotalBytesParsed)
	assert.Equal(t, int64(9), result.ParseStoppedAt)

	first := result.Records[0]
	assert.Equal(t, int64(0), first.Offset)
	assert.Equal(t, int64(6), first.Size)
	assert.Equal(t, "R", first.TypeName)

	tf, ok := first.FieldByName("t")
	require.True(t, ok)
	assert.Equal(t, uint64(0x0001), tf.Value.Int)

	nf, ok := first.FieldByName("n")
	require.True(t, ok)
	assert.Equal(t, uint64(3), nf.Value.Int)

	pf, ok := first.FieldByName("p")
	require.True(t, ok)
	assert.Equal(t, []byte("ABC"), pf.Value.Bytes)

	second := result.Records[1]
	assert.Equal(t, int64(6), second.Offset)
	assert.Equal(t, int64(3), second.Size)

	tf2, _ := second.FieldByName("t")
	assert.Equal(t, uint64(0x0002), tf2.Value.Int)
	pf2, _ := second.FieldByName("p")
	assert.Empty(t, pf2.Value.Bytes, "zero-length bytes field is allowed")
}

// TestParseDispatch tests switch dispatch with discriminator preamble reuse
func TestParseDispatch(t *testing.T) {
	g := mustLint(t, dispatchGrammar)
	input := []byte{0x65, 0x00, 0x07, 0x00, 0x05, 0x41, 0x6C, 0x69, 0x63, 0x65}

	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	require.Empty(t, result.Errors)
	require.Equal(t, 1, result.RecordCount)

	record := result.Records[0]
	assert.Equal(t, "Rec", record.TypeName)
	assert.Equal(t, "0x0065", record.TypeDiscriminator)
	assert.Equal(t, int64(10), record.Size)

	header, ok := record.FieldByName("header")
	require.True(t, ok)
	require.Equal(t, ValueRecord, header.Value.Kind)
	assert.Equal(t, int64(4), header.Size)

	var typeRaw *ParsedField
	for _, f := range header.Value.Fields {
		if f.Name == "type_raw" {
			typeRaw = f
		}
	}
	require.NotNil(t, typeRaw)
	assert.Equal(t, uint64(0x0065), typeRaw.Value.Int)

	payload, ok := record.FieldByName("payload")
	require.True(t, ok)
	assert.Equal(t, []byte("Alice"), payload.RawBytes)
}

// TestParseDispatchNoDefault tests the NoDispatch failure
func TestParseDispatchNoDefault(t *testing.T) {
	text := strings.Replace(dispatchGrammar, "\n    default: Rec", "", 1)
	g := mustLint(t, text)

	// Discriminator 0x0066 matches no case and there is no default
	input := []byte{0x66, 0x00, 0x07, 0x00, 0x01, 0x41}
	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no dispatch case")
	assert.Contains(t, result.Errors[0], "0x0066")
	assert.Equal(t, int64(0), result.ParseStoppedAt)
}

// TestParseExpressionLength tests an arithmetic length over a prior field
func TestParseExpressionLength(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: total, type: u16}
      - {name: text, type: bytes, length: "total - 4"}
record:
  use: R
`
	g := mustLint(t, text)
	input := append([]byte{0x0A, 0x00}, []byte("sixsix")...)

	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	require.Empty(t, result.Errors)
	record := result.Records[0]
	text0, _ := record.FieldByName("text")
	assert.Equal(t, int64(6), text0.Size)
	assert.Equal(t, []byte("sixsix"), text0.Value.Bytes)
}

// TestParseExpressionNegative tests a negative length expression failing
// the record
func TestParseExpressionNegative(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: total, type: u16}
      - {name: text, type: bytes, length: "total - 4"}
record:
  use: R
`
	g := mustLint(t, text)
	input := []byte{0x02, 0x00, 0xAA}

	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not a valid length")
}

// TestParseShortRead tests the record whose last field exceeds EOF by one
func TestParseShortRead(t *testing.T) {
	g := mustLint(t, simpleGrammar)

	// n=3 but only two payload bytes remain
	input := []byte{0x01, 0x00, 0x03, 0x41, 0x42}
	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "short read")
	assert.Equal(t, int64(0), result.ParseStoppedAt)
	assert.Equal(t, int64(0), result.TotalBytesParsed)

	// The failed record is emitted with its error set
	require.Len(t, result.Records, 1)
	assert.NotEmpty(t, result.Records[0].Error)
}

// TestParseExactEOF tests a record ending exactly at EOF
func TestParseExactEOF(t *testing.T) {
	g := mustLint(t, simpleGrammar)
	input := []byte{0x01, 0x00, 0x02, 0x41, 0x42}

	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})

	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.RecordCount)
	assert.Equal(t, int64(5), result.TotalBytesParsed)
}

// TestParseEndianness tests big-endian field override
func TestParseEndianness(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: a, type: u16}
      - {name: b, type: u16, endian: big}
      - {name: c, type: u32}
record:
  use: R
`
	g := mustLint(t, text)
	input := []byte{0x01, 0x02, 0x01, 0x02, 0xDD, 0xCC, 0xBB, 0xAA}

	result := New(g).Parse(reader.NewBytesReader(input), "test.bin", Options{})
	require.Empty(t, result.Errors)

	record := result.Records[0]
	a, _ := record.FieldByName("a")
	b, _ := record.FieldByName("b")
	c, _ := record.FieldByName("c")
	assert.Equal(t, uint64(0x0201), a.Value.Int)
	assert.Equal(t, uint64(0x0102), b.Value.Int)
	assert.Equal(t, uint64(0xAABBCCDD), c.Value.Int, "u32 above 2^31 stays unsigned")
}

// TestParseValidationEquals tests the equals rule failing a record
func TestParseValidationEquals(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: magic, type: u16, validate: {equals: 0x4D42}}
record:
  use: R
`
	g := mustLint(t, text)

	good := New(g).Parse(reader.NewBytesReader([]byte{0x42, 0x4D}), "t.bin", Options{})
	assert.Empty(t, good.Errors)

	bad := New(g).Parse(reader.NewBytesReader([]byte{0x00, 0x00}), "t.bin", Options{})
	require.Len(t, bad.Errors, 1)
	assert.Contains(t, bad.Errors[0], "validation failed")
}

// TestParseValidationEqualsField tests the equals_field rule
func TestParseValidationEqualsField(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: a, type: u8}
      - {name: b, type: u8, validate: {equals_field: a}}
record:
  use: R
`
	g := mustLint(t, text)

	good := New(g).Parse(reader.NewBytesReader([]byte{0x05, 0x05}), "t.bin", Options{})
	assert.Empty(t, good.Errors)

	bad := New(g).Parse(reader.NewBytesReader([]byte{0x05, 0x06}), "t.bin", Options{})
	assert.Len(t, bad.Errors, 1)
}

// TestParseValidationAllBytes tests the all_bytes rule
func TestParseValidationAllBytes(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: pad, type: bytes, length: 3, validate: {all_bytes: 0}}
record:
  use: R
`
	g := mustLint(t, text)

	good := New(g).Parse(reader.NewBytesReader([]byte{0, 0, 0}), "t.bin", Options{})
	assert.Empty(t, good.Errors)

	bad := New(g).Parse(reader.NewBytesReader([]byte{0, 1, 0}), "t.bin", Options{})
	assert.Len(t, bad.Errors, 1)
}

// TestParseEncoding tests text decoding with replacement
func TestParseEncoding(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: n, type: u8}
      - {name: s, type: bytes, length: n, encoding: ascii}
record:
  use: R
`
	g := mustLint(t, text)
	input := []byte{0x03, 'H', 'i', 0xFF}

	result := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{})
	require.Empty(t, result.Errors, "encoding errors never fail the record")

	s, _ := result.Records[0].FieldByName("s")
	require.Equal(t, ValueText, s.Value.Kind)
	assert.Equal(t, "Hi�", s.Value.Text)
	assert.Equal(t, input[1:], s.RawBytes, "raw bytes kept alongside decoded text")
}

// TestParseRecordLimit tests the record count bound
func TestParseRecordLimit(t *testing.T) {
	g := mustLint(t, simpleGrammar)
	input := []byte{0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x03, 0x00, 0x00}

	result := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{RecordLimit: 2})

	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.RecordCount)
	assert.Equal(t, int64(6), result.ParseStoppedAt)
}

// TestParseByteLimit tests the byte bound and the boundary overrun error
func TestParseByteLimit(t *testing.T) {
	g := mustLint(t, simpleGrammar)
	input := []byte{0x01, 0x00, 0x03, 0x41, 0x42, 0x43, 0x02, 0x00, 0x00}

	// Limit ends exactly at the first record boundary
	exact := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{ByteLimit: 6})
	assert.Empty(t, exact.Errors)
	assert.Equal(t, 1, exact.RecordCount)

	// Limit cuts through the first record's payload
	cut := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{ByteLimit: 5})
	require.Len(t, cut.Errors, 1)
	assert.Contains(t, cut.Errors[0], "parse boundary")
}

// TestParseOffset tests starting mid-stream
func TestParseOffset(t *testing.T) {
	g := mustLint(t, simpleGrammar)
	input := []byte{0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x01, 0x41}

	result := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{Offset: 3})

	require.Empty(t, result.Errors)
	require.Equal(t, 1, result.RecordCount)
	assert.Equal(t, int64(3), result.Records[0].Offset)
	assert.Equal(t, int64(4), result.TotalBytesParsed)
}

// TestParseEmptyInput tests that an empty input yields no records
func TestParseEmptyInput(t *testing.T) {
	g := mustLint(t, simpleGrammar)

	result := New(g).Parse(reader.NewBytesReader(nil), "t.bin", Options{})

	assert.Empty(t, result.Errors)
	assert.Zero(t, result.RecordCount)
	assert.Zero(t, result.TotalBytesParsed)
}

// TestParseNestedScopeFirstBindingWins tests length resolution when a
// nested type shadows an outer name
func TestParseNestedScopeFirstBindingWins(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  Inner:
    fields:
      - {name: n, type: u8}
  R:
    fields:
      - {name: n, type: u8}
      - {name: nested, type: Inner}
      - {name: p, type: bytes, length: n}
record:
  use: R
`
	g := mustLint(t, text)

	// Outer n=1, inner n=9; the first binding (outer) wins
	input := []byte{0x01, 0x09, 0x41}
	result := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{})

	require.Empty(t, result.Errors)
	p, _ := result.Records[0].FieldByName("p")
	assert.Equal(t, int64(1), p.Size)
}

// TestParseDeterminism tests that two runs over the same input agree
// modulo timestamp
func TestParseDeterminism(t *testing.T) {
	g := mustLint(t, dispatchGrammar)
	input := []byte{0x65, 0x00, 0x07, 0x00, 0x05, 0x41, 0x6C, 0x69, 0x63, 0x65}

	a := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{})
	b := New(g).Parse(reader.NewBytesReader(input), "t.bin", Options{})

	a.Timestamp = b.Timestamp
	assert.Equal(t, a, b)
}
