/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: decode_test.go
Description: Tests for registry-driven decoding: string and hex payloads,
integer decoding with endian fallback, the packed date format, field
selection, and the failure reasons.
*/

package decode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/parser"
	"github.com/kleascm/bytemap/pkg/reader"
)

const registryGrammar = `
format: record_stream
endian: little
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

// parseOne parses a single record with the given grammar text and input
func parseOne(t *testing.T, text string, input []byte) (*grammar.Grammar, *parser.ParsedRecord) {
	t.Helper()
	g, errors, _ := grammar.Lint(text)
	require.Empty(t, errors)

	result := parser.New(g).Parse(reader.NewBytesReader(input), "t.bin", parser.Options{})
	require.Empty(t, result.Errors)
	require.NotEmpty(t, result.Records)
	return g, result.Records[0]
}

// TestDecodeRegistryString tests the dispatch/registry string decode path
func TestDecodeRegistryString(t *testing.T) {
	g, record := parseOne(t, registryGrammar,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x05, 0x41, 0x6C, 0x69, 0x63, 0x65})

	decoded := Field(record, g, "")

	require.True(t, decoded.Success, decoded.Error)
	assert.Equal(t, "Alice", decoded.Value)
	assert.Equal(t, "string", decoded.DecoderType)
	assert.Equal(t, "payload", decoded.FieldPath)
}

// TestDecodeNoRegistryEntry tests the missing registry entry reason
func TestDecodeNoRegistryEntry(t *testing.T) {
	g, record := parseOne(t, registryGrammar,
		[]byte{0x66, 0x00, 0x07, 0x00, 0x01, 0x41})

	decoded := Field(record, g, "")

	assert.False(t, decoded.Success)
	assert.Contains(t, decoded.Error, ReasonNoRegistry)
}

// TestDecodeHex tests the hex decoder over raw payload bytes
func TestDecodeHex(t *testing.T) {
	text := strings.Replace(registryGrammar,
		"decode: {as: string, field: payload, encoding: ascii}",
		"decode: {as: hex, field: payload}", 1)

	g, record := parseOne(t, text,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x03, 0xDE, 0xAD, 0x0F})

	decoded := Field(record, g, "")

	require.True(t, decoded.Success, decoded.Error)
	assert.Equal(t, "dead0f", decoded.Value)
	assert.Equal(t, "hex", decoded.DecoderType)
}

// TestDecodeIntegerFromBytes tests u16 decoding with grammar endian
// fallback
func TestDecodeIntegerFromBytes(t *testing.T) {
	text := strings.Replace(registryGrammar,
		"decode: {as: string, field: payload, encoding: ascii}",
		"decode: {as: u16, field: payload}", 1)

	g, record := parseOne(t, text,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x02, 0x34, 0x12})

	decoded := Field(record, g, "")

	require.True(t, decoded.Success, decoded.Error)
	assert.Equal(t, "4660", decoded.Value, "0x1234 little endian")
	assert.Equal(t, "u16", decoded.DecoderType)
}

// TestDecodeIntegerInsufficient tests the short payload reason
func TestDecodeIntegerInsufficient(t *testing.T) {
	text := strings.Replace(registryGrammar,
		"decode: {as: string, field: payload, encoding: ascii}",
		"decode: {as: u32, field: payload}", 1)

	g, record := parseOne(t, text,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x02, 0x34, 0x12})

	decoded := Field(record, g, "")

	assert.False(t, decoded.Success)
	assert.Contains(t, decoded.Error, ReasonInsufficient)
}

// TestDecodePackedDate tests the 4-byte packed date decoder
func TestDecodePackedDate(t *testing.T) {
	text := strings.Replace(registryGrammar,
		"decode: {as: string, field: payload, encoding: ascii}",
		"decode: {as: packed_date_v1, field: payload}", 1)

	// day=15 -> byte0 = 15<<3 = 0x78; month=6 -> byte1 = 6<<1 = 0x0C;
	// year=1995 -> 0xCB 0x07 little endian
	g, record := parseOne(t, text,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x04, 0x78, 0x0C, 0xCB, 0x07})

	decoded := Field(record, g, "")

	require.True(t, decoded.Success, decoded.Error)
	assert.Equal(t, "1995-06-15", decoded.Value)
	assert.Equal(t, "packed_date_v1", decoded.DecoderType)
}

// TestDecodePackedDateRejects tests packed date validation
func TestDecodePackedDateRejects(t *testing.T) {
	text := strings.Replace(registryGrammar,
		"decode: {as: string, field: payload, encoding: ascii}",
		"decode: {as: packed_date_v1, field: payload}", 1)

	// Low bit of byte 1 set: reserved bit violation
	g, record := parseOne(t, text,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x04, 0x78, 0x0D, 0xCB, 0x07})

	decoded := Field(record, g, "")

	assert.False(t, decoded.Success)
	assert.Contains(t, decoded.Error, ReasonInvalidEncoding)
}

// TestDecodeImplicitFieldSelection tests picking the first bytes field when
// the entry names none
func TestDecodeImplicitFieldSelection(t *testing.T) {
	text := strings.Replace(registryGrammar,
		"decode: {as: string, field: payload, encoding: ascii}",
		"decode: {as: string, encoding: ascii}", 1)

	g, record := parseOne(t, text,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x02, 0x48, 0x69})

	decoded := Field(record, g, "")

	require.True(t, decoded.Success, decoded.Error)
	assert.Equal(t, "Hi", decoded.Value)
	assert.Equal(t, "payload", decoded.FieldPath)
}

// TestDecodeNamedField tests direct decoding of a named field
func TestDecodeNamedField(t *testing.T) {
	g, record := parseOne(t, registryGrammar,
		[]byte{0x65, 0x00, 0x07, 0x00, 0x02, 0x48, 0x69})

	decoded := Field(record, g, "len")
	require.True(t, decoded.Success)
	assert.Equal(t, "2", decoded.Value)

	decoded = Field(record, g, "payload")
	require.True(t, decoded.Success)
	assert.Equal(t, "Hi", decoded.Value)

	decoded = Field(record, g, "missing")
	assert.False(t, decoded.Success)
	assert.Contains(t, decoded.Error, ReasonNoField)
}
