/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: spans_test.go
Description: Tests for viewport span generation and the span index: leaf
tiling, dotted paths, group classification, offset lookup, viewport
filtering, and the single-entry cache.
*/

package spans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/parser"
	"github.com/kleascm/bytemap/pkg/reader"
)

const spanGrammar = `
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
      - {name: payload, type: bytes, length: len, encoding: ascii}
record:
  switch:
    expr: Hdr.type_raw
    cases: {"0x0065": Rec}
    default: Rec
`

// parseFixture parses the two-record dispatch stream used across span tests
func parseFixture(t *testing.T) *parser.ParseResult {
	t.Helper()
	g, errors, _ := grammar.Lint(spanGrammar)
	require.Empty(t, errors)

	input := []byte{
		0x65, 0x00, 0x07, 0x00, 0x02, 0x41, 0x42, // Rec @ 0, size 7
		0x65, 0x00, 0x08, 0x00, 0x01, 0x43, // Rec @ 7, size 6
	}
	result := parser.New(g).Parse(reader.NewBytesReader(input), "t.bin", parser.Options{})
	require.Empty(t, result.Errors)
	require.Equal(t, 2, result.RecordCount)
	return result
}

// TestSpansTileRecords tests that leaves tile each record without gaps
func TestSpansTileRecords(t *testing.T) {
	result := parseFixture(t)
	set := NewGenerator(result).UpdateViewport(0, 13)

	require.Len(t, set.Spans, 8)
	assert.Equal(t, 2, set.RecordCount)

	// Sorted by offset, contiguous over [0, 13)
	var expectedOffset int64
	for _, span := range set.Spans {
		assert.Equal(t, expectedOffset, span.Offset)
		expectedOffset += span.Length
	}
	assert.Equal(t, int64(13), expectedOffset)
}

// TestSpanPathsAndGroups tests dotted paths and group classification
func TestSpanPathsAndGroups(t *testing.T) {
	result := parseFixture(t)
	set := NewGenerator(result).UpdateViewport(0, 7)

	byPath := make(map[string]Span)
	for _, span := range set.Spans {
		byPath[span.Path] = span
	}

	typeRaw, ok := byPath["Rec.header.type_raw"]
	require.True(t, ok)
	assert.Equal(t, GroupInt, typeRaw.Group)
	assert.Equal(t, int64(0), typeRaw.Offset)
	assert.Equal(t, int64(2), typeRaw.Length)

	payload, ok := byPath["Rec.payload"]
	require.True(t, ok)
	assert.Equal(t, GroupString, payload.Group, "encoded bytes classify as string")
	assert.Equal(t, int64(5), payload.Offset)
}

// TestSpanIndexFind tests offset lookup over the index
func TestSpanIndexFind(t *testing.T) {
	result := parseFixture(t)
	set := NewGenerator(result).UpdateViewport(0, 13)

	span, ok := set.Index.Find(0)
	require.True(t, ok)
	assert.Equal(t, "Rec.header.type_raw", span.Path)

	span, ok = set.Index.Find(5)
	require.True(t, ok)
	assert.Equal(t, "Rec.payload", span.Path)

	// Every offset resolves to the span owning it
	for offset := int64(0); offset < 13; offset++ {
		span, ok := set.Index.Find(offset)
		require.True(t, ok, "offset %d", offset)
		assert.LessOrEqual(t, span.Offset, offset)
		assert.Greater(t, span.End(), offset)
	}

	_, ok = set.Index.Find(13)
	assert.False(t, ok)
	_, ok = set.Index.Find(-1)
	assert.False(t, ok)
}

// TestViewportFiltering tests that only overlapping records emit spans
func TestViewportFiltering(t *testing.T) {
	result := parseFixture(t)
	generator := NewGenerator(result)

	// Viewport inside the second record only
	set := generator.UpdateViewport(8, 12)
	for _, span := range set.Spans {
		assert.Less(t, span.Offset, int64(13))
	}
	assert.Equal(t, 1, set.RecordCount)

	// Viewport straddling the boundary picks up both records
	set = generator.UpdateViewport(5, 8)
	assert.Equal(t, 2, set.RecordCount)
}

// TestViewportPastData tests the empty viewport case
func TestViewportPastData(t *testing.T) {
	g, errors, _ := grammar.Lint(spanGrammar)
	require.Empty(t, errors)

	// One empty-payload record covering [0, 5)
	input := []byte{0x65, 0x00, 0x07, 0x00, 0x00}
	result := parser.New(g).Parse(reader.NewBytesReader(input), "t.bin", parser.Options{Offset: 0})
	require.Empty(t, result.Errors)

	// A viewport past the data overlaps no record
	set := NewGenerator(result).UpdateViewport(100, 200)
	assert.Empty(t, set.Spans)
	assert.Zero(t, set.RecordCount)
}

// TestViewportCache tests that an identical query returns the same object
func TestViewportCache(t *testing.T) {
	result := parseFixture(t)
	generator := NewGenerator(result)

	first := generator.UpdateViewport(0, 13)
	second := generator.UpdateViewport(0, 13)
	assert.Same(t, first, second)

	third := generator.UpdateViewport(0, 7)
	assert.NotSame(t, first, third)
}

// TestSpansSkipFailedRecords tests that error records emit nothing
func TestSpansSkipFailedRecords(t *testing.T) {
	g, errors, _ := grammar.Lint(spanGrammar)
	require.Empty(t, errors)

	// Second record's payload is short
	input := []byte{
		0x65, 0x00, 0x07, 0x00, 0x01, 0x41,
		0x65, 0x00, 0x07, 0x00, 0x05, 0x42,
	}
	result := parser.New(g).Parse(reader.NewBytesReader(input), "t.bin", parser.Options{})
	require.Len(t, result.Errors, 1)

	set := NewGenerator(result).UpdateViewport(0, int64(len(input)))
	assert.Equal(t, 1, set.RecordCount)
	for _, span := range set.Spans {
		assert.Less(t, span.End(), int64(7), "spans come from the good record only")
	}
}
