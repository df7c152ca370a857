/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: spans.go
Description: Viewport-scoped span generation and offset lookup. Emits one
span per leaf field for the records overlapping a viewport, with dotted
field paths and display groups, and indexes them for O(log n) offset lookup.
The most recent viewport's result is cached.
*/

package spans

import (
	"sort"

	"github.com/kleascm/bytemap/pkg/parser"
)

// Display groups for span classification
const (
	GroupInt     = "int"
	GroupString  = "string"
	GroupBytes   = "bytes"
	GroupFloat   = "float"
	GroupUnknown = "unknown"
)

// Span is one leaf field interval tagged for display
type Span struct {
	Offset        int64
	Length        int64
	Path          string // dotted path rooted at the record type name
	Group         string // int, string, bytes, float, unknown
	ColorOverride string // normalized color from the field definition
}

// End returns the exclusive end offset of the span
func (s Span) End() int64 {
	return s.Offset + s.Length
}

// SpanIndex supports offset-to-span lookup over sorted spans
type SpanIndex struct {
	spans  []Span
	starts []int64
}

// NewSpanIndex builds an index over the given spans. Zero-length spans are
// dropped; the rest are sorted by offset.
func NewSpanIndex(spans []Span) *SpanIndex {
	kept := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Length > 0 {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Offset < kept[j].Offset
	})

	starts := make([]int64, len(kept))
	for i, s := range kept {
		starts[i] = s.Offset
	}

	return &SpanIndex{spans: kept, starts: starts}
}

// Find returns the span owning the given offset, if any
func (idx *SpanIndex) Find(offset int64) (Span, bool) {
	i := sort.Search(len(idx.starts), func(i int) bool {
		return idx.starts[i] > offset
	}) - 1
	if i >= 0 {
		s := idx.spans[i]
		if s.Offset <= offset && offset < s.End() {
			return s, true
		}
	}
	return Span{}, false
}

// Len returns the number of indexed spans
func (idx *SpanIndex) Len() int {
	return len(idx.spans)
}

// SpanSet is the immutable result of one viewport query
type SpanSet struct {
	Spans         []Span
	ViewportStart int64
	ViewportEnd   int64
	RecordCount   int // records that contributed spans
	Index         *SpanIndex
}

// Generator produces viewport-scoped span sets for one parse result.
// It caches the most recent viewport; an identical query returns the same
// SpanSet.
type Generator struct {
	result *parser.ParseResult

	cacheStart int64
	cacheEnd   int64
	cached     *SpanSet
}

// NewGenerator creates a span generator over a parse result
func NewGenerator(result *parser.ParseResult) *Generator {
	return &Generator{result: result}
}

// UpdateViewport returns the spans for the half-open viewport [start, end).
// Only records overlapping the viewport are walked; failed records emit
// nothing.
func (g *Generator) UpdateViewport(start, end int64) *SpanSet {
	if g.cached != nil && g.cacheStart == start && g.cacheEnd == end {
		return g.cached
	}

	var spans []Span
	contributing := 0

	for _, idx := range g.recordsInViewport(start, end) {
		record := g.result.Records[idx]
		if record.Error != "" {
			continue
		}
		contributing++
		spans = appendRecordSpans(spans, record.TypeName, record.Fields)
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Offset < spans[j].Offset
	})

	set := &SpanSet{
		Spans:         spans,
		ViewportStart: start,
		ViewportEnd:   end,
		RecordCount:   contributing,
		Index:         NewSpanIndex(spans),
	}

	g.cacheStart = start
	g.cacheEnd = end
	g.cached = set
	return set
}

// recordsInViewport finds indices of records overlapping [start, end).
// Predecessor binary search on the monotonic record offsets, then a linear
// scan forward.
func (g *Generator) recordsInViewport(start, end int64) []int {
	records := g.result.Records
	if len(records) == 0 {
		return nil
	}

	first := sort.Search(len(records), func(i int) bool {
		return records[i].Offset > start
	}) - 1
	if first < 0 {
		first = 0
	}

	var overlapping []int
	for i := first; i < len(records); i++ {
		record := records[i]
		if record.Offset >= end {
			break
		}
		if record.Offset+record.Size > start {
			overlapping = append(overlapping, i)
		}
	}

	return overlapping
}

// appendRecordSpans emits one span per leaf field, post-order, with dotted
// paths rooted at the record type name
func appendRecordSpans(spans []Span, prefix string, fields []*parser.ParsedField) []Span {
	for _, field := range fields {
		path := prefix + "." + field.Name

		if field.Value.Kind == parser.ValueRecord {
			spans = appendRecordSpans(spans, path, field.Value.Fields)
			continue
		}

		spans = append(spans, Span{
			Offset:        field.Offset,
			Length:        field.Size,
			Path:          path,
			Group:         groupOf(field.Value.Kind),
			ColorOverride: field.Color,
		})
	}
	return spans
}

// groupOf classifies a field value tag into a display group
func groupOf(kind parser.ValueKind) string {
	switch kind {
	case parser.ValueInt:
		return GroupInt
	case parser.ValueText:
		return GroupString
	case parser.ValueBytes:
		return GroupBytes
	}
	return GroupUnknown
}
