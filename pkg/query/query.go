/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: query.go
Description: Record filtering over parse results. Pure filters by type name,
offset range, and field presence; invalid filters produce an empty result
with a descriptive filter label, never an error.
*/

package query

import (
	"fmt"

	"github.com/kleascm/bytemap/pkg/parser"
)

// Filter kinds
const (
	FilterAll         = "all"
	FilterType        = "type"
	FilterOffsetRange = "offset_range"
	FilterHasField    = "has_field"
)

// Filter selects records from a parse result
type Filter struct {
	Kind      string
	TypeName  string // for type
	Start     int64  // for offset_range
	End       int64  // for offset_range
	FieldName string // for has_field
}

// RecordSet is the immutable result of one query
type RecordSet struct {
	Records       []*parser.ParsedRecord
	FilterApplied string
	TotalCount    int
	OriginalCount int
}

// Records applies a filter to a parse result. Unknown filter kinds or
// unusable values produce an empty set whose FilterApplied describes the
// rejection; this never fails.
func Records(result *parser.ParseResult, filter Filter) *RecordSet {
	original := len(result.Records)

	switch filter.Kind {
	case FilterAll:
		return &RecordSet{
			Records:       result.Records,
			FilterApplied: "all records",
			TotalCount:    original,
			OriginalCount: original,
		}

	case FilterType:
		if filter.TypeName == "" {
			return rejected(original, "type filter requires a type name")
		}
		var filtered []*parser.ParsedRecord
		for _, record := range result.Records {
			if record.TypeName == filter.TypeName {
				filtered = append(filtered, record)
			}
		}
		return &RecordSet{
			Records:       filtered,
			FilterApplied: fmt.Sprintf("type=%s", filter.TypeName),
			TotalCount:    len(filtered),
			OriginalCount: original,
		}

	case FilterOffsetRange:
		if filter.End < filter.Start {
			return rejected(original, fmt.Sprintf("offset_range (%#x, %#x) is inverted", filter.Start, filter.End))
		}
		var filtered []*parser.ParsedRecord
		for _, record := range result.Records {
			if record.Offset < filter.End && record.Offset+record.Size > filter.Start {
				filtered = append(filtered, record)
			}
		}
		return &RecordSet{
			Records:       filtered,
			FilterApplied: fmt.Sprintf("offset_range=(%#x, %#x)", filter.Start, filter.End),
			TotalCount:    len(filtered),
			OriginalCount: original,
		}

	case FilterHasField:
		if filter.FieldName == "" {
			return rejected(original, "has_field filter requires a field name")
		}
		var filtered []*parser.ParsedRecord
		for _, record := range result.Records {
			if _, ok := record.FieldByName(filter.FieldName); ok {
				filtered = append(filtered, record)
			}
		}
		return &RecordSet{
			Records:       filtered,
			FilterApplied: fmt.Sprintf("has_field=%s", filter.FieldName),
			TotalCount:    len(filtered),
			OriginalCount: original,
		}
	}

	return rejected(original, fmt.Sprintf("%s (unknown filter kind)", filter.Kind))
}

// rejected builds an empty result describing why the filter was refused
func rejected(original int, reason string) *RecordSet {
	return &RecordSet{
		FilterApplied: reason,
		OriginalCount: original,
	}
}
