/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coverage.go
Description: Coverage analysis over parse results. Merges the byte ranges of
successfully parsed records, finds the gaps within the file, and reports
percentage coverage. Failed records do not count as covered.
*/

package coverage

import (
	"sort"

	"github.com/kleascm/bytemap/pkg/parser"
)

// Range is a half-open byte interval [Start, End)
type Range struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in the range
func (r Range) Length() int64 {
	return r.End - r.Start
}

// Report is an immutable coverage analysis result
type Report struct {
	FileSize           int64
	BytesCovered       int64
	BytesUncovered     int64
	CoveragePercentage float64 // 0-100
	Gaps               []Range
	RecordCount        int
	LargestGap         *Range
}

// Analyze computes coverage for a parse result over a file of the given
// size. Records carrying an error are excluded.
func Analyze(result *parser.ParseResult, fileSize int64) *Report {
	var ranges []Range
	for _, record := range result.Records {
		if record.Error == "" {
			ranges = append(ranges, Range{Start: record.Offset, End: record.Offset + record.Size})
		}
	}

	merged := MergeRanges(ranges)

	var covered int64
	for _, r := range merged {
		covered += r.Length()
	}

	gaps := FindGaps(merged, fileSize)

	var largest *Range
	for i := range gaps {
		if largest == nil || gaps[i].Length() > largest.Length() {
			largest = &gaps[i]
		}
	}

	percentage := 0.0
	if fileSize > 0 {
		percentage = float64(covered) / float64(fileSize) * 100.0
	}

	return &Report{
		FileSize:           fileSize,
		BytesCovered:       covered,
		BytesUncovered:     fileSize - covered,
		CoveragePercentage: percentage,
		Gaps:               gaps,
		RecordCount:        len(result.Records),
		LargestGap:         largest,
	}
}

// MergeRanges sorts ranges by start and merges overlapping or adjacent ones
// in one linear pass
func MergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}

	return merged
}

// FindGaps returns the complements of merged ranges within [0, fileSize),
// including leading and trailing gaps. An empty file has no gaps.
func FindGaps(merged []Range, fileSize int64) []Range {
	if fileSize <= 0 {
		return nil
	}
	if len(merged) == 0 {
		return []Range{{Start: 0, End: fileSize}}
	}

	var gaps []Range

	if merged[0].Start > 0 {
		gaps = append(gaps, Range{Start: 0, End: merged[0].Start})
	}

	for i := 0; i < len(merged)-1; i++ {
		if merged[i+1].Start > merged[i].End {
			gaps = append(gaps, Range{Start: merged[i].End, End: merged[i+1].Start})
		}
	}

	if merged[len(merged)-1].End < fileSize {
		gaps = append(gaps, Range{Start: merged[len(merged)-1].End, End: fileSize})
	}

	return gaps
}
