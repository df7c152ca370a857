/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coverage_test.go
Description: Tests for the coverage analyzer: range merging, gap detection
including leading and trailing gaps, percentage arithmetic, and the empty
and uncovered boundary cases.
*/

package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/bytemap/pkg/parser"
)

// resultWith builds a parse result from (offset, size) pairs
func resultWith(records ...[2]int64) *parser.ParseResult {
	result := &parser.ParseResult{}
	for _, r := range records {
		result.Records = append(result.Records, &parser.ParsedRecord{Offset: r[0], Size: r[1]})
	}
	result.RecordCount = len(result.Records)
	return result
}

// TestCoverageWithGaps tests the two-record, two-gap layout
func TestCoverageWithGaps(t *testing.T) {
	report := Analyze(resultWith([2]int64{0, 4}, [2]int64{10, 6}), 20)

	assert.Equal(t, int64(10), report.BytesCovered)
	assert.Equal(t, int64(10), report.BytesUncovered)
	assert.Equal(t, 50.0, report.CoveragePercentage)

	require.Len(t, report.Gaps, 2)
	assert.Equal(t, Range{Start: 4, End: 10}, report.Gaps[0])
	assert.Equal(t, Range{Start: 16, End: 20}, report.Gaps[1])

	require.NotNil(t, report.LargestGap)
	assert.Equal(t, Range{Start: 4, End: 10}, *report.LargestGap)
}

// TestCoverageFull tests a fully covered file
func TestCoverageFull(t *testing.T) {
	report := Analyze(resultWith([2]int64{0, 6}, [2]int64{6, 3}), 9)

	assert.Equal(t, 100.0, report.CoveragePercentage)
	assert.Empty(t, report.Gaps)
	assert.Nil(t, report.LargestGap)
	assert.Equal(t, int64(0), report.BytesUncovered)
}

// TestCoverageEmptyFile tests the N=0 boundary
func TestCoverageEmptyFile(t *testing.T) {
	report := Analyze(resultWith(), 0)

	assert.Equal(t, 0.0, report.CoveragePercentage)
	assert.Empty(t, report.Gaps)
	assert.Equal(t, int64(0), report.BytesCovered)
}

// TestCoverageNoRecords tests an entirely uncovered file
func TestCoverageNoRecords(t *testing.T) {
	report := Analyze(resultWith(), 100)

	assert.Equal(t, 0.0, report.CoveragePercentage)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, Range{Start: 0, End: 100}, report.Gaps[0])
}

// TestCoverageExcludesFailedRecords tests that error records do not count
func TestCoverageExcludesFailedRecords(t *testing.T) {
	result := resultWith([2]int64{0, 4})
	result.Records = append(result.Records, &parser.ParsedRecord{Offset: 4, Size: 6, Error: "short read"})
	result.RecordCount = 2

	report := Analyze(result, 10)
	assert.Equal(t, int64(4), report.BytesCovered)
	assert.Equal(t, 40.0, report.CoveragePercentage)
}

// TestCoverageInvariant tests covered + uncovered == file size
func TestCoverageInvariant(t *testing.T) {
	cases := []struct {
		records  [][2]int64
		fileSize int64
	}{
		{nil, 0},
		{nil, 7},
		{[][2]int64{{0, 3}}, 10},
		{[][2]int64{{2, 3}, {5, 2}, {9, 1}}, 12},
	}

	for _, tc := range cases {
		report := Analyze(resultWith(tc.records...), tc.fileSize)
		assert.Equal(t, tc.fileSize, report.BytesCovered+report.BytesUncovered)
	}
}

// TestMergeRanges tests overlap and adjacency merging
func TestMergeRanges(t *testing.T) {
	merged := MergeRanges([]Range{
		{Start: 5, End: 8},
		{Start: 0, End: 3},
		{Start: 3, End: 5},
		{Start: 7, End: 10},
	})

	require.Len(t, merged, 1)
	assert.Equal(t, Range{Start: 0, End: 10}, merged[0])

	disjoint := MergeRanges([]Range{{Start: 0, End: 2}, {Start: 4, End: 6}})
	require.Len(t, disjoint, 2)
}

// TestLargestGapTieBreak tests that ties go to the smaller start
func TestLargestGapTieBreak(t *testing.T) {
	// Gaps [2,4) and [6,8) have equal length
	report := Analyze(resultWith([2]int64{0, 2}, [2]int64{4, 2}), 8)

	require.Len(t, report.Gaps, 2)
	require.NotNil(t, report.LargestGap)
	assert.Equal(t, Range{Start: 2, End: 4}, *report.LargestGap)
}
