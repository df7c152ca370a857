/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: diff.go
Description: Deterministic comparison of two parse runs. Computes signed
stat deltas from baseline to candidate, classifies improvement, and formats
human-readable comparison reports.
*/

package scoring

import (
	"fmt"
	"strings"

	"github.com/kleascm/bytemap/pkg/artifact"
)

// RunDiff is a structured comparison of two runs (candidate minus baseline)
type RunDiff struct {
	BaselineID        string  `json:"baseline_id"`
	CandidateID       string  `json:"candidate_id"`
	CoverageDelta     float64 `json:"coverage_delta"` // percentage points
	BytesParsedDelta  int64   `json:"bytes_parsed_delta"`
	RecordCountDelta  int     `json:"record_count_delta"`
	ErrorDelta        int     `json:"error_delta"`
	AnomalyDelta      int     `json:"anomaly_delta"`
	HighSeverityDelta int     `json:"high_severity_delta"`
	IsImprovement     bool    `json:"is_improvement"`
	Summary           string  `json:"summary"`
}

// DiffRuns compares a candidate run against a baseline. The candidate
// improves on the baseline when coverage did not drop, errors did not grow,
// and high severity anomalies did not increase.
func DiffRuns(baseline, candidate *artifact.RunArtifact) *RunDiff {
	a := baseline.Stats
	b := candidate.Stats

	diff := &RunDiff{
		BaselineID:        baseline.RunID,
		CandidateID:       candidate.RunID,
		CoverageDelta:     b.CoveragePercentage - a.CoveragePercentage,
		BytesParsedDelta:  b.TotalBytesParsed - a.TotalBytesParsed,
		RecordCountDelta:  b.RecordCount - a.RecordCount,
		ErrorDelta:        b.ErrorCount - a.ErrorCount,
		AnomalyDelta:      b.AnomalyCount - a.AnomalyCount,
		HighSeverityDelta: b.HighSeverityAnomalies - a.HighSeverityAnomalies,
	}

	diff.IsImprovement = diff.CoverageDelta >= 0 &&
		diff.ErrorDelta <= 0 &&
		diff.HighSeverityDelta <= 0

	diff.Summary = diffSummary(diff)
	return diff
}

// diffSummary builds the human-readable change description
func diffSummary(diff *RunDiff) string {
	var parts []string

	switch {
	case diff.CoverageDelta > 0:
		parts = append(parts, fmt.Sprintf("Coverage improved by %.1f%%", diff.CoverageDelta))
	case diff.CoverageDelta < 0:
		parts = append(parts, fmt.Sprintf("Coverage decreased by %.1f%%", -diff.CoverageDelta))
	default:
		parts = append(parts, "Coverage unchanged")
	}

	if diff.ErrorDelta < 0 {
		parts = append(parts, fmt.Sprintf("Fixed %d error(s)", -diff.ErrorDelta))
	} else if diff.ErrorDelta > 0 {
		parts = append(parts, fmt.Sprintf("Introduced %d new error(s)", diff.ErrorDelta))
	}

	if diff.HighSeverityDelta < 0 {
		parts = append(parts, fmt.Sprintf("Reduced %d high severity anomaly(ies)", -diff.HighSeverityDelta))
	} else if diff.HighSeverityDelta > 0 {
		parts = append(parts, fmt.Sprintf("Introduced %d high severity anomaly(ies)", diff.HighSeverityDelta))
	}

	if diff.RecordCountDelta > 0 {
		parts = append(parts, fmt.Sprintf("Parsed %d more record(s)", diff.RecordCountDelta))
	} else if diff.RecordCountDelta < 0 {
		parts = append(parts, fmt.Sprintf("Parsed %d fewer record(s)", -diff.RecordCountDelta))
	}

	return strings.Join(parts, "; ")
}

// CompareMultipleRuns diffs every candidate against one baseline
func CompareMultipleRuns(baseline *artifact.RunArtifact, candidates []*artifact.RunArtifact) []*RunDiff {
	diffs := make([]*RunDiff, len(candidates))
	for i, candidate := range candidates {
		diffs[i] = DiffRuns(baseline, candidate)
	}
	return diffs
}

// FindBestRun selects the best improving candidate: highest coverage gain,
// ties broken by lowest anomaly count. Returns nil when no candidate
// improves on the baseline.
func FindBestRun(baseline *artifact.RunArtifact, candidates []*artifact.RunArtifact) (*artifact.RunArtifact, *RunDiff) {
	var bestRun *artifact.RunArtifact
	var bestDiff *RunDiff

	for _, candidate := range candidates {
		diff := DiffRuns(baseline, candidate)
		if !diff.IsImprovement {
			continue
		}
		if bestDiff == nil ||
			diff.CoverageDelta > bestDiff.CoverageDelta ||
			(diff.CoverageDelta == bestDiff.CoverageDelta &&
				candidate.Stats.AnomalyCount < bestRun.Stats.AnomalyCount) {
			bestRun = candidate
			bestDiff = diff
		}
	}

	return bestRun, bestDiff
}

// FormatDiffReport renders a diff as a readable report
func FormatDiffReport(diff *RunDiff, verbose bool) string {
	var lines []string
	lines = append(lines, strings.Repeat("=", 70))
	lines = append(lines, "RUN COMPARISON")
	lines = append(lines, strings.Repeat("=", 70))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Baseline:  %s", diff.BaselineID))
	lines = append(lines, fmt.Sprintf("Candidate: %s", diff.CandidateID))
	lines = append(lines, "")
	lines = append(lines, "SUMMARY")
	lines = append(lines, fmt.Sprintf("  %s", diff.Summary))
	lines = append(lines, "")

	if verbose {
		lines = append(lines, "METRICS")
		lines = append(lines, fmt.Sprintf("  Coverage:        %+.1f%%", diff.CoverageDelta))
		lines = append(lines, fmt.Sprintf("  Bytes parsed:    %+d", diff.BytesParsedDelta))
		lines = append(lines, fmt.Sprintf("  Records:         %+d", diff.RecordCountDelta))
		lines = append(lines, fmt.Sprintf("  Errors:          %+d", diff.ErrorDelta))
		lines = append(lines, fmt.Sprintf("  Anomalies:       %+d", diff.AnomalyDelta))
		lines = append(lines, fmt.Sprintf("  High severity:   %+d", diff.HighSeverityDelta))
		lines = append(lines, "")
	}

	verdict := "NOT AN IMPROVEMENT"
	if diff.IsImprovement {
		verdict = "IMPROVEMENT"
	}
	lines = append(lines, fmt.Sprintf("VERDICT: %s", verdict))
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}
