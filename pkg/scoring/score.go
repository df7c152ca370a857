/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: score.go
Description: Deterministic scoring for parse runs. Hard gates zero the score
outright; soft metrics blend coverage (up to 70 points) with parse quality
(up to 30 points). Same inputs always produce the same score.
*/

package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kleascm/bytemap/pkg/artifact"
)

// Hard gate names
const (
	GateParseAdvanced      = "parse_advanced"
	GateNoSafetyViolations = "no_safety_violations"
)

// Soft metric weights
const (
	CoverageWeight = 0.7
	QualityCeiling = 30.0
	ErrorPenalty   = 3.0
	AnomalyPenalty = 1.0
)

// ScoreBreakdown is the detailed result of scoring one run
type ScoreBreakdown struct {
	TotalScore      float64            `json:"total_score"` // 0-100
	PassedHardGates bool               `json:"passed_hard_gates"`
	FailedHardGates []string           `json:"failed_hard_gates,omitempty"`
	HardGateResults map[string]bool    `json:"hard_gate_results"`
	CoverageScore   float64            `json:"coverage_score"` // 0-70
	QualityScore    float64            `json:"quality_score"`  // 0-30
	SoftMetrics     map[string]float64 `json:"soft_metrics"`
	Penalties       map[string]float64 `json:"penalties"`
	Summary         string             `json:"summary"`
}

// ScoreRun scores a run against the hard gates and soft metrics. A non-nil
// baseline adds comparison deltas to the breakdown; the total is derived
// from the candidate alone.
func ScoreRun(run *artifact.RunArtifact, baseline *artifact.RunArtifact) *ScoreBreakdown {
	stats := run.Stats

	gates := map[string]bool{
		GateParseAdvanced:      stats.ParseStoppedAt > 0 || stats.RecordCount > 0,
		GateNoSafetyViolations: stats.HighSeverityAnomalies == 0,
	}

	var failed []string
	for _, name := range []string{GateParseAdvanced, GateNoSafetyViolations} {
		if !gates[name] {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return &ScoreBreakdown{
			TotalScore:      0.0,
			PassedHardGates: false,
			FailedHardGates: failed,
			HardGateResults: gates,
			SoftMetrics:     map[string]float64{},
			Penalties:       map[string]float64{},
			Summary:         fmt.Sprintf("Failed hard gates: %s", strings.Join(failed, ", ")),
		}
	}

	coverageScore := stats.CoveragePercentage * CoverageWeight
	qualityScore := QualityCeiling -
		ErrorPenalty*float64(stats.ErrorCount) -
		AnomalyPenalty*float64(stats.AnomalyCount)
	if qualityScore < 0 {
		qualityScore = 0
	}

	total := coverageScore + qualityScore
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	total = math.Round(total*10) / 10

	softMetrics := map[string]float64{
		"coverage": coverageScore,
		"quality":  qualityScore,
	}
	penalties := map[string]float64{}

	summaryParts := []string{
		fmt.Sprintf("Coverage: %.1f%%", stats.CoveragePercentage),
		fmt.Sprintf("Quality: %.1f/30", qualityScore),
		fmt.Sprintf("Final score: %.1f", total),
	}

	if baseline != nil {
		diff := DiffRuns(baseline, run)
		softMetrics["coverage_delta"] = diff.CoverageDelta
		softMetrics["error_delta"] = float64(diff.ErrorDelta)
		switch {
		case diff.CoverageDelta > 0:
			summaryParts = append(summaryParts, fmt.Sprintf("(+%.1f%% coverage vs baseline)", diff.CoverageDelta))
		case diff.CoverageDelta < 0:
			summaryParts = append(summaryParts, fmt.Sprintf("(%.1f%% coverage vs baseline)", diff.CoverageDelta))
		default:
			summaryParts = append(summaryParts, "(coverage unchanged vs baseline)")
		}
	}

	return &ScoreBreakdown{
		TotalScore:      total,
		PassedHardGates: true,
		HardGateResults: gates,
		CoverageScore:   coverageScore,
		QualityScore:    qualityScore,
		SoftMetrics:     softMetrics,
		Penalties:       penalties,
		Summary:         strings.Join(summaryParts, "; "),
	}
}

// ScoredRun pairs a run with its score for ranking
type ScoredRun struct {
	Run   *artifact.RunArtifact
	Score *ScoreBreakdown
}

// RankRuns scores and orders runs best-first. Ties break by higher
// coverage, fewer errors, fewer anomalies, then earlier creation.
func RankRuns(runs []*artifact.RunArtifact) []ScoredRun {
	scored := make([]ScoredRun, len(runs))
	for i, run := range runs {
		scored[i] = ScoredRun{Run: run, Score: ScoreRun(run, nil)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score.TotalScore != b.Score.TotalScore {
			return a.Score.TotalScore > b.Score.TotalScore
		}
		if a.Run.Stats.CoveragePercentage != b.Run.Stats.CoveragePercentage {
			return a.Run.Stats.CoveragePercentage > b.Run.Stats.CoveragePercentage
		}
		if a.Run.Stats.ErrorCount != b.Run.Stats.ErrorCount {
			return a.Run.Stats.ErrorCount < b.Run.Stats.ErrorCount
		}
		if a.Run.Stats.AnomalyCount != b.Run.Stats.AnomalyCount {
			return a.Run.Stats.AnomalyCount < b.Run.Stats.AnomalyCount
		}
		return a.Run.CreatedAt.Before(b.Run.CreatedAt)
	})

	return scored
}

// FormatScoreReport renders a score as a readable report
func FormatScoreReport(run *artifact.RunArtifact, score *ScoreBreakdown, verbose bool) string {
	var lines []string
	lines = append(lines, strings.Repeat("=", 70))
	lines = append(lines, "RUN SCORE REPORT")
	lines = append(lines, strings.Repeat("=", 70))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Run ID: %s", run.RunID))
	lines = append(lines, fmt.Sprintf("Spec Version: %s", run.SpecVersionID))
	lines = append(lines, "")

	if !score.PassedHardGates {
		lines = append(lines, "HARD GATES: FAILED")
		lines = append(lines, "")
		for _, name := range []string{GateParseAdvanced, GateNoSafetyViolations} {
			status := "ok"
			if !score.HardGateResults[name] {
				status = "FAILED"
			}
			lines = append(lines, fmt.Sprintf("  %-22s %s", name, status))
		}
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("TOTAL SCORE: %.1f (FAILED)", score.TotalScore))
	} else {
		lines = append(lines, "HARD GATES: PASSED")
		lines = append(lines, "")

		if verbose {
			for _, name := range []string{GateParseAdvanced, GateNoSafetyViolations} {
				lines = append(lines, fmt.Sprintf("  %-22s ok", name))
			}
			lines = append(lines, "")
		}

		lines = append(lines, "SOFT METRICS")
		lines = append(lines, fmt.Sprintf("  coverage: %.1f", score.CoverageScore))
		lines = append(lines, fmt.Sprintf("  quality:  %.1f", score.QualityScore))
		lines = append(lines, "")

		if len(score.Penalties) > 0 {
			lines = append(lines, "PENALTIES")
			names := make([]string, 0, len(score.Penalties))
			for name := range score.Penalties {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				lines = append(lines, fmt.Sprintf("  %s: -%.1f", name, score.Penalties[name]))
			}
			lines = append(lines, "")
		}

		lines = append(lines, fmt.Sprintf("TOTAL SCORE: %.1f / 100", score.TotalScore))
	}

	lines = append(lines, "")
	lines = append(lines, "SUMMARY")
	lines = append(lines, fmt.Sprintf("  %s", score.Summary))
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

// CompareScores scores two runs and renders the winner
func CompareScores(runA, runB *artifact.RunArtifact) string {
	scoreA := ScoreRun(runA, nil)
	scoreB := ScoreRun(runB, nil)

	var lines []string
	lines = append(lines, strings.Repeat("=", 70))
	lines = append(lines, "SCORE COMPARISON")
	lines = append(lines, strings.Repeat("=", 70))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Run A: %s (spec: %s)", runA.RunID, runA.SpecVersionID))
	lines = append(lines, fmt.Sprintf("  Score: %.1f", scoreA.TotalScore))
	lines = append(lines, fmt.Sprintf("  %s", scoreA.Summary))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Run B: %s (spec: %s)", runB.RunID, runB.SpecVersionID))
	lines = append(lines, fmt.Sprintf("  Score: %.1f", scoreB.TotalScore))
	lines = append(lines, fmt.Sprintf("  %s", scoreB.Summary))
	lines = append(lines, "")

	switch {
	case !scoreA.PassedHardGates && !scoreB.PassedHardGates:
		lines = append(lines, "RESULT: Both runs failed hard gates")
	case !scoreA.PassedHardGates:
		lines = append(lines, "RESULT: Run B wins (Run A failed hard gates)")
	case !scoreB.PassedHardGates:
		lines = append(lines, "RESULT: Run A wins (Run B failed hard gates)")
	default:
		delta := scoreB.TotalScore - scoreA.TotalScore
		switch {
		case delta > 0:
			lines = append(lines, fmt.Sprintf("RESULT: Run B wins by %.1f points", delta))
		case delta < 0:
			lines = append(lines, fmt.Sprintf("RESULT: Run A wins by %.1f points", -delta))
		default:
			lines = append(lines, "RESULT: Tie (same score)")
		}
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}
