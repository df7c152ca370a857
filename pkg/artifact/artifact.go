/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: artifact.go
Description: Run artifacts for spec evaluation. Freezes a parse result with
its coverage-derived statistics and detected anomalies under a run id tied
to a specific spec version, so runs can be diffed and scored later.
*/

package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kleascm/bytemap/pkg/coverage"
	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/parser"
)

// RunStats summarizes one parse run
type RunStats struct {
	RecordCount           int     `json:"record_count"`
	TotalBytesParsed      int64   `json:"total_bytes_parsed"`
	ParseStoppedAt        int64   `json:"parse_stopped_at"`
	FileSize              int64   `json:"file_size"`
	CoveragePercentage    float64 `json:"coverage_percentage"`
	ErrorCount            int     `json:"error_count"`
	AnomalyCount          int     `json:"anomaly_count"`
	HighSeverityAnomalies int     `json:"high_severity_anomalies"`
}

// RunArtifact is the complete, immutable artifact of one parse run
type RunArtifact struct {
	RunID         string
	SpecVersionID string
	CreatedAt     time.Time
	ParseResult   *parser.ParseResult
	FilePath      string
	FileSize      int64
	Anomalies     []Anomaly
	Stats         RunStats
}

// ComputeStats derives run statistics from a parse result, its coverage
// report, and the detected anomalies
func ComputeStats(result *parser.ParseResult, fileSize int64, anomalies []Anomaly) RunStats {
	report := coverage.Analyze(result, fileSize)

	highCount := 0
	for _, a := range anomalies {
		if a.Severity == SeverityHigh {
			highCount++
		}
	}

	return RunStats{
		RecordCount:           result.RecordCount,
		TotalBytesParsed:      result.TotalBytesParsed,
		ParseStoppedAt:        result.ParseStoppedAt,
		FileSize:              fileSize,
		CoveragePercentage:    report.CoveragePercentage,
		ErrorCount:            len(result.Errors),
		AnomalyCount:          len(anomalies),
		HighSeverityAnomalies: highCount,
	}
}

// NewRunArtifact freezes a parse run under the given ids. An empty runID is
// replaced with a content-addressable id derived from the run's identity.
func NewRunArtifact(
	runID string,
	specVersionID string,
	result *parser.ParseResult,
	g *grammar.Grammar,
	filePath string,
	fileSize int64,
) *RunArtifact {
	createdAt := time.Now()

	if runID == "" {
		runID = contentRunID(specVersionID, filePath, fileSize, createdAt)
	}

	anomalies := DetectAnomalies(result, g, fileSize)
	stats := ComputeStats(result, fileSize, anomalies)

	return &RunArtifact{
		RunID:         runID,
		SpecVersionID: specVersionID,
		CreatedAt:     createdAt,
		ParseResult:   result,
		FilePath:      filePath,
		FileSize:      fileSize,
		Anomalies:     anomalies,
		Stats:         stats,
	}
}

// contentRunID derives a stable id from the run's identity
func contentRunID(specVersionID, filePath string, fileSize int64, createdAt time.Time) string {
	payload := fmt.Sprintf("%s|%s|%d|%d", specVersionID, filePath, fileSize, createdAt.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}
