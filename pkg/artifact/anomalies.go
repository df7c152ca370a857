/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: anomalies.go
Description: Heuristic anomaly detection over parse results. Flags absurd
length values, record overflow past the file, stream parse errors, failed
records, and boundary mismatches, with deterministic ordering by offset and
severity.
*/

package artifact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/parser"
)

// Anomaly types
const (
	AnomalyParseError   = "parse_error"
	AnomalyRecordError  = "record_error"
	AnomalyAbsurdLength = "absurd_length"
	AnomalyOverflow     = "field_overflow"
	AnomalyBoundary     = "boundary_mismatch"
)

// Severity levels
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// AbsurdLengthCap is the absolute threshold for high-severity length values
const AbsurdLengthCap = 1 << 20 // 1 MiB

// Anomaly is one detected irregularity in a parse run
type Anomaly struct {
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	RecordOffset int64  `json:"record_offset"`
	FieldName    string `json:"field_name,omitempty"`
	Message      string `json:"message,omitempty"`
	Value        int64  `json:"value,omitempty"`
}

// severityRank orders severities for sorting, high first
func severityRank(severity string) int {
	switch severity {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	}
	return 2
}

// DetectAnomalies scans a parse result for irregularities. The grammar is
// used to identify length-carrying fields (every target of a length_field
// reference); a nil grammar falls back to the name heuristic alone.
func DetectAnomalies(result *parser.ParseResult, g *grammar.Grammar, fileSize int64) []Anomaly {
	var anomalies []Anomaly

	lengthTargets := lengthFieldTargets(g)

	for _, message := range result.Errors {
		anomalies = append(anomalies, Anomaly{
			Type:         AnomalyParseError,
			Severity:     SeverityHigh,
			RecordOffset: result.ParseStoppedAt,
			Message:      message,
		})
	}

	for _, record := range result.Records {
		if record.Error != "" {
			anomalies = append(anomalies, Anomaly{
				Type:         AnomalyRecordError,
				Severity:     SeverityHigh,
				RecordOffset: record.Offset,
				Message:      record.Error,
			})
		}

		if record.Offset+record.Size > fileSize {
			anomalies = append(anomalies, Anomaly{
				Type:         AnomalyOverflow,
				Severity:     SeverityHigh,
				RecordOffset: record.Offset,
				Message: fmt.Sprintf("record size %d exceeds the %d bytes after offset %#x",
					record.Size, fileSize-record.Offset, record.Offset),
				Value: record.Size,
			})
		}

		anomalies = appendLengthAnomalies(anomalies, record, record.Fields, lengthTargets, fileSize)

		if record.Error == "" {
			var fieldTotal int64
			for _, field := range record.Fields {
				fieldTotal += field.Size
			}
			if fieldTotal != record.Size {
				anomalies = append(anomalies, Anomaly{
					Type:         AnomalyBoundary,
					Severity:     SeverityMedium,
					RecordOffset: record.Offset,
					Message: fmt.Sprintf("record size %d does not match field total %d",
						record.Size, fieldTotal),
				})
			}
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].RecordOffset != anomalies[j].RecordOffset {
			return anomalies[i].RecordOffset < anomalies[j].RecordOffset
		}
		return severityRank(anomalies[i].Severity) < severityRank(anomalies[j].Severity)
	})

	return anomalies
}

// lengthFieldTargets collects every field name used as a length_field
// reference anywhere in the grammar
func lengthFieldTargets(g *grammar.Grammar) map[string]bool {
	targets := make(map[string]bool)
	if g == nil {
		return targets
	}
	for _, typeDef := range g.Types {
		for _, field := range typeDef.Fields {
			if field.LengthKind == grammar.LengthField {
				targets[field.LengthField] = true
			}
		}
	}
	return targets
}

// looksLikeLength is the name-based fallback for length-carrying fields
func looksLikeLength(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "length") ||
		strings.HasSuffix(lower, "_len") ||
		strings.HasPrefix(lower, "len_")
}

// appendLengthAnomalies flags absurd integer length values through the
// field tree. High severity when the value reaches min(fileSize, 1 MiB);
// medium when it exceeds the bytes remaining in the file after the field.
func appendLengthAnomalies(
	anomalies []Anomaly,
	record *parser.ParsedRecord,
	fields []*parser.ParsedField,
	lengthTargets map[string]bool,
	fileSize int64,
) []Anomaly {
	highCap := fileSize
	if highCap > AbsurdLengthCap {
		highCap = AbsurdLengthCap
	}

	for _, field := range fields {
		if field.Value.Kind == parser.ValueRecord {
			anomalies = appendLengthAnomalies(anomalies, record, field.Value.Fields, lengthTargets, fileSize)
			continue
		}
		if field.Value.Kind != parser.ValueInt {
			continue
		}
		if !lengthTargets[field.Name] && !looksLikeLength(field.Name) {
			continue
		}

		value := int64(field.Value.Int)
		remaining := fileSize - (field.Offset + field.Size)

		switch {
		case value >= highCap:
			anomalies = append(anomalies, Anomaly{
				Type:         AnomalyAbsurdLength,
				Severity:     SeverityHigh,
				RecordOffset: record.Offset,
				FieldName:    field.Name,
				Message:      fmt.Sprintf("length value %d at or above cap %d", value, highCap),
				Value:        value,
			})
		case value > remaining:
			anomalies = append(anomalies, Anomaly{
				Type:         AnomalyAbsurdLength,
				Severity:     SeverityMedium,
				RecordOffset: record.Offset,
				FieldName:    field.Name,
				Message:      fmt.Sprintf("length value %d exceeds the %d bytes remaining", value, remaining),
				Value:        value,
			})
		}
	}

	return anomalies
}
