/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: tools.go
Description: Deterministic tool host for binary analysis. A stable API of
pure functions over frozen inputs and outputs, safe to call from UI code or
autonomous agents: lint, parse, spans, coverage, decode, query, versioning,
diff, and scoring. Tools fail with structured reasons, never panics.
*/

package tools

import (
	"fmt"

	"github.com/kleascm/bytemap/pkg/artifact"
	"github.com/kleascm/bytemap/pkg/coverage"
	"github.com/kleascm/bytemap/pkg/decode"
	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/parser"
	"github.com/kleascm/bytemap/pkg/patch"
	"github.com/kleascm/bytemap/pkg/query"
	"github.com/kleascm/bytemap/pkg/reader"
	"github.com/kleascm/bytemap/pkg/scoring"
	"github.com/kleascm/bytemap/pkg/spans"
	"github.com/kleascm/bytemap/pkg/store"
)

// LintGrammarInput is the input for grammar validation
type LintGrammarInput struct {
	YAMLText string
}

// LintGrammarOutput is the result of grammar validation. Grammar is nil
// unless Success is true.
type LintGrammarOutput struct {
	Success  bool
	Grammar  *grammar.Grammar
	Errors   []string
	Warnings []string
}

// ParseBinaryInput is the input for binary parsing. Zero limits mean
// unbounded.
type ParseBinaryInput struct {
	Grammar     *grammar.Grammar
	Reader      reader.ByteReader
	FilePath    string
	Offset      int64
	ByteLimit   int64
	RecordLimit int
}

// GenerateSpansInput is the input for viewport span generation
type GenerateSpansInput struct {
	ParseResult   *parser.ParseResult
	ViewportStart int64
	ViewportEnd   int64
}

// AnalyzeCoverageInput is the input for coverage analysis
type AnalyzeCoverageInput struct {
	ParseResult *parser.ParseResult
	FileSize    int64
}

// DecodeFieldInput is the input for registry or direct field decoding
type DecodeFieldInput struct {
	Record    *parser.ParsedRecord
	Grammar   *grammar.Grammar
	FieldName string // empty = registry-driven selection
}

// QueryRecordsInput is the input for record filtering
type QueryRecordsInput struct {
	ParseResult *parser.ParseResult
	Filter      query.Filter
}

// CreateVersionOutput pairs a new version id with its lint result
type CreateVersionOutput struct {
	VersionID string
	Lint      LintGrammarOutput
}

// Host is the boundary API exposed to UI code and agents. Every method is
// deterministic over its inputs; only the version store methods mutate
// state, and those serialize through the store's single-writer discipline.
type Host struct {
	Store *store.Store
}

// NewHost creates a tool host with an empty version store
func NewHost() *Host {
	return &Host{Store: store.NewStore()}
}

// LintGrammar validates grammar text without touching binary data
func (h *Host) LintGrammar(input LintGrammarInput) LintGrammarOutput {
	g, errors, warnings := grammar.Lint(input.YAMLText)
	return LintGrammarOutput{
		Success:  len(errors) == 0,
		Grammar:  g,
		Errors:   grammar.IssueStrings(errors),
		Warnings: grammar.IssueStrings(warnings),
	}
}

// ParseBinary parses records from a reader using a validated grammar.
// The file is only read, never modified; same input, same output.
func (h *Host) ParseBinary(input ParseBinaryInput) *parser.ParseResult {
	if input.Grammar == nil || input.Reader == nil {
		return &parser.ParseResult{
			Errors:   []string{"parse_binary requires a validated grammar and a reader"},
			FilePath: input.FilePath,
		}
	}

	p := parser.New(input.Grammar)
	return p.Parse(input.Reader, input.FilePath, parser.Options{
		Offset:      input.Offset,
		ByteLimit:   input.ByteLimit,
		RecordLimit: input.RecordLimit,
	})
}

// GenerateSpans emits leaf field spans for the records overlapping a
// viewport
func (h *Host) GenerateSpans(input GenerateSpansInput) *spans.SpanSet {
	generator := spans.NewGenerator(input.ParseResult)
	return generator.UpdateViewport(input.ViewportStart, input.ViewportEnd)
}

// AnalyzeCoverage reports covered ranges, gaps, and percentage coverage
func (h *Host) AnalyzeCoverage(input AnalyzeCoverageInput) *coverage.Report {
	return coverage.Analyze(input.ParseResult, input.FileSize)
}

// DecodeField renders a record's payload through the grammar registry, or a
// named field directly
func (h *Host) DecodeField(input DecodeFieldInput) decode.DecodedValue {
	return decode.Field(input.Record, input.Grammar, input.FieldName)
}

// QueryRecords filters a parse result's records
func (h *Host) QueryRecords(input QueryRecordsInput) *query.RecordSet {
	return query.Records(input.ParseResult, input.Filter)
}

// CreateInitialVersion lints grammar text and stores it as a new root
// version. Lint failures are reported and nothing is stored.
func (h *Host) CreateInitialVersion(text string) CreateVersionOutput {
	lint := h.LintGrammar(LintGrammarInput{YAMLText: text})
	if !lint.Success {
		return CreateVersionOutput{Lint: lint}
	}

	version, err := h.Store.CreateInitial(text, false)
	if err != nil {
		lint.Success = false
		lint.Errors = append(lint.Errors, err.Error())
		return CreateVersionOutput{Lint: lint}
	}

	return CreateVersionOutput{VersionID: version.ID, Lint: lint}
}

// ApplyPatch atomically applies a patch to a parent version. On failure the
// store is unchanged and the ordered failures are reported.
func (h *Host) ApplyPatch(parentID string, p *patch.Patch) patch.Result {
	if p == nil {
		return patch.Result{Success: false, Errors: []string{"apply_patch requires a patch"}}
	}
	return h.Store.ApplyPatch(parentID, p)
}

// NewRun freezes a parse result as a run artifact tied to a spec version
func (h *Host) NewRun(
	specVersionID string,
	result *parser.ParseResult,
	g *grammar.Grammar,
	filePath string,
	fileSize int64,
) *artifact.RunArtifact {
	return artifact.NewRunArtifact("", specVersionID, result, g, filePath, fileSize)
}

// DiffRuns compares a candidate run against a baseline
func (h *Host) DiffRuns(baseline, candidate *artifact.RunArtifact) (*scoring.RunDiff, error) {
	if baseline == nil || candidate == nil {
		return nil, fmt.Errorf("diff_runs requires two run artifacts")
	}
	return scoring.DiffRuns(baseline, candidate), nil
}

// ScoreRun scores a run with hard gates and soft metrics; a non-nil
// baseline adds comparison deltas
func (h *Host) ScoreRun(run *artifact.RunArtifact, baseline *artifact.RunArtifact) (*scoring.ScoreBreakdown, error) {
	if run == nil {
		return nil, fmt.Errorf("score_run requires a run artifact")
	}
	return scoring.ScoreRun(run, baseline), nil
}
