/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Append-only version store for grammar specs. Versions are
immutable snapshots with parent links and cached lint results; patches apply
atomically against the serialized form and re-lint before a new version
exists. Also holds the shared working draft buffer.
*/

package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/patch"
)

// SpecVersion is an immutable snapshot of a spec at a point in time
type SpecVersion struct {
	ID           string
	ParentID     string // empty for roots
	CreatedAt    time.Time
	SpecText     string
	SpecDict     map[string]interface{}
	PatchApplied *patch.Patch // nil for roots
	LintValid    bool
	LintErrors   []string
	LintWarnings []string
}

// DraftValidation is the cached lint result of the working draft
type DraftValidation struct {
	Grammar  *grammar.Grammar
	Valid    bool
	Errors   []string
	Warnings []string
}

// Store manages the version graph and the working draft.
// It is single-writer: callers sharing a store across goroutines must
// serialize the mutating entry points externally.
type Store struct {
	versions map[string]*SpecVersion
	roots    []string

	workingDraftText string
	draftValidation  *DraftValidation
}

// NewStore creates an empty spec store
func NewStore() *Store {
	return &Store{
		versions: make(map[string]*SpecVersion),
	}
}

// newVersionID allocates a short unique version id
func newVersionID() string {
	return uuid.NewString()[:8]
}

// CreateInitial lints grammar text and stores it as a new root version.
// Lint failures are not stored unless storeInvalid is set; either way the
// lint findings are returned on the version.
func (s *Store) CreateInitial(text string, storeInvalid bool) (*SpecVersion, error) {
	var specDict map[string]interface{}
	if err := yaml.Unmarshal([]byte(text), &specDict); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	_, lintErrors, lintWarnings := grammar.Lint(text)

	version := &SpecVersion{
		ID:           newVersionID(),
		CreatedAt:    time.Now(),
		SpecText:     text,
		SpecDict:     specDict,
		LintValid:    len(lintErrors) == 0,
		LintErrors:   grammar.IssueStrings(lintErrors),
		LintWarnings: grammar.IssueStrings(lintWarnings),
	}

	if !version.LintValid && !storeInvalid {
		return version, fmt.Errorf("grammar failed lint: %s", version.LintErrors[0])
	}

	s.versions[version.ID] = version
	s.roots = append(s.roots, version.ID)
	return version, nil
}

// Get returns a version by id
func (s *Store) Get(id string) (*SpecVersion, bool) {
	version, ok := s.versions[id]
	return version, ok
}

// Len returns the number of stored versions
func (s *Store) Len() int {
	return len(s.versions)
}

// Roots returns the ids of versions without parents
func (s *Store) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// VersionIDs returns all ids ordered by creation time
func (s *Store) VersionIDs() []string {
	ids := make([]string, 0, len(s.versions))
	for id := range s.versions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.versions[ids[i]], s.versions[ids[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ids
}

// ApplyPatch applies a patch to a parent version, re-lints the result, and
// appends a new version. Atomic: on any failure the store is unchanged.
func (s *Store) ApplyPatch(parentID string, p *patch.Patch) patch.Result {
	parent, ok := s.versions[parentID]
	if !ok {
		return patch.Result{
			Success: false,
			Errors:  []string{fmt.Sprintf("parent version %s not found", parentID)},
		}
	}

	// An empty patch produces a child identical to its parent
	if len(p.Ops) == 0 {
		version := &SpecVersion{
			ID:           newVersionID(),
			ParentID:     parentID,
			CreatedAt:    time.Now(),
			SpecText:     parent.SpecText,
			SpecDict:     parent.SpecDict,
			PatchApplied: p,
			LintValid:    parent.LintValid,
			LintErrors:   parent.LintErrors,
			LintWarnings: parent.LintWarnings,
		}
		s.versions[version.ID] = version
		return patch.Result{Success: true, NewSpecID: version.ID}
	}

	newDict, errors, rejected := patch.Apply(p, parent.SpecDict)
	if newDict == nil {
		return patch.Result{Success: false, Errors: errors, RejectedOps: rejected}
	}

	textBytes, err := yaml.Marshal(newDict)
	if err != nil {
		return patch.Result{
			Success: false,
			Errors:  []string{fmt.Sprintf("failed to serialize spec: %v", err)},
		}
	}
	newText := string(textBytes)

	_, lintErrors, lintWarnings := grammar.Lint(newText)
	if len(lintErrors) > 0 {
		failures := make([]string, len(lintErrors))
		for i, issue := range lintErrors {
			failures[i] = fmt.Sprintf("lint failed: %s", issue)
		}
		return patch.Result{Success: false, Errors: failures}
	}

	version := &SpecVersion{
		ID:           newVersionID(),
		ParentID:     parentID,
		CreatedAt:    time.Now(),
		SpecText:     newText,
		SpecDict:     newDict,
		PatchApplied: p,
		LintValid:    true,
		LintWarnings: grammar.IssueStrings(lintWarnings),
	}

	s.versions[version.ID] = version
	return patch.Result{Success: true, NewSpecID: version.ID}
}

// Lineage walks parent links from the given version back to its root and
// returns the ids root-first
func (s *Store) Lineage(id string) []string {
	var reversed []string
	current := id

	for current != "" {
		reversed = append(reversed, current)
		version, ok := s.versions[current]
		if !ok {
			break
		}
		current = version.ParentID
	}

	lineage := make([]string, len(reversed))
	for i, v := range reversed {
		lineage[len(reversed)-1-i] = v
	}
	return lineage
}

// Working draft API: a single raw text buffer, not yet a version

// WorkingText returns the current draft text
func (s *Store) WorkingText() string {
	return s.workingDraftText
}

// SetWorkingText replaces the draft and invalidates its cached validation
func (s *Store) SetWorkingText(text string) {
	s.workingDraftText = text
	s.draftValidation = nil
}

// HasWorkingDraft reports whether the draft has content
func (s *Store) HasWorkingDraft() bool {
	for _, c := range s.workingDraftText {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return true
		}
	}
	return false
}

// ValidateWorkingDraft lints the draft, caching the result until the text
// changes
func (s *Store) ValidateWorkingDraft() *DraftValidation {
	if s.draftValidation == nil {
		g, errors, warnings := grammar.Lint(s.workingDraftText)
		s.draftValidation = &DraftValidation{
			Grammar:  g,
			Valid:    len(errors) == 0,
			Errors:   grammar.IssueStrings(errors),
			Warnings: grammar.IssueStrings(warnings),
		}
	}
	return s.draftValidation
}

// CommitWorkingDraft stores the draft as a new root version
func (s *Store) CommitWorkingDraft() (*SpecVersion, error) {
	if !s.HasWorkingDraft() {
		return nil, fmt.Errorf("cannot commit an empty working draft")
	}
	return s.CreateInitial(s.workingDraftText, false)
}
