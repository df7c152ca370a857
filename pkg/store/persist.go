/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: persist.go
Description: Persistence for the version store as an append-only JSONL log.
One line per version (id, parent, timestamp, grammar text, applied patch);
replaying the log reconstructs the store with lint results recomputed.
*/

package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/patch"
)

// logEntry is one persisted version record
type logEntry struct {
	ID        string                 `json:"id"`
	ParentID  string                 `json:"parent_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	SpecText  string                 `json:"spec_text"`
	Patch     map[string]interface{} `json:"patch,omitempty"`
}

// Save writes every version to a JSONL log, oldest first
func (s *Store) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create version log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, id := range s.VersionIDs() {
		version := s.versions[id]
		entry := logEntry{
			ID:        version.ID,
			ParentID:  version.ParentID,
			CreatedAt: version.CreatedAt,
			SpecText:  version.SpecText,
		}
		if version.PatchApplied != nil {
			entry.Patch = version.PatchApplied.ToMap()
		}
		if err := encoder.Encode(&entry); err != nil {
			return fmt.Errorf("failed to encode version %s: %w", version.ID, err)
		}
	}

	return writer.Flush()
}

// Load replays a JSONL version log into a fresh store. Lint results are
// recomputed during replay.
func Load(path string) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open version log: %w", err)
	}
	defer file.Close()

	s := NewStore()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		var entry logEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("bad version log line %d: %w", line, err)
		}

		var specDict map[string]interface{}
		if err := yaml.Unmarshal([]byte(entry.SpecText), &specDict); err != nil {
			return nil, fmt.Errorf("version %s has invalid spec text: %w", entry.ID, err)
		}

		var applied *patch.Patch
		if entry.Patch != nil {
			applied, err = patch.FromMap(entry.Patch)
			if err != nil {
				return nil, fmt.Errorf("version %s has invalid patch: %w", entry.ID, err)
			}
		}

		_, lintErrors, lintWarnings := grammar.Lint(entry.SpecText)

		version := &SpecVersion{
			ID:           entry.ID,
			ParentID:     entry.ParentID,
			CreatedAt:    entry.CreatedAt,
			SpecText:     entry.SpecText,
			SpecDict:     specDict,
			PatchApplied: applied,
			LintValid:    len(lintErrors) == 0,
			LintErrors:   grammar.IssueStrings(lintErrors),
			LintWarnings: grammar.IssueStrings(lintWarnings),
		}

		s.versions[version.ID] = version
		if version.ParentID == "" {
			s.roots = append(s.roots, version.ID)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read version log: %w", err)
	}

	return s, nil
}
