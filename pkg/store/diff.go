/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: diff.go
Description: Spec-to-spec comparison. Produces a structural change summary
(types added/removed/resized, registry keys added/removed) plus a line-level
text diff of the two spec texts.
*/

package store

import (
	"fmt"
	"sort"
	"strings"
)

// SpecDiff describes the changes between two stored versions
type SpecDiff struct {
	VersionAID string
	VersionBID string
	Changes    []string // structural change descriptions
	TextDiff   []string // line-level diff, "-"/"+" prefixed
}

// DiffSpecs compares two versions by id
func (s *Store) DiffSpecs(aID, bID string) (*SpecDiff, error) {
	a, ok := s.versions[aID]
	if !ok {
		return nil, fmt.Errorf("version %s not found", aID)
	}
	b, ok := s.versions[bID]
	if !ok {
		return nil, fmt.Errorf("version %s not found", bID)
	}

	return &SpecDiff{
		VersionAID: aID,
		VersionBID: bID,
		Changes:    structuralChanges(a.SpecDict, b.SpecDict),
		TextDiff:   DiffLines(a.SpecText, b.SpecText),
	}, nil
}

// structuralChanges summarizes type and registry differences
func structuralChanges(a, b map[string]interface{}) []string {
	var changes []string

	typesA := subKeys(a, "types")
	typesB := subKeys(b, "types")

	for _, name := range onlyIn(typesB, typesA) {
		changes = append(changes, fmt.Sprintf("Added type: %s", name))
	}
	for _, name := range onlyIn(typesA, typesB) {
		changes = append(changes, fmt.Sprintf("Removed type: %s", name))
	}
	for _, name := range inBoth(typesA, typesB) {
		countA := fieldCount(a, name)
		countB := fieldCount(b, name)
		if countA != countB {
			changes = append(changes, fmt.Sprintf("Type %s: field count %d -> %d", name, countA, countB))
		}
	}

	registryA := subKeys(a, "registry")
	registryB := subKeys(b, "registry")

	for _, key := range onlyIn(registryB, registryA) {
		changes = append(changes, fmt.Sprintf("Added registry entry: %s", key))
	}
	for _, key := range onlyIn(registryA, registryB) {
		changes = append(changes, fmt.Sprintf("Removed registry entry: %s", key))
	}

	return changes
}

// subKeys returns the key set of a top-level mapping section
func subKeys(spec map[string]interface{}, section string) map[string]bool {
	out := make(map[string]bool)
	raw, ok := spec[section].(map[string]interface{})
	if !ok {
		return out
	}
	for key := range raw {
		out[key] = true
	}
	return out
}

// onlyIn returns keys of a not present in b, sorted
func onlyIn(a, b map[string]bool) []string {
	var out []string
	for key := range a {
		if !b[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// inBoth returns keys present in both sets, sorted
func inBoth(a, b map[string]bool) []string {
	var out []string
	for key := range a {
		if b[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// fieldCount counts a type's declared fields in the serialized form
func fieldCount(spec map[string]interface{}, typeName string) int {
	types, ok := spec["types"].(map[string]interface{})
	if !ok {
		return 0
	}
	typeDef, ok := types[typeName].(map[string]interface{})
	if !ok {
		return 0
	}
	fields, ok := typeDef["fields"].([]interface{})
	if !ok {
		return 0
	}
	return len(fields)
}

// DiffLines produces a minimal line diff of two texts via longest common
// subsequence. Removed lines are "-" prefixed, added lines "+" prefixed.
func DiffLines(a, b string) []string {
	linesA := splitLines(a)
	linesB := splitLines(b)

	// LCS table
	n, m := len(linesA), len(linesB)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if linesA[i] == linesB[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var diff []string
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case linesA[i] == linesB[j]:
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			diff = append(diff, "-"+linesA[i])
			i++
		default:
			diff = append(diff, "+"+linesB[j])
			j++
		}
	}
	for ; i < n; i++ {
		diff = append(diff, "-"+linesA[i])
	}
	for ; j < m; j++ {
		diff = append(diff, "+"+linesB[j])
	}

	return diff
}

// splitLines splits text into lines without trailing newline artifacts
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
