/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: version.go
Description: Command implementations for the version store: creating initial
versions, applying patch files, and inspecting lineage and version diffs.
The store round-trips through an append-only JSONL log.
*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/bytemap/pkg/patch"
	"github.com/kleascm/bytemap/pkg/store"
)

// loadStore replays the version log, or starts an empty store when the log
// does not exist yet
func loadStore() (*store.Store, string, error) {
	path := viper.GetString("store_path")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return store.NewStore(), path, nil
	}

	s, err := store.Load(path)
	if err != nil {
		return nil, path, err
	}
	return s, path, nil
}

// RunVersionInit creates an initial version from a grammar file
func RunVersionInit(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, path, err := loadStore()
	if err != nil {
		return err
	}

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read grammar file: %w", err)
	}

	version, err := s.CreateInitial(string(text), false)
	if err != nil {
		if version != nil {
			for _, e := range version.LintErrors {
				fmt.Printf("  error: %s\n", e)
			}
		}
		return err
	}

	if err := s.Save(path); err != nil {
		return err
	}

	logger.LogLint(version.LintValid, len(version.LintErrors), len(version.LintWarnings), map[string]interface{}{
		"version_id": version.ID,
	})

	fmt.Printf("created version %s\n", version.ID)
	for _, w := range version.LintWarnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}

// RunVersionPatch applies a patch file to a stored version
func RunVersionPatch(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, path, err := loadStore()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read patch file: %w", err)
	}

	var patchMap map[string]interface{}
	if err := json.Unmarshal(data, &patchMap); err != nil {
		return fmt.Errorf("invalid patch JSON: %w", err)
	}

	p, err := patch.FromMap(patchMap)
	if err != nil {
		return fmt.Errorf("invalid patch: %w", err)
	}

	result := s.ApplyPatch(args[0], p)
	logger.LogPatch(args[0], result.NewSpecID, result.Success, nil)

	if !result.Success {
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		return fmt.Errorf("patch rejected")
	}

	if err := s.Save(path); err != nil {
		return err
	}

	fmt.Printf("created version %s (parent %s)\n", result.NewSpecID, args[0])
	return nil
}

// RunVersionLineage prints a version's ancestry from its root
func RunVersionLineage(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}

	s, _, err := loadStore()
	if err != nil {
		return err
	}

	if _, ok := s.Get(args[0]); !ok {
		return fmt.Errorf("version %s not found", args[0])
	}

	for _, id := range s.Lineage(args[0]) {
		version, _ := s.Get(id)
		line := fmt.Sprintf("%s  valid=%v", id, version.LintValid)
		if version.PatchApplied != nil {
			line += fmt.Sprintf("  patch=%q", version.PatchApplied.Description)
		}
		fmt.Println(line)
	}
	return nil
}

// RunVersionDiff prints the structural and textual diff of two versions
func RunVersionDiff(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}

	s, _, err := loadStore()
	if err != nil {
		return err
	}

	diff, err := s.DiffSpecs(args[0], args[1])
	if err != nil {
		return err
	}

	if viper.GetBool("json") {
		return printJSON(diff)
	}

	fmt.Printf("diff %s -> %s\n", diff.VersionAID, diff.VersionBID)
	for _, change := range diff.Changes {
		fmt.Printf("  %s\n", change)
	}
	if len(diff.TextDiff) > 0 {
		fmt.Println("text:")
		for _, line := range diff.TextDiff {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}
