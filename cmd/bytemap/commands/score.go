/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: score.go
Description: Command implementations for run evaluation: scoring a grammar's
parse run over a binary and diffing the runs of two grammars over the same
binary.
*/

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/bytemap/pkg/artifact"
	"github.com/kleascm/bytemap/pkg/scoring"
	"github.com/kleascm/bytemap/pkg/tools"
)

// buildRun parses a binary with a grammar file and freezes the run artifact
func buildRun(host *tools.Host, grammarPath, binaryPath, label string) (*artifact.RunArtifact, error) {
	g, r, result, err := parseBinary(host, grammarPath, binaryPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return host.NewRun(label, result, g, binaryPath, r.Size()), nil
}

// RunScore scores a parse run, optionally against a baseline grammar
func RunScore(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()

	run, err := buildRun(host, args[0], args[1], "candidate")
	if err != nil {
		return err
	}

	var baseline *artifact.RunArtifact
	if baselinePath := viper.GetString("score_baseline"); baselinePath != "" {
		baseline, err = buildRun(host, baselinePath, args[1], "baseline")
		if err != nil {
			return err
		}
	}

	score, err := host.ScoreRun(run, baseline)
	if err != nil {
		return err
	}

	logger.LogRun(run.RunID, run.SpecVersionID, run.Stats.CoveragePercentage, run.Stats.AnomalyCount, nil)
	logger.LogScore(run.RunID, score.TotalScore, score.PassedHardGates, nil)

	if viper.GetBool("json") {
		return printJSON(score)
	}

	fmt.Print(scoring.FormatScoreReport(run, score, viper.GetBool("verbose")))

	if len(run.Anomalies) > 0 && viper.GetBool("verbose") {
		fmt.Println("ANOMALIES")
		for _, a := range run.Anomalies {
			line := fmt.Sprintf("  [%s] %s @ %#x", a.Severity, a.Type, a.RecordOffset)
			if a.FieldName != "" {
				line += fmt.Sprintf(" field=%s", a.FieldName)
			}
			if a.Message != "" {
				line += fmt.Sprintf(": %s", a.Message)
			}
			fmt.Println(line)
		}
	}

	return nil
}

// RunDiff parses one binary with two grammars and diffs the runs
func RunDiff(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()

	baseline, err := buildRun(host, args[0], args[2], "baseline")
	if err != nil {
		return err
	}
	candidate, err := buildRun(host, args[1], args[2], "candidate")
	if err != nil {
		return err
	}

	diff, err := host.DiffRuns(baseline, candidate)
	if err != nil {
		return err
	}

	if viper.GetBool("json") {
		return printJSON(diff)
	}

	fmt.Print(scoring.FormatDiffReport(diff, viper.GetBool("verbose")))
	return nil
}
