/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the bytemap workbench. Provides
comprehensive command-line options, configuration management, and beautiful
user interface for driving the grammar iteration loop: lint, parse, coverage,
spans, decode, query, versioning, and scoring.
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/bytemap/cmd/bytemap/commands"
)

var (
	// Configuration
	configFile string
	logLevel   string

	// Logging configuration
	logDir      string
	logFormat   string
	logMaxFiles int
	logMaxSize  int64
	logCompress bool

	// Parse bounds
	parseOffset int64
	byteLimit   int64
	recordLimit int

	// Span viewport
	viewportStart int64
	viewportEnd   int64

	// Output
	jsonOutput bool
	verbose    bool

	// Version store
	storePath string
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "bytemap",
		Short: "bytemap - grammar-driven binary format workbench",
		Long: `bytemap is a toolkit for iteratively reverse-engineering unknown binary
file formats. Write a declarative grammar for a record-stream format, run it
against a binary, inspect where parsing succeeds and fails, patch the
grammar, and compare the resulting runs.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "./logs", "Log output directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().IntVar(&logMaxFiles, "log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64Var(&logMaxSize, "log-max-size", 100*1024*1024, "Maximum log file size in bytes")
	rootCmd.PersistentFlags().BoolVar(&logCompress, "log-compress", false, "Compress rotated log files")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))
	viper.BindPFlag("log_compress", rootCmd.PersistentFlags().Lookup("log-compress"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add lint command
	lintCmd := &cobra.Command{
		Use:   "lint <grammar.yaml>",
		Short: "Validate a grammar file",
		Long: `Run the full lint pass over a grammar file: structural checks, type and
length references, endianness, colors, and registry entries. Warnings are
surfaced separately from fatal errors.`,
		Args: cobra.ExactArgs(1),
		RunE: commands.RunLint,
	}
	rootCmd.AddCommand(lintCmd)

	// Add parse command
	parseCmd := &cobra.Command{
		Use:   "parse <grammar.yaml> <binary>",
		Short: "Parse a binary with a grammar",
		Long: `Parse a binary file as a record stream using a validated grammar. Prints
each record with its field tree, plus errors and summary statistics.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunParse,
	}
	parseCmd.Flags().Int64Var(&parseOffset, "offset", 0, "Start offset in the binary")
	parseCmd.Flags().Int64Var(&byteLimit, "limit", 0, "Maximum bytes to parse (0 = entire file)")
	parseCmd.Flags().IntVar(&recordLimit, "max-records", 0, "Maximum records to parse (0 = unlimited)")
	viper.BindPFlag("parse_offset", parseCmd.Flags().Lookup("offset"))
	viper.BindPFlag("byte_limit", parseCmd.Flags().Lookup("limit"))
	viper.BindPFlag("record_limit", parseCmd.Flags().Lookup("max-records"))
	rootCmd.AddCommand(parseCmd)

	// Add coverage command
	coverageCmd := &cobra.Command{
		Use:   "coverage <grammar.yaml> <binary>",
		Short: "Report parse coverage and gaps",
		Long: `Parse a binary and report which byte ranges are covered by successfully
parsed records, the uncovered gaps, and the percentage coverage.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunCoverage,
	}
	rootCmd.AddCommand(coverageCmd)

	// Add spans command
	spansCmd := &cobra.Command{
		Use:   "spans <grammar.yaml> <binary>",
		Short: "Emit field spans for a viewport",
		Long: `Parse a binary and emit the leaf field spans overlapping a byte viewport,
with dotted field paths and display groups.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunSpans,
	}
	spansCmd.Flags().Int64Var(&viewportStart, "start", 0, "Viewport start offset (inclusive)")
	spansCmd.Flags().Int64Var(&viewportEnd, "end", 0, "Viewport end offset (exclusive, 0 = file size)")
	viper.BindPFlag("viewport_start", spansCmd.Flags().Lookup("start"))
	viper.BindPFlag("viewport_end", spansCmd.Flags().Lookup("end"))
	rootCmd.AddCommand(spansCmd)

	// Add decode command
	decodeCmd := &cobra.Command{
		Use:   "decode <grammar.yaml> <binary>",
		Short: "Decode record payloads via the registry",
		Long: `Parse a binary and decode each record's payload using the grammar
registry, or decode a specific field by name.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunDecode,
	}
	decodeCmd.Flags().String("field", "", "Decode this field directly instead of using the registry")
	viper.BindPFlag("decode_field", decodeCmd.Flags().Lookup("field"))
	rootCmd.AddCommand(decodeCmd)

	// Add query command
	queryCmd := &cobra.Command{
		Use:   "query <grammar.yaml> <binary>",
		Short: "Filter parsed records",
		Long: `Parse a binary and filter the records by type name, offset range, or
field presence.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunQuery,
	}
	queryCmd.Flags().String("filter", "all", "Filter kind (all, type, offset_range, has_field)")
	queryCmd.Flags().String("type", "", "Type name for the type filter")
	queryCmd.Flags().String("field", "", "Field name for the has_field filter")
	queryCmd.Flags().Int64("range-start", 0, "Start offset for the offset_range filter")
	queryCmd.Flags().Int64("range-end", 0, "End offset for the offset_range filter")
	viper.BindPFlag("query_filter", queryCmd.Flags().Lookup("filter"))
	viper.BindPFlag("query_type", queryCmd.Flags().Lookup("type"))
	viper.BindPFlag("query_field", queryCmd.Flags().Lookup("field"))
	viper.BindPFlag("query_range_start", queryCmd.Flags().Lookup("range-start"))
	viper.BindPFlag("query_range_end", queryCmd.Flags().Lookup("range-end"))
	rootCmd.AddCommand(queryCmd)

	// Add score command
	scoreCmd := &cobra.Command{
		Use:   "score <grammar.yaml> <binary>",
		Short: "Score a parse run",
		Long: `Parse a binary, build the run artifact with anomaly detection, and score
it with hard gates and soft metrics. An optional baseline grammar is parsed
against the same binary for comparison.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunScore,
	}
	scoreCmd.Flags().String("baseline", "", "Baseline grammar file for comparison")
	viper.BindPFlag("score_baseline", scoreCmd.Flags().Lookup("baseline"))
	rootCmd.AddCommand(scoreCmd)

	// Add diff command
	diffCmd := &cobra.Command{
		Use:   "diff <baseline.yaml> <candidate.yaml> <binary>",
		Short: "Diff two grammars' runs over one binary",
		Long: `Parse the same binary with two grammars and report the run diff:
coverage, error, anomaly, and record count deltas, plus the improvement
verdict.`,
		Args: cobra.ExactArgs(3),
		RunE: commands.RunDiff,
	}
	rootCmd.AddCommand(diffCmd)

	// Add version command group
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Manage the grammar version store",
		Long: `Create, patch, and inspect immutable grammar versions. The store persists
as an append-only JSONL log; replaying the log reconstructs the store.`,
	}
	versionCmd.PersistentFlags().StringVar(&storePath, "store", "./bytemap_versions.jsonl", "Version log path")
	viper.BindPFlag("store_path", versionCmd.PersistentFlags().Lookup("store"))

	versionInitCmd := &cobra.Command{
		Use:   "init <grammar.yaml>",
		Short: "Create an initial version from a grammar file",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.RunVersionInit,
	}
	versionCmd.AddCommand(versionInitCmd)

	versionPatchCmd := &cobra.Command{
		Use:   "patch <parent-id> <patch.json>",
		Short: "Apply a patch file to a stored version",
		Args:  cobra.ExactArgs(2),
		RunE:  commands.RunVersionPatch,
	}
	versionCmd.AddCommand(versionPatchCmd)

	versionLineageCmd := &cobra.Command{
		Use:   "lineage <version-id>",
		Short: "Show a version's lineage from its root",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.RunVersionLineage,
	}
	versionCmd.AddCommand(versionLineageCmd)

	versionDiffCmd := &cobra.Command{
		Use:   "diff <version-a> <version-b>",
		Short: "Diff two stored versions",
		Args:  cobra.ExactArgs(2),
		RunE:  commands.RunVersionDiff,
	}
	versionCmd.AddCommand(versionDiffCmd)

	rootCmd.AddCommand(versionCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
