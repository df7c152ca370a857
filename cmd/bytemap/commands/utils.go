/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the bytemap commands. Provides common
configuration loading, logging setup, and the grammar/binary loading helpers
used across all command implementations.
*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/kleascm/bytemap/pkg/grammar"
	"github.com/kleascm/bytemap/pkg/logging"
	"github.com/kleascm/bytemap/pkg/parser"
	"github.com/kleascm/bytemap/pkg/reader"
	"github.com/kleascm/bytemap/pkg/tools"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("BYTEMAP")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging configures the logging system from viper settings
func SetupLogging() (*logging.Logger, error) {
	config := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    logging.LogFormat(viper.GetString("log_format")),
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Timestamp: true,
		Caller:    false,
		Colors:    true,
		Compress:  viper.GetBool("log_compress"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	logger, err := logging.NewLogger(config)
	if err != nil {
		return nil, err
	}

	// Apply the retention policy to earlier runs' logs
	if err := logging.NewLogManager(config).Maintain(); err != nil {
		logger.Warning("log retention maintenance failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return logger, nil
}

// loadGrammar lints a grammar file and returns the validated grammar
func loadGrammar(host *tools.Host, path string) (*grammar.Grammar, tools.LintGrammarOutput, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, tools.LintGrammarOutput{}, fmt.Errorf("failed to read grammar file: %w", err)
	}

	lint := host.LintGrammar(tools.LintGrammarInput{YAMLText: string(text)})
	if !lint.Success {
		return nil, lint, nil
	}

	return lint.Grammar, lint, nil
}

// openBinary opens a binary input for paged reading
func openBinary(path string) (*reader.FileReader, error) {
	r, err := reader.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}
	return r, nil
}

// parseBinary runs the full lint-then-parse pipeline for a command
func parseBinary(host *tools.Host, grammarPath, binaryPath string) (*grammar.Grammar, *reader.FileReader, *parser.ParseResult, error) {
	g, lint, err := loadGrammar(host, grammarPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if g == nil {
		return nil, nil, nil, fmt.Errorf("grammar failed lint: %s", lint.Errors[0])
	}

	r, err := openBinary(binaryPath)
	if err != nil {
		return nil, nil, nil, err
	}

	result := host.ParseBinary(tools.ParseBinaryInput{
		Grammar:     g,
		Reader:      r,
		FilePath:    binaryPath,
		Offset:      viper.GetInt64("parse_offset"),
		ByteLimit:   viper.GetInt64("byte_limit"),
		RecordLimit: viper.GetInt("record_limit"),
	})

	return g, r, result, nil
}

// printJSON renders a value as indented JSON on stdout
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatValue renders a parsed field value for display
func formatValue(value parser.FieldValue) string {
	switch value.Kind {
	case parser.ValueInt:
		return fmt.Sprintf("%d (0x%X)", value.Int, value.Int)
	case parser.ValueText:
		return fmt.Sprintf("%q", value.Text)
	case parser.ValueBytes:
		if len(value.Bytes) > 16 {
			return fmt.Sprintf("[%d bytes]", len(value.Bytes))
		}
		return fmt.Sprintf("% x", value.Bytes)
	case parser.ValueRecord:
		return fmt.Sprintf("{%d fields}", len(value.Fields))
	}
	return "?"
}

// printFieldTree renders a record's field tree with indentation
func printFieldTree(fields []*parser.ParsedField, indent string) {
	for _, field := range fields {
		fmt.Printf("%s%s @ %#x (%d bytes): %s\n",
			indent, field.Name, field.Offset, field.Size, formatValue(field.Value))
		if field.Value.Kind == parser.ValueRecord {
			printFieldTree(field.Value.Fields, indent+"  ")
		}
	}
}
