/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyze.go
Description: Command implementations for the analysis loop: lint, parse,
coverage, spans, decode, and query. Each command drives the deterministic
tool host and renders its frozen outputs.
*/

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/bytemap/pkg/query"
	"github.com/kleascm/bytemap/pkg/tools"
)

// RunLint validates a grammar file
func RunLint(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()
	_, lint, err := loadGrammar(host, args[0])
	if err != nil {
		return err
	}

	logger.LogLint(lint.Success, len(lint.Errors), len(lint.Warnings), nil)

	if viper.GetBool("json") {
		return printJSON(map[string]interface{}{
			"success":  lint.Success,
			"errors":   lint.Errors,
			"warnings": lint.Warnings,
		})
	}

	if lint.Success {
		fmt.Println("Grammar is valid")
	} else {
		fmt.Println("Grammar is INVALID")
		for _, e := range lint.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
	for _, w := range lint.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if !lint.Success {
		return fmt.Errorf("%d lint error(s)", len(lint.Errors))
	}
	return nil
}

// RunParse parses a binary and prints the record tree
func RunParse(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()
	_, r, result, err := parseBinary(host, args[0], args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	logger.LogParse(args[1], result.RecordCount, result.TotalBytesParsed, len(result.Errors), nil)

	if viper.GetBool("json") {
		return printJSON(result)
	}

	for i, record := range result.Records {
		header := fmt.Sprintf("record %d: %s @ %#x (%d bytes)", i, record.TypeName, record.Offset, record.Size)
		if record.TypeDiscriminator != "" {
			header += fmt.Sprintf(" disc=%s", record.TypeDiscriminator)
		}
		fmt.Println(header)
		printFieldTree(record.Fields, "  ")
		if record.Error != "" {
			fmt.Printf("  ERROR: %s\n", record.Error)
		}
	}

	fmt.Printf("\n%d record(s), %d byte(s) parsed, stopped at %#x\n",
		result.RecordCount, result.TotalBytesParsed, result.ParseStoppedAt)
	for _, e := range result.Errors {
		fmt.Printf("error: %s\n", e)
	}

	return nil
}

// RunCoverage reports coverage and gaps for a parse
func RunCoverage(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()
	_, r, result, err := parseBinary(host, args[0], args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	report := host.AnalyzeCoverage(tools.AnalyzeCoverageInput{
		ParseResult: result,
		FileSize:    r.Size(),
	})

	logger.LogParse(args[1], result.RecordCount, result.TotalBytesParsed, len(result.Errors), map[string]interface{}{
		"coverage": report.CoveragePercentage,
	})

	if viper.GetBool("json") {
		return printJSON(report)
	}

	fmt.Printf("File size:  %d bytes\n", report.FileSize)
	fmt.Printf("Covered:    %d bytes\n", report.BytesCovered)
	fmt.Printf("Uncovered:  %d bytes\n", report.BytesUncovered)
	fmt.Printf("Coverage:   %.1f%%\n", report.CoveragePercentage)
	fmt.Printf("Records:    %d\n", report.RecordCount)
	for _, gap := range report.Gaps {
		fmt.Printf("gap: [%#x, %#x) %d bytes\n", gap.Start, gap.End, gap.Length())
	}
	if report.LargestGap != nil {
		fmt.Printf("largest gap: [%#x, %#x)\n", report.LargestGap.Start, report.LargestGap.End)
	}

	return nil
}

// RunSpans emits leaf field spans for a viewport
func RunSpans(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()
	_, r, result, err := parseBinary(host, args[0], args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	start := viper.GetInt64("viewport_start")
	end := viper.GetInt64("viewport_end")
	if end == 0 {
		end = r.Size()
	}

	set := host.GenerateSpans(tools.GenerateSpansInput{
		ParseResult:   result,
		ViewportStart: start,
		ViewportEnd:   end,
	})

	if viper.GetBool("json") {
		return printJSON(set.Spans)
	}

	fmt.Printf("viewport [%#x, %#x): %d span(s) from %d record(s)\n",
		set.ViewportStart, set.ViewportEnd, len(set.Spans), set.RecordCount)
	for _, span := range set.Spans {
		line := fmt.Sprintf("  %#06x +%-4d %-8s %s", span.Offset, span.Length, span.Group, span.Path)
		if span.ColorOverride != "" {
			line += fmt.Sprintf(" color=%s", span.ColorOverride)
		}
		fmt.Println(line)
	}

	return nil
}

// RunDecode decodes record payloads via the registry
func RunDecode(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()
	g, r, result, err := parseBinary(host, args[0], args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	fieldName := viper.GetString("decode_field")

	for i, record := range result.Records {
		if record.Error != "" {
			continue
		}
		decoded := host.DecodeField(tools.DecodeFieldInput{
			Record:    record,
			Grammar:   g,
			FieldName: fieldName,
		})

		if decoded.Success {
			fmt.Printf("record %d (%s @ %#x): %s = %s [%s]\n",
				i, record.TypeName, record.Offset, decoded.FieldPath, decoded.Value, decoded.DecoderType)
		} else if viper.GetBool("verbose") {
			fmt.Printf("record %d (%s @ %#x): %s\n", i, record.TypeName, record.Offset, decoded.Error)
		}
	}

	return nil
}

// RunQuery filters parsed records
func RunQuery(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	host := tools.NewHost()
	_, r, result, err := parseBinary(host, args[0], args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	filter := query.Filter{
		Kind:      viper.GetString("query_filter"),
		TypeName:  viper.GetString("query_type"),
		FieldName: viper.GetString("query_field"),
		Start:     viper.GetInt64("query_range_start"),
		End:       viper.GetInt64("query_range_end"),
	}

	set := host.QueryRecords(tools.QueryRecordsInput{ParseResult: result, Filter: filter})

	fmt.Printf("filter: %s\n", set.FilterApplied)
	fmt.Printf("%d of %d record(s)\n", set.TotalCount, set.OriginalCount)
	for _, record := range set.Records {
		fmt.Printf("  %s @ %#x (%d bytes)\n", record.TypeName, record.Offset, record.Size)
	}

	return nil
}
