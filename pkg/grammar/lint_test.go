/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lint_test.go
Description: Tests for the grammar linter covering the ordered fatal checks
(format, endian, type shapes, references, lengths, colors, registry) and the
advisory warnings (unused types, empty cases, shadowed length refs).
*/

package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGrammar = `
format: record_stream
endian: little
framing:
  repeat: until_eof
types:
  R:
    fields:
      - {name: t, type: u16}
      - {name: n, type: u8}
      - {name: p, type: bytes, length: n}
record:
  use: R
`

// hasKind reports whether any issue carries the given kind
func hasKind(issues []Issue, kind string) bool {
	for _, issue := range issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

// TestLintValidGrammar tests that a well-formed grammar passes
func TestLintValidGrammar(t *testing.T) {
	g, errors, warnings := Lint(validGrammar)
	require.Empty(t, errors)
	require.NotNil(t, g)
	assert.Empty(t, warnings)

	assert.Equal(t, FormatRecordStream, g.Format)
	assert.Equal(t, EndianLittle, g.Endian)
	require.Contains(t, g.Types, "R")
	assert.Len(t, g.Types["R"].Fields, 3)
	assert.Equal(t, DispatchUse, g.Dispatch.Kind)
}

// TestLintRejectsBadYAML tests that unparseable text yields a format error
func TestLintRejectsBadYAML(t *testing.T) {
	g, errors, _ := Lint("format: [unclosed")
	assert.Nil(t, g)
	require.NotEmpty(t, errors)
	assert.Equal(t, LintInvalidFormat, errors[0].Kind)
}

// TestLintRejectsWrongFormat tests the top-level format check
func TestLintRejectsWrongFormat(t *testing.T) {
	text := strings.Replace(validGrammar, "record_stream", "chunked", 1)
	g, errors, _ := Lint(text)
	assert.Nil(t, g)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidFormat))
}

// TestLintRejectsMissingRecordSection tests that dispatch is required
func TestLintRejectsMissingRecordSection(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: t, type: u8}
`
	g, errors, _ := Lint(text)
	assert.Nil(t, g)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidFormat))
}

// TestLintRejectsBadEndian tests the default endian check
func TestLintRejectsBadEndian(t *testing.T) {
	text := strings.Replace(validGrammar, "endian: little", "endian: middle", 1)
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidEndian))
}

// TestLintRejectsEmptyType tests that a type needs at least one field
func TestLintRejectsEmptyType(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields: []
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintEmptyType))
}

// TestLintRejectsUnknownFieldType tests the type reference check
func TestLintRejectsUnknownFieldType(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: h, type: Missing}
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintUnknownType))
}

// TestLintRejectsUnknownDispatchTarget tests dispatch reference checks
func TestLintRejectsUnknownDispatchTarget(t *testing.T) {
	text := strings.Replace(validGrammar, "use: R", "use: Nope", 1)
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintUnknownType))
}

// TestLintRejectsRecursiveType tests nesting cycle detection
func TestLintRejectsRecursiveType(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: again, type: R}
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintRecursiveType))
}

// TestLintRejectsBytesWithoutLength tests the bytes length requirement
func TestLintRejectsBytesWithoutLength(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: p, type: bytes}
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidLength))
}

// TestLintRejectsForwardLengthRef tests that a length field must be
// declared before its user
func TestLintRejectsForwardLengthRef(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: p, type: bytes, length: n}
      - {name: n, type: u8}
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintUnresolvedLength))
}

// TestLintAcceptsNestedLengthRef tests resolution through a nested type
func TestLintAcceptsNestedLengthRef(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  Hdr:
    fields:
      - {name: type_raw, type: u16}
      - {name: len, type: u8}
  Rec:
    fields:
      - {name: header, type: Hdr}
      - {name: payload, type: bytes, length: len}
record:
  switch:
    expr: Hdr.type_raw
    cases: {"0x0065": Rec}
    default: Rec
`
	g, errors, _ := Lint(text)
	assert.Empty(t, errors)
	assert.NotNil(t, g)
}

// TestLintRejectsBadLengthExpr tests expression syntax checking
func TestLintRejectsBadLengthExpr(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: n, type: u8}
      - {name: p, type: bytes, length: "n +"}
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidExpr))
}

// TestLintRejectsMissingEndian tests that u16/u32 need a byte order
func TestLintRejectsMissingEndian(t *testing.T) {
	text := `
format: record_stream
types:
  R:
    fields:
      - {name: t, type: u16}
record:
  use: R
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintMissingEndian))
}

// TestLintAcceptsFieldEndianOverride tests per-field endian without default
func TestLintAcceptsFieldEndianOverride(t *testing.T) {
	text := `
format: record_stream
types:
  R:
    fields:
      - {name: t, type: u16, endian: big}
record:
  use: R
`
	g, errors, _ := Lint(text)
	assert.Empty(t, errors)
	require.NotNil(t, g)
	assert.Equal(t, EndianBig, g.Types["R"].Fields[0].Endian)
}

// TestLintNormalizesColors tests color normalization with field pointer on
// failure
func TestLintNormalizesColors(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: t, type: u16, color: RED}
record:
  use: R
`
	g, errors, _ := Lint(text)
	require.Empty(t, errors)
	assert.Equal(t, "#ff0000", g.Types["R"].Fields[0].Color)

	bad := strings.Replace(text, "color: RED", "color: \"#12345\"", 1)
	_, errors, _ = Lint(bad)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidColor))
	assert.Contains(t, errors[0].Message, "R.t")
}

// TestLintRejectsBadRegistry tests discriminator and decoder kind checks
func TestLintRejectsBadRegistry(t *testing.T) {
	text := validGrammar + `
registry:
  "0x0001":
    name: Thing
    decode: {as: csv}
`
	_, errors, _ := Lint(text)
	require.NotEmpty(t, errors)
	assert.True(t, hasKind(errors, LintInvalidRegistry))

	text = validGrammar + `
registry:
  "xyz":
    name: Thing
    decode: {as: hex}
`
	_, errors, _ = Lint(text)
	require.NotEmpty(t, errors)
}

// TestLintNormalizesRegistryKeys tests discriminator canonicalization
func TestLintNormalizesRegistryKeys(t *testing.T) {
	text := validGrammar + `
registry:
  "0xab":
    name: Thing
    decode: {as: hex}
`
	g, errors, _ := Lint(text)
	require.Empty(t, errors)
	_, ok := g.Registry["0xAB"]
	assert.True(t, ok)
}

// TestLintWarnsUnusedType tests the reachability warning
func TestLintWarnsUnusedType(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  R:
    fields:
      - {name: t, type: u8}
  Orphan:
    fields:
      - {name: x, type: u8}
record:
  use: R
`
	g, errors, warnings := Lint(text)
	require.Empty(t, errors)
	require.NotNil(t, g)
	assert.True(t, hasKind(warnings, WarnUnusedType))
}

// TestLintWarnsEmptyCases tests the empty switch cases warning
func TestLintWarnsEmptyCases(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  Hdr:
    fields:
      - {name: type_raw, type: u16}
record:
  switch:
    expr: Hdr.type_raw
    default: Hdr
`
	_, errors, warnings := Lint(text)
	require.Empty(t, errors)
	assert.True(t, hasKind(warnings, WarnEmptyCases))
}

// TestLintWarnsUnmatchedRegistryKey tests the registry/dispatch mismatch
// warning
func TestLintWarnsUnmatchedRegistryKey(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  Hdr:
    fields:
      - {name: type_raw, type: u16}
record:
  switch:
    expr: Hdr.type_raw
    cases: {"0x0001": Hdr}
    default: Hdr
registry:
  "0x0002":
    name: Other
    decode: {as: hex}
`
	_, errors, warnings := Lint(text)
	require.Empty(t, errors)
	assert.True(t, hasKind(warnings, WarnUnmatchedRegistry))
}

// TestLintWarnsShadowedNames tests the shadowed length ref warning
func TestLintWarnsShadowedNames(t *testing.T) {
	text := `
format: record_stream
endian: little
types:
  Inner:
    fields:
      - {name: n, type: u8}
  R:
    fields:
      - {name: n, type: u8}
      - {name: nested, type: Inner}
      - {name: p, type: bytes, length: n}
record:
  use: R
`
	g, errors, warnings := Lint(text)
	require.Empty(t, errors)
	require.NotNil(t, g)
	assert.True(t, hasKind(warnings, WarnShadowedLength))
}

// TestLintRoundTrip tests that linting the same text twice yields matching
// grammars
func TestLintRoundTrip(t *testing.T) {
	g1, errors, _ := Lint(validGrammar)
	require.Empty(t, errors)
	g2, errors, _ := Lint(validGrammar)
	require.Empty(t, errors)

	assert.Equal(t, g1.Format, g2.Format)
	assert.Equal(t, g1.Endian, g2.Endian)
	assert.Equal(t, g1.TypeNames(), g2.TypeNames())
}
