/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lint.go
Description: Static validation pass for grammar text. Runs the structural and
referential checks in a fixed order, short-circuiting on the first failing
stage, and surfaces non-fatal quality warnings separately. A grammar is valid
iff the error list is empty; the AST is only returned for valid grammars.
*/

package grammar

import (
	"fmt"
	"strings"

	"github.com/kleascm/bytemap/pkg/expr"
)

// Lint error kinds
const (
	LintInvalidFormat    = "InvalidFormat"
	LintInvalidEndian    = "InvalidEndian"
	LintEmptyType        = "EmptyType"
	LintInvalidField     = "InvalidField"
	LintDuplicateField   = "DuplicateField"
	LintUnknownType      = "UnknownType"
	LintRecursiveType    = "RecursiveType"
	LintInvalidDispatch  = "InvalidDispatch"
	LintInvalidLength    = "InvalidLength"
	LintUnresolvedLength = "UnresolvedLengthRef"
	LintInvalidExpr      = "InvalidExpr"
	LintMissingEndian    = "MissingEndian"
	LintInvalidColor     = "InvalidColor"
	LintInvalidRegistry  = "InvalidRegistry"
)

// Lint warning kinds
const (
	WarnUnusedType        = "UnusedType"
	WarnEmptyCases        = "EmptyDispatchCases"
	WarnUnmatchedRegistry = "UnmatchedRegistryKey"
	WarnShadowedLength    = "ShadowedLengthRef"
)

// Issue is one lint finding, fatal or advisory depending on the list it
// appears in
type Issue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// String renders the issue as "Kind: message"
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// IssueStrings flattens issues for tool outputs
func IssueStrings(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}

// Lint parses and validates grammar text. It returns the validated AST (nil
// unless the error list is empty), the ordered fatal errors, and the ordered
// warnings. Checks run in a fixed order and stop at the first failing stage.
func Lint(text string) (*Grammar, []Issue, []Issue) {
	g, err := Parse(text)
	if err != nil {
		return nil, []Issue{{Kind: LintInvalidFormat, Message: err.Error()}}, nil
	}

	l := &linter{grammar: g, evaluator: expr.NewEvaluator()}

	stages := []func(){
		l.checkFormat,
		l.checkDefaultEndian,
		l.checkTypeShapes,
		l.checkTypeReferences,
		l.checkLengths,
		l.checkEndianness,
		l.checkColors,
		l.checkRegistry,
	}

	for _, stage := range stages {
		stage()
		if len(l.errors) > 0 {
			return nil, l.errors, l.warnings
		}
	}

	l.collectWarnings()
	return g, nil, l.warnings
}

// linter carries the state of one validation pass
type linter struct {
	grammar   *Grammar
	evaluator *expr.Evaluator
	errors    []Issue
	warnings  []Issue
}

func (l *linter) errorf(kind, format string, args ...interface{}) {
	l.errors = append(l.errors, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (l *linter) warnf(kind, format string, args ...interface{}) {
	l.warnings = append(l.warnings, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// checkFormat validates the top-level format and framing declarations
func (l *linter) checkFormat() {
	if l.grammar.Format != FormatRecordStream {
		l.errorf(LintInvalidFormat, "unsupported format %q (expected %q)",
			l.grammar.Format, FormatRecordStream)
		return
	}
	if l.grammar.Framing.Repeat != "until_eof" {
		l.errorf(LintInvalidFormat, "unsupported framing repeat %q (expected until_eof)",
			l.grammar.Framing.Repeat)
	}
	if l.grammar.Dispatch == nil {
		l.errorf(LintInvalidFormat, "record section must specify 'use' or 'switch'")
	}
}

// checkDefaultEndian validates the grammar-level endian declaration
func (l *linter) checkDefaultEndian() {
	switch l.grammar.Endian {
	case EndianLittle, EndianBig, EndianUnspecified:
	default:
		l.errorf(LintInvalidEndian, "endian must be little or big, got %q", l.grammar.Endian)
	}
}

// checkTypeShapes validates that types have fields and fields have names
func (l *linter) checkTypeShapes() {
	for _, typeName := range l.grammar.TypeNames() {
		typeDef := l.grammar.Types[typeName]
		if len(typeDef.Fields) == 0 {
			l.errorf(LintEmptyType, "type %s has no fields", typeName)
			continue
		}

		seen := make(map[string]bool)
		for i, field := range typeDef.Fields {
			if field.Name == "" {
				l.errorf(LintInvalidField, "type %s field %d has no name", typeName, i)
				continue
			}
			if field.Type == "" {
				l.errorf(LintInvalidField, "field %s.%s has no type", typeName, field.Name)
			}
			if seen[field.Name] {
				l.errorf(LintDuplicateField, "field %s.%s declared more than once", typeName, field.Name)
			}
			seen[field.Name] = true
		}
	}
}

// checkTypeReferences validates field types, nesting cycles, and dispatch
// type references
func (l *linter) checkTypeReferences() {
	for _, typeName := range l.grammar.TypeNames() {
		typeDef := l.grammar.Types[typeName]
		for _, field := range typeDef.Fields {
			if IsPrimitive(field.Type) {
				continue
			}
			if _, ok := l.grammar.Types[field.Type]; !ok {
				l.errorf(LintUnknownType, "field %s.%s references unknown type %q",
					typeName, field.Name, field.Type)
			}
		}
	}
	if len(l.errors) > 0 {
		return
	}

	for _, typeName := range l.grammar.TypeNames() {
		if l.hasNestingCycle(typeName, map[string]bool{}) {
			l.errorf(LintRecursiveType, "type %s nests itself", typeName)
		}
	}

	dispatch := l.grammar.Dispatch
	switch dispatch.Kind {
	case DispatchUse:
		if _, ok := l.grammar.Types[dispatch.Use]; !ok {
			l.errorf(LintUnknownType, "record use references unknown type %q", dispatch.Use)
		}

	case DispatchSwitch:
		parts := strings.Split(dispatch.Expr, ".")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			l.errorf(LintInvalidDispatch, "switch expr %q must be TypeName.field_name", dispatch.Expr)
			return
		}
		container, ok := l.grammar.Types[parts[0]]
		if !ok {
			l.errorf(LintUnknownType, "switch expr references unknown type %q", parts[0])
			return
		}
		if _, ok := container.FieldByName(parts[1]); !ok {
			l.errorf(LintInvalidDispatch, "switch expr field %q not declared in type %s",
				parts[1], parts[0])
		}
		for literal, target := range dispatch.Cases {
			if _, ok := l.grammar.Types[target]; !ok {
				l.errorf(LintUnknownType, "switch case %s references unknown type %q", literal, target)
			}
		}
		if dispatch.Default != "" {
			if _, ok := l.grammar.Types[dispatch.Default]; !ok {
				l.errorf(LintUnknownType, "switch default references unknown type %q", dispatch.Default)
			}
		}

	default:
		l.errorf(LintInvalidDispatch, "unknown dispatch kind %q", dispatch.Kind)
	}
}

// hasNestingCycle walks nested type references looking for a loop
func (l *linter) hasNestingCycle(typeName string, visiting map[string]bool) bool {
	if visiting[typeName] {
		return true
	}
	visiting[typeName] = true
	defer delete(visiting, typeName)

	typeDef := l.grammar.Types[typeName]
	for _, field := range typeDef.Fields {
		if IsPrimitive(field.Type) {
			continue
		}
		if l.hasNestingCycle(field.Type, visiting) {
			return true
		}
	}
	return false
}

// checkLengths validates bytes lengths and length references. A length
// reference must resolve to a field declared earlier in the same type or
// contributed by an earlier nested type; shadowed names warn.
func (l *linter) checkLengths() {
	for _, typeName := range l.grammar.TypeNames() {
		typeDef := l.grammar.Types[typeName]

		visible := make(map[string]bool)
		for _, field := range typeDef.Fields {
			if field.Type == TypeBytes {
				switch field.LengthKind {
				case LengthNone:
					l.errorf(LintInvalidLength, "bytes field %s.%s must specify a length",
						typeName, field.Name)
				case LengthStatic:
					if field.LengthStatic < 0 {
						l.errorf(LintInvalidLength, "field %s.%s has negative length %d",
							typeName, field.Name, field.LengthStatic)
					}
				case LengthField:
					if !visible[field.LengthField] {
						l.errorf(LintUnresolvedLength,
							"field %s.%s length references %q which is not declared before it",
							typeName, field.Name, field.LengthField)
					}
				case LengthExpr:
					if err := l.evaluator.Parse(field.LengthExpr); err != nil {
						l.errorf(LintInvalidExpr, "field %s.%s length expression: %v",
							typeName, field.Name, err)
					}
				}
			}

			l.bindName(typeName, visible, field.Name)
			if !IsPrimitive(field.Type) {
				l.bindNested(typeName, visible, field.Type)
			}
		}
	}
}

// bindName adds a field name to the visible scope, warning on shadowing
func (l *linter) bindName(typeName string, visible map[string]bool, name string) {
	if visible[name] {
		l.warnf(WarnShadowedLength, "type %s: name %q is shadowed; first declaration wins",
			typeName, name)
		return
	}
	visible[name] = true
}

// bindNested flattens a nested type's field names into the enclosing scope
func (l *linter) bindNested(typeName string, visible map[string]bool, nestedType string) {
	nested, ok := l.grammar.Types[nestedType]
	if !ok {
		return
	}
	for _, field := range nested.Fields {
		l.bindName(typeName, visible, field.Name)
		if !IsPrimitive(field.Type) {
			l.bindNested(typeName, visible, field.Type)
		}
	}
}

// checkEndianness validates that every u16/u32 has a determinable byte order
func (l *linter) checkEndianness() {
	for _, typeName := range l.grammar.TypeNames() {
		typeDef := l.grammar.Types[typeName]
		for i := range typeDef.Fields {
			field := &typeDef.Fields[i]

			switch field.Endian {
			case EndianLittle, EndianBig, EndianUnspecified:
			default:
				l.errorf(LintInvalidEndian, "field %s.%s endian must be little or big, got %q",
					typeName, field.Name, field.Endian)
				continue
			}

			if field.Type == TypeU16 || field.Type == TypeU32 {
				if _, ok := l.grammar.EffectiveEndian(field); !ok {
					l.errorf(LintMissingEndian,
						"field %s.%s (%s) has no endian and the grammar declares no default",
						typeName, field.Name, field.Type)
				}
			}
		}
	}
}

// checkColors normalizes field colors in place
func (l *linter) checkColors() {
	for _, typeName := range l.grammar.TypeNames() {
		typeDef := l.grammar.Types[typeName]
		for i := range typeDef.Fields {
			field := &typeDef.Fields[i]
			if field.Color == "" {
				continue
			}
			normalized, err := NormalizeColor(field.Color)
			if err != nil {
				l.errorf(LintInvalidColor, "field %s.%s: %v", typeName, field.Name, err)
				continue
			}
			field.Color = normalized
		}
	}
}

// checkRegistry validates discriminator literals and decoder kinds.
// Keys were normalized during parse; here only decoder semantics remain.
func (l *linter) checkRegistry() {
	for _, key := range l.grammar.RegistryKeys() {
		entry := l.grammar.Registry[key]
		switch entry.Decode.As {
		case DecodeString, DecodeU16, DecodeU32, DecodeHex, DecodePackedDate:
		default:
			l.errorf(LintInvalidRegistry, "registry %s: unknown decoder kind %q",
				key, entry.Decode.As)
		}

		switch entry.Decode.Endian {
		case EndianLittle, EndianBig, EndianUnspecified:
		default:
			l.errorf(LintInvalidEndian, "registry %s: endian must be little or big, got %q",
				key, entry.Decode.Endian)
		}
	}
}

// collectWarnings computes the advisory findings for a valid grammar
func (l *linter) collectWarnings() {
	dispatch := l.grammar.Dispatch

	// Reachability from the dispatch
	reachable := make(map[string]bool)
	var mark func(typeName string)
	mark = func(typeName string) {
		if reachable[typeName] {
			return
		}
		typeDef, ok := l.grammar.Types[typeName]
		if !ok {
			return
		}
		reachable[typeName] = true
		for _, field := range typeDef.Fields {
			if !IsPrimitive(field.Type) {
				mark(field.Type)
			}
		}
	}

	switch dispatch.Kind {
	case DispatchUse:
		mark(dispatch.Use)
	case DispatchSwitch:
		parts := strings.Split(dispatch.Expr, ".")
		if len(parts) == 2 {
			mark(parts[0])
		}
		for _, target := range dispatch.Cases {
			mark(target)
		}
		if dispatch.Default != "" {
			mark(dispatch.Default)
		}
		if len(dispatch.Cases) == 0 {
			l.warnf(WarnEmptyCases, "switch has no cases; every record uses the default")
		}
	}

	for _, typeName := range l.grammar.TypeNames() {
		if !reachable[typeName] {
			l.warnf(WarnUnusedType, "type %s is not reachable from the record dispatch", typeName)
		}
	}

	if dispatch.Kind == DispatchSwitch {
		for _, key := range l.grammar.RegistryKeys() {
			if _, ok := dispatch.Cases[key]; !ok {
				l.warnf(WarnUnmatchedRegistry, "registry key %s has no matching dispatch case", key)
			}
		}
	}
}
