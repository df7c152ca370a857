/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: result.go
Description: Parse result types for the record parser. Field values are a
tagged variant (integer, bytes, text, nested record); records keep their
fields in declaration order with name lookup; the parse result is an
immutable snapshot of one parse run.
*/

package parser

import (
	"time"
)

// ValueKind discriminates the parsed field value variant
type ValueKind int

const (
	ValueInt    ValueKind = iota // unsigned integer
	ValueBytes                   // raw bytes
	ValueText                    // decoded text (raw bytes retained on the field)
	ValueRecord                  // nested record
)

// FieldValue is the tagged value of a parsed field
type FieldValue struct {
	Kind   ValueKind
	Int    uint64
	Bytes  []byte
	Text   string
	Fields []*ParsedField // nested record fields, declaration order
}

// IntValue builds an integer field value
func IntValue(v uint64) FieldValue {
	return FieldValue{Kind: ValueInt, Int: v}
}

// BytesValue builds a raw bytes field value
func BytesValue(b []byte) FieldValue {
	return FieldValue{Kind: ValueBytes, Bytes: b}
}

// TextValue builds a decoded text field value
func TextValue(s string) FieldValue {
	return FieldValue{Kind: ValueText, Text: s}
}

// RecordValue builds a nested record field value
func RecordValue(fields []*ParsedField) FieldValue {
	return FieldValue{Kind: ValueRecord, Fields: fields}
}

// ParsedField is one decoded field of a record
type ParsedField struct {
	Name     string
	Value    FieldValue
	RawBytes []byte // empty for nested records
	Offset   int64
	Size     int64
	Color    string // propagated from the field definition
}

// IsLeaf reports whether the field holds a scalar value
func (f *ParsedField) IsLeaf() bool {
	return f.Value.Kind != ValueRecord
}

// ParsedRecord is one decoded record of the stream
type ParsedRecord struct {
	Offset            int64
	Size              int64
	TypeName          string
	Fields            []*ParsedField // declaration order
	TypeDiscriminator string         // width-formatted literal, switch dispatch only
	Error             string         // non-empty when the record failed
}

// FieldByName returns the top-level field with the given name
func (r *ParsedRecord) FieldByName(name string) (*ParsedField, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// ParseResult is an immutable snapshot of one parse run
type ParseResult struct {
	Records          []*ParsedRecord
	Errors           []string
	FilePath         string
	GrammarFormat    string
	TotalBytesParsed int64
	ParseStoppedAt   int64 // offset where parsing halted
	Timestamp        time.Time
	RecordCount      int
}
