/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Field-level parse error vocabulary. Every way a record can fail
is one of these types; the parser converts them to the record's error string
and never panics or propagates exceptions.
*/

package parser

import "fmt"

// ErrShortRead is returned when the input ends before a field is complete
type ErrShortRead struct {
	Field string
	Need  int64
	Got   int64
}

func (e *ErrShortRead) Error() string {
	return fmt.Sprintf("short read for field %s: need %d bytes, got %d", e.Field, e.Need, e.Got)
}

// ErrBoundaryOverrun is returned when a field would cross the byte limit
type ErrBoundaryOverrun struct {
	Field string
	End   int64
	Stop  int64
}

func (e *ErrBoundaryOverrun) Error() string {
	return fmt.Sprintf("field %s would end at %#x past the parse boundary %#x", e.Field, e.End, e.Stop)
}

// ErrZeroLengthRecord is returned when a record parses to zero bytes
type ErrZeroLengthRecord struct {
	TypeName string
}

func (e *ErrZeroLengthRecord) Error() string {
	return fmt.Sprintf("record of type %s has zero length", e.TypeName)
}

// ErrNoDispatch is returned when a discriminator matches no case and the
// switch has no default
type ErrNoDispatch struct {
	Value string
}

func (e *ErrNoDispatch) Error() string {
	return fmt.Sprintf("no dispatch case for discriminator %s", e.Value)
}

// ErrValidationFailed is returned when a field's validation rule rejects
// its value
type ErrValidationFailed struct {
	Field    string
	Expected string
	Got      string
}

func (e *ErrValidationFailed) Error() string {
	return fmt.Sprintf("validation failed for field %s: expected %s, got %s", e.Field, e.Expected, e.Got)
}

// ErrFieldFailed wraps a nested or derived failure with the field name
type ErrFieldFailed struct {
	Field  string
	Reason error
}

func (e *ErrFieldFailed) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Reason)
}

func (e *ErrFieldFailed) Unwrap() error {
	return e.Reason
}
