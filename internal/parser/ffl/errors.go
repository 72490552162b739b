package ffl

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord reports a line whose shape does not match the layout.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidDate reports a date column that could not be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrBlankLine is returned for empty or whitespace-only lines. Callers
	// skip these; they are not counted as failures.
	ErrBlankLine = errors.New("blank line")
)

// MalformedRecordError describes why a line was rejected.
type MalformedRecordError struct {
	Layout string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: %s layout: %s", ErrMalformedRecord, e.Layout, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// InvalidDateError names the offending date field and its raw text.
type InvalidDateError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("%s in %s: %q", ErrInvalidDate, e.Field, e.Value)
}

func (e *InvalidDateError) Is(target error) bool { return target == ErrInvalidDate }

func (e *InvalidDateError) Unwrap() error { return e.Err }

func malformed(layout, format string, args ...any) error {
	return &MalformedRecordError{Layout: layout, Reason: fmt.Sprintf(format, args...)}
}
