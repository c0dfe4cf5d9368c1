package traffic

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyUpload indicates the uploaded file carried no header row.
	ErrEmptyUpload = errors.New("traffic: empty upload")
	// ErrMissingColumn indicates a required header column is absent.
	ErrMissingColumn = errors.New("traffic: missing required column")
	// ErrInvalidRow indicates a data row could not be parsed.
	ErrInvalidRow = errors.New("traffic: invalid row")
	// ErrNoData indicates the session has no dataset loaded yet.
	ErrNoData = errors.New("traffic: no data loaded")
)

// MissingColumnsError lists every required column absent from a header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required column(s): %v", e.Columns)
}

// Unwrap ties the error to ErrMissingColumn.
func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumn
}

// ParseError pinpoints a malformed cell.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

// Unwrap ties the error to ErrInvalidRow.
func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidRow, e.Err}
}
