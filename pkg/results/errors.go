package results

import (
	"errors"
	"fmt"
)

// Error kinds reported by the results package. Callers branch on these with
// errors.Is; the typed errors below unwrap to one of them.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format, use CSV or JSON")
	ErrMalformedContent  = errors.New("malformed content")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrBuildNotFound     = errors.New("build not found")
	ErrRecordNotFound    = errors.New("test case not found")
)

// ParseError describes a structural failure in an import file.
type ParseError struct {
	// Line is the 1-based line of a CSV file, or 0 when not applicable.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", ErrMalformedContent, e.Line, e.Err)
	}

	return fmt.Sprintf("%s: %v", ErrMalformedContent, e.Err)
}

// Is makes every ParseError match ErrMalformedContent.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedContent
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StatusError reports a row whose status is not one of the known outcomes.
type StatusError struct {
	TestName string
	Value    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %q for test %q", ErrUnknownStatus, e.Value, e.TestName)
}

func (e *StatusError) Unwrap() error {
	return ErrUnknownStatus
}

// ImportError is returned when an import aborts. Persisted holds the records
// that were saved before the failure; they are not rolled back.
type ImportError struct {
	BuildID   uint
	Persisted []Record
	Err       error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("failed to import into build %d: %v", e.BuildID, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Kind returns a stable tag for the error kind carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrMalformedContent):
		return "malformed_content"
	case errors.Is(err, ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, ErrBuildNotFound):
		return "build_not_found"
	case errors.Is(err, ErrRecordNotFound):
		return "record_not_found"
	default:
		return "internal"
	}
}
