// Package apperr defines the error taxonomy shared by every component.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrParse           = errors.New("parse error")
	ErrAnalysisFailed  = errors.New("analysis failed")
	ErrFormat          = errors.New("format error")
	ErrAlreadyExists   = errors.New("already exists")
)

// FormatError is returned when text generation produced output that could not be
// interpreted. Raw keeps the original output so a human can recover it.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return ErrFormat.Error()
	}
	return ErrFormat.Error() + ": " + e.Reason
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
