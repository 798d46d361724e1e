package utils

import (
	"errors"
	"fmt"
)

// Fatal run error kinds. Both abort a run before or during processing and
// never yield a partial result.
var (
	// ErrConfiguration marks invalid threshold/weight/limit values,
	// surfaced before any processing begins.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrResourceLimit marks an exceeded event-count or time budget.
	ErrResourceLimit = errors.New("resource limit exceeded")
	// ErrSymptom marks a symptom that cannot anchor a trace, either an
	// unknown service or one with no detected incident.
	ErrSymptom = errors.New("unresolvable symptom")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ConfigurationError wraps msg as a fatal configuration error.
func ConfigurationError(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Err: ErrConfiguration}
}

// ResourceLimitError wraps msg as a fatal resource-limit error.
func ResourceLimitError(op, msg string) error {
	return &AppError{Op: op, Msg: msg, Err: ErrResourceLimit}
}
