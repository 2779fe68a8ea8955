package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	// ErrUnknownEngine indicates an engine name outside the supported set
	ErrUnknownEngine = errors.New("unknown engine")

	// ErrNotRegistered indicates a supported engine that was not configured
	ErrNotRegistered = errors.New("engine not registered")

	// ErrSynthesisFailed indicates the backend did not produce audio
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrEmptyText indicates there was nothing to synthesize
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong indicates the text exceeds the engine's limit
	ErrTextTooLong = errors.New("text too long")

	// ErrNotAvailable indicates the engine's binary, model or key is missing
	ErrNotAvailable = errors.New("engine not available")
)

// Error wraps a failure with the engine and operation that produced it.
type Error struct {
	Engine Kind
	Op     string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Engine: kind, Op: op, Err: err}
}
