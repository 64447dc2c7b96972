package types

import (
	"errors"
	"fmt"
)

// Request-level failures. Every error surfaced to a caller wraps exactly one
// of these sentinels so the kind stays distinguishable through errors.Is.
var (
	// ErrNotFound indicates an unresolvable document id, or that no document
	// exists yet when none was specified.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates an empty question, an unsupported file type or
	// content that was empty after parsing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistentScope indicates a multi-document request spanning more
	// than one namespace.
	ErrInconsistentScope = errors.New("inconsistent scope")

	// ErrUpstreamFailure indicates an embedding, vector store or model call
	// failed. Not locally recoverable; the query rewrite step degrades
	// instead of failing.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrUnprocessableContent indicates a document produced zero chunks, or
	// that no indexed content exists for an extraction.
	ErrUnprocessableContent = errors.New("unprocessable content")
)

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidInput wraps ErrInvalidInput with a formatted message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InconsistentScope wraps ErrInconsistentScope with a formatted message.
func InconsistentScope(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentScope, fmt.Sprintf(format, args...))
}

// UpstreamFailure wraps ErrUpstreamFailure, keeping the upstream error text.
func UpstreamFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamFailure, op, err)
}

// UnprocessableContent wraps ErrUnprocessableContent with a formatted message.
func UnprocessableContent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnprocessableContent, fmt.Sprintf(format, args...))
}
