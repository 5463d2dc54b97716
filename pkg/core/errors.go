// Package core holds the error taxonomy shared by the UI object model and
// the snippet transport.
package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory groups errors by what went wrong.
type ErrorCategory string

const (
	ErrCategorySearch    ErrorCategory = "search"    // selector matched nothing
	ErrCategoryOperation ErrorCategory = "operation" // caller contract or remote failure
	ErrCategoryTransport ErrorCategory = "transport" // connection level failure
)

// Machine-readable operation error codes.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeProtocol        = "protocol_error"
	CodeTransport       = "transport_error"
	CodeBadResponse     = "bad_response"
)

var (
	// ErrNotFound is the not-found signal reported by the remote side.
	// Every SearchError unwraps to it unless a more specific cause was observed.
	ErrNotFound = errors.New("ui object not found")

	// ErrReachedEnd is reported when a scrollable container cannot scroll further.
	ErrReachedEnd = errors.New("scrollable reached its end")
)

// SearchError reports that a selector produced zero matches when at least one
// was required, or that a match was still present when absence was awaited.
type SearchError struct {
	Selector     string        // rendered selector, e.g. Selector{'text': 'OK'}
	Device       string        // device identity, diagnostics only
	Timeout      time.Duration // wait duration, zero for immediate lookups
	Message      string        // optional caller message
	StillPresent bool          // true when awaiting absence timed out
	Cause        error
}

// Error implements the error interface
func (e *SearchError) Error() string {
	verb := "Not found"
	if e.StillPresent {
		verb = "Still found"
	}
	msg := fmt.Sprintf("%s %s", verb, e.Selector)
	if e.Timeout > 0 {
		msg = fmt.Sprintf("%s over %d ms", msg, e.Timeout.Milliseconds())
	}
	if e.Message != "" {
		msg = e.Message + ": " + msg
	}
	if e.Device != "" {
		msg = fmt.Sprintf("<%s> %s", e.Device, msg)
	}
	if e.Cause != nil && !errors.Is(e.Cause, ErrNotFound) {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *SearchError) Unwrap() error {
	if e.Cause == nil {
		return ErrNotFound
	}
	return e.Cause
}

// Is reports every SearchError as a not-found condition.
func (e *SearchError) Is(target error) bool {
	return target == ErrNotFound
}

// Category returns ErrCategorySearch.
func (e *SearchError) Category() ErrorCategory {
	return ErrCategorySearch
}

// OperationError reports a non-search failure: malformed parameters, a
// remote protocol error or a transport fault.
type OperationError struct {
	Code      string
	Operation string // remote operation name, empty for local validation
	Selector  string
	Device    string
	Message   string
	Cause     error
}

// Error implements the error interface
func (e *OperationError) Error() string {
	msg := e.Message
	if e.Operation != "" {
		msg = fmt.Sprintf("%s: %s", e.Operation, msg)
	}
	if e.Selector != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Selector)
	}
	if e.Device != "" {
		msg = fmt.Sprintf("<%s> %s", e.Device, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// Category returns ErrCategoryTransport for transport faults and
// ErrCategoryOperation otherwise.
func (e *OperationError) Category() ErrorCategory {
	if e.Code == CodeTransport {
		return ErrCategoryTransport
	}
	return ErrCategoryOperation
}

// WithCause returns a copy of the error with the given cause
func (e *OperationError) WithCause(cause error) *OperationError {
	c := *e
	c.Cause = cause
	return &c
}

// NewInvalidArgument creates an OperationError for a caller contract violation.
func NewInvalidArgument(format string, args ...interface{}) *OperationError {
	return &OperationError{
		Code:    CodeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsSearchError reports whether err is, or wraps, a SearchError.
func IsSearchError(err error) bool {
	var se *SearchError
	return errors.As(err, &se)
}

// IsOperationError reports whether err is, or wraps, an OperationError.
func IsOperationError(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe)
}

// CategoryOf returns the category of the first SearchError or
// OperationError in err's chain, or "" when there is none.
func CategoryOf(err error) ErrorCategory {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Category()
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Category()
	}
	return ""
}
