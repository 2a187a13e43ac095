// Package lerrors provides a lightweight structured error type (LithError)
// for kind-based classification across the build pipeline and CLI.
package lerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a LithError for propagation decisions.
type Kind string

const (
	// User-facing configuration and input errors
	KindConfig Kind = "config"

	// Build and processing errors
	KindIO       Kind = "io"
	KindParse    Kind = "parse"
	KindTemplate Kind = "template"
	KindLink     Kind = "link"

	// Runtime and infrastructure errors
	KindWatcher  Kind = "watcher"
	KindInternal Kind = "internal"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops execution
	SeverityError   Severity = "error"   // Error, but not fatal
	SeverityWarning Severity = "warning" // Continues with degraded functionality
)

// LithError is a structured error with kind, severity, and an optional cause.
type LithError struct {
	Kind     Kind
	Severity Severity
	Message  string
	Route    string // affected route, when scoped to one document
	Cause    error
}

// Error implements the error interface.
func (e *LithError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Severity, e.Message)
}

// Unwrap implements error unwrapping.
func (e *LithError) Unwrap() error {
	return e.Cause
}

// WithRoute scopes the error to a content route.
func (e *LithError) WithRoute(route string) *LithError {
	e.Route = route
	return e
}

// New creates a new LithError.
func New(kind Kind, severity Severity, message string) *LithError {
	return &LithError{Kind: kind, Severity: severity, Message: message}
}

// Wrap creates a new LithError that wraps an existing error.
func Wrap(err error, kind Kind, severity Severity, message string) *LithError {
	return &LithError{Kind: kind, Severity: severity, Message: message, Cause: err}
}

// Newf creates a new error-severity LithError with a formatted message.
func Newf(kind Kind, format string, args ...any) *LithError {
	return &LithError{Kind: kind, Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

// IsKind checks whether an error (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	var le *LithError
	if errors.As(err, &le) {
		return le.Kind == kind
	}
	return false
}

// GetKind extracts the kind from an error, or KindInternal if it is not a LithError.
func GetKind(err error) Kind {
	var le *LithError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

// IsFatal reports whether the error carries fatal severity.
func IsFatal(err error) bool {
	var le *LithError
	if errors.As(err, &le) {
		return le.Severity == SeverityFatal
	}
	return false
}
