// Package nverr provides the structured error type used across the novos
// build pipeline. Errors carry a category (load/cycle/render/index/...), a
// severity, and optional structured context so the build report and the CLI
// can classify failures without string matching.
package nverr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Category classifies an error by the pipeline stage that produced it.
type Category string

const (
	CategoryLoad   Category = "load"
	CategoryCycle  Category = "cycle"
	CategoryRender Category = "render"
	CategoryIndex  Category = "index"
	CategoryConfig Category = "config"
	CategoryOutput Category = "output"
	CategoryServer Category = "server"
)

// Severity indicates how an error affects the rest of the build.
type Severity string

const (
	// SeverityFatal aborts the build before any rendering (cycles, bad config).
	SeverityFatal Severity = "fatal"
	// SeverityError fails one node; siblings keep building.
	SeverityError Severity = "error"
	// SeverityWarning is reported but does not fail any node.
	SeverityWarning Severity = "warning"
)

// Fields carries structured context attached to an error.
type Fields map[string]any

// Error is the structured error type for the novos engine.
type Error struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Cause    error    `json:"cause,omitempty"`
	Context  Fields   `json:"context,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %s", e.Category, e.Severity, e.Message)
	if len(e.Context) > 0 {
		for _, k := range sortedKeys(e.Context) {
			fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// WithContext attaches a context field and returns the error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(Fields)
	}
	e.Context[key] = value
	return e
}

// New creates a structured error with no cause.
func New(category Category, severity Severity, message string) *Error {
	return &Error{Category: category, Severity: severity, Message: message}
}

// Wrap creates a structured error wrapping a cause.
func Wrap(cause error, category Category, severity Severity, message string) *Error {
	return &Error{Category: category, Severity: severity, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) is a novos error of the given
// category.
func Is(err error, category Category) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == category
}

// Fatal reports whether err carries fatal severity.
func Fatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Severity == SeverityFatal
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
