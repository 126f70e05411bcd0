// Package errors provides the error taxonomy for book assembly and exercise injection.
//
// Every typed error unwraps to one of the category sentinels so callers can
// branch with errors.Is without knowing the concrete type.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrStructural indicates the merged document cannot be produced at all
	ErrStructural = errors.New("structural error")
	// ErrContext indicates an exercise could not be placed in the book
	ErrContext = errors.New("context resolution error")
	// ErrConversion indicates an equation could not be converted to MathML
	ErrConversion = errors.New("conversion error")
	// ErrTransport indicates an external service failed
	ErrTransport = errors.New("transport error")
)

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XHTML", "JSON", "manifest")
	Path    string // Document id or file path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrStructural, e.Err}
	}
	return []error{ErrStructural}
}

// NonsingularError is returned when an exercise payload does not hold exactly one item.
type NonsingularError struct {
	Count int
}

func (e *NonsingularError) Error() string {
	return `exercise "items" array is nonsingular`
}

func (e *NonsingularError) Unwrap() error {
	return ErrStructural
}

// AmbiguousResourceError is returned when two distinct resources would be
// written under the same output filename.
type AmbiguousResourceError struct {
	Filename string
	First    string // id of the resource that claimed the filename first
	Second   string
}

func (e *AmbiguousResourceError) Error() string {
	return fmt.Sprintf("ambiguous resource filename %s: claimed by %s and %s", e.Filename, e.First, e.Second)
}

func (e *AmbiguousResourceError) Unwrap() error {
	return ErrStructural
}

// NoCandidateError is returned when no page in the book can host an exercise feature.
type NoCandidateError struct {
	Feature string
	Href    string // href of the link that triggered the injection
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no candidate uuid for exercise feature %s (exercise href: %s)", e.Feature, e.Href)
}

func (e *NoCandidateError) Unwrap() error {
	return ErrContext
}

// FeatureNotInModuleError is returned when a tagged module is part of the book
// but does not contain the feature anchor.
type FeatureNotInModuleError struct {
	Feature string
	Module  string
	Href    string
}

func (e *FeatureNotInModuleError) Error() string {
	return fmt.Sprintf("feature %s not in %s (exercise href: %s)", e.Feature, e.Module, e.Href)
}

func (e *FeatureNotInModuleError) Unwrap() error {
	return ErrContext
}

// ConversionError represents a failed TeX to MathML conversion.
type ConversionError struct {
	Source     string // TeX source text
	Diagnostic string // markup or validation message returned by the converter
	Err        error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("converting math %q: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("converting math %q: %s", e.Source, e.Diagnostic)
}

func (e *ConversionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConversion, e.Err}
	}
	return []error{ErrConversion}
}

// TransportError represents a failed call to an external service.
type TransportError struct {
	Service    string // e.g. "exercises", "mathml"
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request to %s failed: status %d", e.Service, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s request to %s failed: %v", e.Service, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransport, e.Err}
	}
	return []error{ErrTransport}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
