package engine

import (
	"errors"
	"fmt"
)

// Error represents a classified failure raised by a module.
//
// Errors fall into two kinds:
//   - CONFIGURATION: missing matrix association, disagreeing type name and
//     code, missing spin-up parameters, malformed condition targets. Fatal
//     for the current unit.
//   - DATA_QUALITY: malformed event-source records. Recorded and reported
//     once at shutdown; the run continues.
//
// Convergence failure is not an error; sequencers log it and carry on.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Module names the reporting module, when known.
	Module string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes module errors.
type ErrorKind string

const (
	// KindConfiguration marks errors caused by the unit's configuration.
	KindConfiguration ErrorKind = "CONFIGURATION"

	// KindDataQuality marks problems in input data that do not stop the run.
	KindDataQuality ErrorKind = "DATA_QUALITY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Module != "" {
		msg = fmt.Sprintf("%s (module=%s)", msg, e.Module)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigError creates a CONFIGURATION error.
func ConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// DataQualityError creates a DATA_QUALITY error.
func DataQualityError(format string, args ...any) *Error {
	return &Error{Kind: KindDataQuality, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a key/value detail and returns e.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// IsConfigError returns true if err wraps a CONFIGURATION error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindConfiguration
	}
	return false
}

// IsDataQualityError returns true if err wraps a DATA_QUALITY error.
func IsDataQualityError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindDataQuality
	}
	return false
}
