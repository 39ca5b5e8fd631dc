// Package errors provides error handling for the finbridge middleware.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrPluginNotFound) {
//	    // handle missing plugin
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	Mark         = crdb.Mark
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the middleware error taxonomy.
// Use these with errors.Is() for type-safe error checking and wrap them with
// errors.Wrap() to add context while preserving the type.
var (
	// ErrPluginNotFound indicates a plugin manifest or package is absent on disk
	ErrPluginNotFound = New("plugin not found")

	// ErrPluginLoad indicates a plugin manifest was invalid or no factory matched it
	ErrPluginLoad = New("plugin load failed")

	// ErrPluginDependency indicates a declared plugin dependency is not initialized
	ErrPluginDependency = New("plugin dependency not met")

	// ErrPluginConfiguration indicates a plugin rejected its configuration
	ErrPluginConfiguration = New("invalid plugin configuration")

	// ErrProcessing indicates a document processing pipeline failure
	ErrProcessing = New("document processing failed")

	// ErrOCR indicates OCR content was missing or unusable
	ErrOCR = New("ocr content unavailable")

	// ErrIntegration indicates a third-party integration failure
	ErrIntegration = New("integration error")

	// ErrSync indicates a cross-system record sync failed
	ErrSync = New("sync failed")

	// ErrExternalService indicates the external service itself misbehaved
	ErrExternalService = New("external service error")

	// ErrValidation indicates record-level data validation failed
	ErrValidation = New("validation failed")

	// ErrConfiguration indicates the host configuration is invalid or missing
	ErrConfiguration = New("configuration error")
)

// IsPluginNotFound checks if an error is or wraps ErrPluginNotFound
func IsPluginNotFound(err error) bool {
	return err != nil && Is(err, ErrPluginNotFound)
}

// IsPluginDependency checks if an error is or wraps ErrPluginDependency
func IsPluginDependency(err error) bool {
	return err != nil && Is(err, ErrPluginDependency)
}

// IsIntegration checks if an error is or wraps any integration-class error
func IsIntegration(err error) bool {
	return err != nil && IsAny(err, ErrIntegration, ErrSync, ErrExternalService)
}

// NewPluginNotFound creates a plugin-not-found error with a formatted message
func NewPluginNotFound(format string, args ...interface{}) error {
	return Wrap(ErrPluginNotFound, Newf(format, args...).Error())
}

// NewPluginLoad creates a plugin-load error with a formatted message
func NewPluginLoad(format string, args ...interface{}) error {
	return Wrap(ErrPluginLoad, Newf(format, args...).Error())
}

// NewSync creates a sync error with a formatted message
func NewSync(format string, args ...interface{}) error {
	return Wrap(ErrSync, Newf(format, args...).Error())
}

// ErrorType returns the taxonomy name for err, used when surfacing failures
// in sync results and status payloads. Unknown errors report as "error".
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrPluginNotFound):
		return "plugin_not_found"
	case Is(err, ErrPluginLoad):
		return "plugin_load"
	case Is(err, ErrPluginDependency):
		return "plugin_dependency"
	case Is(err, ErrPluginConfiguration):
		return "plugin_configuration"
	case Is(err, ErrOCR):
		return "ocr"
	case Is(err, ErrProcessing):
		return "processing"
	case Is(err, ErrSync):
		return "sync"
	case Is(err, ErrExternalService):
		return "external_service"
	case Is(err, ErrIntegration):
		return "integration"
	case Is(err, ErrValidation):
		return "validation"
	case Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}
