package cli

// This file defines error handling utilities for the CLI, including:
//   - Sentinel errors for different error categories (CLI, Config, Registry, Auth, Engine, Promote)
//   - Error wrapping functions that integrate with the errx error system
//   - Structured error logging with context
//   - Debug mode management for error output

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"swr-promote/pkg/errx"
)

var (
	debugMode   bool
	debugModeMu sync.RWMutex
)

// SetDebugMode sets the global debug mode flag.
// When enabled, logStructuredError writes structured error logs.
func SetDebugMode(enabled bool) {
	debugModeMu.Lock()
	defer debugModeMu.Unlock()
	debugMode = enabled
}

// IsDebugMode returns whether debug mode is enabled.
func IsDebugMode() bool {
	debugModeMu.RLock()
	defer debugModeMu.RUnlock()
	return debugMode
}

type errorSpec struct {
	code        string
	description string
}

// newSentinelError creates a sentinel error and registers it in errorSpecs in one step.
// This eliminates redundancy between error definitions and errorSpecs mapping.
func newSentinelError(msg string, code, description string) error {
	err := errors.New(msg)
	errorSpecs[err] = errorSpec{code: code, description: description}
	return err
}

// errorSpecs maps sentinel errors to their error codes and descriptions.
// Populated automatically by newSentinelError() during variable initialization.
// Must be declared before sentinel errors to ensure proper initialization order.
var errorSpecs = make(map[error]errorSpec)

// lookupSpec provides a lookup function for errx.FromSentinel.
func lookupSpec(sentinel error) (code, description string) {
	spec := specFor(sentinel)
	return spec.code, spec.description
}

// newWithSentinel creates a new error using the appropriate errx category helper.
// The base error (sentinel) is used to determine the category, and the message provides context.
func newWithSentinel(base error, msg string) error {
	if base == nil {
		return errx.CreateByCode(errx.CodeCLI, errx.DescCLI, msg, nil)
	}
	return errx.FromSentinel(base, lookupSpec, msg, nil)
}

// wrapWithSentinel wraps a cause error using the appropriate errx category helper.
// The base error (sentinel) is used to determine the category, and the message provides context.
func wrapWithSentinel(base, cause error, msg string) error {
	if base == nil {
		return errx.CreateByCode(errx.CodeCLI, errx.DescCLI, msg, cause)
	}
	return errx.FromSentinel(base, lookupSpec, msg, cause)
}

// wrapWithSentinelAndContext wraps an error with additional structured context.
// This is useful for adding debugging information like namespace, resource names, etc.
func wrapWithSentinelAndContext(base, cause error, msg string, context map[string]any) error {
	err := wrapWithSentinel(base, cause, msg)
	if errxErr, ok := err.(*errx.Error); ok && len(context) > 0 {
		return errxErr.WithContextMap(context)
	}
	return err
}

// Sentinel errors for CLI operations.
// Errors are defined and registered in one step using newSentinelError to eliminate redundancy.
var (
	// CLI errors.
	ErrFieldRequired          = newSentinelError("field is required", errx.CodeCLI, errx.DescCLI)
	ErrControlCharsNotAllowed = newSentinelError("value must not contain control characters", errx.CodeCLI, errx.DescCLI)
	ErrUnknownEngine          = newSentinelError("unknown engine", errx.CodeCLI, errx.DescCLI)
	ErrGetHomeDirectoryFailed = newSentinelError("failed to get home directory", errx.CodeCLI, errx.DescCLI)

	// Config errors.
	ErrReadConfigFileFailed      = newSentinelError("failed to read config file", errx.CodeConfig, errx.DescConfig)
	ErrUnmarshalConfigFileFailed = newSentinelError("failed to unmarshal config file", errx.CodeConfig, errx.DescConfig)
	ErrBindConfigFailed          = newSentinelError("failed to bind configuration", errx.CodeConfig, errx.DescConfig)

	// Registry errors.
	ErrInvalidImageReference  = newSentinelError("invalid image reference", errx.CodeRegistry, errx.DescRegistry)
	ErrRegistryClientFailed   = newSentinelError("failed to create registry client", errx.CodeRegistry, errx.DescRegistry)
	ErrListTagsFailed         = newSentinelError("failed to list repository tags", errx.CodeRegistry, errx.DescRegistry)
	ErrCreateRepositoryFailed = newSentinelError("failed to create repository", errx.CodeRegistry, errx.DescRegistry)

	// Auth errors.
	ErrIssueLoginFailed    = newSentinelError("failed to issue login secret", errx.CodeAuth, errx.DescAuth)
	ErrRegistryLoginFailed = newSentinelError("failed to login to registry", errx.CodeAuth, errx.DescAuth)

	// Engine errors.
	ErrEngineInitFailed       = newSentinelError("failed to initialize container engine", errx.CodeEngine, errx.DescEngine)
	ErrPullImageFailed        = newSentinelError("failed to pull image", errx.CodeEngine, errx.DescEngine)
	ErrTagImageFailed         = newSentinelError("failed to tag image", errx.CodeEngine, errx.DescEngine)
	ErrPushImageFailed        = newSentinelError("failed to push image", errx.CodeEngine, errx.DescEngine)
	ErrRemoveCredentialFailed = newSentinelError("failed to remove credential file", errx.CodeEngine, errx.DescEngine)

	// Promote errors.
	ErrPromoteCanceled = newSentinelError("promotion canceled", errx.CodePromote, errx.DescPromote)
)

func specFor(base error) errorSpec {
	spec, ok := errorSpecs[base]
	if ok {
		return spec
	}
	return errorSpec{code: errx.CodeCLI, description: errx.DescCLI}
}

// logStructuredError logs an error with structured fields to the terminal.
// Only logs when debug mode is enabled (--debug or RUNNER_DEBUG=1).
//
// Fields extracted from errx.Error:
// - error.code: "74000"
// - error.category: "Container engine error"
// - error.context.image: "swr.ap-southeast-1.myhuaweicloud.com/myns/app:v1"
func logStructuredError(logger *zap.Logger, err error, msg string) {
	if logger == nil || err == nil || !IsDebugMode() {
		return
	}

	var errxErr *errx.Error
	if errors.As(err, &errxErr) {
		fields := []zap.Field{
			zap.String("error.code", errxErr.Code()),
			zap.String("error.category", errxErr.Description()),
			zap.String("error.message", errxErr.Message()),
			zap.Error(err),
		}

		// Add all context fields as individual zap fields for structured output
		if ctx := errxErr.Context(); ctx != nil {
			for key, value := range ctx {
				fields = append(fields, zap.Any("error.context."+key, value))
			}
		}

		// Add cause if present (use distinct field name to avoid duplicate "error" field)
		if cause := errxErr.Cause(); cause != nil {
			fields = append(fields, zap.NamedError("error.cause", cause))
		}

		logger.Error(msg, fields...)
	} else {
		// Fallback for non-errx errors
		logger.Error(msg, zap.Error(err))
	}
}

// reportFailure wraps cause under base, prints msg and logs the structured
// error. msg is the capitalized user-facing line, e.g. "Failed to push image".
func reportFailure(logger *zap.Logger, base, cause error, msg string, context map[string]any) error {
	text := msg
	if text != "" {
		text = strings.ToLower(text[:1]) + text[1:]
	}
	wrappedErr := wrapWithSentinelAndContext(base, cause, fmt.Sprintf("%s: %v", text, cause), context)
	Error(msg)
	logStructuredError(logger, wrappedErr, msg)
	return wrappedErr
}
