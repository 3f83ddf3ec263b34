package errx

import "errors"

// Error is the base error type for swr-promote errors.
type Error struct {
	code        string
	description string
	message     string
	context     map[string]any
	cause       error
	base        error
}

// New creates a new Error with the provided code, description, and message.
func New(code, description, message string) *Error {
	return &Error{
		code:        code,
		description: description,
		message:     message,
	}
}

// Wrap creates a new Error and attaches a cause error.
func Wrap(code, description, message string, cause error) *Error {
	return &Error{
		code:        code,
		description: description,
		message:     message,
		cause:       cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.message != "":
		return e.message
	case e.description != "":
		return e.description
	case e.code != "":
		return e.code
	}
	return "error"
}

// Unwrap returns the direct cause, not the base sentinel.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches the base sentinel first and then the cause chain, so
// errors.Is(err, sentinel) holds even though Unwrap returns the cause.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if e.base != nil && errors.Is(e.base, target) {
		return true
	}
	return errors.Is(e.cause, target)
}

// Code returns the stable error code.
func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	return e.code
}

// Description returns the category description.
func (e *Error) Description() string {
	if e == nil {
		return ""
	}
	return e.description
}

// Message returns the user-facing message.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Context returns a copy of the structured context.
func (e *Error) Context() map[string]any {
	if e == nil || len(e.context) == 0 {
		return nil
	}
	return cloneContext(e.context)
}

// Cause returns the wrapped error, if any.
func (e *Error) Cause() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Base returns the sentinel base error, if any.
func (e *Error) Base() error {
	if e == nil {
		return nil
	}
	return e.base
}

// WithContext returns a copy of e with key set to value.
func (e *Error) WithContext(key string, value any) *Error {
	if e == nil {
		return nil
	}
	clone := e.clone()
	if clone.context == nil {
		clone.context = make(map[string]any)
	}
	clone.context[key] = value
	return clone
}

// WithContextMap returns a copy of e with ctx merged into its context.
// The receiver is never mutated, even when ctx is empty.
func (e *Error) WithContextMap(ctx map[string]any) *Error {
	if e == nil {
		return nil
	}
	clone := e.clone()
	if len(ctx) > 0 {
		if clone.context == nil {
			clone.context = make(map[string]any, len(ctx))
		}
		for key, value := range ctx {
			clone.context[key] = value
		}
	}
	return clone
}

// WithBase returns a copy of e whose base sentinel is used for errors.Is matching.
func (e *Error) WithBase(base error) *Error {
	if e == nil {
		return nil
	}
	clone := e.clone()
	clone.base = base
	return clone
}

func (e *Error) clone() *Error {
	c := &Error{
		code:        e.code,
		description: e.description,
		message:     e.message,
		cause:       e.cause,
		base:        e.base,
	}
	if len(e.context) > 0 {
		c.context = cloneContext(e.context)
	}
	return c
}

func cloneContext(ctx map[string]any) map[string]any {
	clone := make(map[string]any, len(ctx))
	for key, value := range ctx {
		clone[key] = value
	}
	return clone
}
