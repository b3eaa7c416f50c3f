package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error is the platform error carrying a wire code and optional context.
type Error struct {
	Code    Code                   // Wire error code
	Message string                 // Custom message (overrides the code default if set)
	Details map[string]interface{} // Additional context data
	Err     error                  // Underlying error (for wrapping)
	Stack   string                 // Stack trace, logged but never sent to clients
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

// Unwrap returns the underlying error (for errors.Is and errors.As).
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code.
func New(code Code) *Error {
	return &Error{
		Code:    code,
		Message: code.Message(),
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Wrap wraps an existing error with a code.
func Wrap(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		e.Code = code
		return e
	}
	return &Error{
		Code:    code,
		Message: err.Error(),
		Err:     err,
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Details: make(map[string]interface{}),
		Stack:   getStack(2),
	}
}

// WithMessage sets a custom message on the error.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithMessagef sets a formatted custom message on the error.
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetCode extracts the code from any error.
// Non-platform errors map to SERVER_ERROR.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeServerError
}

// GetError extracts a platform Error from any error, wrapping if needed.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Wrap(err, CodeServerError)
}

// Is reports whether the error carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// getStack captures the stack trace for server-side logging.
func getStack(skip int) string {
	const maxDepth = 10
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}
		builder.WriteString(fmt.Sprintf("\n\t%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return builder.String()
}

// Common constructors.

// BadRequest creates a validation error with a custom message.
func BadRequest(msg string) *Error {
	return New(CodeValidation).WithMessage(msg)
}

// NotFoundError creates a not-found error for the named resource.
func NotFoundError(resource string) *Error {
	return Newf(CodeNotFound, "%s not found", resource)
}

// Conflict creates a conflict error with a stable message string.
func Conflict(msg string) *Error {
	return New(CodeConflict).WithMessage(msg)
}

// ForbiddenError creates a forbidden error.
func ForbiddenError(msg string) *Error {
	if msg == "" {
		return New(CodeForbidden)
	}
	return New(CodeForbidden).WithMessage(msg)
}

// InternalError wraps an unexpected error as SERVER_ERROR.
func InternalError(err error) *Error {
	if err == nil {
		return New(CodeServerError)
	}
	return Wrap(err, CodeServerError)
}

// ValidationError creates a validation error with per-field details.
func ValidationError(field, reason string) *Error {
	return New(CodeValidation).
		WithDetail("field", field).
		WithDetail("reason", reason)
}
