// Package errors defines the structured error taxonomy shared by every
// pipeline stage. Errors carry a machine-readable code so callers can react
// to the failure class without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies a pipeline failure.
type Code string

const (
	// CodeSource marks unreadable or unsupported input.
	CodeSource Code = "SOURCE_ERROR"
	// CodeConfig marks an invalid option value.
	CodeConfig Code = "CONFIG_ERROR"
	// CodeState marks an operation invoked out of order.
	CodeState Code = "STATE_ERROR"
	// CodeRender marks a chart or report referencing a missing field.
	CodeRender Code = "RENDER_ERROR"
	// CodeIO marks an output write failure.
	CodeIO Code = "IO_ERROR"
)

// Error is a structured pipeline error.
type Error struct {
	Code    Code   `json:"code"`
	Op      string `json:"op"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an Error with the given code and underlying cause.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Constructors for the common failure classes.

// NewSource creates a SOURCE_ERROR.
func NewSource(op, message string, err error) *Error {
	return Wrap(CodeSource, op, message, err)
}

// NewConfig creates a CONFIG_ERROR.
func NewConfig(op, message string, err error) *Error {
	return Wrap(CodeConfig, op, message, err)
}

// NewState creates a STATE_ERROR.
func NewState(op, message string) *Error {
	return New(CodeState, op, message)
}

// NewRender creates a RENDER_ERROR.
func NewRender(op, message string, err error) *Error {
	return Wrap(CodeRender, op, message, err)
}

// NewIO creates an IO_ERROR.
func NewIO(op, message string, err error) *Error {
	return Wrap(CodeIO, op, message, err)
}

// CodeOf returns the code of err when it is (or wraps) an *Error, and ""
// otherwise.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsSource reports whether err is classified as a source failure.
func IsSource(err error) bool { return CodeOf(err) == CodeSource }

// IsConfig reports whether err is classified as a configuration failure.
func IsConfig(err error) bool { return CodeOf(err) == CodeConfig }

// IsState reports whether err is classified as an out-of-order operation.
func IsState(err error) bool { return CodeOf(err) == CodeState }

// IsRender reports whether err is classified as a render failure.
func IsRender(err error) bool { return CodeOf(err) == CodeRender }

// IsIO reports whether err is classified as an output write failure.
func IsIO(err error) bool { return CodeOf(err) == CodeIO }
