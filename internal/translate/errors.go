package translate

import (
	"errors"
	"fmt"
)

// CompileError represents a statement that could not be translated.
//
// Compile errors are always fatal to the current statement; nothing is sent
// to the store when one is returned.
type CompileError struct {
	// Code identifies the error category.
	Code CompileErrorCode

	// Message is a human-readable description.
	Message string

	// Clause is the offending clause or token, when known.
	Clause string

	// Statement is the statement text being compiled.
	Statement string
}

// CompileErrorCode categorizes compile errors.
type CompileErrorCode string

const (
	// ErrCodeDecode indicates the tokens do not match any recognized grammar
	// shape at the point examined.
	ErrCodeDecode CompileErrorCode = "DECODE_ERROR"

	// ErrCodeUnsupported indicates a recognized but unimplemented statement
	// kind, or several statements submitted together.
	ErrCodeUnsupported CompileErrorCode = "UNSUPPORTED_OPERATION"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Clause != "" {
		msg += fmt.Sprintf(" (near %q)", e.Clause)
	}
	if e.Statement != "" {
		msg += fmt.Sprintf(" in statement %q", e.Statement)
	}
	return msg
}

// IsDecodeError returns true if the error is a decode error.
// Uses errors.As to handle wrapped errors.
func IsDecodeError(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeDecode
	}
	return false
}

// IsUnsupportedError returns true if the error is an unsupported operation
// error. Uses errors.As to handle wrapped errors.
func IsUnsupportedError(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnsupported
	}
	return false
}

func decodeErrorf(clause string, format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ErrCodeDecode,
		Message: fmt.Sprintf(format, args...),
		Clause:  clause,
	}
}

func unsupportedErrorf(format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ErrCodeUnsupported,
		Message: fmt.Sprintf(format, args...),
	}
}
