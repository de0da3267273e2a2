package protocol

import "fmt"

// Wire status codes
const (
	CodeBadRequest   = "400" // malformed request or bad option
	CodeForbidden    = "403" // permission denied
	CodeNotFound     = "404" // object not found (game, user, file)
	CodeMailMismatch = "407" // mail address does not match player
	CodeConflict     = "409" // id already taken; slot occupied
	CodeWrongState   = "412" // game not in required state; slot not in use
	CodeDirInUse     = "601" // directory already in use by another game
	CodeInternal     = "500" // internal inconsistency
)

// Error is a wire-visible failure carrying a three-digit status code
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + " " + e.Message
}

// NewError creates an error with the given code
func NewError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Convenience constructors for the common codes

func ErrBadRequest(format string, args ...interface{}) *Error {
	return NewError(CodeBadRequest, format, args...)
}

func ErrForbidden(format string, args ...interface{}) *Error {
	return NewError(CodeForbidden, format, args...)
}

func ErrNotFound(format string, args ...interface{}) *Error {
	return NewError(CodeNotFound, format, args...)
}

func ErrMailMismatch(format string, args ...interface{}) *Error {
	return NewError(CodeMailMismatch, format, args...)
}

func ErrConflict(format string, args ...interface{}) *Error {
	return NewError(CodeConflict, format, args...)
}

func ErrWrongState(format string, args ...interface{}) *Error {
	return NewError(CodeWrongState, format, args...)
}

func ErrDirInUse(format string, args ...interface{}) *Error {
	return NewError(CodeDirInUse, format, args...)
}

// AsError converts an arbitrary error into a wire error, defaulting to
// an internal code for errors without one
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
