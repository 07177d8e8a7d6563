package errcode

import (
	"errors"
	"fmt"
)

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error {
	return e.err
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
		err:  err,
	}
}

// Is reports whether err carries the same code as target
func Is(err error, target *Error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}

// From extracts an *Error from err, falling back to ErrInternalServer
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServer.Wrap(err)
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, "invalid parameter")
	ErrInternalServer = New(1002, "internal server error")
	ErrUnauthorized   = New(1003, "unauthorized")
	ErrForbidden      = New(1004, "forbidden")
	ErrNotFound       = New(1005, "not found")

	// Auth errors (2xxx)
	ErrTokenInvalid = New(2001, "token invalid")
	ErrTokenMissing = New(2003, "token missing")
	ErrNotAdmin     = New(2009, "not an admin")
	ErrCodeInvalid  = New(2010, "login code invalid or expired")

	// Store errors (6xxx)
	ErrStoreFailure = New(6001, "store failure")

	// Transport errors (7xxx)
	ErrTransportFailure = New(7001, "transport failure")
	ErrTopicInvalid     = New(7002, "topic invalid")

	// Validation errors (8xxx)
	ErrEmptyRecipients = New(8001, "no recipients for target")
	ErrBlankMessage    = New(8002, "message is blank")
	ErrUnknownTarget   = New(8003, "unknown broadcast target")
	ErrMissingName     = New(8004, "name is missing")
	ErrInvalidPriority = New(8005, "invalid priority")

	// Not-found errors (9xxx)
	ErrConvNotFound     = New(9001, "conversation not found")
	ErrTemplateNotFound = New(9002, "template not found")
	ErrNoMatch          = New(9003, "no conversation matches")
	ErrNothingPending   = New(9004, "nothing pending")

	// WebSocket errors (5xxx)
	ErrConnOverLimit = New(5001, "connection over max limit")
)
