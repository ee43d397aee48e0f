// Package apperr defines the core's error taxonomy. Every component returns
// one of these from its command handlers instead of panicking or
// propagating raw errors across an actor boundary, so HTTP and WebSocket
// transports can map them through a single table.
package apperr

import (
	"errors"
	"fmt"
)

// Tag classifies an error for transport-level mapping.
type Tag string

const (
	TagValidation    Tag = "validation"
	TagAuthorization Tag = "authorization"
	TagNotFound      Tag = "not_found"
	TagConflict      Tag = "conflict"
	TagRateLimit     Tag = "rate_limit"
	TagInternal      Tag = "internal"
)

// Error is the tagged variant every component surfaces.
type Error struct {
	Tag     Tag
	Code    string // machine-readable, e.g. INVALID_INPUT, UNAUTHORIZED_RESUME
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(tag Tag, code, msg string, cause error) *Error {
	return &Error{Tag: tag, Code: code, Message: msg, cause: cause}
}

func Validation(code, msg string) *Error    { return newErr(TagValidation, code, msg, nil) }
func Authorization(code, msg string) *Error { return newErr(TagAuthorization, code, msg, nil) }
func NotFound(code, msg string) *Error      { return newErr(TagNotFound, code, msg, nil) }
func Conflict(code, msg string) *Error      { return newErr(TagConflict, code, msg, nil) }
func RateLimit(code, msg string) *Error     { return newErr(TagRateLimit, code, msg, nil) }
func Internal(code, msg string, cause error) *Error {
	return newErr(TagInternal, code, msg, cause)
}

// Common codes referenced directly by multiple components.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeUnauthorizedResume  = "UNAUTHORIZED_RESUME"
	CodeInvalidState        = "INVALID_STATE"
	CodeNotFound            = "NOT_FOUND"
	CodeNotParticipant      = "NOT_PARTICIPANT"
	CodeDuplicateInvite     = "DUPLICATE_INVITE"
	CodeInviteToSelf        = "INVITE_TO_SELF"
	CodeRateLimit           = "RATE_LIMIT"
	CodeInternal            = "INTERNAL"
	CodeBlocked             = "BLOCKED"
	CodeNotMember           = "NOT_MEMBER"
	CodeInvalidWinner       = "INVALID_WINNER"
)

// As reports whether err is (or wraps) an *Error, mirroring errors.As
// without forcing every caller to declare the target variable inline.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}
