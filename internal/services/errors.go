package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the dispatch engine.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota + 1
	KindNotAuthenticated
	KindNotAuthorized
	KindNotFound
	KindDependencyFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotAuthenticated:
		return "NotAuthenticated"
	case KindNotAuthorized:
		return "NotAuthorized"
	case KindNotFound:
		return "NotFound"
	case KindDependencyFailure:
		return "DependencyFailure"
	}
	return "Unknown"
}

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notAuthenticated(msg string) *Error {
	return &Error{Kind: KindNotAuthenticated, Message: msg}
}

func notAuthorized(msg string) *Error {
	return &Error{Kind: KindNotAuthorized, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func dependencyFailure(msg string, err error) *Error {
	return &Error{Kind: KindDependencyFailure, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Store-level sentinels. The engine translates them into kinds.
var (
	ErrAlertNotFound   = errors.New("sos alert not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrVersionConflict = errors.New("sos alert was modified concurrently")
)
