package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups workflow errors by what the caller should do about them.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthorization
	KindValidation
	KindState
	KindNotFound
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	}
	return "internal"
}

// Error is a rejected workflow operation. Rejections are always reported
// before anything is written.
type Error struct {
	Kind    Kind
	Code    string
	Msg     string
	Missing []string // Question texts, set for validation_failed only.
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing: %s)", strings.Join(e.Missing, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code, so callers can test against the
// sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized       = &Error{Kind: KindAuthorization, Code: "unauthorized"}
	ErrIneligibleAssignee = &Error{Kind: KindAuthorization, Code: "ineligible_assignee"}
	ErrEmptyComment       = &Error{Kind: KindValidation, Code: "empty_comment"}
	ErrEmptyField         = &Error{Kind: KindValidation, Code: "empty_field"}
	ErrInvalidAction      = &Error{Kind: KindValidation, Code: "invalid_action"}
	ErrValidationFailed   = &Error{Kind: KindValidation, Code: "validation_failed"}
	ErrInvalidState       = &Error{Kind: KindState, Code: "invalid_state"}
	ErrNotFound           = &Error{Kind: KindNotFound, Code: "not_found"}
	ErrDependency         = &Error{Kind: KindDependency, Code: "dependency"}
)

func newError(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: fmt.Sprintf(format, args...)}
}

func dependencyError(op string, err error) *Error {
	return &Error{Kind: KindDependency, Code: ErrDependency.Code, Msg: op, Err: err}
}

// KindOf classifies err. Errors not produced by this package are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MissingFields returns the unanswered question texts carried by a
// validation failure, or nil.
func MissingFields(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrValidationFailed.Code {
		return e.Missing
	}
	return nil
}

// outcome is the metrics label for an operation result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "error"
}
