package party

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-checkable category of a failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindPermission Kind = "permission_denied"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindStore      Kind = "store"
)

// Error is returned by every Service operation. Op names the failing
// operation ("create party"), Msg is the short human-readable reason.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return string(e.Kind)
	}
	msg := e.Msg
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg = msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("failed to %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrConflict) works
// for any conflict regardless of operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrPermission = &Error{Kind: KindPermission}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrStore      = &Error{Kind: KindStore}
)

// KindOf returns the Kind of err, or KindStore for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// Message returns the short description suitable for end users.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func validationError(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// accessDenied is used both for unknown and for unauthorized parties so that
// callers cannot probe for existence.
func accessDenied(op string) error {
	return &Error{Kind: KindPermission, Op: op, Msg: "access denied"}
}

func conflictError(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg}
}

func notFoundError(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func storeError(op string, err error) error {
	return &Error{Kind: KindStore, Op: op, Err: err}
}
