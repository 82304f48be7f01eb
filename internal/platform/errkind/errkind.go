package errkind

import (
	"errors"
	"fmt"
)

// Kind is the stable error classification surfaced to collaborators.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindVersionConflict     Kind = "version_conflict"
	KindPermissionDenied    Kind = "permission_denied"
	KindValidation          Kind = "validation"
	KindDependencyTransient Kind = "dependency_transient"
	KindDependencyFatal     Kind = "dependency_fatal"
	KindInternalInvariant   Kind = "internal_invariant"
)

type Error struct {
	Kind   Kind
	Entity string
	ID     string
	Msg    string
	Err    error
	// Latest carries the current row snapshot on version conflicts so the
	// caller can merge.
	Latest any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Entity != "" && e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Entity, e.ID, msg)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Entity, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(entity string, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

func Conflict(entity string, latest any) *Error {
	return &Error{Kind: KindVersionConflict, Entity: entity, Msg: "version conflict", Latest: latest}
}

func PermissionDenied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Msg: msg}
}

func Validation(msg string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(msg, args...)}
}

func Transient(err error, msg string) *Error {
	return &Error{Kind: KindDependencyTransient, Msg: msg, Err: err}
}

func Fatal(err error, msg string) *Error {
	return &Error{Kind: KindDependencyFatal, Msg: msg, Err: err}
}

func Invariant(msg string, args ...any) *Error {
	return &Error{Kind: KindInternalInvariant, Msg: fmt.Sprintf(msg, args...)}
}

// KindOf reports the classification of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool { return KindOf(err) == KindDependencyTransient }

// LatestOf extracts the conflict snapshot from a version-conflict error.
func LatestOf(err error) any {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindVersionConflict {
		return e.Latest
	}
	return nil
}
