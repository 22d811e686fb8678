package registry

import (
	"errors"
	"fmt"
)

// Kind classifies a registry error so that the boundary layer can map it deterministically
// (eg- to an HTTP status code) without inspecting error strings.
type Kind string

const (
	// KindValidation means the submitted metadata is malformed or incomplete.
	// The caller must correct the input, retrying the same request is pointless.
	KindValidation Kind = "validation"

	// KindUnauthenticated means no principal was presented with a write request.
	KindUnauthenticated Kind = "unauthenticated"

	// KindPermissionDenied means the principal is authenticated but not entitled to the operation.
	KindPermissionDenied Kind = "permission_denied"

	// KindNotFound means the referenced tool does not exist.
	KindNotFound Kind = "not_found"

	// KindConflict means a concurrent write won the race. The whole operation is safe to retry.
	KindConflict Kind = "conflict"

	// KindStoreUnavailable is a transient backend failure. Safe to retry with backoff.
	KindStoreUnavailable Kind = "store_unavailable"
)

// Retryable reports whether an operation that failed with this kind may be retried as-is.
func (k Kind) Retryable() bool {
	return k == KindConflict || k == KindStoreUnavailable
}

// Sentinel errors, one per kind. They match any *Error of the same kind through errors.Is.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

// Error is the single error type surfaced by the registry core.
type Error struct {
	Kind Kind

	// Op is the facade operation that failed (eg- "register"). Empty when raised below the facade.
	Op string

	// Field names the offending document field for validation errors.
	Field string

	// Message is the human-readable reason. It never contains stack traces or
	// identifiers other than tool and principal ids already visible to the caller.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("invalid %s: %s", e.Field, msg)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Field == "" && t.Message == "" && t.Err == nil
}

// NewError creates a registry error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError creates a validation error naming the first failing field.
func ValidationError(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps a backend failure.
func StoreUnavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or "" if err is not (and does not wrap) a registry error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// withOp enriches err with the facade operation name while preserving its kind.
// Errors that are not registry errors are classified as store failures, since everything
// else the facade calls is pure.
func withOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindStoreUnavailable, Op: op, Err: err}
	}
	if e.Op != "" {
		return err
	}
	enriched := *e
	enriched.Op = op
	return &enriched
}
