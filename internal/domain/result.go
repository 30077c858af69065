package domain

import (
	"context"
	"errors"
)

// Kind classifies a failure.
type Kind string

// Failure kinds reported by Result.
const (
	KindNone                  Kind = ""
	KindIO                    Kind = "io"
	KindUnsupportedFormat     Kind = "unsupported_format"
	KindOperationNotSupported Kind = "operation_not_supported"
	KindRemote                Kind = "remote"
	KindAttemptsExhausted     Kind = "attempts_exhausted"
	KindInvalidArgument       Kind = "invalid_argument"
	KindCanceled              Kind = "canceled"
	KindInternal              Kind = "internal"
)

// Result is either a value or a classified failure.
type Result[T any] struct {
	value   T
	kind    Kind
	message string
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail builds a failed result.
func Fail[T any](kind Kind, message string) Result[T] {
	if kind == KindNone {
		kind = KindInternal
	}
	return Result[T]{kind: kind, message: message}
}

// FromError builds a failed result classified from err.
func FromError[T any](err error) Result[T] {
	return Fail[T](KindOf(err), err.Error())
}

// IsErr reports whether the result is a failure.
func (r Result[T]) IsErr() bool { return r.kind != KindNone }

// Value returns the wrapped value and whether the result succeeded.
func (r Result[T]) Value() (T, bool) { return r.value, !r.IsErr() }

// Kind returns the failure kind, KindNone on success.
func (r Result[T]) Kind() Kind { return r.kind }

// Message returns the failure message.
func (r Result[T]) Message() string { return r.message }

// KindOf classifies err into the taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var exhausted *AttemptsExhaustedError
	var remote *RemoteError
	switch {
	case errors.As(err, &exhausted):
		return KindAttemptsExhausted
	case errors.As(err, &remote):
		return KindRemote
	case errors.Is(err, ErrOperationNotSupported):
		return KindOperationNotSupported
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrUnknownProvider):
		return KindInvalidArgument
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrIO):
		return KindIO
	default:
		return KindInternal
	}
}
