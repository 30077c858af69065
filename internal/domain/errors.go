package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks transport failures.
	ErrIO = errors.New("io error")
	// ErrUnsupportedFormat marks an item that exists but could not be parsed.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrOperationNotSupported marks a capability a provider does not have.
	ErrOperationNotSupported = errors.New("operation not supported")
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// RemoteError is returned when the catalog rejects a call.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// AttemptsExhaustedError is returned once a retried fetch gives up. It matches
// ErrIO through errors.Is.
type AttemptsExhaustedError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *AttemptsExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("attempts exhausted for %s after %d tries", e.Target, e.Attempts)
	}
	return fmt.Sprintf("attempts exhausted for %s after %d tries: %v", e.Target, e.Attempts, e.Err)
}

// Unwrap exposes the last failure and ErrIO.
func (e *AttemptsExhaustedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIO}
	}
	return []error{ErrIO, e.Err}
}

// IOErrorf wraps a transport failure so that it matches ErrIO. A %w verb in
// format keeps the cause reachable through errors.Is.
func IOErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrIO, fmt.Errorf(format, args...))
}

// UnsupportedFormatf builds a parse failure that matches ErrUnsupportedFormat.
func UnsupportedFormatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, fmt.Sprintf(format, args...))
}
