// Package errors classifies the failures a download can end with.
//
// Every error returned by the target, http and downloader packages is, or
// wraps, an *Error carrying one of the Kind values below. Callers switch on
// KindOf to pick a message or exit status; the underlying cause stays
// reachable through Unwrap.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Unwrap = errors.Unwrap
)

// Kind is the category of a download failure.
type Kind string

const (
	KindNetwork      Kind = "NETWORK"       // DNS, connection, TLS, dropped stream
	KindHTTPStatus   Kind = "HTTP_STATUS"   // non-2xx response
	KindFilesystem   Kind = "FILESYSTEM"    // mkdir, create, write, close
	KindInvalidInput Kind = "INVALID_INPUT" // bad URL or filename override
	KindCanceled     Kind = "CANCELED"      // caller context done
	KindUnknown      Kind = "UNKNOWN"
)

// Common sentinel errors.
var (
	ErrInvalidURL     = New("invalid URL")
	ErrUnsafeFilename = New("filename escapes destination directory")
	ErrShortWrite     = io.ErrShortWrite
)

// Error is a classified download failure.
type Error struct {
	Kind       Kind
	Op         string // operation that failed, e.g. "get", "mkdir", "write"
	Resource   string // URL or path being accessed
	StatusCode int    // set for KindHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.Resource, e.StatusCode)
	case e.Err == nil:
		return fmt.Sprintf("%s %s: %s", e.Op, e.Resource, e.Kind)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(op, resource string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Resource: resource, Err: err}
}

// NewHTTPStatusError records a non-success response status.
func NewHTTPStatusError(op, resource string, code int) *Error {
	return &Error{
		Kind:       KindHTTPStatus,
		Op:         op,
		Resource:   resource,
		StatusCode: code,
		Err:        fmt.Errorf("unexpected status code: %d", code),
	}
}

// NewFilesystemError wraps a directory or file failure.
func NewFilesystemError(op, path string, err error) *Error {
	return &Error{Kind: KindFilesystem, Op: op, Resource: path, Err: err}
}

// NewInvalidInputError wraps a rejected URL or filename.
func NewInvalidInputError(op, resource string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Resource: resource, Err: err}
}

// NewCanceledError wraps a context error.
func NewCanceledError(op, resource string, err error) *Error {
	return &Error{Kind: KindCanceled, Op: op, Resource: resource, Err: err}
}

// FromContext returns a canceled error if ctx is done, nil otherwise.
func FromContext(ctx context.Context, op, resource string) error {
	if err := ctx.Err(); err != nil {
		return NewCanceledError(op, resource, err)
	}
	return nil
}

// KindOf returns the kind of err, or KindUnknown if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusCode extracts the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var e *Error
	if As(err, &e) && e.Kind == KindHTTPStatus {
		return e.StatusCode, true
	}
	return 0, false
}

func IsNetwork(err error) bool      { return KindOf(err) == KindNetwork }
func IsHTTPStatus(err error) bool   { return KindOf(err) == KindHTTPStatus }
func IsFilesystem(err error) bool   { return KindOf(err) == KindFilesystem }
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }
func IsCanceled(err error) bool     { return KindOf(err) == KindCanceled }
