package gpib

import (
	"errors"
	"fmt"
)

// Kind classifies a session error.
type Kind uint8

// Error kinds.
const (
	KindOpenFailed Kind = iota + 1
	KindClearFailed
	KindWriteFailed
	KindReadFailed
	KindInvalidArgument
	KindCloseFailed
	KindInvalidState
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOpenFailed:
		return "OpenFailed"
	case KindClearFailed:
		return "ClearFailed"
	case KindWriteFailed:
		return "WriteFailed"
	case KindReadFailed:
		return "ReadFailed"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindCloseFailed:
		return "CloseFailed"
	case KindInvalidState:
		return "InvalidState"
	default:
		return "Unknown"
	}
}

// Sentinel errors matching each Kind through errors.Is.
var (
	// ErrOpenFailed indicates the driver could not open the device.
	ErrOpenFailed = errors.New("gpib: open failed")

	// ErrClearFailed indicates the device clear failed; the session is offline.
	ErrClearFailed = errors.New("gpib: clear failed")

	// ErrWriteFailed indicates the write half of a query failed; the session is offline.
	ErrWriteFailed = errors.New("gpib: write failed")

	// ErrReadFailed indicates the read half of a query failed; the session is offline.
	ErrReadFailed = errors.New("gpib: read failed")

	// ErrInvalidArgument indicates a local argument check failed. The driver was not called.
	ErrInvalidArgument = errors.New("gpib: invalid argument")

	// ErrCloseFailed indicates the driver reported an error while taking the device offline.
	// The session is offline regardless.
	ErrCloseFailed = errors.New("gpib: close failed")

	// ErrInvalidState indicates the operation is not allowed in the current session state.
	// The driver was not called.
	ErrInvalidState = errors.New("gpib: invalid session state")
)

var kindSentinels = map[Kind]error{
	KindOpenFailed:      ErrOpenFailed,
	KindClearFailed:     ErrClearFailed,
	KindWriteFailed:     ErrWriteFailed,
	KindReadFailed:      ErrReadFailed,
	KindInvalidArgument: ErrInvalidArgument,
	KindCloseFailed:     ErrCloseFailed,
	KindInvalidState:    ErrInvalidState,
}

// Error is the error returned by Session operations.
//
// Driver-originated kinds carry the decoded Diagnostic of the failing call;
// InvalidArgument and InvalidState errors have a nil Diagnostic.
type Error struct {
	Kind       Kind
	Op         string
	Addr       Address
	Diagnostic *Diagnostic
	// Err holds extra detail, such as the reason an argument was rejected.
	Err error
}

func newDriverError(kind Kind, op string, addr Address, res Result) *Error {
	diag := res.Diagnostic()

	return &Error{Kind: kind, Op: op, Addr: addr, Diagnostic: &diag}
}

func newLocalError(kind Kind, op string, addr Address, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gpib: %s %s: %s", e.Op, e.Addr, e.Kind)
	if e.Diagnostic != nil {
		msg += " (" + e.Diagnostic.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the wrapped detail error.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel error of e's Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// Retryable reports whether the failure looks transient. See Diagnostic.Retryable.
func (e *Error) Retryable() bool {
	return e.Diagnostic != nil && e.Diagnostic.Retryable()
}

// DiagnosticOf extracts the Diagnostic carried by err, if any.
func DiagnosticOf(err error) (Diagnostic, bool) {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Diagnostic != nil {
		return *gerr.Diagnostic, true
	}

	return Diagnostic{}, false
}
