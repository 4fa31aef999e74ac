package booking

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindUnauthorized  Kind = "unauthorized"
	KindPaymentFailed Kind = "payment_failed"
	KindRefundFailed  Kind = "refund_failed"
	KindInternal      Kind = "internal"
)

// Error is the engine's failure type. Message is safe to show to callers;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
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

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

func invalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func paymentFailed(msg string, cause error) error {
	return &Error{Kind: KindPaymentFailed, Message: msg, Err: cause}
}

func refundFailed(msg string, cause error) error {
	return &Error{Kind: KindRefundFailed, Message: msg, Err: cause}
}

func internal(msg string, cause error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// Sentinel errors returned by ports.
var (
	ErrNotFound          = errors.New("record not found")
	ErrStaleVersion      = errors.New("record was modified concurrently")
	ErrOverlap           = errors.New("vehicle already booked for the requested dates")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrLocked            = errors.New("resource is locked")
)

// fromStore converts a port error into an engine error.
func fromStore(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return notFound(what)
	case errors.Is(err, ErrStaleVersion):
		return &Error{Kind: KindConflict, Message: what + " was modified concurrently, retry", Err: err}
	case errors.Is(err, ErrOverlap):
		return &Error{Kind: KindConflict, Message: ErrOverlap.Error(), Err: err}
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return internal("storage failure", err)
}
