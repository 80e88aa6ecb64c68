package talk

import (
	"errors"
	"fmt"
	"time"
)

// Reason classifies a raised turn failure.
type Reason int

const (
	ReasonTransport Reason = iota + 1
	ReasonTimeout
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonTransport:
		return "transport"
	case ReasonTimeout:
		return "timeout"
	case ReasonCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Failure is the terminal error of a conversation turn. Cancellation
// and transport failures share this shape and differ only by Reason.
type Failure struct {
	Reason Reason
	cause  error
}

func failTransport(err error) *Failure {
	return &Failure{Reason: ReasonTransport, cause: err}
}

func failTimeout(after time.Duration) *Failure {
	return &Failure{Reason: ReasonTimeout, cause: fmt.Errorf("no chunk within %s", after)}
}

func failCanceled(err error) *Failure {
	return &Failure{Reason: ReasonCanceled, cause: err}
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("talk: turn %s: %v", f.Reason, f.cause)
	}
	return fmt.Sprintf("talk: turn %s", f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// Retryable reports whether the caller may retry the request as-is.
// Only the no-data timeout is retryable; transport failures and
// cancellations are not.
func (f *Failure) Retryable() bool {
	return f.Reason == ReasonTimeout
}

// IsTimeout reports whether err is a turn failure caused by the
// no-data timeout.
func IsTimeout(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Reason == ReasonTimeout
}
