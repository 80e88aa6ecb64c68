package talk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestFailureRetryable(t *testing.T) {
	if failTransport(errors.New("boom")).Retryable() {
		t.Error("transport failure should not be retryable")
	}
	if !failTimeout(time.Second).Retryable() {
		t.Error("timeout failure should be retryable")
	}
	if failCanceled(context.Canceled).Retryable() {
		t.Error("canceled failure should not be retryable")
	}
}

func TestFailureUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := failTransport(cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through the failure to its cause")
	}

	err = failCanceled(context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("canceled failure should unwrap to context.Canceled")
	}
}

func TestFailureError(t *testing.T) {
	err := failTransport(errors.New("boom"))
	if got := err.Error(); !strings.Contains(got, "transport") || !strings.Contains(got, "boom") {
		t.Errorf("Error() = %q, want reason and cause", got)
	}

	err = failTimeout(15 * time.Second)
	if got := err.Error(); !strings.Contains(got, "timeout") || !strings.Contains(got, "15s") {
		t.Errorf("Error() = %q, want timeout with duration", got)
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(failTimeout(time.Second)) {
		t.Error("IsTimeout(timeout failure) = false")
	}
	if IsTimeout(failTransport(errors.New("x"))) {
		t.Error("IsTimeout(transport failure) = true")
	}
	if IsTimeout(errors.New("plain")) {
		t.Error("IsTimeout(plain error) = true")
	}
	// Wrapped failures still match.
	wrapped := fmt.Errorf("turn 2: %w", failTimeout(time.Second))
	if !IsTimeout(wrapped) {
		t.Error("IsTimeout should see through wrapping")
	}
}

func TestReasonString(t *testing.T) {
	tests := []struct {
		r    Reason
		want string
	}{
		{ReasonTransport, "transport"},
		{ReasonTimeout, "timeout"},
		{ReasonCanceled, "canceled"},
		{Reason(99), "reason(99)"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("Reason(%d).String() = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}
