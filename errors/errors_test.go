package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		wantCategory ErrorCategory
		wantRetry    bool
	}{
		{"timeout", ErrCodeTimeout, CategoryTransient, true},
		{"not_connected", ErrCodeNotConnected, CategoryTransient, true},
		{"closed", ErrCodeClosed, CategoryPermanent, false},
		{"invalid_config", ErrCodeInvalidConfig, CategoryPermanent, false},
		{"internal", ErrCodeInternal, CategoryInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "msg")
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Retryable() != tt.wantRetry {
				t.Errorf("Retryable() = %v, want %v", err.Retryable(), tt.wantRetry)
			}
		})
	}
}

func TestNotConnected(t *testing.T) {
	err := NotConnected("ep-1")
	if err.Error() != "no transport attached" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.EndpointID() != "ep-1" {
		t.Errorf("EndpointID() = %q, want ep-1", err.EndpointID())
	}
	if !Is(err, ErrCodeNotConnected) {
		t.Error("Is(NOT_CONNECTED) = false")
	}
}

func TestWithRetryableOverride(t *testing.T) {
	err := New(ErrCodeTimeout, "slow", WithRetryable(false))
	if err.Retryable() {
		t.Error("explicit WithRetryable(false) should win")
	}
}

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", New(ErrCodeInvalidInput, "bad url"), "bad url"},
		{"with op", FromCode(ErrCodeClosed, WithOp("send")), "send: endpoint closed"},
		{"with cause", New(ErrCodeNetworkErr, "dial", WithCause(errors.New("refused"))), "dial: refused"},
		{"all", New(ErrCodeNetworkErr, "dial", WithOp("connect"), WithCause(errors.New("refused"))), "connect: dial: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsOp(t *testing.T) {
	inner := New(ErrCodeNotConnected, "no transport", WithOp("send"))
	w := Wrap(inner, "flush")
	if w.Op() != "send" {
		t.Errorf("Op() = %q, want send", w.Op())
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if Wrap(nil, "x") != nil {
			t.Error("Wrap(nil) should be nil")
		}
	})

	t.Run("typed keeps code", func(t *testing.T) {
		inner := Closed("ep-1")
		wrapped := Wrap(inner, "send failed")
		if wrapped.Code() != ErrCodeClosed {
			t.Errorf("Code() = %v, want CLOSED", wrapped.Code())
		}
		if wrapped.EndpointID() != "ep-1" {
			t.Errorf("EndpointID() = %q", wrapped.EndpointID())
		}
		if !errors.Is(wrapped, inner) {
			t.Error("errors.Is should find the inner error")
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		w := Wrap(context.DeadlineExceeded, "dial")
		if w.Code() != ErrCodeTimeout {
			t.Errorf("Code() = %v, want TIMEOUT", w.Code())
		}
	})

	t.Run("context canceled", func(t *testing.T) {
		w := Wrap(fmt.Errorf("op: %w", context.Canceled), "dial")
		if w.Code() != ErrCodeCanceled {
			t.Errorf("Code() = %v, want CANCELED", w.Code())
		}
	})

	t.Run("plain error", func(t *testing.T) {
		w := Wrap(errors.New("boom"), "factory")
		if w.Code() != ErrCodeInternal {
			t.Errorf("Code() = %v, want INTERNAL", w.Code())
		}
		if w.Error() != "factory: boom" {
			t.Errorf("Error() = %q", w.Error())
		}
	})
}

func TestWrapWithCode(t *testing.T) {
	if WrapWithCode(nil, ErrCodeNetworkErr, "x") != nil {
		t.Error("WrapWithCode(nil) should be nil")
	}
	w := WrapWithCode(errors.New("refused"), ErrCodeNetworkErr, "dial")
	if !IsRetryable(w) {
		t.Error("NETWORK_ERR should be retryable")
	}
	if CodeOf(fmt.Errorf("outer: %w", w)) != ErrCodeNetworkErr {
		t.Error("CodeOf should see through fmt wrapping")
	}
}

func TestUntypedErrors(t *testing.T) {
	plain := errors.New("plain")
	if Is(plain, ErrCodeInternal) {
		t.Error("Is on untyped error should be false")
	}
	if IsRetryable(plain) {
		t.Error("untyped errors are not retryable")
	}
	if CodeOf(plain) != "" {
		t.Error("CodeOf untyped should be empty")
	}
}

func TestDescription(t *testing.T) {
	if ErrCodeClosed.Description() != "endpoint closed" {
		t.Errorf("Description() = %q", ErrCodeClosed.Description())
	}
	if ErrorCode("NOPE").Description() != "unknown error" {
		t.Error("unknown code should describe as unknown error")
	}
}
