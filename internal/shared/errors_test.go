package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRequestError(t *testing.T) {
	t.Run("Unwraps Kind And Cause", func(t *testing.T) {
		err := &RequestError{
			Kind:     ErrTransport,
			Method:   "GET",
			URL:      "http://example.com",
			Attempts: 3,
			Err:      context.DeadlineExceeded,
		}

		if !errors.Is(err, ErrTransport) {
			t.Error("expected errors.Is to match kind")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("expected errors.Is to match cause")
		}
		if errors.Is(err, ErrValidation) {
			t.Error("did not expect validation kind")
		}
	})

	t.Run("Message", func(t *testing.T) {
		err := &RequestError{Kind: ErrValidation, Method: "POST", URL: "http://x", Status: 500, Attempts: 2}
		msg := err.Error()
		for _, want := range []string{"POST", "http://x", "2 attempt", "status 500", "response rejected"} {
			if !strings.Contains(msg, want) {
				t.Errorf("expected %q in %q", want, msg)
			}
		}
	})

	t.Run("IsRequestKind Through Wrapping", func(t *testing.T) {
		base := &RequestError{Kind: ErrDecode, Attempts: 1}
		wrapped := fmt.Errorf("lookup chunk: %w", base)

		if !IsRequestKind(wrapped, ErrDecode) {
			t.Error("expected wrapped request error to match decode kind")
		}
		if IsRequestKind(wrapped, ErrTransport) {
			t.Error("did not expect transport kind")
		}
		timedOut := fmt.Errorf("search: %w", &RequestError{Kind: ErrTimeout, Attempts: 3, Err: errors.New("read stalled")})
		if !IsRequestKind(timedOut, ErrTimeout) || !errors.Is(timedOut, ErrTimeout) {
			t.Error("expected timeout kind to match")
		}
		if IsRequestKind(errors.New("plain"), ErrDecode) {
			t.Error("plain errors are not request errors")
		}
	})
}
