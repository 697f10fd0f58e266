package retryutil

import (
	"context"
	"errors"
	"testing"

	"github.com/hotgluexyz/target-actionkit/actionkit"
)

func TestDoRetriesRetriableErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), nil, "op", 3, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &actionkit.RetriableError{Status: 503, Message: "unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDoDoesNotRetryFatalErrors(t *testing.T) {
	attempts := 0
	fatal := &actionkit.FatalError{Status: 404, Message: "gone"}
	err := Do(context.Background(), nil, "op", 3, func(ctx context.Context) error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fatal errors must not be retried, attempts = %d", attempts)
	}
}

func TestDoDoesNotRetryAuthenticationErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), nil, "op", 3, func(ctx context.Context) error {
		attempts++
		return &actionkit.AuthenticationError{Method: "GET", Path: "/rest/v1/user", Message: "denied"}
	})
	if !actionkit.IsAuthentication(err) {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 {
		t.Fatalf("auth errors must not be retried, attempts = %d", attempts)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), nil, "op", 2, func(ctx context.Context) error {
		attempts++
		return &actionkit.RetriableError{Status: 429, Message: "throttled"}
	})
	if !actionkit.IsRetriable(err) {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}
