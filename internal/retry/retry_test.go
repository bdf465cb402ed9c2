package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
)

type testNetError struct {
	timeout bool
}

func (e testNetError) Error() string   { return "net error" }
func (e testNetError) Timeout() bool   { return e.timeout }
func (e testNetError) Temporary() bool { return false }

func serverError() error {
	return fmt.Errorf("alidns: update record 1: %w",
		&dns.ProviderRequestFailed{Action: "UpdateDomainRecord", StatusCode: http.StatusServiceUnavailable})
}

func TestDo_RetriesOnTransientError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsTransient, func(int) error {
		attempts++
		return serverError()
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_NoRetryOnPermanentError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain", errors.New("boom")},
		{"forbidden", &dns.ProviderRequestFailed{Action: "AddDomainRecord", StatusCode: http.StatusForbidden}},
		{"malformed", &dns.UnexpectedResponseError{Action: "GetMainDomainName", Key: "RR"}},
		{"configuration", &dns.ConfigurationError{Index: 0, Field: "domain", Reason: "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), Config{MaxAttempts: 3}, IsTransient, func(int) error {
				attempts++
				return tt.err
			})

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if attempts != 1 {
				t.Fatalf("expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	var seen []int
	err := Do(context.Background(), Config{MaxAttempts: 3}, nil, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt == 1 {
			return testNetError{timeout: true}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected attempts [1 2], got %v", seen)
	}
}

func TestDo_DisabledRunsOnce(t *testing.T) {
	attempts := 0
	_ = Do(context.Background(), Disabled(), IsTransient, func(int) error {
		attempts++
		return serverError()
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, Config{MaxAttempts: 3}, IsTransient, func(int) error {
		attempts++
		return serverError()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", attempts)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Config{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, IsTransient, func(int) error {
		attempts++
		cancel()
		return serverError()
	})

	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", testNetError{timeout: true}, true},
		{"net other", testNetError{}, false},
		{"transport failure", &dns.ProviderRequestFailed{Action: "GetMainDomainName", Err: errors.New("connection refused")}, true},
		{"throttled", &dns.ProviderRequestFailed{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", serverError(), true},
		{"client error", &dns.ProviderRequestFailed{StatusCode: http.StatusBadRequest}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	if d := backoffDelay(0, time.Second, 1); d != 0 {
		t.Errorf("expected zero delay without a base, got %v", d)
	}
	for attempt := 1; attempt <= 6; attempt++ {
		d := backoffDelay(100*time.Millisecond, 500*time.Millisecond, attempt)
		if d < 0 || d > 500*time.Millisecond {
			t.Errorf("attempt %d: delay %v outside [0, max]", attempt, d)
		}
	}
}
