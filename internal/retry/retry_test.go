package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, nil, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), Config{MaxRetries: 5, BaseDelay: time.Millisecond},
		func(err error) bool { return !errors.Is(err, permanent) },
		nil,
		func(context.Context) error {
			calls++
			return permanent
		})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected one call with permanent error, got %d calls err=%v", calls, err)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, nil,
		func(_ int, _ error, delay time.Duration) { delays = append(delays, delay) },
		func(context.Context) error {
			calls++
			return errors.New("down")
		})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 calls and an error, got %d calls err=%v", calls, err)
	}
	if len(delays) != 2 || delays[1] != time.Millisecond {
		t.Fatalf("unexpected delays %v", delays)
	}
}

func TestValue(t *testing.T) {
	got, err := Value(context.Background(), Config{}, nil, nil, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("unexpected result %d %v", got, err)
	}
}
