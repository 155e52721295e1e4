package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestApplyDelay_RespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())
	host := "example.com"
	rl.UpdateLastRequestTime(host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := rl.ApplyDelay(ctx, host, 5*time.Second)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("ApplyDelay error = %v, want context.Canceled", err)
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("ApplyDelay with cancelled context took %v, expected <100ms", elapsed)
	}
}

func TestApplyDelay_SleepsForExpectedDuration(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())
	host := "example.com"
	rl.UpdateLastRequestTime(host)

	start := time.Now()
	if err := rl.ApplyDelay(context.Background(), host, 100*time.Millisecond); err != nil {
		t.Fatalf("ApplyDelay unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	// Allow for jitter (+/- 10%) and timer imprecision
	if elapsed < 50*time.Millisecond {
		t.Errorf("ApplyDelay returned too quickly: %v, expected ~100ms", elapsed)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("ApplyDelay took too long: %v, expected ~100ms", elapsed)
	}
}

func TestApplyDelay_NoDelayOnFirstRequest(t *testing.T) {
	rl := NewRateLimiter(0, testLogger())

	start := time.Now()
	if err := rl.ApplyDelay(context.Background(), "fresh-host.com", 5*time.Second); err != nil {
		t.Fatalf("ApplyDelay unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("ApplyDelay on first request took %v, expected instant return", elapsed)
	}
}

func TestApplyDelay_ZeroDelayDisabled(t *testing.T) {
	rl := NewRateLimiter(0, testLogger())
	rl.UpdateLastRequestTime("example.com")

	start := time.Now()
	_ = rl.ApplyDelay(context.Background(), "example.com", 0)
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("ApplyDelay with zero delay took %v", elapsed)
	}
}
