package timing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedElapsed(e *Equalizer, elapsed time.Duration) *[]time.Duration {
	var slept []time.Duration
	e.since = func(time.Time) time.Duration { return elapsed }
	e.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestPadSleepsRemainder(t *testing.T) {
	e := New(Config{Initial: 80 * time.Millisecond})
	slept := fixedElapsed(e, 30*time.Millisecond)

	if err := e.Pad(context.Background(), time.Now()); err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 50*time.Millisecond {
		t.Fatalf("expected a single 50ms sleep, got %v", *slept)
	}
}

func TestPadSkipsWhenAlreadySlow(t *testing.T) {
	e := New(Config{Initial: 10 * time.Millisecond})
	slept := fixedElapsed(e, 20*time.Millisecond)

	if err := e.Pad(context.Background(), time.Now()); err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no sleep, got %v", *slept)
	}
}

func TestObserveMovesEstimate(t *testing.T) {
	e := New(Config{})
	e.Observe(80 * time.Millisecond)
	if got := e.Target(); got != 80*time.Millisecond {
		t.Fatalf("expected first observation to seed estimate, got %v", got)
	}

	e.Observe(160 * time.Millisecond)
	if got := e.Target(); got != 90*time.Millisecond {
		t.Fatalf("expected estimate to move by 1/8 of the gap, got %v", got)
	}

	e.Observe(-time.Second)
	if got := e.Target(); got != 90*time.Millisecond {
		t.Fatalf("expected non-positive observation to be ignored, got %v", got)
	}
}

func TestTargetFloorAndCeiling(t *testing.T) {
	e := New(Config{Initial: time.Millisecond, Floor: 5 * time.Millisecond, Ceiling: time.Second})
	if got := e.Target(); got != 5*time.Millisecond {
		t.Fatalf("expected floor, got %v", got)
	}

	e.Observe(10 * time.Second)
	e.Observe(10 * time.Second)
	if got := e.Target(); got != time.Second {
		t.Fatalf("expected ceiling, got %v", got)
	}
}

func TestPadHonoursCancellation(t *testing.T) {
	e := New(Config{Initial: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Pad(ctx, time.Now()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNilEqualizer(t *testing.T) {
	var e *Equalizer
	e.Observe(time.Second)
	if e.Target() != 0 {
		t.Fatal("expected zero target on nil equalizer")
	}
	if err := e.Pad(context.Background(), time.Now()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
