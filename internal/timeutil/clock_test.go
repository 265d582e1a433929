package timeutil

import (
	"context"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(100 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestWait_Elapses(t *testing.T) {
	if err := Wait(context.Background(), RealClock{}, 5*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWait_CancelledEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Wait(ctx, RealClock{}, time.Hour)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Wait did not return promptly after cancellation")
	}
}

func TestWait_NonPositiveDuration(t *testing.T) {
	if err := Wait(context.Background(), RealClock{}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMockClock_After(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	ch := clock.After(100 * time.Millisecond)

	clock.Advance(50 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired too early")
	default:
	}

	clock.Advance(50 * time.Millisecond)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(100 * time.Millisecond)) {
			t.Errorf("fired at %v", got)
		}
	default:
		t.Fatal("did not fire at deadline")
	}

	if waits := clock.Waits(); len(waits) != 1 || waits[0] != 100*time.Millisecond {
		t.Errorf("Waits() = %v", waits)
	}
}

func TestMockClock_WaitUnblocksOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	done := make(chan error, 1)
	go func() {
		done <- Wait(context.Background(), clock, time.Second)
	}()

	// Advance until the goroutine has registered its timer.
	deadline := time.Now().Add(time.Second)
	for len(clock.Waits()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	clock.Advance(time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Advance")
	}
}

func TestMockTicker(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(100 * time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	clock.Advance(100 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}

	ticker.(*MockTicker).Trigger(time.Unix(5, 0))
	if got := <-ticker.C(); !got.Equal(time.Unix(5, 0)) {
		t.Errorf("Trigger delivered %v", got)
	}
}
