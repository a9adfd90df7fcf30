package app

import (
	"errors"
	"testing"
)

func TestClockCountsDownToSingleExpiry(t *testing.T) {
	var progress []int
	expiries := 0
	clock := NewClock(func(r int) { progress = append(progress, r) }, func() { expiries++ })

	const budget = 5
	if err := clock.Start(budget); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < budget; i++ {
		clock.Tick()
	}
	if clock.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", clock.Remaining())
	}
	if expiries != 1 {
		t.Fatalf("expected one expiry, got %d", expiries)
	}
	if len(progress) != budget-1 || progress[0] != 4 || progress[len(progress)-1] != 1 {
		t.Fatalf("unexpected progress signals %v", progress)
	}

	for i := 0; i < 10; i++ {
		clock.Tick()
	}
	if expiries != 1 || clock.Remaining() != 0 || clock.Running() {
		t.Fatalf("over-ticking changed the clock: expiries=%d remaining=%d running=%v", expiries, clock.Remaining(), clock.Running())
	}
}

func TestClockStartsOnce(t *testing.T) {
	clock := NewClock(nil, nil)
	if err := clock.Start(10); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := clock.Start(10); !errors.Is(err, ErrClockStarted) {
		t.Fatalf("expected ErrClockStarted, got %v", err)
	}
	clock.Stop()
	if err := clock.Start(10); !errors.Is(err, ErrClockStarted) {
		t.Fatalf("restart after stop should fail, got %v", err)
	}
}

func TestClockRejectsEmptyBudget(t *testing.T) {
	if err := NewClock(nil, nil).Start(0); !errors.Is(err, ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
}

func TestClockStopIsIdempotent(t *testing.T) {
	expired := false
	clock := NewClock(nil, func() { expired = true })
	_ = clock.Start(3)
	clock.Tick()
	clock.Stop()
	clock.Stop()
	clock.Tick()
	if clock.Remaining() != 2 {
		t.Fatalf("tick after stop changed remaining to %d", clock.Remaining())
	}
	if expired {
		t.Fatalf("stopped clock must not expire")
	}
}

func TestClockStopAfterExpiry(t *testing.T) {
	clock := NewClock(nil, nil)
	_ = clock.Start(1)
	clock.Tick()
	clock.Stop()
	if !clock.Expired() || clock.Running() {
		t.Fatalf("expected expired, stopped clock")
	}
}
