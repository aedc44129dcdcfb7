package parserd

import (
	"testing"
	"time"
)

func TestRetryScheduleGrowsAndCaps(t *testing.T) {
	sched := newRetrySchedule(BackoffConfig{
		MaxAttempts:     10,
		InitialInterval: time.Second,
		MaxInterval:     4 * time.Second,
		Multiplier:      2,
	})
	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}
	for i, want := range expected {
		got, ok := sched.next()
		if !ok {
			t.Fatalf("retry %d: budget exhausted too early", i+1)
		}
		if got != want {
			t.Fatalf("retry %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestRetryScheduleExhaustsAttempts(t *testing.T) {
	sched := newRetrySchedule(BackoffConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})
	if _, ok := sched.next(); !ok {
		t.Fatal("first retry must be allowed")
	}
	if _, ok := sched.next(); !ok {
		t.Fatal("second retry must be allowed")
	}
	if _, ok := sched.next(); ok {
		t.Fatal("retry budget must be exhausted at MaxAttempts")
	}
}

func TestRetryScheduleRandomizationStaysInRange(t *testing.T) {
	sched := newRetrySchedule(BackoffConfig{
		InitialInterval:     time.Second,
		MaxInterval:         time.Minute,
		Multiplier:          1,
		RandomizationFactor: 0.5,
	})
	for i := 0; i < 100; i++ {
		got, ok := sched.next()
		if !ok {
			t.Fatal("unlimited schedule must never exhaust")
		}
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("randomized delay %v outside ±50%% of 1s", got)
		}
	}
}
