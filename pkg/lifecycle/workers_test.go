package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWorkers_CancelStopsWorkers(t *testing.T) {
	w := NewWorkers(nil)
	ctx := w.Context()

	started := make(chan struct{})
	w.Go(func() {
		close(started)
		<-ctx.Done()
	})
	<-started

	w.Cancel()
	if err := w.WaitWithTimeout(time.Second); err != nil {
		t.Fatalf("WaitWithTimeout() error = %v", err)
	}
}

func TestWorkers_WaitTimeout(t *testing.T) {
	w := NewWorkers(nil)
	release := make(chan struct{})
	defer close(release)

	w.Go(func() { <-release })

	err := w.WaitWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("WaitWithTimeout() error = %v, want ErrShutdownTimeout", err)
	}
}

func TestWorkers_CancelWithoutContext(t *testing.T) {
	w := NewWorkers(nil)
	w.Cancel()
	if err := w.WaitWithTimeout(10 * time.Millisecond); err != nil {
		t.Errorf("WaitWithTimeout() on empty group error = %v", err)
	}
}

func TestBackoff_Next(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 400*time.Millisecond)

	tests := []struct {
		base time.Duration
	}{
		{100 * time.Millisecond},
		{200 * time.Millisecond},
		{400 * time.Millisecond},
		{400 * time.Millisecond}, // capped
	}

	for i, tt := range tests {
		d := b.Next()
		lo := time.Duration(float64(tt.base) * 0.8)
		hi := time.Duration(float64(tt.base) * 1.2)
		if d < lo || d > hi {
			t.Errorf("Next() #%d = %v, want within [%v, %v]", i, d, lo, hi)
		}
	}

	b.Reset()
	if b.Current() != 100*time.Millisecond {
		t.Errorf("Current() after Reset = %v, want 100ms", b.Current())
	}
}

func TestBackoff_WaitCancelled(t *testing.T) {
	b := NewBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestState_Strings(t *testing.T) {
	tests := []struct {
		state     State
		name      string
		event     string
		available bool
	}{
		{StateNew, "NEW", "", false},
		{StateInitializing, "INITIALIZING", EventBeforeInit, false},
		{StateInitialized, "INITIALIZED", EventAfterInit, false},
		{StateStartingPrep, "STARTING_PREP", EventBeforeStart, false},
		{StateStarting, "STARTING", EventStart, true},
		{StateStarted, "STARTED", EventAfterStart, true},
		{StateStoppingPrep, "STOPPING_PREP", EventBeforeStop, true},
		{StateStopping, "STOPPING", EventStop, false},
		{StateStopped, "STOPPED", EventAfterStop, false},
		{StateDestroying, "DESTROYING", EventBeforeDestroy, false},
		{StateDestroyed, "DESTROYED", EventAfterDestroy, false},
		{StateFailed, "FAILED", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.Event(); got != tt.event {
				t.Errorf("Event() = %q, want %q", got, tt.event)
			}
			if got := tt.state.Available(); got != tt.available {
				t.Errorf("Available() = %v, want %v", got, tt.available)
			}
		})
	}

	if State(99).String() != "UNKNOWN" {
		t.Errorf("String() for out-of-range state = %q", State(99).String())
	}
}
