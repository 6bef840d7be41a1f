package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerImmediateFirstTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	tick := func(ctx context.Context, at time.Time) error {
		ticks++
		cancel()
		return nil
	}

	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	if err := s.Run(ctx, tick); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks != 1 {
		t.Fatalf("expected one immediate tick, got %d", ticks)
	}
}

func TestSchedulerKeepsCadenceOnTickError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	tick := func(ctx context.Context, at time.Time) error {
		ticks++
		if ticks == 3 {
			cancel()
		}
		return errors.New("boom")
	}

	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())
	if err := s.Run(ctx, tick); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks)
	}
}

func TestSchedulerStartupDelayCancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ticked := false
	tick := func(ctx context.Context, at time.Time) error {
		ticked = true
		return nil
	}

	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	if err := s.Run(ctx, tick); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticked {
		t.Fatal("tick must not run during the startup delay")
	}
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a non-positive interval")
		}
	}()

	New(Options{}, zerolog.Nop())
}
