// Package clock provides injectable time and delay primitives so scheduling
// and timeout logic is deterministically testable.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is a swappable time source.
type Clock interface {
	Now() time.Time
}

// Delay is a swappable sleep primitive. Sleep returns early with the context
// error if the context is cancelled first.
type Delay interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real uses the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fake is a manually-advanced clock for tests. Sleeps complete instantly and
// advance the fake time by the slept duration.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Sleep advances the clock by d without blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Advance(d)
	return nil
}
