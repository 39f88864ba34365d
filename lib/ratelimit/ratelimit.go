package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time and sleeping so callers that wait on it can be
// unit tested without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func SystemClock() Clock { return systemClock{} }

// Limiter enforces a minimum interval between successive Acquire returns.
// It never drops or queues work, it only delays the caller. One instance is
// shared by everything that talks to the upstream during a run.
type Limiter struct {
	interval time.Duration
	clock    Clock

	mu   sync.Mutex
	last time.Time
}

// NewLimiter returns a limiter allowing `rate` acquisitions per second.
// `clock` may be nil, in which case the system clock is used.
func NewLimiter(rate float64, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	interval := time.Duration(0)
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}
	return &Limiter{interval: interval, clock: clock}
}

// Acquire blocks until at least the configured interval has elapsed since the
// previous Acquire returned.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		wait := l.interval - l.clock.Now().Sub(l.last)
		if wait > 0 {
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	l.last = l.clock.Now()
	return nil
}
