// Package rate paces outgoing recognition calls with a sliding one-minute
// window so a long scan stays under the service's rate limits.
package rate

import (
	"context"
	"sync"
	"time"
)

const (
	// windowDuration is the fixed time window for the limiter (always 1 minute)
	windowDuration = 60 * time.Second
	// pollInterval is how long Wait sleeps before rechecking for a free slot
	pollInterval = 250 * time.Millisecond
)

// Limiter allows at most limitPerMinute calls within any sliding
// one-minute window.
type Limiter struct {
	limitPerMinute int
	timestamps     []time.Time
	mutex          sync.Mutex
	now            func() time.Time
}

// New creates a Limiter. A non-positive limit disables limiting.
func New(limitPerMinute int) *Limiter {
	return &Limiter{
		limitPerMinute: limitPerMinute,
		now:            time.Now,
	}
}

// Allow reports whether a call may proceed right now, and records it if so.
func (l *Limiter) Allow() bool {
	if l.limitPerMinute <= 0 {
		return true
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()

	// Drop timestamps outside the window, reusing the slice capacity.
	windowStart := now.Add(-windowDuration)
	valid := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	l.timestamps = valid

	if len(l.timestamps) >= l.limitPerMinute {
		return false
	}

	l.timestamps = append(l.timestamps, now)
	return true
}

// Wait blocks until a call slot frees up or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
