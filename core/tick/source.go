// Package tick provides the monotonic counters that drive reward emission.
package tick

import (
	"sync"
	"sync/atomic"
	"time"
)

// Source reports the current tick. Implementations must never return a value
// lower than one they already returned.
type Source interface {
	Current() uint64
}

// Func adapts a plain function into a Source.
type Func func() uint64

// Current implements Source.
func (f Func) Current() uint64 { return f() }

// Clock derives ticks from wall-clock unix seconds.
type Clock struct {
	nowFn func() time.Time
}

// NewClock returns a wall-clock source. A nil now function uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{nowFn: now}
}

// Current implements Source.
func (c *Clock) Current() uint64 {
	ts := c.nowFn().UTC().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Counter is a block-height style source advanced explicitly by its owner.
type Counter struct {
	value atomic.Uint64
}

// NewCounter returns a counter starting at start.
func NewCounter(start uint64) *Counter {
	c := &Counter{}
	c.value.Store(start)
	return c
}

// Current implements Source.
func (c *Counter) Current() uint64 { return c.value.Load() }

// Advance moves the counter forward by n and returns the new value.
func (c *Counter) Advance(n uint64) uint64 { return c.value.Add(n) }

// Set moves the counter to target. Attempts to move backwards are ignored and
// report false.
func (c *Counter) Set(target uint64) bool {
	for {
		current := c.value.Load()
		if target < current {
			return false
		}
		if c.value.CompareAndSwap(current, target) {
			return true
		}
	}
}

// Monotonic wraps a source that may step backwards (wall clocks adjusted by
// NTP) and pins reads to the highest value observed so far.
type Monotonic struct {
	mu    sync.Mutex
	inner Source
	last  uint64
}

// NewMonotonic wraps inner. floor seeds the lowest value that may be returned,
// typically the last tick persisted before a restart.
func NewMonotonic(inner Source, floor uint64) *Monotonic {
	return &Monotonic{inner: inner, last: floor}
}

// Current implements Source.
func (m *Monotonic) Current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inner == nil {
		return m.last
	}
	if next := m.inner.Current(); next > m.last {
		m.last = next
	}
	return m.last
}
