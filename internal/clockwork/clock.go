// Package clockwork supplies the engine's time source: a monotonic clock for
// backoffs/cooldowns and a wall clock for logs and price-sample timestamps.
// It thinly wraps github.com/jonboulle/clockwork so every component depends
// on this package's Clock interface rather than the runtime scheduler
// directly, letting tests drive a FakeClock instead of real time.Sleep.
package clockwork

import (
	"time"

	upstream "github.com/jonboulle/clockwork"
)

// Ticker is the periodic tick source returned by Clock.NewTicker.
type Ticker = upstream.Ticker

// Clock is the time source every component reads from instead of calling
// time.Now directly. NowMonotonic and NowWall both resolve to the
// underlying Now(): Go's time.Time already carries a monotonic reading
// alongside its wall-clock one, so a single upstream call serves both: the
// two names let call sites state which property they actually depend on,
// matching spec's split between monotonic backoff timing and wall-clock
// logging/timestamps.
type Clock interface {
	upstream.Clock
	NowMonotonic() time.Time
	NowWall() time.Time
}

// realClock adapts upstream.Clock to satisfy Clock.
type realClock struct {
	upstream.Clock
}

func (c realClock) NowMonotonic() time.Time { return c.Now() }
func (c realClock) NowWall() time.Time      { return c.Now() }

// NewRealClock returns the production Clock backed by the runtime scheduler.
func NewRealClock() Clock {
	return realClock{upstream.NewRealClock()}
}

// FakeClock is a manually-advanced Clock for deterministic tests.
type FakeClock interface {
	Clock
	Advance(d time.Duration)
	BlockUntil(waiters int)
}

// fakeClock adapts upstream.FakeClock to satisfy FakeClock.
type fakeClock struct {
	upstream.FakeClock
}

func (f fakeClock) NowMonotonic() time.Time { return f.Now() }
func (f fakeClock) NowWall() time.Time      { return f.Now() }

// Sleep advances the fake clock by d and returns immediately, rather than
// blocking the calling goroutine until some other goroutine calls Advance
// (upstream's FakeClock.Sleep semantics). Every probe/backoff/settle delay
// in this engine runs synchronously within the same goroutine that owns the
// test's FakeClock, so a blocking Sleep would deadlock; overriding it here
// keeps single-goroutine tests deterministic without a second goroutine
// dedicated to driving the clock forward.
func (f fakeClock) Sleep(d time.Duration) {
	f.Advance(d)
}

// After advances the fake clock by d and returns an already-fired channel,
// for the same reason Sleep is overridden: retry/backoff/rate-limit code
// selects on After(d) from the same goroutine the test drives, with nothing
// else to call Advance from the outside.
func (f fakeClock) After(d time.Duration) <-chan time.Time {
	f.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- f.Now()
	return ch
}

// NewFakeClock creates a FakeClock starting at the given instant.
func NewFakeClock(start time.Time) FakeClock {
	return fakeClock{upstream.NewFakeClockAt(start)}
}
