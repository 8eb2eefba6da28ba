// Package clock provides the monotonic tick source used to timestamp
// next-hop activity, such as the last probe sent and last reply
// received.
package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// Tick is a monotonic timestamp expressed in nanoseconds since an
// unspecified epoch. Only differences between Ticks are meaningful.
type Tick uint64

// TicksPerSecond is the number of Tick units in one second.
const TicksPerSecond = uint64(time.Second)

// Sub returns the duration elapsed from earlier to m. If earlier is zero
// (never set), or m precedes earlier, Sub returns 0.
func (m Tick) Sub(earlier Tick) time.Duration {
	if earlier == 0 || m < earlier {
		return 0
	}
	return time.Duration(m - earlier)
}

// Clock is a monotonic clock source.
//
// It is an interface so tests can substitute a deterministic fake instead
// of depending on wall-clock time.
type Clock interface {
	Now() Tick
}

// Monotonic is a Clock backed by CLOCK_MONOTONIC.
type Monotonic struct{}

// Now returns the current monotonic tick.
func (Monotonic) Now() Tick {
	var ts unix.Timespec
	// CLOCK_MONOTONIC never jumps on wall-clock adjustments.
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// Only possible if the kernel does not support the clock at all;
		// degrade to the Go runtime's own monotonic reading rather than
		// panicking on the hot path.
		return Tick(time.Since(fallbackBase))
	}
	return Tick(ts.Nano())
}

// fallbackBase anchors the fallback path in Monotonic.Now; time.Since on
// a value from time.Now uses the runtime's monotonic reading.
var fallbackBase = time.Now()

// Fake is a controllable Clock for tests.
type Fake struct {
	now Tick
}

// NewFake returns a Fake clock starting at the given tick.
func NewFake(start Tick) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake tick.
func (m *Fake) Now() Tick {
	return m.now
}

// Advance moves the fake clock forward by d and returns the new tick.
func (m *Fake) Advance(d time.Duration) Tick {
	m.now += Tick(d)
	return m.now
}

// Set pins the fake clock to an absolute tick.
func (m *Fake) Set(t Tick) {
	m.now = t
}
