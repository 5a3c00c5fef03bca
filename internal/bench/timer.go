package bench

import "time"

// Clock returns a monotonic reading in seconds. Only differences between readings
// are meaningful.
type Clock func() float64

var (
	epoch        = time.Now()
	defaultClock = platformClock()
)

// goMonotonicSeconds reads Go's monotonic clock, which ignores wall clock steps.
func goMonotonicSeconds() float64 {
	return time.Since(epoch).Seconds()
}

// Timer is a stopwatch with sub-microsecond resolution.
type Timer struct {
	clock Clock
	start float64
}

// NewTimer returns a timer backed by the platform's raw monotonic clock.
func NewTimer() *Timer {
	return NewTimerWithClock(defaultClock)
}

// NewTimerWithClock returns a timer reading from clock.
func NewTimerWithClock(clock Clock) *Timer {
	t := &Timer{clock: clock}
	t.Start()
	return t
}

// Start resets the reference instant.
func (t *Timer) Start() {
	t.start = t.clock()
}

// Elapsed returns the seconds since the last Start.
func (t *Timer) Elapsed() float64 {
	return t.clock() - t.start
}
