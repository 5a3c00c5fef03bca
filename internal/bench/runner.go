package bench

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// Default iteration structure: 10 samples of 10 calls each.
const (
	DefaultOuter = 10
	DefaultInner = 10
)

// ErrInvalidIterations is returned when Outer or Inner is not positive.
var ErrInvalidIterations = errors.New("outer and inner iteration counts must be positive")

// Runner times repeated calls of one operation and reports the median per-call time.
type Runner struct {
	Outer int
	Inner int

	// NewTimer creates the stopwatch for a run. Nil uses NewTimer.
	NewTimer func() *Timer
	// Logger receives correctness warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewRunner returns a runner with the default 10x10 iteration structure.
func NewRunner() *Runner {
	return &Runner{Outer: DefaultOuter, Inner: DefaultInner}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) timer() *Timer {
	if r.NewTimer != nil {
		return r.NewTimer()
	}
	return NewTimer()
}

// Run executes exec Outer*Inner times. Each sample is the elapsed time of Inner calls
// divided by Inner; the median of the Outer samples is returned in seconds.
//
// A negative result is logged and the run continues. An error from exec aborts the
// run immediately.
func (r *Runner) Run(exec func() (float64, error)) (float64, error) {
	if r.Outer <= 0 || r.Inner <= 0 {
		return 0, fmt.Errorf("%w: outer=%d inner=%d", ErrInvalidIterations, r.Outer, r.Inner)
	}

	timer := r.timer()
	samples := make([]float64, r.Outer)
	for i := range samples {
		timer.Start()
		for j := 0; j < r.Inner; j++ {
			sum, err := exec()
			if err != nil {
				return 0, err
			}
			if sum < 0 {
				r.logger().Warn("Computed sum negative", "sum", sum, "sample", i, "call", j)
			}
		}
		samples[i] = timer.Elapsed() / float64(r.Inner)
	}

	return Median(samples), nil
}

// Median returns the element at index len/2 of the sorted samples. For an even count
// that is the upper of the two middle values. The input is not modified.
func Median(samples []float64) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}
