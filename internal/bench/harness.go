package bench

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sink receives the measurements as they are produced.
type Sink interface {
	Header() error
	Row(TrialResult) error
}

// Measure binds HostArray(n) to b, times it with r and releases the per-size state
// before returning.
func Measure(b Backend, n int, r *Runner) (TrialResult, error) {
	call, err := b.Bind(HostArray(n))
	if err != nil {
		return TrialResult{}, fmt.Errorf("bind %s backend for N=%d: %w", b.Name(), n, err)
	}

	sized := *r
	sized.Logger = r.logger().With("backend", b.Name(), "n", n)

	median, err := sized.Run(call.Execute)
	if rerr := call.Release(); rerr != nil {
		err = errors.Join(err, fmt.Errorf("release %s backend for N=%d: %w", b.Name(), n, rerr))
	}
	if err != nil {
		return TrialResult{}, err
	}

	res := NewTrialResult(n, median)
	slog.Debug("Measured problem size",
		"backend", b.Name(),
		"n", n,
		"median_s", res.Median,
		"gbps", res.Bandwidth,
	)
	return res, nil
}

// Run measures every size in order and streams the results to sink. The first error
// stops the sweep; results measured so far are returned with it.
func Run(b Backend, sizes []int, r *Runner, sink Sink) ([]TrialResult, error) {
	if err := sink.Header(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	results := make([]TrialResult, 0, len(sizes))
	for _, n := range sizes {
		res, err := Measure(b, n, r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if err := sink.Row(res); err != nil {
			return results, fmt.Errorf("write result for N=%d: %w", n, err)
		}
	}
	return results, nil
}
