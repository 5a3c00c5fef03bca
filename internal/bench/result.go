package bench

import "github.com/cwbudde/dispatchbench/internal/device"

// Sizes returns the problem sizes start, floor(3*start/2), ... that are below limit.
// Every step grows by at least one element so small starts still terminate.
func Sizes(start, limit int) []int {
	if start < 1 {
		start = 1
	}
	var sizes []int
	for n := start; n < limit; {
		sizes = append(sizes, n)
		next := 3 * n / 2
		if next <= n {
			next = n + 1
		}
		n = next
	}
	return sizes
}

// HostArray returns x with x[i] = i, the canonical input shared by every backend.
func HostArray(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

// ExpectedSum is the closed form of the sum over HostArray(n).
func ExpectedSum(n int) float64 {
	return float64(n) * float64(n-1) / 2
}

// TrialResult is the measurement for one problem size.
type TrialResult struct {
	N         int
	Median    float64 // seconds per call
	Bandwidth float64 // GB/s
}

// NewTrialResult derives the bandwidth for n float64 elements read in median seconds.
func NewTrialResult(n int, median float64) TrialResult {
	return TrialResult{
		N:         n,
		Median:    median,
		Bandwidth: Bandwidth(n, device.ElementSize, median),
	}
}

// Bandwidth returns n*elemSize/seconds in GB/s (1e9 bytes).
func Bandwidth(n, elemSize int, seconds float64) float64 {
	return float64(n*elemSize) / seconds / 1e9
}
