//go:build linux

package bench

import "golang.org/x/sys/unix"

// platformClock prefers CLOCK_MONOTONIC_RAW, which NTP does not slew. The probe runs
// once so a timer never mixes readings from two clock domains.
func platformClock() Clock {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return goMonotonicSeconds
	}
	return rawMonotonicSeconds
}

func rawMonotonicSeconds() float64 {
	var ts unix.Timespec
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts)
	return float64(ts.Sec) + float64(ts.Nsec)*1e-9
}
