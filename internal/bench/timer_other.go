//go:build !linux

package bench

func platformClock() Clock {
	return goMonotonicSeconds
}
