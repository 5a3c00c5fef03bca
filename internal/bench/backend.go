package bench

import (
	"errors"
	"strings"
)

// Kind identifies a dispatch backend.
type Kind string

const (
	KindNative Kind = "native"
	KindInterp Kind = "interp"
	KindDevice Kind = "device"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown dispatch backend")
	// ErrBackendUnavailable indicates the backend is not available in this build.
	ErrBackendUnavailable = errors.New("dispatch backend unavailable")
)

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native", "funcptr", "fp":
		return KindNative
	case "interp", "interpreter", "script", "lua":
		return KindInterp
	case "device", "opencl", "cl", "gpu":
		return KindDevice
	default:
		return Kind(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Kind {
	return []Kind{KindNative, KindInterp, KindDevice}
}

// Backend is one mechanism for dispatching the sum. Bind prepares a problem size and
// Close releases whatever the backend holds for the whole run.
type Backend interface {
	Name() Kind
	Bind(x []float64) (Call, error)
	Close() error
}

// Call is a bound problem size. Execute performs one timed invocation; Release frees
// the per-size state and must be called before the next Bind.
type Call interface {
	Execute() (float64, error)
	Release() error
}
