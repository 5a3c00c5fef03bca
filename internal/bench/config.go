package bench

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/dispatchbench/internal/device"
)

// Default size sequence: 42, 63, 94, ... while below one million.
const (
	DefaultStart = 42
	DefaultLimit = 1_000_000
)

// Config holds everything needed to build a backend and run the size sweep.
type Config struct {
	Backend string
	Outer   int
	Inner   int
	Start   int
	Limit   int

	// native
	Routine string

	// interp
	Engine string
	Script string
	Func   string

	// device
	DeviceAPI    string
	KernelSource string // path to a program file; empty uses the built-in kernel
}

// DefaultConfig returns the configuration of a plain native run.
func DefaultConfig() Config {
	return Config{
		Backend:   string(KindNative),
		Outer:     DefaultOuter,
		Inner:     DefaultInner,
		Start:     DefaultStart,
		Limit:     DefaultLimit,
		Routine:   "loop",
		Engine:    string(EngineLua),
		DeviceAPI: DeviceAPIOpenCL,
	}
}

// Validate rejects configurations that cannot produce a measurement.
func (c Config) Validate() error {
	var errs []error
	if c.Outer <= 0 || c.Inner <= 0 {
		errs = append(errs, fmt.Errorf("%w: outer=%d inner=%d", ErrInvalidIterations, c.Outer, c.Inner))
	}
	if c.Start < 1 {
		errs = append(errs, fmt.Errorf("start size must be at least 1, got %d", c.Start))
	}
	if c.Limit <= c.Start {
		errs = append(errs, fmt.Errorf("size limit %d must exceed start size %d", c.Limit, c.Start))
	}

	switch NormalizeBackend(c.Backend) {
	case KindNative:
		if _, err := LookupRoutine(c.Routine); err != nil {
			errs = append(errs, err)
		}
	case KindInterp:
		if _, err := NormalizeEngine(c.Engine); err != nil {
			errs = append(errs, err)
		}
	case KindDevice:
		switch c.DeviceAPI {
		case "", DeviceAPIOpenCL, DeviceAPIHost:
		default:
			errs = append(errs, fmt.Errorf("unknown device API %q", c.DeviceAPI))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend))
	}
	return errors.Join(errs...)
}

// Runner returns a runner with the configured iteration structure.
func (c Config) Runner() *Runner {
	return &Runner{Outer: c.Outer, Inner: c.Inner}
}

// Sizes returns the configured size sequence.
func (c Config) Sizes() []int {
	return Sizes(c.Start, c.Limit)
}

// NewBackend builds the configured backend. chooser is only consulted by the device
// backend when several platforms or devices exist.
func NewBackend(c Config, chooser device.Chooser) (Backend, error) {
	switch NormalizeBackend(c.Backend) {
	case KindNative:
		routine, err := LookupRoutine(c.Routine)
		if err != nil {
			return nil, err
		}
		return NewNative(routine), nil

	case KindInterp:
		engine, err := NormalizeEngine(c.Engine)
		if err != nil {
			return nil, err
		}
		return NewInterpreter(engine, c.Script, c.Func)

	case KindDevice:
		api, err := OpenDeviceAPI(c.DeviceAPI)
		if err != nil {
			return nil, err
		}
		opts := device.Options{Chooser: chooser}
		if c.KernelSource != "" {
			src, err := os.ReadFile(c.KernelSource)
			if err != nil {
				return nil, fmt.Errorf("read kernel source: %w", err)
			}
			opts.Source = string(src)
		}
		return NewDevice(api, opts)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend)
	}
}
