package bench

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Routine is a process-local summation routine.
type Routine func(x []float64) float64

// SumLoop adds the elements of x in order.
//
//go:noinline
func SumLoop(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum
}

var routines = map[string]Routine{
	"loop":  SumLoop,
	"gonum": floats.Sum,
}

// Routines lists the routine names accepted by LookupRoutine.
func Routines() []string {
	names := make([]string, 0, len(routines))
	for name := range routines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupRoutine resolves a routine by name. The call target is therefore only known
// at run time and the compiler cannot inline it into the timing loop.
func LookupRoutine(name string) (Routine, error) {
	r, ok := routines[name]
	if !ok {
		return nil, fmt.Errorf("unknown native routine %q (available: %v)", name, Routines())
	}
	return r, nil
}

type nativeBackend struct {
	routine Routine
}

// NewNative returns a backend that calls routine through a function value.
func NewNative(routine Routine) Backend {
	return &nativeBackend{routine: routine}
}

func (b *nativeBackend) Name() Kind { return KindNative }

func (b *nativeBackend) Bind(x []float64) (Call, error) {
	return &nativeCall{routine: b.routine, x: x}, nil
}

func (b *nativeBackend) Close() error { return nil }

type nativeCall struct {
	routine Routine
	x       []float64
}

func (c *nativeCall) Execute() (float64, error) {
	return c.routine(c.x), nil
}

func (c *nativeCall) Release() error {
	c.x = nil
	return nil
}
