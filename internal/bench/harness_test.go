package bench

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discard struct{}

func (discard) Header() error         { return nil }
func (discard) Row(TrialResult) error { return nil }

type recordingSink struct {
	headers int
	rows    []TrialResult
	failRow error
}

func (s *recordingSink) Header() error {
	s.headers++
	return nil
}

func (s *recordingSink) Row(r TrialResult) error {
	if s.failRow != nil {
		return s.failRow
	}
	s.rows = append(s.rows, r)
	return nil
}

func TestRunStreamsEverySize(t *testing.T) {
	sink := &recordingSink{}
	sizes := Sizes(42, 1000)

	results, err := Run(NewNative(SumLoop), sizes, &Runner{Outer: 3, Inner: 3}, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.headers)
	require.Len(t, results, len(sizes))
	assert.Equal(t, results, sink.rows)
	for i, r := range results {
		assert.Equal(t, sizes[i], r.N)
		assert.GreaterOrEqual(t, r.Median, 0.0)
	}
}

type failingBackend struct {
	bindErr error
	relErr  error
}

func (b *failingBackend) Name() Kind   { return KindNative }
func (b *failingBackend) Close() error { return nil }

func (b *failingBackend) Bind(x []float64) (Call, error) {
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	return &failingCall{relErr: b.relErr}, nil
}

type failingCall struct{ relErr error }

func (c *failingCall) Execute() (float64, error) { return 0, nil }
func (c *failingCall) Release() error            { return c.relErr }

func TestMeasureReportsBindAndReleaseErrors(t *testing.T) {
	bindErr := errors.New("no memory")
	_, err := Measure(&failingBackend{bindErr: bindErr}, 42, NewRunner())
	require.ErrorIs(t, err, bindErr)
	assert.Contains(t, err.Error(), "bind native backend for N=42")

	relErr := errors.New("stuck")
	_, err = Measure(&failingBackend{relErr: relErr}, 63, NewRunner())
	require.ErrorIs(t, err, relErr)
	assert.Contains(t, err.Error(), "release native backend for N=63")
}

func TestRunStopsOnSinkError(t *testing.T) {
	boom := errors.New("disk full")
	sink := &recordingSink{failRow: boom}
	results, err := Run(NewNative(SumLoop), []int{42, 63}, &Runner{Outer: 1, Inner: 1}, sink)
	require.ErrorIs(t, err, boom)
	assert.Len(t, results, 1)
}
