//go:build gpu

package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCLManager(t *testing.T, source string) (*Manager, error) {
	t.Helper()
	api, err := NewOpenCL()
	require.NoError(t, err)

	platforms, err := Enumerate(api)
	if err != nil || len(platforms) == 0 {
		t.Skipf("no OpenCL platform available: %v", err)
	}
	return Open(api, Options{Source: source})
}

func TestOpenCLSumMatchesClosedForm(t *testing.T) {
	m, err := openCLManager(t, "")
	if err != nil {
		t.Skipf("OpenCL device unavailable: %v", err)
	}
	defer m.Close()

	for _, n := range []int{42, 63, 94} {
		a, err := m.Allocate(hostArray(n))
		require.NoError(t, err)

		sum, err := a.Sum()
		require.NoError(t, err)
		assert.InDelta(t, expectedSum(n), sum, 1e-9)
		require.NoError(t, a.Release())
	}
}

func TestOpenCLBuildFailureCarriesLog(t *testing.T) {
	_, err := openCLManager(t, "__kernel void sum_buffer(__global double *x) { this is not C }")
	if errors.Is(err, ErrNoDevices) {
		t.Skip("OpenCL platform has no devices")
	}
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.NotEmpty(t, be.Log)
}
