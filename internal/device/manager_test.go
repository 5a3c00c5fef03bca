package device

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostArray(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func expectedSum(n int) float64 {
	return float64(n) * float64(n-1) / 2
}

func openHost(t *testing.T, api *HostAPI, opts Options) *Manager {
	t.Helper()
	m, err := Open(api, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerSumsCanonicalInput(t *testing.T) {
	api := NewHostAPI()
	m := openHost(t, api, Options{})
	require.Equal(t, StateKernelReady, m.State())

	for _, n := range []int{1, 42, 63, 1000, 100000} {
		a, err := m.Allocate(hostArray(n))
		require.NoError(t, err)
		assert.Equal(t, StateBufferAllocated, m.State())
		assert.Equal(t, n, a.Len())

		sum, err := a.Sum()
		require.NoError(t, err)
		assert.Equal(t, expectedSum(n), sum, "n=%d", n)
		assert.Equal(t, StateBufferAllocated, m.State())

		require.NoError(t, a.Release())
		assert.Equal(t, StateKernelReady, m.State())
	}
}

func TestManagerBufferLifecycleAcrossSizes(t *testing.T) {
	api := NewHostAPI()
	m := openHost(t, api, Options{})

	first, err := m.Allocate(hostArray(42))
	require.NoError(t, err)

	_, err = m.Allocate(hostArray(63))
	require.ErrorIs(t, err, ErrAllocationLive)

	_, err = first.Sum()
	require.NoError(t, err)
	require.NoError(t, first.Release())
	require.NoError(t, first.Release(), "release is idempotent")
	assert.Equal(t, 0, api.LiveBuffers())

	second, err := m.Allocate(hostArray(63))
	require.NoError(t, err)
	sum, err := second.Sum()
	require.NoError(t, err)
	assert.Equal(t, expectedSum(63), sum)
	require.NoError(t, second.Release())

	assert.Equal(t, 2, api.PeakBuffers(), "one input and one output buffer at most")

	var bufferOps []string
	for _, op := range api.Calls() {
		if op == "clCreateBuffer" || op == "clReleaseMemObject" {
			bufferOps = append(bufferOps, op)
		}
	}
	assert.Equal(t, []string{
		"clCreateBuffer", "clCreateBuffer",
		"clReleaseMemObject", "clReleaseMemObject",
		"clCreateBuffer", "clCreateBuffer",
		"clReleaseMemObject", "clReleaseMemObject",
	}, bufferOps)
}

func TestManagerSumAfterReleaseFails(t *testing.T) {
	m := openHost(t, NewHostAPI(), Options{})

	a, err := m.Allocate(hostArray(10))
	require.NoError(t, err)
	require.NoError(t, a.Release())

	_, err = a.Sum()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManagerDispatchSequence(t *testing.T) {
	api := NewHostAPI()
	m := openHost(t, api, Options{})

	a, err := m.Allocate(hostArray(5))
	require.NoError(t, err)
	before := len(api.Calls())

	_, err = a.Sum()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"clSetKernelArg", "clSetKernelArg", "clSetKernelArg",
		"clEnqueueTask", "clEnqueueReadBuffer",
	}, api.Calls()[before:])
	assert.Equal(t, 1, api.Enqueued())
}

func TestManagerBuildFailureIsFatal(t *testing.T) {
	api := NewHostAPI()
	broken := "__kernel void sum_buffer(__global const double *x {\n  *x = 0;\n"

	m, err := Open(api, Options{Source: broken})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrBuildFailed)

	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, StatusBuildProgramFailure, be.Code)
	assert.Equal(t, BuildStatusError, be.BuildStatus)
	assert.Contains(t, be.Log, "unbalanced")
	assert.Equal(t, broken, be.Source)
	assert.Contains(t, err.Error(), "CL_BUILD_PROGRAM_FAILURE (-11)")

	assert.Zero(t, api.Enqueued())
	assert.NotContains(t, api.Calls(), "clCreateKernelsInProgram")
	assert.Zero(t, api.LiveObjects(), "partial resources are released")
}

func TestManagerUnknownKernelFailsBuild(t *testing.T) {
	api := NewHostAPI()
	src := "__kernel void mystery(__global double *x) { *x = 1; }"

	_, err := Open(api, Options{Source: src})
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Log, "<source>:1: error: no host implementation for kernel 'mystery'")
}

func TestManagerRequiresExactlyOneKernel(t *testing.T) {
	api := NewHostAPI()
	api.RegisterKernel("other", SumKernel)
	src := SumKernelSource + "\n__kernel void other(__global const double *x, __global double *s, unsigned int n) { *s = 0; }\n"

	_, err := Open(api, Options{Source: src})
	require.ErrorIs(t, err, ErrKernelCount)
	assert.Zero(t, api.LiveObjects())
}

func TestManagerWrongKernelYieldsNegativeSum(t *testing.T) {
	api := NewHostAPI()
	api.RegisterKernel("negated_sum", func(x []float64, size uint32) float64 {
		return -SumKernel(x, size)
	})
	src := "__kernel void negated_sum(__global const double *x, __global double *sum, unsigned int size) { }"

	m := openHost(t, api, Options{Source: src})
	a, err := m.Allocate(hostArray(42))
	require.NoError(t, err)
	defer a.Release()

	sum, err := a.Sum()
	require.NoError(t, err)
	assert.Equal(t, -expectedSum(42), sum)
}

func TestManagerCloseOrder(t *testing.T) {
	api := NewHostAPI()
	m, err := Open(api, Options{})
	require.NoError(t, err)

	_, err = m.Allocate(hostArray(8))
	require.NoError(t, err)

	before := len(api.Calls())
	require.NoError(t, m.Close())
	assert.Equal(t, StateReleased, m.State())
	assert.Equal(t, []string{
		"clReleaseMemObject", "clReleaseMemObject",
		"clReleaseKernel", "clReleaseProgram", "clReleaseCommandQueue", "clReleaseContext",
	}, api.Calls()[before:])
	assert.Zero(t, api.LiveObjects())

	calls := len(api.Calls())
	require.NoError(t, m.Close())
	assert.Len(t, api.Calls(), calls, "second Close must not touch the API")

	_, err = m.Allocate(hostArray(8))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManagerSelectionIsClamped(t *testing.T) {
	platforms := []HostPlatform{
		{
			Info:    PlatformInfo{Name: "A", Vendor: "Vendor A", Version: "OpenCL 1.2"},
			Devices: []DeviceInfo{{Name: "a0"}},
		},
		{
			Info:    PlatformInfo{Name: "B", Vendor: "Vendor B", Version: "OpenCL 3.0"},
			Devices: []DeviceInfo{{Name: "b0"}, {Name: "b1"}},
		},
	}

	tests := []struct {
		name     string
		platform int
		device   int
		want     string
	}{
		{"in range", 1, 0, "b0"},
		{"too large", 7, 9, "b1"},
		{"negative", -3, -1, "a0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewHostAPIWithPlatforms(platforms)
			var asked []string
			chooser := ChooserFunc(func(kind string, options []string) (int, error) {
				asked = append(asked, kind)
				if kind == KindPlatform {
					assert.Equal(t, []string{"Vendor A: OpenCL 1.2", "Vendor B: OpenCL 3.0"}, options)
					return tt.platform, nil
				}
				return tt.device, nil
			})

			m := openHost(t, api, Options{Chooser: chooser})
			assert.Equal(t, tt.want, m.Device.Name)
			assert.Equal(t, []string{KindPlatform, KindDevice}, asked)
		})
	}
}

func TestManagerChooserErrorIsFatal(t *testing.T) {
	api := NewHostAPI()
	boom := errors.New("stdin closed")
	_, err := Open(api, Options{Chooser: ChooserFunc(func(string, []string) (int, error) {
		return 0, boom
	})})
	assert.ErrorIs(t, err, boom)
}

func TestManagerAPIFailureReportsOperation(t *testing.T) {
	ops := []string{
		"clGetPlatformIDs",
		"clGetDeviceIDs",
		"clCreateContext",
		"clCreateCommandQueue",
		"clCreateProgramWithSource",
		"clCreateKernelsInProgram",
	}

	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			api := NewHostAPI()
			api.FailOn(op, StatusOutOfResources)

			_, err := Open(api, Options{})
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, op, se.Op)
			assert.Equal(t, StatusOutOfResources, se.Code)
			assert.EqualError(t, se, op+": CL_OUT_OF_RESOURCES (-5)")
			assert.Zero(t, api.LiveObjects())
		})
	}
}

func TestManagerDispatchFailure(t *testing.T) {
	api := NewHostAPI()
	m := openHost(t, api, Options{})
	a, err := m.Allocate(hostArray(16))
	require.NoError(t, err)
	defer a.Release()

	api.FailOn("clEnqueueTask", StatusInvalidKernelArgs)
	_, err = a.Sum()
	assert.Equal(t, StatusInvalidKernelArgs, StatusOf(err))
	assert.Equal(t, StateBufferAllocated, m.State())
}

func TestManagerOutputBufferFailureReleasesInput(t *testing.T) {
	api := NewHostAPI()
	m := openHost(t, api, Options{})

	api.FailAfter("clCreateBuffer", 1, StatusMemObjectAllocationFailed)
	_, err := m.Allocate(hostArray(4))
	assert.Equal(t, StatusMemObjectAllocationFailed, StatusOf(err))
	assert.Zero(t, api.LiveBuffers(), "input buffer released when the output allocation fails")
	assert.Equal(t, StateKernelReady, m.State())
}

func TestManagerNoPlatformsOrDevices(t *testing.T) {
	_, err := Open(NewHostAPIWithPlatforms(nil), Options{})
	assert.ErrorIs(t, err, ErrNoPlatforms)

	api := NewHostAPIWithPlatforms([]HostPlatform{{Info: PlatformInfo{Name: "empty"}}})
	_, err = Open(api, Options{})
	assert.ErrorIs(t, err, ErrNoDevices)
}

func TestManagerEmptyHostArray(t *testing.T) {
	m := openHost(t, NewHostAPI(), Options{})
	_, err := m.Allocate(nil)
	assert.Error(t, err)
}

func TestClampIndex(t *testing.T) {
	tests := []struct {
		index, n, want int
	}{
		{0, 1, 0},
		{3, 5, 3},
		{5, 5, 4},
		{42, 2, 1},
		{-1, 3, 0},
		{2, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampIndex(tt.index, tt.n), "ClampIndex(%d, %d)", tt.index, tt.n)
	}
}

func TestEnumerate(t *testing.T) {
	api := NewHostAPIWithPlatforms([]HostPlatform{
		{Info: PlatformInfo{Name: "A"}, Devices: []DeviceInfo{{Name: "a0"}, {Name: "a1"}}},
		{Info: PlatformInfo{Name: "B"}},
	})

	platforms, err := Enumerate(api)
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	assert.Equal(t, 1, platforms[1].Index)
	assert.Empty(t, platforms[1].Devices)
	require.Len(t, platforms[0].Devices, 2)
	assert.Equal(t, "a1", platforms[0].Devices[1].Name)
	assert.Equal(t, 1, platforms[0].Devices[1].Index)
	assert.False(t, slices.Contains(api.Calls(), "clCreateContext"))
}
