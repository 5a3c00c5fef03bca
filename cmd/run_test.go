package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/dispatchbench/internal/bench"
	"github.com/cwbudde/dispatchbench/internal/device"
	"github.com/cwbudde/dispatchbench/internal/report"
)

// execute runs the root command with fresh flag state and captured streams.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	runCfg = bench.DefaultConfig()
	platformIndex, deviceIndex = -1, -1
	devicesAPI = bench.DeviceAPIOpenCL
	logLevel = "info"

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func dataRows(t *testing.T, out string) []string {
	t.Helper()
	var rows []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.HasPrefix(line, "#") {
			rows = append(rows, line)
		}
	}
	return rows
}

func TestRunNative(t *testing.T) {
	stdout, stderr, err := execute(t, "", "run", "--outer", "2", "--inner", "2", "--limit", "500")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, report.Header+"\n"))
	rows := dataRows(t, stdout)
	require.Len(t, rows, len(bench.Sizes(42, 500)))
	assert.True(t, strings.HasPrefix(rows[0], "42 "))
	assert.Contains(t, stderr, `"msg":"Starting benchmark"`)
	assert.Contains(t, stderr, `"run":`)
}

func TestRunInterpreterEngines(t *testing.T) {
	for _, engine := range []string{"lua", "yaegi"} {
		t.Run(engine, func(t *testing.T) {
			stdout, stderr, err := execute(t, "", "run", "--backend", "interp", "--engine", engine,
				"--outer", "2", "--inner", "2", "--limit", "100")
			require.NoError(t, err)
			assert.Len(t, dataRows(t, stdout), len(bench.Sizes(42, 100)))
			assert.NotContains(t, stderr, "Computed sum negative")
		})
	}
}

func TestRunHostDeviceListsDiscovery(t *testing.T) {
	stdout, _, err := execute(t, "", "run", "--backend", "device", "--device-api", "host",
		"--outer", "2", "--inner", "2", "--limit", "100")
	require.NoError(t, err)

	assert.Contains(t, stdout, "# Platforms found: 1\n# (0) dispatchbench: OpenCL 1.2 host\n")
	assert.Contains(t, stdout, "# Devices found: 1\n# (0) Go host emulator\n")
	assert.NotContains(t, stdout, "Enter")
	assert.Len(t, dataRows(t, stdout), len(bench.Sizes(42, 100)))
}

func TestRunBadKernelIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cl")
	src := "__kernel void sum_buffer(__global const double *x, __global double *out, const uint n) {\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	stdout, stderr, err := execute(t, "", "run", "--backend", "device", "--device-api", "host",
		"--kernel-source", path)
	require.ErrorIs(t, err, device.ErrBuildFailed)

	assert.NotContains(t, stdout, report.Header)
	assert.Contains(t, stderr, "Error code: CL_BUILD_PROGRAM_FAILURE (-11)")
	assert.Contains(t, stderr, "Build status: CL_BUILD_ERROR")
	assert.Contains(t, stderr, "unbalanced braces")
	assert.Contains(t, stderr, "Program source:\n"+strings.TrimRight(src, "\n"))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, _, err := execute(t, "", "run", "--outer", "0")
	require.ErrorIs(t, err, bench.ErrInvalidIterations)

	_, _, err = execute(t, "", "run", "--backend", "abacus")
	require.ErrorIs(t, err, bench.ErrUnknownBackend)
}

func TestDevicesHost(t *testing.T) {
	stdout, _, err := execute(t, "", "devices", "--device-api", "host")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Platforms found: 1\n")
	assert.Contains(t, stdout, "(0) dispatchbench: OpenCL 1.2 host [Host Emulation]")
	assert.Contains(t, stdout, "(0) Go host emulator, CPU, 1 compute units")
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dispatchbench version "+version+"\n", stdout)
}

func TestRunBackendFlagListsBackends(t *testing.T) {
	usage := runCmd.Flags().Lookup("backend").Usage
	for _, k := range bench.SupportedBackends() {
		assert.Contains(t, usage, string(k))
	}
}
