package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/dispatchbench/internal/bench"
	"github.com/cwbudde/dispatchbench/internal/device"
	"github.com/cwbudde/dispatchbench/internal/prompt"
	"github.com/cwbudde/dispatchbench/internal/report"
)

var runCfg = bench.DefaultConfig()

var (
	platformIndex int
	deviceIndex   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatch benchmark",
	Long: `Runs the size sweep for one backend and writes "N  seconds/call  GB/s" rows
to stdout. Device discovery and selection are written as '#' comment lines.`,
	Args: cobra.NoArgs,
	RunE: runBenchmark,
}

func init() {
	d := bench.DefaultConfig()
	f := runCmd.Flags()
	f.StringVar(&runCfg.Backend, "backend", d.Backend, "Dispatch backend: "+backendNames())
	f.IntVar(&runCfg.Outer, "outer", d.Outer, "Samples per problem size")
	f.IntVar(&runCfg.Inner, "inner", d.Inner, "Calls per sample")
	f.IntVar(&runCfg.Start, "start", d.Start, "First problem size")
	f.IntVar(&runCfg.Limit, "limit", d.Limit, "Exclusive upper bound on the problem size")
	f.StringVar(&runCfg.Routine, "routine", d.Routine, "Native routine: "+strings.Join(bench.Routines(), ", "))
	f.StringVar(&runCfg.Engine, "engine", d.Engine, "Interpreter engine: lua, yaegi")
	f.StringVar(&runCfg.Script, "script", "", "Interpreter script path (default: embedded sum script)")
	f.StringVar(&runCfg.Func, "func", "", "Script function to call (default: foo for lua, Sum for yaegi)")
	f.StringVar(&runCfg.DeviceAPI, "device-api", d.DeviceAPI, "Device API: opencl, host")
	f.StringVar(&runCfg.KernelSource, "kernel-source", "", "OpenCL program file (default: built-in sum kernel)")
	f.IntVar(&platformIndex, "platform", -1, "Platform index; negative asks when several exist")
	f.IntVar(&deviceIndex, "device", -1, "Device index; negative asks when several exist")

	rootCmd.AddCommand(runCmd)
}

func backendNames() string {
	kinds := bench.SupportedBackends()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	if err := runCfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	chooser := prompt.New(cmd.InOrStdin(), out)
	chooser.Interactive = prompt.IsTerminal(cmd.InOrStdin())
	chooser.Platform = platformIndex
	chooser.Device = deviceIndex

	slog.Info("Starting benchmark",
		"backend", bench.NormalizeBackend(runCfg.Backend),
		"outer", runCfg.Outer,
		"inner", runCfg.Inner,
		"start", runCfg.Start,
		"limit", runCfg.Limit,
	)

	b, err := bench.NewBackend(runCfg, chooser)
	if err != nil {
		var be *device.BuildError
		if errors.As(err, &be) {
			printBuildFailure(cmd.ErrOrStderr(), be)
		}
		return fmt.Errorf("failed to initialise %s backend: %w", bench.NormalizeBackend(runCfg.Backend), err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			slog.Error("Failed to release backend", "error", cerr)
		}
	}()

	if m, ok := bench.DeviceManager(b); ok {
		slog.Info("Using device",
			"platform", m.Platform.Name,
			"vendor", m.Platform.Vendor,
			"device", m.Device.Name,
			"type", m.Device.Type,
		)
	}

	sizes := runCfg.Sizes()
	results, err := bench.Run(b, sizes, runCfg.Runner(), report.NewText(out))
	if err != nil {
		return err
	}

	slog.Info("Benchmark complete", "sizes", len(results))
	return nil
}

// printBuildFailure writes the diagnostics an operator needs to fix a kernel.
func printBuildFailure(w io.Writer, be *device.BuildError) {
	fmt.Fprintf(w, "Error code: %s (%d)\n", be.Code, int32(be.Code))
	fmt.Fprintf(w, "Build status: %s\n", be.BuildStatus)
	fmt.Fprintf(w, "Build log:\n%s\n", strings.TrimRight(be.Log, "\n"))
	fmt.Fprintf(w, "Program source:\n%s\n", strings.TrimRight(be.Source, "\n"))
}
