package main

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dispatchbench",
	Short: "Measure per-call dispatch overhead of native, interpreted and device backends",
	Long: `dispatchbench sums an array of doubles through a native function pointer, an
embedded interpreter or an OpenCL kernel for growing problem sizes and reports
the median time per call and the effective bandwidth.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd.ErrOrStderr(), logLevel)
	},
}

// setupLogger installs a JSON logger on w. Stdout is reserved for the report.
func setupLogger(w io.Writer, level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	handler := slog.NewJSONHandler(w, opts)
	logger = slog.New(handler).With("run", uuid.NewString())
	slog.SetDefault(logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
