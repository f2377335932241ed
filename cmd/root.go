package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "oocmeans",
	Short: "Out-of-core, accelerator-backed k-means clustering",
	Long: `oocmeans clusters columnar datasets too large to fit in memory using
Lloyd's algorithm, with naive/k-means++/k-means||/k-mc2/afk-mc2 seeding and an
optional OpenCL-accelerated distance engine.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr; stdout is reserved for the progress bar
		// (spec.md §6).
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
