package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-mempool/internal/logger"
)

var (
	// Global flags
	logLevel string
	logJSON  bool
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "mempool-bench",
	Short: "Validate pool profiles and exercise fixed-block pools",
	Long: `mempool-bench loads named pool profiles from YAML, validates them, and
drives pools built from them with FIFO, LIFO or random allocation workloads.
Pool statistics can be exposed as Prometheus metrics while a run is active.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Output: cmd.ErrOrStderr(),
			Level:  logger.ParseLevel(logLevel),
			JSON:   logJSON,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output results in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printJSON outputs data as indented JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
