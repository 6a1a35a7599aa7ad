package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/kalloc/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logDir  string
	logOn   bool

	out     io.Writer = os.Stdout
	printer           = message.NewPrinter(language.English)
)

func newRootCmd() *cobra.Command {
	verbose, quiet, jsonOut, logDir, logOn = false, false, false, "", false

	root := &cobra.Command{
		Use:   "kallocctl",
		Short: "Drive and inspect the kalloc boot and heap allocators",
		Long: `kallocctl runs the kalloc allocators against a simulated or host-mapped
region: the double-ended early allocator, and the composite heap allocator under
the vector-cycle workload it is tuned for.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out = cmd.OutOrStdout()
			opts := logger.Options{Enabled: logOn || verbose, LogDir: logDir}
			if verbose {
				opts.Level = slog.LevelDebug
				if logDir == "" {
					opts.Writer = cmd.ErrOrStderr()
				}
			}
			return logger.Init(opts)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&logOn, "log", false, "Write structured logs to --log-dir")
	root.PersistentFlags().StringVar(&logDir, "log-dir", "", "Log directory (default ~/.kalloc/logs)")

	root.AddCommand(
		newSimulateCmd(),
		newEarlyCmd(),
		newLayoutCmd(),
		newVersionCmd(),
	)
	return root
}

func execute() {
	err := newRootCmd().Execute()
	_ = logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		printer.Fprintf(out, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		printer.Fprintf(out, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
