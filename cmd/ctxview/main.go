package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ctxview/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "ctxview",
	Short: "Correlate telemetry events with the context spans active on their thread",
	Long: `ctxview reads event recordings and reports, for every display event,
the fields of the context spans that were open on the same thread.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		stopProfiles, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		flushTrace, err := setupTracing(cmd)
		if err != nil {
			stopProfiles()
			return err
		}
		cleanup = func() {
			flushTrace()
			stopProfiles()
		}
		return nil
	},
}

// cleanup flushes the tracer and stops profilers; it runs even when a
// command fails.
var cleanup = func() {}

func init() {
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().String("config", "", "configuration file (default: nearest ctxview.toml)")
	rootCmd.PersistentFlags().Int("window", 0, "timeline window size in entries (0 = config or 1000000)")
	rootCmd.PersistentFlags().Int("jobs", 0, "recordings opened in parallel (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().String("ui", "auto", "progress UI (auto|on|off)")
	rootCmd.PersistentFlags().Bool("metrics", false, "print engine metrics in Prometheus text format to stderr")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer capacity for --trace-mode=ring|both")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")
}

// main executes the root command. A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Version
	err := rootCmd.Execute()
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
