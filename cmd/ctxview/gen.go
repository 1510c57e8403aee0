package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ctxview/internal/demo"
)

var (
	genThreads  int
	genRequests int
	genSeed     uint64
	genZstd     bool
)

var genCmd = &cobra.Command{
	Use:   "gen [flags] <out.ctxr>",
	Short: "Write a synthetic demo recording",
	Long: `gen writes requests handled by worker threads: demo.Trace spans enclosing
demo.Span spans enclosing demo.WorkEvent events, plus idle work and
thread-less demo.GarbageCollection events.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[0]
		if genZstd && !strings.HasSuffix(out, ".zst") {
			out += ".zst"
		}
		n, err := demo.Write(out, demo.Options{
			Threads:  genThreads,
			Requests: genRequests,
			Seed:     genSeed,
		})
		if err != nil {
			return err
		}
		quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
		if err != nil {
			return fmt.Errorf("failed to get quiet flag: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", n, out)
		}
		return nil
	},
}

func init() {
	genCmd.Flags().IntVar(&genThreads, "threads", 4, "worker threads")
	genCmd.Flags().IntVar(&genRequests, "requests", 8, "requests per thread")
	genCmd.Flags().Uint64Var(&genSeed, "seed", 1, "random seed")
	genCmd.Flags().BoolVar(&genZstd, "zstd", false, "compress with zstd (appends .zst)")
}
