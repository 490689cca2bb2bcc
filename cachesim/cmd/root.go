// Package cmd provides the command-line interface of cachesim.
package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "cachesim replays memory traces against a set-associative cache.",
	Long: `cachesim replays memory traces against a set-associative cache ` +
		`and classifies every miss as compulsory, conflict, or capacity. ` +
		`It can also sweep over cache configurations and report recordings. ` +
		`Select LRU replacement with --lru or --policy lru; a single-dash ` +
		`-lru is accepted as well.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// normalizeArgs rewrites the single-dash -lru, which would otherwise parse as
// -l ru.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == "-lru" {
			arg = "--lru"
		}

		out[i] = arg
	}

	return out
}

func exitOnErr(err error) {
	if err != nil {
		log.Print(err)
		atexit.Exit(1)
	}
}

func addCacheFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("trace", "t", "", "Path of the trace to replay")
	cmd.Flags().Uint64P("line", "l", 0, "Line size in bytes (default 32)")
	cmd.Flags().String("policy", "", "Replacement policy, fifo or lru")
	cmd.Flags().Bool("lru", false, "Use the LRU replacement policy")
	cmd.Flags().String("config", "", "YAML file with the cache configuration")
	cmd.Flags().String("env-file", ".env", "File with CACHESIM_* variables")
	cmd.Flags().Bool("lenient", false,
		"Accept addresses with fewer than 8 hex digits")

	_ = cmd.MarkFlagRequired("trace")
}
