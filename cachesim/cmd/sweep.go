package cmd

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
)

type sweepResult struct {
	Settings Settings
	Geometry cache.Geometry
	Stats    cache.Stats

	// Err is set if the configuration is invalid.
	Err error
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay one trace against several cache configurations.",
	Long: "`sweep -t <trace> --sizes 8,16,32 --ways 1,2,4` replays the trace " +
		"against every combination concurrently and prints a table.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		base, err := resolveSettings(cmd)
		exitOnErr(err)

		sizes, _ := cmd.Flags().GetUintSlice("sizes")
		ways, _ := cmd.Flags().GetUintSlice("ways")
		tracePath, _ := cmd.Flags().GetString("trace")
		lenient, _ := cmd.Flags().GetBool("lenient")
		jobs, _ := cmd.Flags().GetInt("jobs")

		configs := sweepSettings(base, toUint64s(sizes), toUint64s(ways))

		results, err := sweep(configs, tracePath, lenient, jobs)
		exitOnErr(err)

		exitOnErr(writeSweepTable(cmd.OutOrStdout(), results))
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	addCacheFlags(sweepCmd)
	sweepCmd.Flags().UintSlice("sizes", nil, "Cache sizes in KB")
	sweepCmd.Flags().UintSlice("ways", nil, "Associativities")
	sweepCmd.Flags().Int("jobs", runtime.NumCPU(),
		"Number of configurations replayed at the same time")
	sweepCmd.MarkFlagsMutuallyExclusive("lru", "policy")
}

func toUint64s(values []uint) []uint64 {
	out := make([]uint64, len(values))
	for i, v := range values {
		out[i] = uint64(v)
	}

	return out
}

// sweepSettings combines sizes and ways into settings ordered by size, then
// by ways. An empty list keeps the base value.
func sweepSettings(base Settings, sizes, ways []uint64) []Settings {
	if len(sizes) == 0 {
		sizes = []uint64{base.SizeKB}
	}

	if len(ways) == 0 {
		ways = []uint64{base.Ways}
	}

	sizes = sortedUnique(sizes)
	ways = sortedUnique(ways)

	settings := make([]Settings, 0, len(sizes)*len(ways))
	for _, size := range sizes {
		for _, w := range ways {
			s := base
			s.SizeKB = size
			s.Ways = w
			settings = append(settings, s)
		}
	}

	return settings
}

func sortedUnique(values []uint64) []uint64 {
	out := append([]uint64(nil), values...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}

	return out[:n]
}

// sweep replays the trace once per setting, each on its own simulator and its
// own reader. Results keep the order of the settings.
func sweep(
	settings []Settings,
	tracePath string,
	lenient bool,
	jobs int,
) ([]sweepResult, error) {
	results := make([]sweepResult, len(settings))

	g := new(errgroup.Group)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, s := range settings {
		results[i].Settings = s

		config, err := s.CacheConfig()
		if err != nil {
			results[i].Err = err
			continue
		}

		name := fmt.Sprintf("%dKB-%dway", s.SizeKB, s.Ways)

		sim, err := cache.MakeBuilder().WithConfig(config).Build(name)
		if err != nil {
			results[i].Err = err
			continue
		}

		results[i].Geometry = sim.Geometry()
		result := &results[i]

		g.Go(func() error {
			reader, err := trace.Open(tracePath)
			if err != nil {
				return err
			}
			defer reader.Close()

			reader.WithFixedWidth(!lenient)

			stats, err := sim.Run(reader, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			result.Stats = stats

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func writeSweepTable(w io.Writer, results []sweepResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "Size(KB)\tWays\tSets\tLine\tPolicy\tAccesses\tHits\t"+
		"Compulsory\tConflict\tCapacity\tMiss Rate(%)\tReads\tWrites\t")

	for _, r := range results {
		s := r.Settings
		if r.Err != nil {
			fmt.Fprintf(tw, "%d\t%d\t-\t%d\t%s\t%v\t\t\t\t\t\t\t\t\n",
				s.SizeKB, s.Ways, s.LineSize, s.Policy, r.Err)
			continue
		}

		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%.4f\t%d\t%d\t\n",
			s.SizeKB, s.Ways, r.Geometry.NumSets, s.LineSize, s.Policy,
			r.Stats.Accesses, r.Stats.Hits,
			r.Stats.CompulsoryMisses, r.Stats.ConflictMisses,
			r.Stats.CapacityMisses, r.Stats.MissRate(),
			r.Stats.ReadTransactions, r.Stats.WriteTransactions)
	}

	return tw.Flush()
}
