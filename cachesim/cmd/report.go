package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
)

var reportCmd = &cobra.Command{
	Use:   "report <recording>",
	Short: "Print the runs stored in a recording.",
	Long: "`report <recording>` prints the classification counts of every " +
		"run. With --run, it also lists the recorded accesses of that run.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runID, _ := cmd.Flags().GetString("run")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		rec, err := trace.OpenRecording(args[0])
		exitOnErr(err)
		defer rec.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		out := cmd.OutOrStdout()
		exitOnErr(writeRunReport(ctx, out, rec))

		if runID != "" {
			exitOnErr(writeAccessReport(ctx, out, rec, runID, offset, limit))
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("run", "", "List the accesses of this run")
	reportCmd.Flags().Int("offset", 0, "Number of accesses to skip")
	reportCmd.Flags().Int("limit", 20, "Number of accesses to list, 0 for all")
}

func writeRunReport(ctx context.Context, w io.Writer, rec *trace.Recording) error {
	runs, err := rec.Runs(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Run\tSimulator\tSize\tWays\tSets\tLine\tPolicy\t"+
		"Accesses\tHits\tCompulsory\tConflict\tCapacity\tMiss Rate(%)\t"+
		"Reads\tWrites")

	for _, r := range runs {
		fmt.Fprintf(tw,
			"%s\t%s\t%dKB\t%d\t%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%.4f\t%d\t%d\n",
			r.RunID, r.Simulator, r.ByteSize/1024, r.Ways, r.Sets, r.LineSize,
			r.Policy, r.Accesses, r.Hits, r.CompulsoryMisses, r.ConflictMisses,
			r.CapacityMisses, r.MissRate, r.ReadTransactions,
			r.WriteTransactions)
	}

	return tw.Flush()
}

func writeAccessReport(
	ctx context.Context,
	w io.Writer,
	rec *trace.Recording,
	runID string,
	offset, limit int,
) error {
	accesses, total, err := rec.Accesses(ctx, runID, offset, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nRun %s: %d recorded accesses", runID, total)
	for _, c := range cache.Classifications {
		n, err := rec.CountClassification(ctx, runID, c)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, ", %d %s", n, c)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Seq\tKind\tAddress\tSet\tWay\tClassification\tEvicted\tWriteback")

	for _, a := range accesses {
		evicted := "-"
		if a.Evicted {
			evicted = fmt.Sprintf("block 0x%x", a.EvictedBlock)
		}

		fmt.Fprintf(tw, "%d\t%s\t0x%08x\t%d\t%d\t%s\t%s\t%t\n",
			a.Seq, a.Kind, a.Address, a.SetID, a.WayID, a.Classification,
			evicted, a.Writeback)
	}

	return tw.Flush()
}
