package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
)

type runOptions struct {
	tracePath      string
	outputPath     string
	lenient        bool
	recordPath     string
	recordAccesses bool
	monitor        bool
	monitorPort    int
	openBrowser    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a trace and classify every access.",
	Long: "`run -t <trace>` replays the trace, writes every line with its " +
		"classification to <trace>.simulated, and prints a summary.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		settings, err := resolveSettings(cmd)
		exitOnErr(err)

		config, err := settings.CacheConfig()
		exitOnErr(err)

		opts := runOptions{}
		opts.tracePath, _ = cmd.Flags().GetString("trace")
		opts.outputPath, _ = cmd.Flags().GetString("output")
		opts.lenient, _ = cmd.Flags().GetBool("lenient")
		opts.recordPath, _ = cmd.Flags().GetString("record")
		opts.recordAccesses, _ = cmd.Flags().GetBool("record-accesses")
		opts.monitor, _ = cmd.Flags().GetBool("monitor")
		opts.monitorPort, _ = cmd.Flags().GetInt("monitor-port")
		opts.openBrowser, _ = cmd.Flags().GetBool("open-browser")

		exitOnErr(runSimulation(config, opts, cmd.OutOrStdout()))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	addCacheFlags(runCmd)
	runCmd.Flags().Uint64P("size", "s", 0, "Cache size in KB (default 32)")
	runCmd.Flags().Uint64P("ways", "w", 0, "Associativity (default 1)")
	runCmd.Flags().StringP("output", "o", "",
		"Output path (default <trace>.simulated)")
	runCmd.Flags().String("record", "", "Record the run into a SQLite file")
	runCmd.Flags().Bool("record-accesses", true,
		"Record every access, not only the summary")
	runCmd.Flags().Bool("monitor", false, "Serve the monitor while running")
	runCmd.Flags().Int("monitor-port", 0, "Port of the monitor, random if 0")
	runCmd.Flags().Bool("open-browser", false, "Open the monitor in a browser")
	runCmd.MarkFlagsMutuallyExclusive("lru", "policy")
}

func runSimulation(config cache.Config, opts runOptions, stdout io.Writer) error {
	sim, err := cache.MakeBuilder().WithConfig(config).Build("Cache")
	if err != nil {
		return err
	}

	if err := trace.WriteGeometry(stdout, sim.Geometry()); err != nil {
		return err
	}

	reader, err := trace.Open(opts.tracePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.WithFixedWidth(!opts.lenient)

	outputPath := opts.outputPath
	if outputPath == "" {
		outputPath = trace.OutputPath(opts.tracePath)
	}

	writer, err := trace.Create(outputPath)
	if err != nil {
		return err
	}

	if opts.recordPath != "" {
		recorder, err := datarecording.New(opts.recordPath)
		if err != nil {
			writer.Close()
			return err
		}
		defer recorder.Close()

		tracer := trace.NewDBTracer(recorder).RecordAccesses(opts.recordAccesses)
		sim.AcceptHook(tracer)
	}

	if opts.monitor {
		m, err := startMonitor(sim, opts)
		if err != nil {
			writer.Close()
			return err
		}
		defer m.StopServer()
	}

	stats, err := sim.Run(reader, writer)
	if closeErr := writer.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("writing %s: %w", outputPath, closeErr)
	}

	if err != nil {
		return err
	}

	return trace.WriteSummary(stdout, stats)
}

func startMonitor(sim *cache.Simulator, opts runOptions) (*monitoring.Monitor, error) {
	total, err := countRecords(opts.tracePath)
	if err != nil {
		return nil, err
	}

	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	m.RegisterSimulator(sim, total)

	url, err := m.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return m, nil
}

// countRecords counts the non-blank lines of a trace.
func countRecords(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	var n uint64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}

	return n, scanner.Err()
}
