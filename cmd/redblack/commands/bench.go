package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/bench"
	"github.com/Sumatoshi-tech/redblack/pkg/config"
	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/persist"
)

const (
	reportBasename    = "bench-report"
	readHeaderTimeout = 5 * time.Second
	plotFilePerm      = 0o644
)

type benchFlags struct {
	ops          int
	keys         int
	deleteRatio  float64
	seed         uint64
	checkEvery   int
	sampleEvery  int
	shards       int
	maxNodes     int
	plot         string
	reportDir    string
	reportFormat string
	metricsAddr  string
}

func newBenchCommand(global *globalFlags) *cobra.Command {
	flags := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the randomized insert/delete workload",
		Long: `Run a seeded random mix of inserts and deletes against the tree.

Every operation is mirrored in a multiset oracle. The tree is validated every
--check-every operations and compared with the oracle at the end. Flags override
the bench section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, global, flags)
		},
	}

	cmd.Flags().IntVar(&flags.ops, "ops", config.DefaultBenchOperations, "number of operations")
	cmd.Flags().IntVar(&flags.keys, "keys", config.DefaultBenchKeySpace, "key space size, keys are drawn from [-keys/2, keys/2)")
	cmd.Flags().Float64Var(&flags.deleteRatio, "delete-ratio", config.DefaultBenchDeleteRatio, "probability of a delete")
	cmd.Flags().Uint64Var(&flags.seed, "seed", config.DefaultBenchSeed, "random seed")
	cmd.Flags().IntVar(&flags.checkEvery, "check-every", config.DefaultBenchCheckEvery, "validate every N operations, 0 only at the end")
	cmd.Flags().IntVar(&flags.sampleEvery, "sample-every", config.DefaultBenchSampleEvery, "sample the height every N operations")
	cmd.Flags().IntVar(&flags.shards, "shards", config.DefaultTreeShards, "number of tree shards, one goroutine each")
	cmd.Flags().IntVar(&flags.maxNodes, "max-nodes", config.DefaultTreeMaxNodes, "node cap over all shards, 0 for none")
	cmd.Flags().StringVar(&flags.plot, "plot", "", "write an HTML height chart to this file")
	cmd.Flags().StringVar(&flags.reportDir, "report", "", "save the result into this directory")
	cmd.Flags().StringVar(&flags.reportFormat, "report-format", persist.FormatJSON, "report format: json or yaml")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

// mergeBenchConfig applies the changed flags over the loaded config.
func mergeBenchConfig(cmd *cobra.Command, cfg *config.Config, flags *benchFlags) (bench.Config, error) {
	changed := cmd.Flags().Changed

	if changed("ops") {
		cfg.Bench.Operations = flags.ops
	}

	if changed("keys") {
		cfg.Bench.KeySpace = flags.keys
	}

	if changed("delete-ratio") {
		cfg.Bench.DeleteRatio = flags.deleteRatio
	}

	if changed("seed") {
		cfg.Bench.Seed = flags.seed
	}

	if changed("check-every") {
		cfg.Bench.CheckEvery = flags.checkEvery
	}

	if changed("sample-every") {
		cfg.Bench.SampleEvery = flags.sampleEvery
	}

	if changed("shards") {
		cfg.Tree.Shards = flags.shards
	}

	if changed("max-nodes") {
		cfg.Tree.MaxNodes = flags.maxNodes
	}

	err := cfg.Validate()
	if err != nil {
		return bench.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return bench.Config{
		Operations:  cfg.Bench.Operations,
		KeySpace:    cfg.Bench.KeySpace,
		DeleteRatio: cfg.Bench.DeleteRatio,
		Seed:        cfg.Bench.Seed,
		CheckEvery:  cfg.Bench.CheckEvery,
		SampleEvery: cfg.Bench.SampleEvery,
		Shards:      cfg.Tree.Shards,
		MaxNodes:    cfg.Tree.MaxNodes,
	}, nil
}

func runBench(cmd *cobra.Command, global *globalFlags, flags *benchFlags) error {
	codec, err := persist.CodecFor(flags.reportFormat)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(global.configPath)
	if err != nil {
		return err
	}

	benchCfg, err := mergeBenchConfig(cmd, cfg, flags)
	if err != nil {
		return err
	}

	metricsAddr := flags.metricsAddr
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Listen
	}

	sess, err := startSession(cmd, global, cfg, observability.ModeBench, metricsAddr != "")
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if metricsAddr != "" {
		stop, serveErr := serveMetrics(ctx, sess, metricsAddr)
		if serveErr != nil {
			return serveErr
		}
		defer stop()
	}

	recorder, err := observability.NewTreeMetrics(sess.providers.Meter)
	if err != nil {
		return err
	}

	result, runErr := bench.Run(ctx, benchCfg, sess.logger, recorder)

	out := cmd.OutOrStdout()
	renderBenchResult(out, &result)

	if flags.plot != "" {
		err = writePlot(flags.plot, &result)
		if err != nil {
			return errors.Join(runErr, err)
		}

		fmt.Fprintf(out, "plot written to %s\n", flags.plot)
	}

	if flags.reportDir != "" {
		store := persist.NewPersister[bench.Result](reportBasename, codec)

		err = store.Save(flags.reportDir, &result)
		if err != nil {
			return errors.Join(runErr, err)
		}

		fmt.Fprintf(out, "report written to %s\n", store.Path(flags.reportDir))
	}

	return runErr
}

// serveMetrics exposes the Prometheus handler until the returned stop is called.
func serveMetrics(ctx context.Context, sess *session, addr string) (func(), error) {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", sess.providers.MetricsHandler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			sess.logger.Error("metrics server failed", "error", serveErr)
		}
	}()

	sess.logger.Info("serving metrics", "addr", listener.Addr().String())

	return func() {
		shutdownErr := srv.Shutdown(context.Background())
		if shutdownErr != nil {
			sess.logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}, nil
}

func writePlot(path string, result *bench.Result) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, plotFilePerm)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	err = renderHeightChart(file, result)
	if err != nil {
		file.Close()

		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close plot: %w", err)
	}

	return nil
}
