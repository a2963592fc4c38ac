// Package commands implements the redblack subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/config"
	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
	"github.com/Sumatoshi-tech/redblack/pkg/version"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	quiet      bool
	logJSON    bool
}

// NewRootCommand builds the redblack command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "redblack",
		Short: "Arena-backed red-black tree toolkit",
		Long: `redblack exercises an arena-allocated red-black tree keyed by int32.

Commands:
  bench     Randomized insert/delete workload checked against an oracle
  replay    Replay YAML scenarios, validating after every key operation
  dump      Build a tree from keys and print it
  snapshot  Save or load an LZ4-compressed tree snapshot
  report    Show a saved bench report`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: ./redblack.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "log in JSON")

	rootCmd.AddCommand(
		newBenchCommand(flags),
		newReplayCommand(flags),
		newDumpCommand(flags),
		newSnapshotCommand(flags),
		newReportCommand(),
		newVersionCommand(),
	)

	return rootCmd
}

// session is what a subcommand needs after config and telemetry are set up.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
}

// close flushes the telemetry providers.
func (s *session) close() {
	err := s.providers.Shutdown(context.Background())
	if err != nil {
		s.logger.Warn("observability shutdown failed", "error", err)
	}
}

// newTree creates an empty tree sized by the tree config.
func (s *session) newTree() *rbtree.RBTree {
	alloc := rbtree.NewAllocator()
	alloc.MaxNodes = s.cfg.Tree.MaxNodes

	if s.cfg.Tree.HibernationThreshold > 0 {
		alloc.HibernationThreshold = s.cfg.Tree.HibernationThreshold
	}

	return rbtree.NewRBTree(alloc)
}

// openSession loads the config and initializes logging, tracing and metrics.
// Logs go to the command's stderr.
func openSession(cmd *cobra.Command, flags *globalFlags, mode observability.AppMode) (*session, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	return startSession(cmd, flags, cfg, mode, false)
}

// startSession applies the global flags to cfg and initializes telemetry.
// With prometheus set the providers carry a scrape handler.
func startSession(
	cmd *cobra.Command, flags *globalFlags, cfg *config.Config, mode observability.AppMode, prometheus bool,
) (*session, error) {
	var err error

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Prometheus = prometheus
	obsCfg.LogJSON = flags.logJSON || cfg.Logging.Format == "json"
	obsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Metrics.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Metrics.OTLPInsecure

	obsCfg.LogLevel, err = observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	switch {
	case flags.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case flags.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.InitWithWriter(obsCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{cfg: cfg, providers: providers, logger: providers.Logger}, nil
}

// parseKeys converts command-line arguments to int32 keys.
func parseKeys(args []string) ([]int32, error) {
	keys := make([]int32, len(args))

	for idx, arg := range args {
		key, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", arg, err)
		}

		keys[idx] = int32(key)
	}

	return keys, nil
}

// insertKeys inserts every key with its position as the value.
func insertKeys(tree *rbtree.RBTree, keys []int32) error {
	for idx, key := range keys {
		_, err := tree.Insert(rbtree.Item{Key: key, Value: uint32(idx)}) //nolint:gosec // bounded by argv.
		if err != nil {
			return fmt.Errorf("insert %d: %w", key, err)
		}
	}

	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
