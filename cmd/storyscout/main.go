package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/storyscout/internal/config"
	"github.com/IshaanNene/storyscout/internal/engine"
	"github.com/IshaanNene/storyscout/internal/fetcher"
	"github.com/IshaanNene/storyscout/internal/observability"
	"github.com/IshaanNene/storyscout/internal/reconcile"
	"github.com/IshaanNene/storyscout/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	dryRun      bool
	parserName  string
	concurrent  int
	interval    string
	storageType string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storyscout",
		Short: "Keyword watcher for news-aggregator listing pages",
		Long: `storyscout fetches listing pages, keeps the stories whose title matches
one of the configured keywords, and saves them into a day-scoped store.

Stories already saved today are not inserted again; their points and
comment count are refreshed instead.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "storage backend: mongo, bolt, memory")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(savedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape the configured pages once and save the matches",
		RunE:  runOnce,
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the scrape run as JSON instead of saving it")
	cmd.Flags().StringVar(&parserName, "parser", "", "parser backend: css, xpath")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "pages fetched in parallel")

	return cmd
}

// runOnce executes the run command.
func runOnce(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)

	httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	defer httpFetcher.Close()

	runner, err := engine.NewRunner(&cfg.Scraper, httpFetcher, logger, engine.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	if dryRun {
		report, err := runner.Run(ctx)
		if err != nil {
			logger.Error("scrape pass failed", "error", err)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report.Run)
	}

	sched, store, err := newScheduler(ctx, cfg, runner, metrics, logger)
	if err != nil {
		logger.Error("storage unavailable", "backend", cfg.Storage.Type, "error", err)
		return nil
	}
	defer closeStore(store, logger)

	start := time.Now()
	report, res, err := sched.RunOnce(ctx)
	if err != nil {
		logger.Error("pass failed", "error", err)
	}

	printSummary(cmd.OutOrStdout(), time.Since(start), report, res)
	return nil
}

// watchCmd creates the "watch" subcommand.
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scrape and save repeatedly on an interval",
		Long:  "Run a pass immediately and then every schedule.interval until interrupted.",
		RunE:  runWatch,
	}

	cmd.Flags().StringVar(&interval, "interval", "", "time between passes (e.g. 30m)")
	cmd.Flags().StringVar(&parserName, "parser", "", "parser backend: css, xpath")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "pages fetched in parallel")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	httpFetcher := fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	defer httpFetcher.Close()

	runner, err := engine.NewRunner(&cfg.Scraper, httpFetcher, logger, engine.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	sched, store, err := newScheduler(ctx, cfg, runner, metrics, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore(store, logger)

	return sched.Start(ctx)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storyscout %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cfg)
			cfg.Storage.URI = redactURI(cfg.Storage.URI)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// setup loads and validates configuration and builds the logger.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := observability.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if parserName != "" {
		cfg.Scraper.Parser = strings.ToLower(parserName)
	}
	if concurrent > 0 {
		cfg.Scraper.Concurrency = concurrent
	}
	if storageType != "" {
		cfg.Storage.Type = strings.ToLower(storageType)
	}
	if dryRun {
		// Nothing is saved, so no store credentials are needed.
		cfg.Storage.Type = "memory"
	}
	if interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Schedule.Interval = d
		}
	}
}

func newScheduler(ctx context.Context, cfg *config.Config, runner *engine.Runner, metrics *observability.Metrics, logger *slog.Logger) (*engine.Scheduler, storage.Store, error) {
	store, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}

	loc, err := cfg.Storage.Location()
	if err != nil {
		closeStore(store, logger)
		return nil, nil, err
	}

	saver := reconcile.New(store, loc, logger, reconcile.WithMetrics(metrics))
	return engine.NewScheduler(runner, saver, cfg.Schedule.Interval, metrics, logger), store, nil
}

func closeStore(store storage.Store, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.Warn("storage close failed", "backend", store.Name(), "error", err)
	}
}

func printSummary(w io.Writer, elapsed time.Duration, report *engine.Report, res *reconcile.Result) {
	fmt.Fprintf(w, "\nPass complete in %s\n", elapsed.Round(time.Millisecond))
	if report != nil {
		fmt.Fprintf(w, "   Pages:     %d fetched, %d failed\n", len(report.Pages)-report.Failed(), report.Failed())
		fmt.Fprintf(w, "   Entries:   %d matched, %d dropped\n", len(report.Run.Entries), report.Dropped)
	}
	switch {
	case res == nil:
		fmt.Fprintln(w, "   Saved:     nothing (see log)")
	case res.Skipped:
		fmt.Fprintln(w, "   Saved:     nothing to save")
	default:
		fmt.Fprintf(w, "   Saved:     %d inserted, %d refreshed, %d failed (%s)\n",
			len(res.Inserted), len(res.Updated), len(res.Failed), res.Day.Format("2006-01-02"))
	}
}

// redactURI hides the password of a connection string.
func redactURI(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	return u.Redacted()
}
