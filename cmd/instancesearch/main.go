package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"instancesearch/internal/config"
	"instancesearch/internal/domain"
	"instancesearch/internal/logging"
	"instancesearch/internal/lookup"
	"instancesearch/internal/search"
	"instancesearch/internal/selectors"
	"instancesearch/internal/state"
	"instancesearch/internal/store"
	"instancesearch/internal/ui"
)

var (
	// Global flags
	configPath string
	baseURL    string
	tenant     string
	policy     string
	staleGuard bool
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "instancesearch",
	Short: "Search catalog instances by title",
	Long: `instancesearch is a terminal search screen over the knowledge-base
instance catalog. Type to filter; the list is loaded from the lookup service.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "config file (.toml or .yaml)")
	rootCmd.Flags().StringVar(&baseURL, "url", "", "lookup service base URL")
	rootCmd.Flags().StringVar(&tenant, "tenant", "", "value of the X-Okapi-Tenant header")
	rootCmd.Flags().StringVar(&policy, "policy", "", "where filtering happens: client or server")
	rootCmd.Flags().BoolVar(&staleGuard, "stale-guard", false, "ignore results of superseded lookups")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Okapi.URL = baseURL
	}
	if flags.Changed("tenant") {
		cfg.Okapi.Tenant = tenant
	}
	if flags.Changed("policy") {
		cfg.Search.Policy = policy
	}
	if flags.Changed("stale-guard") {
		cfg.Search.StaleGuard = staleGuard
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filterPolicy, _ := cfg.FilterPolicy()
	timeout, _ := cfg.RequestTimeout()

	client, err := lookup.NewClient(cfg.Okapi.URL, cfg.Okapi.Tenant,
		lookup.WithLogger(logger.Named("lookup")),
		lookup.WithTimeout(timeout))
	if err != nil {
		return err
	}

	searchOpts := []search.Option{search.WithLogger(logger.Named("search"))}
	if cfg.Search.StaleGuard {
		searchOpts = append(searchOpts, search.WithSequencer(&search.Sequencer{}))
	}

	// Leaving the screen abandons any lookup still in flight
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	activity := ui.NewActivity()
	pager := ui.NewPagerOps(nil)
	st := store.New(state.Reduce, domain.EmptyState(),
		store.WithLogger(logger.Named("store")),
		store.WithMiddleware(
			store.ThunkMiddleware(),
			activity.Middleware(),
			store.LoggerMiddleware(logger.Named("dispatch")),
		))

	model := ui.NewModel(runCtx, ui.Options{
		Store:      st,
		Selector:   selectors.NewSelector(filterPolicy),
		Searcher:   client,
		SearchOpts: searchOpts,
		Activity:   activity,
		Pager:      pager,
		ShowIDs:    cfg.UI.ShowIDs,
		Logger:     logger.Named("ui"),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	pager.SetProgram(p)
	disconnect := ui.Connect(p, st, activity)
	defer disconnect()

	logger.Info("Starting",
		zap.String("url", cfg.Okapi.URL),
		zap.String("tenant", cfg.Okapi.Tenant),
		zap.String("policy", string(filterPolicy)),
		zap.Bool("stale_guard", cfg.Search.StaleGuard))

	bootstrap := search.Bootstrap(runCtx, st.Dispatch, client, searchOpts...)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// The initial lookup is reported through the store, not as a run error
		if err := bootstrap.Wait(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Initial search failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Error running program", zap.Error(err))
		return err
	}
	logger.Info("Exited normally")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
