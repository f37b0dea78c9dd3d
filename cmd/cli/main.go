package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"webcoder/internal/cli/command"
	"webcoder/internal/cli/config"
	"webcoder/internal/cli/http"
	"webcoder/internal/cli/render"
	"webcoder/internal/cli/repl"
	"webcoder/internal/cli/state"
	"webcoder/internal/common/cache"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/client"
	"webcoder/internal/judge/poller"
	problemservice "webcoder/internal/problem/service"
	"webcoder/internal/submit/repository"
	"webcoder/internal/submit/service"
	"webcoder/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	token := flag.String("token", "", "Override access token")
	statePath := flag.String("state", "", "Override token state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON output")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.TokenStatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}
	if *noColor {
		cfg.NoColor = true
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, *token); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, token string) error {
	session, err := state.Open(cfg.TokenStatePath)
	if err != nil {
		return fmt.Errorf("load token state failed: %w", err)
	}
	if token != "" {
		if err := session.SetTokens(token, ""); err != nil {
			return fmt.Errorf("save token state failed: %w", err)
		}
	}

	store, err := openCache(cfg.SnapshotStore)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	transport := httpclient.New(cfg.BaseURL, cfg.Timeout, nil)
	api := client.New(transport, session)
	catalog := problemservice.NewCatalog(api, store, cfg.ProblemCache.TTL)
	judge := client.New(transport, session, client.WithProblemReader(catalog))

	agg := aggregate.New(aggregate.Options{OutputLimit: cfg.Poll.OutputLimit})
	poll := poller.New(judge, poller.Config{
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
		MaxDuration: cfg.Poll.MaxDuration,
	},
		poller.WithAggregator(agg),
		poller.WithExpectedTests(catalog.ExpectedTests),
	)
	tracker, err := service.NewTracker(service.Config{
		Client:        judge,
		Poller:        poll,
		Snapshots:     repository.NewSnapshotRepositoryWithTTL(store, cfg.SnapshotStore.TTL),
		Aggregator:    agg,
		ExpectedTests: catalog.ExpectedTests,
		Timeouts:      service.TimeoutConfig{Cache: cfg.Timeout},
	})
	if err != nil {
		return err
	}
	defer tracker.Close()

	commands := command.Registry()
	rl, err := repl.NewReadline(cfg.HistoryFile, commands)
	if err != nil {
		return fmt.Errorf("open terminal failed: %w", err)
	}
	defer func() { _ = rl.Close() }()

	app := &command.App{
		Auth:     judge,
		Problems: command.Catalog{Get: catalog, List: judge},
		Tracker:  tracker,
		Session:  session,
		Out:      render.New(rl.Stdout(), render.Options{NoColor: cfg.NoColor, Pretty: cfg.Pretty()}),
	}
	logger.Info(ctx, "cli started",
		zap.String("base_url", cfg.BaseURL),
		zap.String("snapshot_store", cfg.SnapshotStore.Driver))
	repl.New(rl, app, commands, transport, cfg).Run(ctx)
	return nil
}

func openCache(cfg config.SnapshotStoreConfig) (cache.Cache, error) {
	if cfg.Driver != config.StoreDriverRedis {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("connect snapshot store failed: %w", err)
	}
	return rc, nil
}
