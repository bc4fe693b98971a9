package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexanderramin/smartplan/internal/cli"
	"github.com/alexanderramin/smartplan/internal/config"
	"github.com/alexanderramin/smartplan/internal/db"
	"github.com/alexanderramin/smartplan/internal/llm"
	"github.com/alexanderramin/smartplan/internal/localstore"
	"github.com/alexanderramin/smartplan/internal/metrics"
	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/alexanderramin/smartplan/internal/server"
	"github.com/alexanderramin/smartplan/internal/store"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
)

func main() {
	app := &cli.App{
		In: os.Stdin,
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
	}

	var closers []func() error
	app.Setup = func(fs *pflag.FlagSet) error {
		closeDB, err := wire(app, fs)
		if closeDB != nil {
			closers = append(closers, closeDB)
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCmd(app).ExecuteContext(ctx)
	stop()
	for _, c := range closers {
		_ = c()
	}
	if err != nil {
		os.Exit(1)
	}
}

// wire loads configuration and fills app with live services. The returned
// func closes the document store.
func wire(app *cli.App, fs *pflag.FlagSet) (func() error, error) {
	file, _ := fs.GetString("config")
	cfg, err := config.Load(file, fs)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewObserver("", reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	conn, err := db.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	cached, err := store.NewCached(store.NewSQLStore(conn, db.Dialect{Driver: cfg.Store.Driver}), cfg.Store.CacheSize)
	if err != nil {
		return conn.Close, err
	}
	docs := store.Instrument(cached, observer)

	callObservers := llm.MultiObserver{observer}
	if cfg.Log.LLMCalls {
		callObservers = append(callObservers, llm.NewLogObserver(logger))
	}
	client, err := llm.NewClient(cfg.LLM, callObservers)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			return conn.Close, err
		}
		logger.Warn("llm disabled, generation commands will fail", "provider", cfg.LLM.Provider, "error", err)
		client = llm.NewUnconfigured(err)
	}

	plans := pipeline.NewPlanService(client, docs,
		pipeline.WithLogger(logger),
		pipeline.WithObserver(pipeline.MultiUseCaseObserver{
			pipeline.NewLogUseCaseObserver(logger),
			observer,
		}),
	)

	var secret []byte
	if cfg.Server.AuthSecret != "" {
		secret = []byte(cfg.Server.AuthSecret)
	}

	app.Config = cfg
	app.Logger = logger
	app.Plans = plans
	app.LastGoal = localstore.NewLastGoal(localstore.New(cfg.Local.Dir))
	app.Server = server.New(plans, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthSecret:     secret,
		Metrics:        metrics.Handler(reg),
		Logger:         logger,
	})
	return conn.Close, nil
}
