package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nanoqc/nanoqc/internal/api"
	"github.com/nanoqc/nanoqc/internal/config"
	"github.com/nanoqc/nanoqc/internal/jobs"
	xlog "github.com/nanoqc/nanoqc/internal/log"
	"github.com/nanoqc/nanoqc/internal/store"
	"github.com/nanoqc/nanoqc/internal/version"
	"github.com/nanoqc/nanoqc/internal/watch"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	serve := flag.Bool("serve", false, "run the HTTP server instead of a one-shot aggregation")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	xlog.Configure(xlog.Config{
		Level:   os.Getenv("NANOQC_LOG_LEVEL"),
		Service: "nanoqc",
		Version: version.Version,
	})
	logger := xlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	xlog.SetLevel(cfg.LogLevel)

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str(xlog.FieldSourceGlob, cfg.Source).
		Bool("serve", *serve).
		Msg("starting nanoqc")

	if !*serve {
		if _, err := jobs.NewRunner(cfg, nil).Run(ctx); err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "aggregate.fatal").
				Msg("aggregation failed")
		}
		return
	}

	if err := runServer(ctx, cfg, logger); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "server.fatal").
			Msg("server failed")
	}
	logger.Info().Msg("server exiting")
}

func runServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("failed to close report store")
		}
	}()

	runner := jobs.NewRunner(cfg, db)

	// Initial aggregation so the API has something to serve. A failure is
	// not fatal: the operator can fix the source and POST /api/v1/refresh.
	if _, err := runner.Run(ctx); err != nil {
		logger.Error().
			Err(err).
			Str("event", "aggregate.initial_failed").
			Msg("initial aggregation failed; waiting for refresh")
	}

	srv := api.New(cfg, db, runner)
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("event", "server.listening").
			Str("addr", cfg.Listen).
			Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.Watch {
		watcher, err := watch.New(cfg.Source, cfg.WatchDebounce, func(wctx context.Context) {
			if _, err := runner.Run(wctx); err != nil {
				logger.Error().
					Err(err).
					Str("event", "aggregate.watch_failed").
					Msg("watch-triggered aggregation failed")
			}
		})
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}
