package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zoneinfo/server/internal/api"
	"github.com/zoneinfo/server/internal/auth"
	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/config"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/database"
	"github.com/zoneinfo/server/internal/logging"
	"github.com/zoneinfo/server/internal/metrics"
	"github.com/zoneinfo/server/internal/performance"
	"github.com/zoneinfo/server/internal/scanner"
	"github.com/zoneinfo/server/internal/simclient"
	"github.com/zoneinfo/server/internal/snapshot"
	"github.com/zoneinfo/server/internal/streaming"
)

const (
	shutdownTimeout = 10 * time.Second
	archiveKeep     = 1000
)

// main starts the zone info server: the scan loop over the simulation
// world, the snapshot archive and the HTTP/WebSocket API.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	rules, err := category.RuleSetByName(cfg.Scan.RuleSet)
	if err != nil {
		return err
	}
	unlocks, err := snapshot.ParseUnlocks(cfg.Unlocks.Zones, cfg.Unlocks.Policies)
	if err != nil {
		return err
	}

	store := counts.NewStore()
	observer := metrics.NewObserver(nil)
	profiler := performance.NewProfiler(cfg.Scan.Profile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archiver *database.Archiver
	if cfg.Database.ArchiveEnabled {
		var db *sql.DB
		archiver, db, err = openArchive(ctx, cfg, rules.Name(), store, logger)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	scan := scanner.New(store, rules,
		scanner.WithLogger(logger),
		scanner.WithObserver(observer),
		scanner.WithProfiler(profiler),
	)
	runner := scanner.NewRunner(scan, scanner.RunnerConfig{
		TickInterval:  cfg.Scan.TickInterval,
		BlocksPerTick: cfg.Scan.BlocksPerTick,
		RecountRate:   rate.Limit(cfg.Scan.RecountRate),
		RecountBurst:  1,
	}, logger)

	sim := simclient.NewClient(cfg.Simulation, logger)
	refresher := simclient.NewRefresher(sim, cfg.Simulation.RefreshInterval, runner.SetWorld, logger)

	reader := snapshot.NewReader(store, rules, unlocks)
	defaults := snapshot.Options{
		District:       uint8(cfg.Display.DefaultDistrict),
		Percent:        cfg.Display.Percent,
		IncludeUnzoned: cfg.Display.IncludeUnzoned,
	}
	hub := api.NewHub(streaming.NewManager(defaults, logger), reader, api.NewOriginPolicy(cfg.Server), logger,
		api.WithSubscriberGauge(observer),
		api.WithFirstSubscriber(func() { runner.RequestFullRecount() }),
	)

	runner.OnPublish(hub.Publish)
	if archiver != nil {
		runner.OnPublish(archiver.Offer)
	}

	handlers := api.NewZoneInfoHandlers(reader, runner, defaults, profiler, logger)
	router, err := api.NewRouter(api.RouterDeps{
		Config:   cfg,
		Handlers: handlers,
		Hub:      hub,
		Auth:     auth.NewMiddleware(auth.NewTokenService(cfg.Auth), logger),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if err := sim.HealthCheck(ctx); err != nil {
		logger.Warn("simulation host not ready, scanning will start once it is", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	if archiver != nil {
		g.Go(func() error { return archiver.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("zone info server starting", "addr", server.Addr, "environment", cfg.Server.Environment, "rule_set", rules.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		runner.RequestStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if cfg.Scan.Profile {
		profiler.LogReport(logger)
	}
	logger.Info("zone info server stopped")
	return err
}

// openArchive connects to PostgreSQL, prepares the schema and republishes
// the newest archived pass so readers have data before the first scan
// completes.
func openArchive(ctx context.Context, cfg *config.Config, ruleSet string, store *counts.Store, logger *slog.Logger) (*database.Archiver, *sql.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	archiver, err := prepareArchive(ctx, db, ruleSet, store, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return archiver, db, nil
}

func prepareArchive(ctx context.Context, db *sql.DB, ruleSet string, store *counts.Store, logger *slog.Logger) (*database.Archiver, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	archive := database.NewSnapshotArchive(db)
	if err := archive.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	rec, buf, err := archive.Latest(ctx)
	switch {
	case errors.Is(err, database.ErrNoSnapshot):
	case err != nil:
		return nil, err
	case rec.RuleSet != ruleSet:
		logger.Info("archived pass uses another rule set, not restoring", "archived", rec.RuleSet, "current", ruleSet)
	default:
		store.Restore(buf)
		logger.Info("restored archived pass", "pass", rec.Pass, "published_at", rec.PublishedAt)
	}

	return database.NewArchiver(archive, ruleSet, archiveKeep, logger), nil
}
