package simclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zoneinfo/server/internal/world"
)

// WorldFetcher is satisfied by Client.
type WorldFetcher interface {
	FetchWorld(ctx context.Context) (*Snapshot, error)
}

// Refresher polls the host and hands every new world to apply.
type Refresher struct {
	fetcher  WorldFetcher
	interval time.Duration
	apply    func(world.Context)
	logger   *slog.Logger

	lastVersion int64
	loaded      bool
}

// NewRefresher creates a refresher calling apply on the polling goroutine.
func NewRefresher(fetcher WorldFetcher, interval time.Duration, apply func(world.Context), logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		fetcher:  fetcher,
		interval: interval,
		apply:    apply,
		logger:   logger.With("component", "refresher"),
	}
}

// Refresh fetches once. It returns true when a new world was applied. A host
// that reports version 0 is treated as unversioned and always applied.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	snap, err := r.fetcher.FetchWorld(ctx)
	if err != nil {
		return false, err
	}
	if r.loaded && snap.Version != 0 && snap.Version == r.lastVersion {
		return false, nil
	}
	r.apply(snap.World.Context())
	r.loaded = true
	r.lastVersion = snap.Version
	r.logger.Debug("world applied", "version", snap.Version, "blocks", snap.World.Len(), "buildings", snap.World.BuildingCount())
	return true, nil
}

// Run refreshes immediately and then every interval until ctx is cancelled.
// Fetch failures are logged and retried on the next interval.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	failing := false
	for {
		_, err := r.Refresh(ctx)
		switch {
		case err == nil:
			if failing {
				r.logger.Info("simulation host reachable again")
			}
			failing = false
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return nil
			}
		case !failing:
			r.logger.Warn("world refresh failed", "error", err)
			failing = true
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
