package database

import (
	"context"
	"log/slog"

	"github.com/zoneinfo/server/internal/counts"
)

// Archiver saves published passes on its own goroutine so the scan loop
// never waits on the database.
type Archiver struct {
	archive *SnapshotArchive
	ruleSet string
	keep    int
	logger  *slog.Logger
	pending chan *counts.Buffer
}

// NewArchiver returns an archiver keeping at most keep passes; keep <= 0
// disables pruning.
func NewArchiver(archive *SnapshotArchive, ruleSet string, keep int, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		archive: archive,
		ruleSet: ruleSet,
		keep:    keep,
		logger:  logger.With("component", "archiver"),
		pending: make(chan *counts.Buffer, 1),
	}
}

// Offer queues buf for saving. If a save is still queued, the older pass is
// replaced so only the newest is written.
func (a *Archiver) Offer(buf *counts.Buffer) {
	for {
		select {
		case a.pending <- buf:
			return
		default:
		}
		select {
		case <-a.pending:
		default:
		}
	}
}

// Run saves queued passes until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case buf := <-a.pending:
			a.save(ctx, buf)
		}
	}
}

func (a *Archiver) save(ctx context.Context, buf *counts.Buffer) {
	rec, err := a.archive.Save(ctx, a.ruleSet, buf)
	if err != nil {
		a.logger.Error("archive failed", "pass", buf.Pass, "error", err)
		return
	}
	a.logger.Debug("pass archived", "pass", rec.Pass, "id", rec.ID, "bytes", rec.Size)
	if a.keep <= 0 {
		return
	}
	if n, err := a.archive.Prune(ctx, a.keep); err != nil {
		a.logger.Warn("archive prune failed", "error", err)
	} else if n > 0 {
		a.logger.Debug("archive pruned", "removed", n)
	}
}
