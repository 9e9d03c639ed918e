package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/compression"
	"github.com/zoneinfo/server/internal/config"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/world"
)

// ErrNoSnapshot is returned when the archive holds no passes.
var ErrNoSnapshot = errors.New("no archived snapshot")

// Open connects to PostgreSQL with the pool limits from cfg.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// SnapshotArchive stores published passes
type SnapshotArchive struct {
	db *sql.DB
}

// NewSnapshotArchive creates a new archive instance
func NewSnapshotArchive(db *sql.DB) *SnapshotArchive {
	return &SnapshotArchive{db: db}
}

// ArchivedPass describes one stored pass without its counts
type ArchivedPass struct {
	ID          int64
	Pass        int64
	RuleSet     string
	Squares     int
	Built       int
	Districts   []int64 // districts with at least one counted square
	Size        int
	PublishedAt time.Time
}

const schema = `
	CREATE TABLE IF NOT EXISTS zoneinfo_snapshots (
		id           BIGSERIAL PRIMARY KEY,
		pass         BIGINT NOT NULL,
		rule_set     TEXT NOT NULL,
		squares      INTEGER NOT NULL,
		built        INTEGER NOT NULL,
		district_ids INTEGER[] NOT NULL DEFAULT '{}',
		data         BYTEA NOT NULL,
		published_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_zoneinfo_snapshots_published_at
		ON zoneinfo_snapshots (published_at DESC);
`

// EnsureSchema creates the archive table if it does not exist
func (a *SnapshotArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snapshot archive schema: %w", err)
	}
	return nil
}

// Save compresses buf and stores it under ruleSet
func (a *SnapshotArchive) Save(ctx context.Context, ruleSet string, buf *counts.Buffer) (*ArchivedPass, error) {
	data, _, err := compression.EncodeSnapshot(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	total := buf.Get(category.Total, world.DistrictEntireCity)
	districts := []int64{}
	for d := 0; d < world.MaxDistrictCount; d++ {
		if buf.Rows[category.Total].Total[d] > 0 {
			districts = append(districts, int64(d))
		}
	}

	rec := &ArchivedPass{
		Pass:      int64(buf.Pass),
		RuleSet:   ruleSet,
		Squares:   total.Total,
		Built:     total.Built,
		Districts: districts,
		Size:      len(data),
	}
	query := `
		INSERT INTO zoneinfo_snapshots (pass, rule_set, squares, built, district_ids, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, published_at
	`
	err = a.db.QueryRowContext(ctx, query,
		rec.Pass, rec.RuleSet, rec.Squares, rec.Built, pq.Array(rec.Districts), data,
	).Scan(&rec.ID, &rec.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to archive pass %d: %w", buf.Pass, wrapUndefinedTable(err))
	}
	return rec, nil
}

// Latest returns the most recently archived pass and its counts
func (a *SnapshotArchive) Latest(ctx context.Context) (*ArchivedPass, *counts.Buffer, error) {
	query := `
		SELECT id, pass, rule_set, squares, built, district_ids, data, published_at
		FROM zoneinfo_snapshots
		ORDER BY id DESC
		LIMIT 1
	`
	var rec ArchivedPass
	var data []byte
	err := a.db.QueryRowContext(ctx, query).Scan(
		&rec.ID,
		&rec.Pass,
		&rec.RuleSet,
		&rec.Squares,
		&rec.Built,
		pq.Array(&rec.Districts),
		&data,
		&rec.PublishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load latest snapshot: %w", wrapUndefinedTable(err))
	}
	rec.Size = len(data)

	buf, err := compression.DecodeSnapshot(data)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %d: %w", rec.ID, err)
	}
	return &rec, buf, nil
}

// List returns up to limit archived passes, newest first
func (a *SnapshotArchive) List(ctx context.Context, limit int) ([]ArchivedPass, error) {
	if limit <= 0 || limit > 1000 {
		return nil, fmt.Errorf("invalid limit: %d (must be 1-1000)", limit)
	}
	query := `
		SELECT id, pass, rule_set, squares, built, district_ids, octet_length(data), published_at
		FROM zoneinfo_snapshots
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", wrapUndefinedTable(err))
	}
	defer rows.Close()

	var out []ArchivedPass
	for rows.Next() {
		var rec ArchivedPass
		if err := rows.Scan(
			&rec.ID,
			&rec.Pass,
			&rec.RuleSet,
			&rec.Squares,
			&rec.Built,
			pq.Array(&rec.Districts),
			&rec.Size,
			&rec.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep passes and returns the number removed
func (a *SnapshotArchive) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("invalid keep: %d", keep)
	}
	query := `
		DELETE FROM zoneinfo_snapshots
		WHERE id NOT IN (SELECT id FROM zoneinfo_snapshots ORDER BY id DESC LIMIT $1)
	`
	res, err := a.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", wrapUndefinedTable(err))
	}
	return res.RowsAffected()
}

// wrapUndefinedTable turns a missing table into ErrNoSnapshot so callers
// that never ran EnsureSchema get a usable answer.
func wrapUndefinedTable(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrNoSnapshot, pqErr.Message)
	}
	return err
}
