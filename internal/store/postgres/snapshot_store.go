package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// PriceSnapshotStore implements domain.PriceSnapshotStore using
// PostgreSQL. It also carries the time-ranged queries the archiver uses to
// move old rows to cold storage.
type PriceSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPriceSnapshotStore creates a PriceSnapshotStore backed by the given
// pool.
func NewPriceSnapshotStore(pool *pgxpool.Pool) *PriceSnapshotStore {
	return &PriceSnapshotStore{pool: pool}
}

const snapshotCols = `id, venue_market_id, yes_price, no_price, volume, liquidity, captured_at`

// Append inserts one snapshot row. A zero CapturedAt is stamped with the
// current time.
func (s *PriceSnapshotStore) Append(ctx context.Context, snap domain.PriceSnapshot) error {
	capturedAt := snap.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO price_snapshots (
			venue_market_id, yes_price, no_price, volume, liquidity, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		snap.VenueMarketID, snap.YesPrice, snap.NoPrice,
		snap.Volume, snap.Liquidity, capturedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot for %s: %w", snap.VenueMarketID, err)
	}
	return nil
}

// ListByMarket returns snapshots for a market, newest first, with
// pagination and optional time filtering on captured_at.
func (s *PriceSnapshotStore) ListByMarket(ctx context.Context, venueMarketID string, opts domain.ListOpts) ([]domain.PriceSnapshot, error) {
	query := `SELECT ` + snapshotCols + ` FROM price_snapshots WHERE venue_market_id = $1`
	args := []any{venueMarketID}
	query, args = appendListOpts(query, args, opts, "captured_at")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", venueMarketID, err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// Count returns the total number of snapshot rows.
func (s *PriceSnapshotStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM price_snapshots`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return count, nil
}

// ListBefore returns all snapshots captured strictly before the cutoff,
// oldest first.
func (s *PriceSnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PriceSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotCols+` FROM price_snapshots
		 WHERE captured_at < $1 ORDER BY captured_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %v: %w", before, err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// DeleteBefore removes all snapshots captured strictly before the cutoff
// and returns the number of rows deleted.
func (s *PriceSnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM price_snapshots WHERE captured_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func collectSnapshots(rows pgx.Rows) ([]domain.PriceSnapshot, error) {
	var snaps []domain.PriceSnapshot
	for rows.Next() {
		var snap domain.PriceSnapshot
		if err := rows.Scan(
			&snap.ID, &snap.VenueMarketID, &snap.YesPrice, &snap.NoPrice,
			&snap.Volume, &snap.Liquidity, &snap.CapturedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return snaps, nil
}
