package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// SyncLogStore implements domain.SyncLogStore using PostgreSQL.
type SyncLogStore struct {
	pool *pgxpool.Pool
}

// NewSyncLogStore creates a SyncLogStore backed by the given pool.
func NewSyncLogStore(pool *pgxpool.Pool) *SyncLogStore {
	return &SyncLogStore{pool: pool}
}

const syncLogCols = `id, venue_slug, kind, status, started_at, completed_at,
	markets_created, markets_updated, prices_updated, errors`

// Create opens a new ledger entry.
func (s *SyncLogStore) Create(ctx context.Context, entry domain.SyncLogEntry) error {
	const query = `
		INSERT INTO sync_log (
			id, venue_slug, kind, status, started_at, errors
		) VALUES ($1, $2, $3, $4, $5, $6)`

	errs := entry.Errors
	if errs == nil {
		errs = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.VenueSlug, string(entry.Kind), string(entry.Status),
		entry.StartedAt, errs,
	)
	if err != nil {
		return fmt.Errorf("postgres: create sync log entry %s: %w", entry.ID, err)
	}
	return nil
}

// Finish closes a ledger entry with its final status and counts.
func (s *SyncLogStore) Finish(ctx context.Context, entry domain.SyncLogEntry) error {
	const query = `
		UPDATE sync_log SET
			status          = $2,
			completed_at    = $3,
			markets_created = $4,
			markets_updated = $5,
			prices_updated  = $6,
			errors          = $7
		WHERE id = $1`

	errs := entry.Errors
	if errs == nil {
		errs = []string{}
	}

	tag, err := s.pool.Exec(ctx, query,
		entry.ID, string(entry.Status), entry.CompletedAt,
		entry.MarketsCreated, entry.MarketsUpdated, entry.PricesUpdated,
		errs,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish sync log entry %s: %w", entry.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns ledger entries newest first, optionally filtered by
// venue slug and kind.
func (s *SyncLogStore) ListRecent(ctx context.Context, venueSlug string, kind domain.SyncKind, opts domain.ListOpts) ([]domain.SyncLogEntry, error) {
	query := `SELECT ` + syncLogCols + ` FROM sync_log WHERE 1=1`
	args := []any{}

	if venueSlug != "" {
		args = append(args, venueSlug)
		query += fmt.Sprintf(" AND venue_slug = $%d", len(args))
	}
	if kind != "" {
		args = append(args, string(kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query, args = appendListOpts(query, args, opts, "started_at")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sync log: %w", err)
	}
	defer rows.Close()

	var entries []domain.SyncLogEntry
	for rows.Next() {
		var e domain.SyncLogEntry
		var kindStr, statusStr string
		if err := rows.Scan(
			&e.ID, &e.VenueSlug, &kindStr, &statusStr, &e.StartedAt, &e.CompletedAt,
			&e.MarketsCreated, &e.MarketsUpdated, &e.PricesUpdated, &e.Errors,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan sync log entry: %w", err)
		}
		e.Kind = domain.SyncKind(kindStr)
		e.Status = domain.SyncStatus(statusStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: sync log rows: %w", err)
	}
	return entries, nil
}

// CountFailedSince returns the number of failed entries started at or
// after the given time.
func (s *SyncLogStore) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sync_log WHERE status = $1 AND started_at >= $2`,
		string(domain.SyncStatusFailed), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count failed syncs: %w", err)
	}
	return count, nil
}

// LastSuccess returns the completion time of the most recent successful
// entry of the given kind across all venues. The zero time means no run of
// that kind has ever succeeded.
func (s *SyncLogStore) LastSuccess(ctx context.Context, kind domain.SyncKind) (time.Time, error) {
	var completedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT completed_at FROM sync_log
		 WHERE kind = $1 AND status = $2 AND completed_at IS NOT NULL
		 ORDER BY completed_at DESC LIMIT 1`,
		string(kind), string(domain.SyncStatusSuccess),
	).Scan(&completedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("postgres: last successful %s sync: %w", kind, err)
	}
	return completedAt, nil
}
