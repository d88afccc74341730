package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// VenueMarketStore implements domain.VenueMarketStore using PostgreSQL.
type VenueMarketStore struct {
	pool *pgxpool.Pool
}

// NewVenueMarketStore creates a VenueMarketStore backed by the given pool.
func NewVenueMarketStore(pool *pgxpool.Pool) *VenueMarketStore {
	return &VenueMarketStore{pool: pool}
}

const venueMarketCols = `id, venue_config_id, external_id, question, description,
	yes_price, no_price, volume, liquidity,
	active, resolved, resolution, canonical_id, url,
	created_at, updated_at`

// scanVenueMarket scans a single venue market row.
func scanVenueMarket(row pgx.Row) (domain.VenueMarket, error) {
	var m domain.VenueMarket
	err := row.Scan(
		&m.ID, &m.VenueConfigID, &m.ExternalID, &m.Question, &m.Description,
		&m.YesPrice, &m.NoPrice, &m.Volume, &m.Liquidity,
		&m.Active, &m.Resolved, &m.Resolution, &m.CanonicalID, &m.URL,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.VenueMarket{}, err
	}
	return m, nil
}

// Create inserts a new venue market. Returns domain.ErrAlreadyExists when
// the venue already has a row for the external ID.
func (s *VenueMarketStore) Create(ctx context.Context, m domain.VenueMarket) error {
	const query = `
		INSERT INTO venue_markets (
			id, venue_config_id, external_id, question, description,
			yes_price, no_price, volume, liquidity,
			active, resolved, resolution, canonical_id, url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.VenueConfigID, m.ExternalID, m.Question, m.Description,
		m.YesPrice, m.NoPrice, m.Volume, m.Liquidity,
		m.Active, m.Resolved, m.Resolution, m.CanonicalID, m.URL,
		m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create venue market %s/%s: %w", m.VenueConfigID, m.ExternalID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create venue market %s: %w", m.ExternalID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing venue market. The
// canonical link is owned by SetCanonical and left untouched.
func (s *VenueMarketStore) Update(ctx context.Context, m domain.VenueMarket) error {
	const query = `
		UPDATE venue_markets SET
			question    = $2,
			description = $3,
			yes_price   = $4,
			no_price    = $5,
			volume      = $6,
			liquidity   = $7,
			active      = $8,
			resolved    = $9,
			resolution  = $10,
			url         = $11,
			updated_at  = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, m.Description,
		m.YesPrice, m.NoPrice, m.Volume, m.Liquidity,
		m.Active, m.Resolved, m.Resolution, m.URL,
	)
	if err != nil {
		return fmt.Errorf("postgres: update venue market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByExternalID retrieves the venue's market row for an external ID.
func (s *VenueMarketStore) GetByExternalID(ctx context.Context, venueConfigID, externalID string) (domain.VenueMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+venueMarketCols+` FROM venue_markets
		 WHERE venue_config_id = $1 AND external_id = $2`,
		venueConfigID, externalID)
	m, err := scanVenueMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.VenueMarket{}, domain.ErrNotFound
		}
		return domain.VenueMarket{}, fmt.Errorf("postgres: get venue market %s/%s: %w", venueConfigID, externalID, err)
	}
	return m, nil
}

// ListActiveUnresolved returns up to limit active, unresolved markets for
// the venue, least recently updated first so the refresh rotates through
// the whole book across runs.
func (s *VenueMarketStore) ListActiveUnresolved(ctx context.Context, venueConfigID string, limit int) ([]domain.VenueMarket, error) {
	query := `SELECT ` + venueMarketCols + ` FROM venue_markets
		WHERE venue_config_id = $1 AND active AND NOT resolved
		ORDER BY updated_at ASC`
	args := []any{venueConfigID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets for %s: %w", venueConfigID, err)
	}
	defer rows.Close()

	return collectVenueMarkets(rows)
}

// ListByVenue returns the venue's markets with pagination and optional
// time filtering on created_at.
func (s *VenueMarketStore) ListByVenue(ctx context.Context, venueConfigID string, opts domain.ListOpts) ([]domain.VenueMarket, error) {
	query := `SELECT ` + venueMarketCols + ` FROM venue_markets WHERE venue_config_id = $1`
	args := []any{venueConfigID}
	query, args = appendListOpts(query, args, opts, "created_at")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets for %s: %w", venueConfigID, err)
	}
	defer rows.Close()

	return collectVenueMarkets(rows)
}

// SetCanonical links the market to a canonical market.
func (s *VenueMarketStore) SetCanonical(ctx context.Context, id, canonicalID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venue_markets SET canonical_id = $2, updated_at = NOW() WHERE id = $1`,
		id, canonicalID,
	)
	if err != nil {
		return fmt.Errorf("postgres: set canonical for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetActive flips the market's active flag.
func (s *VenueMarketStore) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venue_markets SET active = $2, updated_at = NOW() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("postgres: set active for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetResolved marks the market resolved with its winning outcome.
func (s *VenueMarketStore) SetResolved(ctx context.Context, id, resolution string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venue_markets SET resolved = TRUE, resolution = $2, updated_at = NOW() WHERE id = $1`,
		id, resolution,
	)
	if err != nil {
		return fmt.Errorf("postgres: set resolved for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByVenue returns the number of market rows for the venue.
func (s *VenueMarketStore) CountByVenue(ctx context.Context, venueConfigID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM venue_markets WHERE venue_config_id = $1`,
		venueConfigID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets for %s: %w", venueConfigID, err)
	}
	return count, nil
}

// collectVenueMarkets drains rows into a slice.
func collectVenueMarkets(rows pgx.Rows) ([]domain.VenueMarket, error) {
	var markets []domain.VenueMarket
	for rows.Next() {
		m, err := scanVenueMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan venue market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: venue market rows: %w", err)
	}
	return markets, nil
}
