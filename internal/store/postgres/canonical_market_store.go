package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// CanonicalMarketStore implements domain.CanonicalMarketStore using
// PostgreSQL.
type CanonicalMarketStore struct {
	pool *pgxpool.Pool
}

// NewCanonicalMarketStore creates a CanonicalMarketStore backed by the
// given pool.
func NewCanonicalMarketStore(pool *pgxpool.Pool) *CanonicalMarketStore {
	return &CanonicalMarketStore{pool: pool}
}

const canonicalMarketCols = `id, slug, question, best_yes_price, best_no_price,
	best_venue_id, best_venue_slug, created_at, updated_at`

// scanCanonicalMarket scans a single canonical market row.
func scanCanonicalMarket(row pgx.Row) (domain.CanonicalMarket, error) {
	var m domain.CanonicalMarket
	err := row.Scan(
		&m.ID, &m.Slug, &m.Question, &m.BestYesPrice, &m.BestNoPrice,
		&m.BestVenueID, &m.BestVenueSlug, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.CanonicalMarket{}, err
	}
	return m, nil
}

// Create inserts a new canonical market. Returns domain.ErrAlreadyExists
// when the slug is taken.
func (s *CanonicalMarketStore) Create(ctx context.Context, m domain.CanonicalMarket) error {
	const query = `
		INSERT INTO canonical_markets (
			id, slug, question, best_yes_price, best_no_price,
			best_venue_id, best_venue_slug, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Slug, m.Question, m.BestYesPrice, m.BestNoPrice,
		m.BestVenueID, m.BestVenueSlug, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create canonical market %s: %w", m.Slug, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create canonical market %s: %w", m.Slug, err)
	}
	return nil
}

// GetBySlug retrieves a canonical market by its slug.
func (s *CanonicalMarketStore) GetBySlug(ctx context.Context, slug string) (domain.CanonicalMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+canonicalMarketCols+` FROM canonical_markets WHERE slug = $1`, slug)
	m, err := scanCanonicalMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CanonicalMarket{}, domain.ErrNotFound
		}
		return domain.CanonicalMarket{}, fmt.Errorf("postgres: get canonical market %s: %w", slug, err)
	}
	return m, nil
}

// GetByID retrieves a canonical market by its primary key.
func (s *CanonicalMarketStore) GetByID(ctx context.Context, id string) (domain.CanonicalMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+canonicalMarketCols+` FROM canonical_markets WHERE id = $1`, id)
	m, err := scanCanonicalMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.CanonicalMarket{}, domain.ErrNotFound
		}
		return domain.CanonicalMarket{}, fmt.Errorf("postgres: get canonical market by id %s: %w", id, err)
	}
	return m, nil
}

// UpdateBestPrice moves the best-price attribution to a new venue quote.
func (s *CanonicalMarketStore) UpdateBestPrice(ctx context.Context, id string, yes, no float64, venueID, venueSlug string) error {
	const query = `
		UPDATE canonical_markets SET
			best_yes_price  = $2,
			best_no_price   = $3,
			best_venue_id   = $4,
			best_venue_slug = $5,
			updated_at      = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, yes, no, venueID, venueSlug)
	if err != nil {
		return fmt.Errorf("postgres: update best price for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns canonical markets, most recently updated first, with
// pagination and optional time filtering on updated_at.
func (s *CanonicalMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.CanonicalMarket, error) {
	query := `SELECT ` + canonicalMarketCols + ` FROM canonical_markets WHERE 1=1`
	args := []any{}
	query, args = appendListOpts(query, args, opts, "updated_at")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list canonical markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.CanonicalMarket
	for rows.Next() {
		m, err := scanCanonicalMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan canonical market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: canonical market rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of canonical markets.
func (s *CanonicalMarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM canonical_markets`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count canonical markets: %w", err)
	}
	return count, nil
}
