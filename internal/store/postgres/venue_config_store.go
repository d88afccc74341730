package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// VenueConfigStore implements domain.VenueConfigStore using PostgreSQL.
type VenueConfigStore struct {
	pool *pgxpool.Pool
}

// NewVenueConfigStore creates a VenueConfigStore backed by the given pool.
func NewVenueConfigStore(pool *pgxpool.Pool) *VenueConfigStore {
	return &VenueConfigStore{pool: pool}
}

const venueConfigCols = `id, slug, display_name, base_url, chain_id, health, created_at, updated_at`

// scanVenueConfig scans a single venue config row.
func scanVenueConfig(row pgx.Row) (domain.VenueConfig, error) {
	var v domain.VenueConfig
	var health string
	err := row.Scan(
		&v.ID, &v.Slug, &v.DisplayName, &v.BaseURL,
		&v.ChainID, &health, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.VenueConfig{}, err
	}
	v.Health = domain.HealthStatus(health)
	return v, nil
}

// Create inserts a new venue config. Returns domain.ErrAlreadyExists when
// the slug is taken.
func (s *VenueConfigStore) Create(ctx context.Context, cfg domain.VenueConfig) error {
	const query = `
		INSERT INTO venue_configs (
			id, slug, display_name, base_url, chain_id, health, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.pool.Exec(ctx, query,
		cfg.ID, cfg.Slug, cfg.DisplayName, cfg.BaseURL,
		cfg.ChainID, string(cfg.Health), cfg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create venue config %s: %w", cfg.Slug, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create venue config %s: %w", cfg.Slug, err)
	}
	return nil
}

// GetBySlug retrieves a venue config by its slug.
func (s *VenueConfigStore) GetBySlug(ctx context.Context, slug string) (domain.VenueConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+venueConfigCols+` FROM venue_configs WHERE slug = $1`, slug)
	v, err := scanVenueConfig(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.VenueConfig{}, domain.ErrNotFound
		}
		return domain.VenueConfig{}, fmt.Errorf("postgres: get venue config %s: %w", slug, err)
	}
	return v, nil
}

// GetByID retrieves a venue config by its primary key.
func (s *VenueConfigStore) GetByID(ctx context.Context, id string) (domain.VenueConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+venueConfigCols+` FROM venue_configs WHERE id = $1`, id)
	v, err := scanVenueConfig(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.VenueConfig{}, domain.ErrNotFound
		}
		return domain.VenueConfig{}, fmt.Errorf("postgres: get venue config by id %s: %w", id, err)
	}
	return v, nil
}

// UpdateHealth sets the venue's health status.
func (s *VenueConfigStore) UpdateHealth(ctx context.Context, id string, health domain.HealthStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venue_configs SET health = $2, updated_at = NOW() WHERE id = $1`,
		id, string(health),
	)
	if err != nil {
		return fmt.Errorf("postgres: update venue health %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all venue configs ordered by slug.
func (s *VenueConfigStore) List(ctx context.Context) ([]domain.VenueConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+venueConfigCols+` FROM venue_configs ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list venue configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.VenueConfig
	for rows.Next() {
		var v domain.VenueConfig
		var health string
		if err := rows.Scan(
			&v.ID, &v.Slug, &v.DisplayName, &v.BaseURL,
			&v.ChainID, &health, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan venue config: %w", err)
		}
		v.Health = domain.HealthStatus(health)
		configs = append(configs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list venue configs rows: %w", err)
	}
	return configs, nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// appendListOpts appends time-range, ordering, and pagination clauses for
// a query already ending in a WHERE clause. timeCol is the column the
// Since/Until filters and the descending order apply to.
func appendListOpts(query string, args []any, opts domain.ListOpts, timeCol string) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", timeCol)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
