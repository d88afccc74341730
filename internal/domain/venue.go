package domain

import "time"

// HealthStatus reflects the outcome of a venue's most recent sync.
type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
)

// VenueConfig identifies an external prediction-market venue. One row per
// venue, created lazily on first sync and mutated by later runs.
type VenueConfig struct {
	ID          string
	Slug        string
	DisplayName string
	BaseURL     string
	ChainID     *int64 // nil for venues with no on-chain settlement
	Health      HealthStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
