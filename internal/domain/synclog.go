package domain

import "time"

// SyncKind distinguishes the two sync jobs.
type SyncKind string

const (
	SyncKindMarkets SyncKind = "markets"
	SyncKindPrices  SyncKind = "prices"
)

// SyncStatus is the lifecycle state of one sync attempt.
type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
)

// MaxLedgerErrors bounds the error sample stored on a ledger entry.
const MaxLedgerErrors = 10

// SyncLogEntry is one append-only record of a sync attempt. Entries open in
// IN_PROGRESS and are closed exactly once as SUCCESS or FAILED.
type SyncLogEntry struct {
	ID             string
	VenueSlug      string
	Kind           SyncKind
	Status         SyncStatus
	StartedAt      time.Time
	CompletedAt    *time.Time
	MarketsCreated int
	MarketsUpdated int
	PricesUpdated  int
	Errors         []string // bounded sample, at most MaxLedgerErrors
}

// SyncResult is the aggregate outcome one adapter reports for one run.
type SyncResult struct {
	VenueSlug      string
	Kind           SyncKind
	Success        bool
	SyncedAt       time.Time
	Duration       time.Duration
	MarketsCreated int
	MarketsUpdated int
	PricesUpdated  int
	Errors         []string
}
