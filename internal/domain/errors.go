package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrMarketDelisted = errors.New("market delisted")
	ErrMarketResolved = errors.New("market resolved")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")

	// ErrUnsupportedChain is returned when a chain ID is outside the
	// configured endpoint allow-list.
	ErrUnsupportedChain = errors.New("unsupported chain")
)
