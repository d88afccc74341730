package domain

import "math/big"

// DefaultTokenDecimals applies when a descriptor does not carry decimals.
// Outcome tokens on the supported venues settle against 6-decimal USDC.
const DefaultTokenDecimals = 6

// DefaultMinBalance is the materiality threshold for scanned positions.
const DefaultMinBalance = 0.0001

// TokenDescriptor identifies one ERC-1155 outcome token to read.
type TokenDescriptor struct {
	Contract string // token contract address
	TokenID  string // decimal-encoded token id
	Decimals int    // 0 means DefaultTokenDecimals
}

// Balance is the result of one token read.
type Balance struct {
	Raw       *big.Int
	Formatted float64 // Raw / 10^Decimals
	Decimals  int
}

// PositionDescriptor is the scan input: a token to read plus the caller
// metadata carried through to the resulting position untouched.
type PositionDescriptor struct {
	Token     TokenDescriptor
	ChainID   int64
	MarketID  string
	Slug      string
	VenueSlug string
	Outcome   string
}

// ScannedPosition is the ephemeral scan output. Persistence is the
// caller's concern.
type ScannedPosition struct {
	MarketID  string
	Slug      string
	VenueSlug string
	Outcome   string
	ChainID   int64
	Contract  string
	TokenID   string
	Balance   Balance
}

// ScanReport bundles the retained positions with their aggregate total.
type ScanReport struct {
	Wallet    string
	Positions []ScannedPosition
	Total     float64
}
