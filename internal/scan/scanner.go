// Package scan reads on-chain position token balances for a wallet across
// every chain the venues settle on.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/oddsmux/oddsmux/internal/chain"
	"github.com/oddsmux/oddsmux/internal/domain"
)

// CallerSource resolves the read client for a chain. Satisfied by
// chain.Registry.
type CallerSource interface {
	Caller(ctx context.Context, chainID int64) (chain.Caller, error)
}

// Scanner reads ERC-1155 position token balances. Reads within one
// contract are batched into a single call; a failed batch degrades to
// per-token reads, and a failed single read degrades to a zero balance, so
// one bad token never hides the rest of the wallet.
type Scanner struct {
	chains CallerSource
	logger *slog.Logger
}

// NewScanner creates a Scanner over the given chain clients.
func NewScanner(chains CallerSource, logger *slog.Logger) *Scanner {
	return &Scanner{
		chains: chains,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// ReadBalance reads one (wallet, token) balance on the given chain.
func (s *Scanner) ReadBalance(ctx context.Context, chainID int64, wallet string, token domain.TokenDescriptor) (domain.Balance, error) {
	caller, err := s.chains.Caller(ctx, chainID)
	if err != nil {
		return domain.Balance{}, err
	}
	account, err := parseAddress(wallet)
	if err != nil {
		return domain.Balance{}, err
	}
	contract, err := parseAddress(token.Contract)
	if err != nil {
		return domain.Balance{}, err
	}
	tokenID, err := parseTokenID(token.TokenID)
	if err != nil {
		return domain.Balance{}, err
	}

	raw, err := chain.NewERC1155Reader(caller).BalanceOf(ctx, contract, account, tokenID)
	if err != nil {
		return domain.Balance{}, err
	}
	return newBalance(raw, token.Decimals), nil
}

// ReadBalancesBatch reads balances for all tokens on one chain, returning
// exactly one balance per input descriptor in input order. Tokens are
// grouped by contract and each group is fetched in a single batched call.
// When a batched call fails the group degrades to per-token reads; a token
// that still cannot be read yields a zero balance.
func (s *Scanner) ReadBalancesBatch(ctx context.Context, chainID int64, wallet string, tokens []domain.TokenDescriptor) ([]domain.Balance, error) {
	out := make([]domain.Balance, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	caller, err := s.chains.Caller(ctx, chainID)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress(wallet)
	if err != nil {
		return nil, err
	}
	reader := chain.NewERC1155Reader(caller)

	// Group input indexes by contract, keeping first-appearance order.
	groups := make(map[string][]int)
	var contracts []string
	for i, t := range tokens {
		key := strings.ToLower(t.Contract)
		if _, ok := groups[key]; !ok {
			contracts = append(contracts, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range contracts {
		idxs := groups[key]

		contract, err := parseAddress(tokens[idxs[0]].Contract)
		if err != nil {
			s.logger.Warn("skipping unreadable contract group",
				slog.String("contract", tokens[idxs[0]].Contract),
				slog.String("error", err.Error()),
			)
			for _, i := range idxs {
				out[i] = zeroBalance(tokens[i].Decimals)
			}
			continue
		}

		// A token ID that fails to parse gets a zero balance up front and
		// stays out of the batched call.
		var batch []int
		ids := make([]*big.Int, 0, len(idxs))
		for _, i := range idxs {
			id, err := parseTokenID(tokens[i].TokenID)
			if err != nil {
				s.logger.Warn("skipping unparseable token id",
					slog.String("token_id", tokens[i].TokenID),
					slog.String("error", err.Error()),
				)
				out[i] = zeroBalance(tokens[i].Decimals)
				continue
			}
			batch = append(batch, i)
			ids = append(ids, id)
		}
		if len(batch) == 0 {
			continue
		}

		accounts := make([]common.Address, len(batch))
		for j := range batch {
			accounts[j] = account
		}

		raws, err := reader.BalanceOfBatch(ctx, contract, accounts, ids)
		if err != nil {
			s.logger.Warn("batched balance read failed, retrying tokens individually",
				slog.Int64("chain_id", chainID),
				slog.String("contract", contract.Hex()),
				slog.Int("tokens", len(batch)),
				slog.String("error", err.Error()),
			)
			for j, i := range batch {
				raw, err := reader.BalanceOf(ctx, contract, account, ids[j])
				if err != nil {
					s.logger.Warn("single balance read failed, recording zero",
						slog.String("token_id", tokens[i].TokenID),
						slog.String("error", err.Error()),
					)
					out[i] = zeroBalance(tokens[i].Decimals)
					continue
				}
				out[i] = newBalance(raw, tokens[i].Decimals)
			}
			continue
		}

		for j, i := range batch {
			out[i] = newBalance(raws[j], tokens[i].Decimals)
		}
	}

	return out, nil
}

// ScanPositions reads balances for every descriptor and reports the
// positions whose formatted balance reaches minBalance. Descriptors are
// grouped by chain and the groups are read concurrently; a chain whose
// reads fail outright is logged and dropped without failing the scan.
// A minBalance of zero or less selects the default dust filter.
func (s *Scanner) ScanPositions(ctx context.Context, wallet string, positions []domain.PositionDescriptor, minBalance float64) (domain.ScanReport, error) {
	report := domain.ScanReport{Wallet: wallet}
	if len(positions) == 0 {
		return report, nil
	}
	if minBalance <= 0 {
		minBalance = domain.DefaultMinBalance
	}

	groups := make(map[int64][]domain.PositionDescriptor)
	var chainIDs []int64
	for _, p := range positions {
		if _, ok := groups[p.ChainID]; !ok {
			chainIDs = append(chainIDs, p.ChainID)
		}
		groups[p.ChainID] = append(groups[p.ChainID], p)
	}

	results := make([][]domain.ScannedPosition, len(chainIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, chainID := range chainIDs {
		group := groups[chainID]
		g.Go(func() error {
			scanned, err := s.scanChain(gctx, wallet, chainID, group, minBalance)
			if err != nil {
				s.logger.Warn("chain scan failed",
					slog.Int64("chain_id", chainID),
					slog.Int("positions", len(group)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = scanned
			return nil
		})
	}
	// Chain failures are folded into the log, never returned.
	_ = g.Wait()

	for _, scanned := range results {
		for _, p := range scanned {
			report.Positions = append(report.Positions, p)
			report.Total += p.Balance.Formatted
		}
	}

	s.logger.Info("position scan complete",
		slog.String("wallet", wallet),
		slog.Int("descriptors", len(positions)),
		slog.Int("held", len(report.Positions)),
		slog.Float64("total", report.Total),
	)
	return report, nil
}

func (s *Scanner) scanChain(ctx context.Context, wallet string, chainID int64, group []domain.PositionDescriptor, minBalance float64) ([]domain.ScannedPosition, error) {
	tokens := make([]domain.TokenDescriptor, len(group))
	for i, p := range group {
		tokens[i] = p.Token
	}

	balances, err := s.ReadBalancesBatch(ctx, chainID, wallet, tokens)
	if err != nil {
		return nil, err
	}

	var out []domain.ScannedPosition
	for i, b := range balances {
		if b.Formatted < minBalance {
			continue
		}
		p := group[i]
		out = append(out, domain.ScannedPosition{
			MarketID:  p.MarketID,
			Slug:      p.Slug,
			VenueSlug: p.VenueSlug,
			Outcome:   p.Outcome,
			ChainID:   p.ChainID,
			Contract:  p.Token.Contract,
			TokenID:   p.Token.TokenID,
			Balance:   b,
		})
	}
	return out, nil
}

// parseAddress validates and decodes a hex address.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("scan: invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseTokenID decodes a token ID given as a decimal or 0x-hex string.
func parseTokenID(s string) (*big.Int, error) {
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	id, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("scan: invalid token id %q", s)
	}
	return id, nil
}

// newBalance wraps a raw balance with its human-readable form. decimals of
// zero or less selects the venue default.
func newBalance(raw *big.Int, decimals int) domain.Balance {
	if decimals <= 0 {
		decimals = domain.DefaultTokenDecimals
	}
	if raw == nil {
		raw = new(big.Int)
	}
	return domain.Balance{
		Raw:       raw,
		Formatted: formatUnits(raw, decimals),
		Decimals:  decimals,
	}
}

func zeroBalance(decimals int) domain.Balance {
	return newBalance(new(big.Int), decimals)
}

// formatUnits converts a raw integer amount to a float at the given
// decimal scale.
func formatUnits(raw *big.Int, decimals int) float64 {
	if raw.Sign() == 0 {
		return 0
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	out, _ := new(big.Float).Quo(
		new(big.Float).SetInt(raw),
		new(big.Float).SetInt(scale),
	).Float64()
	return out
}
