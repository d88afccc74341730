package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// erc1155JSON is the slice of the ERC-1155 interface needed for balance
// reads. Venue position tokens (Polymarket conditional tokens, Limitless
// outcome tokens) are ERC-1155 deployments.
const erc1155JSON = `[
	{
		"type": "function",
		"name": "balanceOf",
		"stateMutability": "view",
		"inputs": [
			{"name": "account", "type": "address"},
			{"name": "id", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "balanceOfBatch",
		"stateMutability": "view",
		"inputs": [
			{"name": "accounts", "type": "address[]"},
			{"name": "ids", "type": "uint256[]"}
		],
		"outputs": [{"name": "", "type": "uint256[]"}]
	}
]`

var erc1155ABI = mustParseABI(erc1155JSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("chain: parse erc1155 abi: %v", err))
	}
	return parsed
}

// ERC1155Reader reads token balances through a chain's Caller.
type ERC1155Reader struct {
	caller Caller
}

// NewERC1155Reader creates a reader over the given call surface.
func NewERC1155Reader(caller Caller) *ERC1155Reader {
	return &ERC1155Reader{caller: caller}
}

// BalanceOf returns the balance of one (account, tokenID) pair on the
// given contract.
func (r *ERC1155Reader) BalanceOf(ctx context.Context, contract, account common.Address, tokenID *big.Int) (*big.Int, error) {
	data, err := erc1155ABI.Pack("balanceOf", account, tokenID)
	if err != nil {
		return nil, fmt.Errorf("chain: pack balanceOf: %w", err)
	}

	output, err := r.call(ctx, contract, data)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf call: %w", err)
	}

	res, err := erc1155ABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack balanceOf: %w", err)
	}
	balance, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOf returned %T, want *big.Int", res[0])
	}
	return balance, nil
}

// BalanceOfBatch returns balances for the parallel accounts and ids slices
// in a single round trip. The result is position-aligned with the inputs.
func (r *ERC1155Reader) BalanceOfBatch(ctx context.Context, contract common.Address, accounts []common.Address, ids []*big.Int) ([]*big.Int, error) {
	if len(accounts) != len(ids) {
		return nil, fmt.Errorf("chain: balanceOfBatch: %d accounts vs %d ids", len(accounts), len(ids))
	}

	data, err := erc1155ABI.Pack("balanceOfBatch", accounts, ids)
	if err != nil {
		return nil, fmt.Errorf("chain: pack balanceOfBatch: %w", err)
	}

	output, err := r.call(ctx, contract, data)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOfBatch call: %w", err)
	}

	res, err := erc1155ABI.Unpack("balanceOfBatch", output)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack balanceOfBatch: %w", err)
	}
	balances, ok := res[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOfBatch returned %T, want []*big.Int", res[0])
	}
	if len(balances) != len(ids) {
		return nil, fmt.Errorf("chain: balanceOfBatch returned %d balances, want %d", len(balances), len(ids))
	}
	return balances, nil
}

func (r *ERC1155Reader) call(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	// An empty return usually means no contract is deployed at the address.
	if len(output) == 0 {
		return nil, fmt.Errorf("empty result, no contract at %s", contract.Hex())
	}
	return output, nil
}
