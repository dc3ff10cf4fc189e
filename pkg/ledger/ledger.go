// Package ledger models the fungible-token collaborator the engine
// instructs. The engine only computes amounts; a Ledger executes the actual
// balance changes and is the source of truth for balances and supply.
package ledger

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Ledger is a fungible-balance store. Implementations must apply each call
// atomically: a returned error means no balance changed.
type Ledger interface {
	Mint(ctx context.Context, to account.Account, amt *uint256.Int) error
	Burn(ctx context.Context, from account.Account, amt *uint256.Int) error
	Transfer(ctx context.Context, from, to account.Account, amt *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to account.Account, amt *uint256.Int) error
	Approve(ctx context.Context, owner, spender account.Account, amt *uint256.Int) error
	BalanceOf(ctx context.Context, a account.Account) (*uint256.Int, error)
	Allowance(ctx context.Context, owner, spender account.Account) (*uint256.Int, error)
	TotalSupply(ctx context.Context) (*uint256.Int, error)
}
