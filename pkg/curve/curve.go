// Package curve defines the pricing strategy consulted by the bonding curve
// engine. Implementations are pure functions of their inputs so the engine
// can serve quotes without side effects and swap strategies freely.
package curve

import (
	"github.com/holiman/uint256"
)

// Logic prices trades against the current curve state. Amounts are
// non-negative; implementations floor all division and surface overflow
// instead of wrapping. Both methods must be side-effect free.
type Logic interface {
	// PriceToMint returns the collateral required to mint amt bonded tokens
	// at the given supply and reserve.
	PriceToMint(supply, reserve, amt *uint256.Int) (*uint256.Int, error)

	// RewardForBurn returns the collateral released for burning amt bonded
	// tokens at the given supply and reserve.
	RewardForBurn(supply, reserve, amt *uint256.Int) (*uint256.Int, error)
}
