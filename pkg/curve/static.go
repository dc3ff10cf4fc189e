package curve

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/amount"
)

// Precision is the fixed scale of Static's token ratio: a ratio of
// Precision prices one bonded token at exactly one collateral unit.
const Precision = 1_000_000

// ErrZeroRatio is returned when constructing a static curve with ratio zero.
var ErrZeroRatio = errors.New("token ratio must be positive")

// Static prices both directions linearly at a fixed ratio. Supply and
// reserve are accepted for interface uniformity but unused.
type Static struct {
	tokenRatio *uint256.Int
}

// NewStatic builds a constant-ratio curve. The ratio is immutable.
func NewStatic(tokenRatio *uint256.Int) (*Static, error) {
	if tokenRatio == nil || tokenRatio.IsZero() {
		return nil, ErrZeroRatio
	}
	return &Static{tokenRatio: new(uint256.Int).Set(tokenRatio)}, nil
}

// price computes amt * tokenRatio / Precision with a widened intermediate
// product, flooring the division.
func (c *Static) price(amt *uint256.Int) (*uint256.Int, error) {
	prod := new(big.Int).Mul(amt.ToBig(), c.tokenRatio.ToBig())
	prod.Div(prod, big.NewInt(Precision))
	v, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, fmt.Errorf("static price needs %d bits: %w", prod.BitLen(), amount.ErrOverflow)
	}
	return v, nil
}

func (c *Static) PriceToMint(_, _, amt *uint256.Int) (*uint256.Int, error) {
	return c.price(amt)
}

func (c *Static) RewardForBurn(_, _, amt *uint256.Int) (*uint256.Int, error) {
	return c.price(amt)
}
