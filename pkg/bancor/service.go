package bancor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/amount"
)

// MaxRatio is the connector weight denominator: ratios are expressed in
// parts-per-million, and MaxRatio means a fully collateralized connector.
const MaxRatio uint32 = 1_000_000

var (
	ErrInvalidRatio        = errors.New("reserve ratio must be in (0, 1000000]")
	ErrZeroSupply          = errors.New("supply must be positive")
	ErrZeroReserve         = errors.New("reserve balance must be positive")
	ErrAmountExceedsSupply = errors.New("amount exceeds supply")
)

// Service evaluates the Bancor purchase/sale/fund-cost formulas. It is
// stateless and safe for concurrent use.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func validate(supply, reserve *uint256.Int, ratio uint32) error {
	if ratio == 0 || ratio > MaxRatio {
		return fmt.Errorf("ratio %d: %w", ratio, ErrInvalidRatio)
	}
	if supply.IsZero() {
		return ErrZeroSupply
	}
	if reserve.IsZero() {
		return ErrZeroReserve
	}
	return nil
}

// linearReturn computes a*b/c through big.Int so the intermediate product
// may exceed 256 bits.
func linearReturn(a, b, c *uint256.Int) (*uint256.Int, error) {
	prod := new(big.Int).Mul(a.ToBig(), b.ToBig())
	prod.Div(prod, c.ToBig())
	v, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, fmt.Errorf("linear return needs %d bits: %w", prod.BitLen(), amount.ErrOverflow)
	}
	return v, nil
}

// PurchaseReturn computes the bonded tokens minted for a collateral deposit:
//
//	supply * ((1 + deposit/reserve)^(ratio/MaxRatio) - 1)
//
// floored to the nearest integer. A zero deposit returns zero.
func (s *Service) PurchaseReturn(supply, reserve *uint256.Int, ratio uint32, deposit *uint256.Int) (*uint256.Int, error) {
	if err := validate(supply, reserve, ratio); err != nil {
		return nil, err
	}
	if deposit.IsZero() {
		return uint256.NewInt(0), nil
	}
	if ratio == MaxRatio {
		return linearReturn(supply, deposit, reserve)
	}

	base := newFloat().Quo(floatFromUint256(deposit), floatFromUint256(reserve))
	base.Add(base, newFloat().SetInt64(1))

	p, err := pow(base, uint64(ratio), uint64(MaxRatio))
	if err != nil {
		return nil, err
	}

	p.Sub(p, newFloat().SetInt64(1))
	p.Mul(p, floatFromUint256(supply))
	return floorUint256(p)
}

// SaleReturn computes the collateral released for burning bonded tokens:
//
//	reserve * (1 - (1 - sellAmount/supply)^(MaxRatio/ratio))
//
// floored. Selling the entire supply returns the entire reserve exactly.
func (s *Service) SaleReturn(supply, reserve *uint256.Int, ratio uint32, sellAmount *uint256.Int) (*uint256.Int, error) {
	if err := validate(supply, reserve, ratio); err != nil {
		return nil, err
	}
	if sellAmount.IsZero() {
		return uint256.NewInt(0), nil
	}
	if sellAmount.Gt(supply) {
		return nil, fmt.Errorf("sell %s of %s: %w", sellAmount.Dec(), supply.Dec(), ErrAmountExceedsSupply)
	}
	if sellAmount.Eq(supply) {
		return new(uint256.Int).Set(reserve), nil
	}
	if ratio == MaxRatio {
		return linearReturn(reserve, sellAmount, supply)
	}

	base := newFloat().Quo(floatFromUint256(sellAmount), floatFromUint256(supply))
	base.Sub(newFloat().SetInt64(1), base)

	p, err := pow(base, uint64(MaxRatio), uint64(ratio))
	if err != nil {
		return nil, err
	}
	if p.Sign() == 0 {
		// The power underflowed the working precision: the true result is
		// strictly inside (reserve-1, reserve), which floors to reserve-1.
		return new(uint256.Int).Sub(reserve, uint256.NewInt(1)), nil
	}

	p.Sub(newFloat().SetInt64(1), p)
	p.Mul(p, floatFromUint256(reserve))
	return floorUint256(p)
}

// FundCost computes the collateral required to mint a given number of bonded
// tokens:
//
//	reserve * ((1 + amount/supply)^(MaxRatio/ratio) - 1)
//
// floored. This is the inverse view of PurchaseReturn and backs the buy-side
// price quote.
func (s *Service) FundCost(supply, reserve *uint256.Int, ratio uint32, amt *uint256.Int) (*uint256.Int, error) {
	if err := validate(supply, reserve, ratio); err != nil {
		return nil, err
	}
	if amt.IsZero() {
		return uint256.NewInt(0), nil
	}
	if ratio == MaxRatio {
		return linearReturn(reserve, amt, supply)
	}

	base := newFloat().Quo(floatFromUint256(amt), floatFromUint256(supply))
	base.Add(base, newFloat().SetInt64(1))

	p, err := pow(base, uint64(MaxRatio), uint64(ratio))
	if err != nil {
		return nil, err
	}

	p.Sub(p, newFloat().SetInt64(1))
	p.Mul(p, floatFromUint256(reserve))
	return floorUint256(p)
}
