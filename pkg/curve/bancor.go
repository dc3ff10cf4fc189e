package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/bancor"
)

// Bancor prices trades with a Bancor-style power law at a fixed connector
// weight, delegating the fixed-precision math to the bancor service.
type Bancor struct {
	svc   *bancor.Service
	ratio uint32
}

// NewBancor builds a power-law curve with the given reserve ratio in
// parts-per-million of connector weight. The ratio is immutable.
func NewBancor(svc *bancor.Service, reserveRatio uint32) (*Bancor, error) {
	if reserveRatio == 0 || reserveRatio > bancor.MaxRatio {
		return nil, fmt.Errorf("reserve ratio %d: %w", reserveRatio, bancor.ErrInvalidRatio)
	}
	if svc == nil {
		svc = bancor.NewService()
	}
	return &Bancor{svc: svc, ratio: reserveRatio}, nil
}

// ReserveRatio returns the connector weight in parts-per-million.
func (c *Bancor) ReserveRatio() uint32 {
	return c.ratio
}

func (c *Bancor) PriceToMint(supply, reserve, amt *uint256.Int) (*uint256.Int, error) {
	return c.svc.FundCost(supply, reserve, c.ratio, amt)
}

func (c *Bancor) RewardForBurn(supply, reserve, amt *uint256.Int) (*uint256.Int, error) {
	return c.svc.SaleReturn(supply, reserve, c.ratio, amt)
}
