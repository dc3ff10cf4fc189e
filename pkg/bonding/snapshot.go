package bonding

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/rewards"
)

// Snapshot is the persistable state of one curve instance: everything the
// engine mutates at runtime plus its adjustable configuration. Curve logic
// and ledgers are wiring, not state, and are re-supplied on restore.
type Snapshot struct {
	ID          uuid.UUID
	Owner       account.Account
	Beneficiary account.Account

	ReservePercentage uint64
	SplitOnPay        uint64
	PreMint           *uint256.Int
	MilestoneCap      *uint256.Int // nil when unset

	ReserveBalance *uint256.Int
	CurveBought    *uint256.Int
	CurveSold      *uint256.Int
	Paused         bool

	Rewards *rewards.Snapshot
}

// Snapshot captures the engine's current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var ceiling *uint256.Int
	if e.milestoneCap != nil {
		ceiling = new(uint256.Int).Set(e.milestoneCap)
	}
	return Snapshot{
		ID:                e.id,
		Owner:             e.owner,
		Beneficiary:       e.beneficiary,
		ReservePercentage: e.reservePct,
		SplitOnPay:        e.splitOnPay,
		PreMint:           amount.Clone(e.preMint),
		MilestoneCap:      ceiling,
		ReserveBalance:    amount.Clone(e.reserveBalance),
		CurveBought:       amount.Clone(e.curveBought),
		CurveSold:         amount.Clone(e.curveSold),
		Paused:            e.paused,
		Rewards:           e.dist.Snapshot(),
	}
}

// RestoreSnapshot overwrites the engine's state with a previously captured
// snapshot. The engine must have been constructed with the same wiring
// (ledgers, curves, accounts) that produced it.
func (e *Engine) RestoreSnapshot(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.owner = s.Owner
	e.beneficiary = s.Beneficiary
	e.reservePct = s.ReservePercentage
	e.splitOnPay = s.SplitOnPay
	e.preMint = amount.Clone(s.PreMint)
	if s.MilestoneCap != nil && !s.MilestoneCap.IsZero() {
		e.milestoneCap = new(uint256.Int).Set(s.MilestoneCap)
	} else {
		e.milestoneCap = nil
	}
	e.reserveBalance = amount.Clone(s.ReserveBalance)
	e.curveBought = amount.Clone(s.CurveBought)
	e.curveSold = amount.Clone(s.CurveSold)
	e.paused = s.Paused
	if s.Rewards != nil {
		e.dist.Restore(s.Rewards)
	}
}

// CurveBought returns the cumulative amount bought through the curve.
func (e *Engine) CurveBought() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(uint256.Int).Set(e.curveBought)
}

// CurveSold returns the cumulative amount sold back through the curve.
func (e *Engine) CurveSold() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(uint256.Int).Set(e.curveSold)
}

// PreMint returns the genesis pre-mint amount.
func (e *Engine) PreMint() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return amount.Clone(e.preMint)
}
