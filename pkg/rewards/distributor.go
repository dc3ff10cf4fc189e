// Package rewards tracks per-participant stake and distributes collateral
// proportionally to staked balances over time. Stakes count toward the
// distribution denominator in whole eligible units, which keeps dust
// deposits from collapsing the per-unit quotient to zero-reward noise, and
// the integer remainder of every distribution is carried into the next one
// so no collateral is ever lost to rounding.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/ledger"
)

// EligibleUnit is the minimum stake magnitude counted toward the
// distribution denominator. Stakes below one unit accumulate but earn
// nothing until they cross the boundary.
const EligibleUnit = 1_000_000_000

var (
	// ErrNoEligibleStake is returned when a distribution finds no eligible
	// stake to receive it. Failing loud here is deliberate: a silent no-op
	// would strand the payment invisibly.
	ErrNoEligibleStake = errors.New("no eligible stake to distribute to")

	ErrInsufficientStake = errors.New("withdrawal exceeds staked balance")
	ErrZeroAmount        = errors.New("amount must be positive")
)

type Config struct {
	Logger *slog.Logger
	Ledger ledger.Ledger   // collateral ledger used to pay out rewards
	Pool   account.Account // account holding undistributed reward collateral
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Pool.IsZero() {
		return errors.New("pool account is required")
	}
	return nil
}

type participant struct {
	stake   *uint256.Int
	credit  *uint256.Int // perUnit checkpoint at last settlement
	pending *uint256.Int // settled but unclaimed reward
}

// Distributor holds the reward bookkeeping for one curve instance.
// Participant records are created on first deposit and never removed; a
// fully withdrawn participant keeps a valid record for later re-deposits.
type Distributor struct {
	log  *slog.Logger
	book ledger.Ledger
	pool account.Account

	mu            sync.Mutex
	participants  map[account.Account]*participant
	totalEligible *uint256.Int // unit-floored eligible stake, base units
	perUnit       *uint256.Int // accumulated reward per eligible unit
	remainder     *uint256.Int // undistributed dust carried forward
}

func NewDistributor(cfg Config) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{
		log:           cfg.Logger,
		book:          cfg.Ledger,
		pool:          cfg.Pool,
		participants:  make(map[account.Account]*participant),
		totalEligible: uint256.NewInt(0),
		perUnit:       uint256.NewInt(0),
		remainder:     uint256.NewInt(0),
	}, nil
}

func (d *Distributor) record(a account.Account) *participant {
	p, ok := d.participants[a]
	if !ok {
		p = &participant{
			stake:   uint256.NewInt(0),
			credit:  new(uint256.Int).Set(d.perUnit),
			pending: uint256.NewInt(0),
		}
		d.participants[a] = p
	}
	return p
}

// eligibleUnits floors a stake to whole eligible units.
func eligibleUnits(stake *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(stake, uint256.NewInt(EligibleUnit))
}

// eligibleBase is the unit-floored stake in base units, the portion counted
// in the distribution denominator.
func eligibleBase(stake *uint256.Int) *uint256.Int {
	units := eligibleUnits(stake)
	return units.Mul(units, uint256.NewInt(EligibleUnit))
}

// settle credits the participant's reward earned since the last checkpoint.
// It must run before any stake mutation, else historic rewards would leak
// into an increased stake or vanish from a decreased one.
func (d *Distributor) settle(p *participant) error {
	delta := new(uint256.Int).Sub(d.perUnit, p.credit)
	if !delta.IsZero() {
		earned, err := amount.Mul(eligibleUnits(p.stake), delta)
		if err != nil {
			return err
		}
		pending, err := amount.Add(p.pending, earned)
		if err != nil {
			return err
		}
		p.pending = pending
	}
	p.credit = new(uint256.Int).Set(d.perUnit)
	return nil
}

// applyStakeChange re-evaluates eligibility after p.stake moved from
// oldStake. Crossing the unit boundary adds or removes the participant's
// entire unit-floored stake, not just the delta.
func (d *Distributor) applyStakeChange(oldStake, newStake *uint256.Int) error {
	oldBase := eligibleBase(oldStake)
	newBase := eligibleBase(newStake)

	total, err := amount.Sub(d.totalEligible, oldBase)
	if err != nil {
		return err
	}
	total, err = amount.Add(total, newBase)
	if err != nil {
		return err
	}
	d.totalEligible = total
	return nil
}

// DepositResult records a completed stake deposit.
type DepositResult struct {
	Participant account.Account
	Amount      *uint256.Int
	NewStake    *uint256.Int
}

// Deposit increases a participant's stake, settling pending reward first.
func (d *Distributor) Deposit(_ context.Context, who account.Account, amt *uint256.Int) (*DepositResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("deposit for %s: %w", who, ErrZeroAmount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.record(who)
	if err := d.settle(p); err != nil {
		return nil, fmt.Errorf("settle %s: %w", who, err)
	}

	newStake, err := amount.Add(p.stake, amt)
	if err != nil {
		return nil, fmt.Errorf("deposit for %s: %w", who, err)
	}
	if err := d.applyStakeChange(p.stake, newStake); err != nil {
		return nil, fmt.Errorf("deposit for %s: %w", who, err)
	}
	p.stake = newStake

	d.log.Debug("rewards: deposit", "participant", who, "amount", amt.Dec(), "stake", newStake.Dec())
	return &DepositResult{Participant: who, Amount: amount.Clone(amt), NewStake: amount.Clone(newStake)}, nil
}

// StakeWithdrawalResult records a completed stake withdrawal.
type StakeWithdrawalResult struct {
	Participant account.Account
	Amount      *uint256.Int
	NewStake    *uint256.Int
}

// WithdrawStake decreases a participant's stake, settling pending reward
// first. Withdrawing more than is staked fails without side effects.
func (d *Distributor) WithdrawStake(_ context.Context, who account.Account, amt *uint256.Int) (*StakeWithdrawalResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("withdraw for %s: %w", who, ErrZeroAmount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.withdrawStakeLocked(who, amt)
}

func (d *Distributor) withdrawStakeLocked(who account.Account, amt *uint256.Int) (*StakeWithdrawalResult, error) {
	p := d.record(who)
	if p.stake.Lt(amt) {
		return nil, fmt.Errorf("withdraw %s of %s staked: %w", amt.Dec(), p.stake.Dec(), ErrInsufficientStake)
	}
	if err := d.settle(p); err != nil {
		return nil, fmt.Errorf("settle %s: %w", who, err)
	}

	newStake := new(uint256.Int).Sub(p.stake, amt)
	if err := d.applyStakeChange(p.stake, newStake); err != nil {
		return nil, fmt.Errorf("withdraw for %s: %w", who, err)
	}
	p.stake = newStake

	d.log.Debug("rewards: stake withdrawal", "participant", who, "amount", amt.Dec(), "stake", newStake.Dec())
	return &StakeWithdrawalResult{Participant: who, Amount: amount.Clone(amt), NewStake: amount.Clone(newStake)}, nil
}

// WithdrawAllStake withdraws the participant's full staked balance.
func (d *Distributor) WithdrawAllStake(_ context.Context, who account.Account) (*StakeWithdrawalResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.record(who)
	if p.stake.IsZero() {
		return &StakeWithdrawalResult{Participant: who, Amount: uint256.NewInt(0), NewStake: uint256.NewInt(0)}, nil
	}
	return d.withdrawStakeLocked(who, new(uint256.Int).Set(p.stake))
}

// DistributionResult records a completed distribution.
type DistributionResult struct {
	Amount      *uint256.Int // amount passed in
	Distributed *uint256.Int // portion credited to stakers this call
	Remainder   *uint256.Int // dust carried to the next distribution
}

// Distribute divides amt plus any carried remainder across all eligible
// units. The integer quotient is credited per unit; the new remainder is
// carried so the collateral is always eventually distributed.
func (d *Distributor) Distribute(_ context.Context, amt *uint256.Int) (*DistributionResult, error) {
	if amt == nil {
		amt = uint256.NewInt(0)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	units := new(uint256.Int).Div(d.totalEligible, uint256.NewInt(EligibleUnit))
	if units.IsZero() {
		return nil, fmt.Errorf("distribute %s: %w", amt.Dec(), ErrNoEligibleStake)
	}

	temp, err := amount.Add(amt, d.remainder)
	if err != nil {
		return nil, fmt.Errorf("distribute %s: %w", amt.Dec(), err)
	}

	per := new(uint256.Int).Div(temp, units)
	perUnit, err := amount.Add(d.perUnit, per)
	if err != nil {
		return nil, fmt.Errorf("distribute %s: %w", amt.Dec(), err)
	}

	distributed := new(uint256.Int).Mul(per, units)
	d.remainder = new(uint256.Int).Mod(temp, units)
	d.perUnit = perUnit

	d.log.Debug("rewards: distribution",
		"amount", amt.Dec(), "distributed", distributed.Dec(), "remainder", d.remainder.Dec())
	return &DistributionResult{
		Amount:      amount.Clone(amt),
		Distributed: distributed,
		Remainder:   amount.Clone(d.remainder),
	}, nil
}

// Reward returns the participant's pending reward without mutating state.
func (d *Distributor) Reward(who account.Account) (*uint256.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.participants[who]
	if !ok {
		return uint256.NewInt(0), nil
	}
	delta := new(uint256.Int).Sub(d.perUnit, p.credit)
	earned, err := amount.Mul(eligibleUnits(p.stake), delta)
	if err != nil {
		return nil, err
	}
	return amount.Add(p.pending, earned)
}

// RewardWithdrawalResult records a completed reward withdrawal. A zero
// amount is a valid outcome, not an error.
type RewardWithdrawalResult struct {
	Participant account.Account
	Amount      *uint256.Int
}

// WithdrawReward settles and pays out the participant's pending reward from
// the pool account. A failed payout restores the pending balance.
func (d *Distributor) WithdrawReward(ctx context.Context, who account.Account) (*RewardWithdrawalResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.record(who)
	if err := d.settle(p); err != nil {
		return nil, fmt.Errorf("settle %s: %w", who, err)
	}

	out := p.pending
	p.pending = uint256.NewInt(0)

	if !out.IsZero() {
		if err := d.book.Transfer(ctx, d.pool, who, out); err != nil {
			p.pending = out
			return nil, fmt.Errorf("pay reward to %s: %w", who, err)
		}
	}

	d.log.Debug("rewards: reward withdrawal", "participant", who, "amount", out.Dec())
	return &RewardWithdrawalResult{Participant: who, Amount: amount.Clone(out)}, nil
}

// Stake returns the participant's staked balance.
func (d *Distributor) Stake(who account.Account) *uint256.Int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.participants[who]; ok {
		return new(uint256.Int).Set(p.stake)
	}
	return uint256.NewInt(0)
}

// TotalEligibleStake returns the unit-floored eligible stake in base units.
func (d *Distributor) TotalEligibleStake() *uint256.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return new(uint256.Int).Set(d.totalEligible)
}
