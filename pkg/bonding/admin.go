package bonding

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/curve"
	"github.com/curvelabs/bondcurve/pkg/journal"
)

// requireOwner enforces owner gating under the held lock. A stale owner
// after an ownership transfer fails this check like any other caller.
func (e *Engine) requireOwner(actor account.Account) error {
	if actor != e.owner {
		return fmt.Errorf("%s is not the owner: %w", actor, ErrUnauthorized)
	}
	return nil
}

// TransferOwnership hands the curve to a new owner.
func (e *Engine) TransferOwnership(ctx context.Context, actor, newOwner account.Account) error {
	if newOwner.IsZero() {
		return fmt.Errorf("transfer ownership: %w", account.ErrInvalidAccount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}

	e.owner = newOwner
	e.log.Info("ownership transferred", "from", actor, "to", newOwner)
	e.emit(ctx, journal.Event{Kind: journal.KindOwnershipTransferred, Actor: actor, Recipient: newOwner})
	return nil
}

// SetBeneficiary changes where buy skims and payment shares are sent.
func (e *Engine) SetBeneficiary(ctx context.Context, actor, beneficiary account.Account) error {
	if beneficiary.IsZero() {
		return fmt.Errorf("set beneficiary: %w", account.ErrInvalidAccount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set beneficiary: %w", err)
	}

	e.beneficiary = beneficiary
	e.log.Info("beneficiary set", "beneficiary", beneficiary)
	e.emit(ctx, journal.Event{Kind: journal.KindBeneficiarySet, Actor: actor, Recipient: beneficiary})
	return nil
}

// SetBuyCurve swaps the pricing logic for purchases.
func (e *Engine) SetBuyCurve(ctx context.Context, actor account.Account, logic curve.Logic) error {
	if logic == nil {
		return fmt.Errorf("set buy curve: logic is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set buy curve: %w", err)
	}

	e.buyCurve = logic
	e.log.Info("buy curve set")
	e.emit(ctx, journal.Event{Kind: journal.KindCurveSet, Actor: actor})
	return nil
}

// SetSellCurve swaps the pricing logic for sales.
func (e *Engine) SetSellCurve(ctx context.Context, actor account.Account, logic curve.Logic) error {
	if logic == nil {
		return fmt.Errorf("set sell curve: logic is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set sell curve: %w", err)
	}

	e.sellCurve = logic
	e.log.Info("sell curve set")
	e.emit(ctx, journal.Event{Kind: journal.KindCurveSet, Actor: actor})
	return nil
}

// SetSplitOnPay changes the beneficiary share of payments.
func (e *Engine) SetSplitOnPay(ctx context.Context, actor account.Account, pct uint64) error {
	if err := amount.ValidatePercentage(pct); err != nil {
		return fmt.Errorf("set split on pay: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set split on pay: %w", err)
	}

	e.splitOnPay = pct
	e.log.Info("split on pay set", "percentage", pct)
	e.emit(ctx, journal.Event{Kind: journal.KindSplitOnPaySet, Actor: actor, Amount: uint256.NewInt(pct)})
	return nil
}

// SetReservePercentage changes the reserve share of purchase prices.
func (e *Engine) SetReservePercentage(ctx context.Context, actor account.Account, pct uint64) error {
	if err := amount.ValidatePercentage(pct); err != nil {
		return fmt.Errorf("set reserve percentage: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set reserve percentage: %w", err)
	}

	e.reservePct = pct
	e.log.Info("reserve percentage set", "percentage", pct)
	e.emit(ctx, journal.Event{Kind: journal.KindReservePctSet, Actor: actor, Amount: uint256.NewInt(pct)})
	return nil
}

// SetMilestoneCap sets or clears the total supply ceiling. Nil or zero
// clears it; a cap below the current supply is rejected.
func (e *Engine) SetMilestoneCap(ctx context.Context, actor account.Account, cap *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set milestone cap: %w", err)
	}

	if cap == nil || cap.IsZero() {
		e.milestoneCap = nil
		e.log.Info("milestone cap cleared")
		e.emit(ctx, journal.Event{Kind: journal.KindMilestoneCapSet, Actor: actor, Amount: uint256.NewInt(0)})
		return nil
	}

	supply, err := e.bonded.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("set milestone cap: total supply: %w", err)
	}
	if cap.Lt(supply) {
		return fmt.Errorf("set milestone cap %s at supply %s: %w", cap.Dec(), supply.Dec(), ErrCapBelowSupply)
	}

	e.milestoneCap = new(uint256.Int).Set(cap)
	e.log.Info("milestone cap set", "cap", cap.Dec())
	e.emit(ctx, journal.Event{Kind: journal.KindMilestoneCapSet, Actor: actor, Amount: amount.Clone(cap)})
	return nil
}

// Pause blocks buys and sells for every caller until Unpause.
func (e *Engine) Pause(ctx context.Context, actor account.Account) error {
	return e.setPaused(ctx, actor, true)
}

// Unpause lifts a pause.
func (e *Engine) Unpause(ctx context.Context, actor account.Account) error {
	return e.setPaused(ctx, actor, false)
}

func (e *Engine) setPaused(ctx context.Context, actor account.Account, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(actor); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}

	e.paused = paused
	e.log.Info("paused set", "paused", paused)
	flag := uint256.NewInt(0)
	if paused {
		flag = uint256.NewInt(1)
	}
	e.emit(ctx, journal.Event{Kind: journal.KindPausedSet, Actor: actor, Amount: flag})
	return nil
}

// Owner returns the current owner.
func (e *Engine) Owner() account.Account {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner
}

// Beneficiary returns the current beneficiary.
func (e *Engine) Beneficiary() account.Account {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.beneficiary
}

// Paused reports whether trading is blocked.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// ReserveBalance returns the collateral held in reserve.
func (e *Engine) ReserveBalance() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(uint256.Int).Set(e.reserveBalance)
}

// MilestoneCap returns the supply ceiling, or nil when unset.
func (e *Engine) MilestoneCap() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.milestoneCap == nil {
		return nil
	}
	return new(uint256.Int).Set(e.milestoneCap)
}

// SplitOnPay returns the beneficiary share of payments.
func (e *Engine) SplitOnPay() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.splitOnPay
}

// ReservePercentage returns the reserve share of purchase prices.
func (e *Engine) ReservePercentage() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reservePct
}
