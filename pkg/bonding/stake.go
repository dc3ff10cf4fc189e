package bonding

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/journal"
	"github.com/curvelabs/bondcurve/pkg/rewards"
)

// Staking operations move bonded tokens between the participant and the
// curve's pool account, and keep the distributor's bookkeeping in step with
// the token custody.

// DepositStake locks bonded tokens in the pool and registers them with the
// rewards distributor.
func (e *Engine) DepositStake(ctx context.Context, who account.Account, amt *uint256.Int) (*rewards.DepositResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("deposit stake: %w", ErrZeroAmount)
	}

	if err := e.bonded.Transfer(ctx, who, e.pool, amt); err != nil {
		return nil, fmt.Errorf("deposit stake: %w", err)
	}
	res, err := e.dist.Deposit(ctx, who, amt)
	if err != nil {
		if backErr := e.bonded.Transfer(ctx, e.pool, who, amt); backErr != nil {
			e.log.Error("failed to return stake after deposit failure", "participant", who, "error", backErr)
		}
		return nil, fmt.Errorf("deposit stake: %w", err)
	}

	e.emit(ctx, journal.Event{Kind: journal.KindStakeDeposited, Actor: who, Amount: amount.Clone(amt)})
	return res, nil
}

// WithdrawStake releases staked bonded tokens back to the participant.
func (e *Engine) WithdrawStake(ctx context.Context, who account.Account, amt *uint256.Int) (*rewards.StakeWithdrawalResult, error) {
	res, err := e.dist.WithdrawStake(ctx, who, amt)
	if err != nil {
		return nil, fmt.Errorf("withdraw stake: %w", err)
	}
	if err := e.payOutStake(ctx, who, res.Amount); err != nil {
		return nil, fmt.Errorf("withdraw stake: %w", err)
	}

	e.emit(ctx, journal.Event{Kind: journal.KindStakeWithdrawn, Actor: who, Amount: amount.Clone(res.Amount)})
	return res, nil
}

// WithdrawAllStake releases the participant's entire staked balance.
func (e *Engine) WithdrawAllStake(ctx context.Context, who account.Account) (*rewards.StakeWithdrawalResult, error) {
	res, err := e.dist.WithdrawAllStake(ctx, who)
	if err != nil {
		return nil, fmt.Errorf("withdraw all stake: %w", err)
	}
	if res.Amount.IsZero() {
		return res, nil
	}
	if err := e.payOutStake(ctx, who, res.Amount); err != nil {
		return nil, fmt.Errorf("withdraw all stake: %w", err)
	}

	e.emit(ctx, journal.Event{Kind: journal.KindStakeWithdrawn, Actor: who, Amount: amount.Clone(res.Amount)})
	return res, nil
}

// payOutStake returns withdrawn stake from the pool, re-registering it with
// the distributor if the token transfer fails.
func (e *Engine) payOutStake(ctx context.Context, who account.Account, amt *uint256.Int) error {
	if err := e.bonded.Transfer(ctx, e.pool, who, amt); err != nil {
		if _, backErr := e.dist.Deposit(ctx, who, amt); backErr != nil {
			e.log.Error("failed to restore stake after payout failure", "participant", who, "error", backErr)
		}
		return err
	}
	return nil
}

// Reward returns the participant's pending reward.
func (e *Engine) Reward(who account.Account) (*uint256.Int, error) {
	return e.dist.Reward(who)
}

// Stake returns the participant's staked balance.
func (e *Engine) Stake(who account.Account) *uint256.Int {
	return e.dist.Stake(who)
}

// WithdrawReward pays out the participant's pending reward in collateral.
func (e *Engine) WithdrawReward(ctx context.Context, who account.Account) (*rewards.RewardWithdrawalResult, error) {
	res, err := e.dist.WithdrawReward(ctx, who)
	if err != nil {
		return nil, fmt.Errorf("withdraw reward: %w", err)
	}

	e.emit(ctx, journal.Event{Kind: journal.KindRewardWithdrawn, Actor: who, Amount: amount.Clone(res.Amount)})
	return res, nil
}
