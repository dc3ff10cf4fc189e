// Package journal records the event history of bonding curve instances.
// Recording is best-effort from the engine's point of view: a trade that
// already settled is never rolled back because its event could not be
// persisted.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
)

// Kind identifies the type of a journal event.
type Kind string

const (
	KindBuy                  Kind = "buy"
	KindSell                 Kind = "sell"
	KindPay                  Kind = "pay"
	KindCurveSet             Kind = "curve_set"
	KindBeneficiarySet       Kind = "beneficiary_set"
	KindMilestoneCapSet      Kind = "milestone_cap_set"
	KindSplitOnPaySet        Kind = "split_on_pay_set"
	KindReservePctSet        Kind = "reserve_percentage_set"
	KindOwnershipTransferred Kind = "ownership_transferred"
	KindPausedSet            Kind = "paused_set"
	KindStakeDeposited       Kind = "stake_deposited"
	KindStakeWithdrawn       Kind = "stake_withdrawn"
	KindRewardsDistributed   Kind = "rewards_distributed"
	KindRewardWithdrawn      Kind = "reward_withdrawn"
)

// Event is a single entry in a curve's history. Amount fields that do not
// apply to the event kind are left nil.
type Event struct {
	ID        uuid.UUID
	At        time.Time
	CurveID   uuid.UUID
	Kind      Kind
	Actor     account.Account
	Recipient account.Account

	Amount            *uint256.Int
	Price             *uint256.Int
	Reserve           *uint256.Int
	BeneficiaryAmount *uint256.Int
	DividendAmount    *uint256.Int
}

// Journal persists events.
type Journal interface {
	Record(ctx context.Context, ev Event) error
}

// Tee fans writes out to every journal, returning the first error after all
// have been attempted.
func Tee(journals ...Journal) Journal {
	return tee(journals)
}

type tee []Journal

func (t tee) Record(ctx context.Context, ev Event) error {
	var firstErr error
	for _, j := range t {
		if err := j.Record(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Discard drops every event. Useful for engines that do not need history.
var Discard Journal = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) error { return nil }
