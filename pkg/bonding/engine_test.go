package bonding_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/curve"
	"github.com/curvelabs/bondcurve/pkg/journal"
	"github.com/curvelabs/bondcurve/pkg/ledger"
	"github.com/curvelabs/bondcurve/pkg/rewards"
	bondtesting "github.com/curvelabs/bondcurve/utils/pkg/testing"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type env struct {
	collateral *ledger.Memory
	bonded     *ledger.Memory
	dist       *rewards.Distributor
	jrnl       *journal.Memory
	clock      *clockwork.FakeClock

	owner       account.Account
	beneficiary account.Account
	reserve     account.Account
	pool        account.Account
	alice       account.Account
	bob         account.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		collateral:  ledger.NewMemory(),
		bonded:      ledger.NewMemory(),
		jrnl:        journal.NewMemory(64),
		clock:       clockwork.NewFakeClock(),
		owner:       account.Derive("owner"),
		beneficiary: account.Derive("beneficiary"),
		reserve:     account.Derive("reserve"),
		pool:        account.Derive("pool"),
		alice:       account.Derive("alice"),
		bob:         account.Derive("bob"),
	}
	dist, err := rewards.NewDistributor(rewards.Config{
		Logger: bondtesting.NewLogger(),
		Ledger: e.collateral,
		Pool:   e.pool,
	})
	require.NoError(t, err)
	e.dist = dist
	return e
}

// config returns an engine config with a 1:1 static curve both ways and the
// full purchase price kept in reserve.
func (e *env) config(t *testing.T) bonding.Config {
	t.Helper()
	oneToOne, err := curve.NewStatic(u(curve.Precision))
	require.NoError(t, err)
	return bonding.Config{
		Logger:            bondtesting.NewLogger(),
		Clock:             e.clock,
		Owner:             e.owner,
		Beneficiary:       e.beneficiary,
		Reserve:           e.reserve,
		Pool:              e.pool,
		Collateral:        e.collateral,
		Bonded:            e.bonded,
		BuyCurve:          oneToOne,
		SellCurve:         oneToOne,
		ReservePercentage: 100,
		SplitOnPay:        10,
		Journal:           e.jrnl,
		Distributor:       e.dist,
	}
}

func (e *env) engine(t *testing.T, cfg bonding.Config) *bonding.Engine {
	t.Helper()
	eng, err := bonding.New(t.Context(), cfg)
	require.NoError(t, err)
	return eng
}

func (e *env) fund(t *testing.T, who account.Account, amt uint64) {
	t.Helper()
	require.NoError(t, e.collateral.Mint(t.Context(), who, u(amt)))
}

func balance(t *testing.T, book *ledger.Memory, who account.Account) uint64 {
	t.Helper()
	b, err := book.BalanceOf(t.Context(), who)
	require.NoError(t, err)
	return b.Uint64()
}

func TestBuy_MovesCollateralAndMints(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	res, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), res.Price.Uint64())
	assert.Equal(t, uint64(1000), res.ReserveAmount.Uint64())
	assert.Equal(t, uint64(0), res.BeneficiaryAmount.Uint64())
	assert.Equal(t, uint64(9000), balance(t, env.collateral, env.alice))
	assert.Equal(t, uint64(1000), balance(t, env.collateral, env.reserve))
	assert.Equal(t, uint64(1000), balance(t, env.bonded, env.alice))
	assert.Equal(t, uint64(1000), eng.ReserveBalance().Uint64())
	assert.Equal(t, uint64(1000), eng.CurveBought().Uint64())

	recent := env.jrnl.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, journal.KindBuy, recent[0].Kind)
	assert.Equal(t, env.alice, recent[0].Actor)
	assert.Equal(t, env.clock.Now(), recent[0].At)
}

func TestBuy_BeneficiarySkim(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	cfg := env.config(t)
	cfg.ReservePercentage = 90
	eng := env.engine(t, cfg)
	env.fund(t, env.alice, 10_000)

	res, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(900), res.ReserveAmount.Uint64())
	assert.Equal(t, uint64(100), res.BeneficiaryAmount.Uint64())
	assert.Equal(t, uint64(100), balance(t, env.collateral, env.beneficiary))
	assert.Equal(t, uint64(900), eng.ReserveBalance().Uint64(), "only the reserve share backs the curve")
}

func TestBuy_RecipientDefaultsToBuyer(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, account.Account(""), u(500), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance(t, env.bonded, env.alice))

	_, err = eng.Buy(ctx, env.alice, env.bob, u(200), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), balance(t, env.bonded, env.bob))
}

func TestBuy_Slippage(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), u(999))
	assert.ErrorIs(t, err, bonding.ErrSlippageExceeded)

	// A zero bound means no bound at all.
	_, err = eng.Buy(ctx, env.alice, env.alice, u(1000), u(0))
	require.NoError(t, err)

	_, err = eng.Buy(ctx, env.alice, env.alice, u(1000), u(1000))
	require.NoError(t, err, "an exact bound is not slippage")
}

func TestBuy_ZeroAmount(t *testing.T) {
	env := newEnv(t)
	eng := env.engine(t, env.config(t))

	_, err := eng.Buy(t.Context(), env.alice, env.alice, u(0), nil)
	assert.ErrorIs(t, err, bonding.ErrZeroAmount)
	_, err = eng.Buy(t.Context(), env.alice, env.alice, nil, nil)
	assert.ErrorIs(t, err, bonding.ErrZeroAmount)
}

func TestBuy_MilestoneCap(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	cfg := env.config(t)
	cfg.MilestoneCap = u(1500)
	eng := env.engine(t, cfg)
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	_, err = eng.Buy(ctx, env.alice, env.alice, u(501), nil)
	assert.ErrorIs(t, err, bonding.ErrCapExceeded)

	// Exactly reaching the cap is allowed.
	_, err = eng.Buy(ctx, env.alice, env.alice, u(500), nil)
	require.NoError(t, err)
}

func TestBuy_InsufficientCollateralLeavesStateUntouched(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 100)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, uint64(100), balance(t, env.collateral, env.alice))
	assert.Equal(t, uint64(0), balance(t, env.bonded, env.alice))
	assert.True(t, eng.ReserveBalance().IsZero())
	assert.True(t, eng.CurveBought().IsZero())
}

func TestSell_RoundTripIsExact(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	res, err := eng.Sell(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), res.Reward.Uint64())
	assert.Equal(t, uint64(10_000), balance(t, env.collateral, env.alice), "full reserve percentage round-trips exactly")
	assert.Equal(t, uint64(0), balance(t, env.bonded, env.alice))
	assert.True(t, eng.ReserveBalance().IsZero())
	assert.Equal(t, uint64(1000), eng.CurveSold().Uint64())
}

func TestSell_Slippage(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	_, err = eng.Sell(ctx, env.alice, env.alice, u(1000), u(1001))
	assert.ErrorIs(t, err, bonding.ErrSlippageExceeded)
	assert.Equal(t, uint64(1000), balance(t, env.bonded, env.alice), "failed sell leaves the bonded balance intact")

	_, err = eng.Sell(ctx, env.alice, env.alice, u(1000), u(1000))
	require.NoError(t, err)
}

func TestSell_InsufficientBondedBalance(t *testing.T) {
	env := newEnv(t)
	eng := env.engine(t, env.config(t))

	_, err := eng.Sell(t.Context(), env.alice, env.alice, u(10), nil)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestSell_InsolventReserve(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	cfg := env.config(t)
	// A sell curve twice as generous as the buy curve drains the reserve.
	doubleRatio, err := curve.NewStatic(u(2 * curve.Precision))
	require.NoError(t, err)
	cfg.SellCurve = doubleRatio
	eng := env.engine(t, cfg)
	env.fund(t, env.alice, 10_000)

	_, err = eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	_, err = eng.Sell(ctx, env.alice, env.alice, u(1000), nil)
	assert.ErrorIs(t, err, bonding.ErrInsolventReserve)
	assert.Equal(t, uint64(1000), balance(t, env.bonded, env.alice))
}

func TestSell_PreMintOrdering(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	cfg := env.config(t)
	cfg.PreMint = u(5000)
	eng := env.engine(t, cfg)
	env.fund(t, env.alice, 10_000)

	assert.Equal(t, uint64(5000), balance(t, env.bonded, env.beneficiary))

	// Nothing bought through the curve yet: pre-minted supply cannot exit.
	_, err := eng.Sell(ctx, env.beneficiary, env.beneficiary, u(100), nil)
	assert.ErrorIs(t, err, bonding.ErrPreMintNotCovered)

	_, err = eng.Buy(ctx, env.alice, env.alice, u(200), nil)
	require.NoError(t, err)

	_, err = eng.Sell(ctx, env.beneficiary, env.beneficiary, u(150), nil)
	require.NoError(t, err)

	// Cumulative: 150 sold of 200 bought, another 100 would outrun it.
	_, err = eng.Sell(ctx, env.alice, env.alice, u(100), nil)
	assert.ErrorIs(t, err, bonding.ErrPreMintNotCovered)

	_, err = eng.Sell(ctx, env.alice, env.alice, u(50), nil)
	require.NoError(t, err)
}

func TestPause_BlocksTradingForEveryone(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)
	env.fund(t, env.owner, 10_000)

	require.NoError(t, eng.Pause(ctx, env.owner))
	assert.True(t, eng.Paused())

	_, err := eng.Buy(ctx, env.alice, env.alice, u(100), nil)
	assert.ErrorIs(t, err, bonding.ErrPaused)
	_, err = eng.Buy(ctx, env.owner, env.owner, u(100), nil)
	assert.ErrorIs(t, err, bonding.ErrPaused, "pause binds the owner too")
	_, err = eng.Sell(ctx, env.alice, env.alice, u(100), nil)
	assert.ErrorIs(t, err, bonding.ErrPaused)

	require.NoError(t, eng.Unpause(ctx, env.owner))
	_, err = eng.Buy(ctx, env.alice, env.alice, u(100), nil)
	require.NoError(t, err)
}

func TestPay_SplitsBetweenBeneficiaryAndStakers(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t)) // splitOnPay 10
	env.fund(t, env.alice, 10_000_000_000)
	env.fund(t, env.bob, 10_000)

	// Alice buys and stakes two eligible units of bonded tokens.
	_, err := eng.Buy(ctx, env.alice, env.alice, u(2_000_000_000), nil)
	require.NoError(t, err)
	_, err = eng.DepositStake(ctx, env.alice, u(2_000_000_000))
	require.NoError(t, err)

	res, err := eng.Pay(ctx, env.bob, u(1000))
	require.NoError(t, err)

	assert.Equal(t, uint64(100), res.BeneficiaryAmount.Uint64())
	assert.Equal(t, uint64(900), res.DividendAmount.Uint64())
	assert.Equal(t, uint64(100), balance(t, env.collateral, env.beneficiary))
	assert.Equal(t, uint64(900), balance(t, env.collateral, env.pool))
	assert.Equal(t, uint64(9000), balance(t, env.collateral, env.bob))

	reward, err := eng.Reward(env.alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), reward.Uint64())
}

func TestPay_NoEligibleStakeFailsWithoutMovingFunds(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.bob, 10_000)

	_, err := eng.Pay(ctx, env.bob, u(1000))
	assert.ErrorIs(t, err, rewards.ErrNoEligibleStake)
	assert.Equal(t, uint64(10_000), balance(t, env.collateral, env.bob))
	assert.Equal(t, uint64(0), balance(t, env.collateral, env.beneficiary))
}

func TestPay_FullSplitToBeneficiaryNeedsNoStake(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	cfg := env.config(t)
	cfg.SplitOnPay = 100
	eng := env.engine(t, cfg)
	env.fund(t, env.bob, 10_000)

	res, err := eng.Pay(ctx, env.bob, u(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), res.BeneficiaryAmount.Uint64())
	assert.True(t, res.DividendAmount.IsZero())
}

func TestPay_ZeroAmount(t *testing.T) {
	env := newEnv(t)
	eng := env.engine(t, env.config(t))

	_, err := eng.Pay(t.Context(), env.bob, u(0))
	assert.ErrorIs(t, err, bonding.ErrZeroAmount)
}

func TestAdmin_OwnerGating(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))

	assert.ErrorIs(t, eng.Pause(ctx, env.alice), bonding.ErrUnauthorized)
	assert.ErrorIs(t, eng.SetSplitOnPay(ctx, env.alice, 50), bonding.ErrUnauthorized)
	assert.ErrorIs(t, eng.SetBeneficiary(ctx, env.alice, env.bob), bonding.ErrUnauthorized)
	assert.ErrorIs(t, eng.SetMilestoneCap(ctx, env.alice, u(1)), bonding.ErrUnauthorized)

	require.NoError(t, eng.TransferOwnership(ctx, env.owner, env.bob))
	assert.Equal(t, env.bob, eng.Owner())

	// The previous owner is now just another caller.
	assert.ErrorIs(t, eng.Pause(ctx, env.owner), bonding.ErrUnauthorized)
	require.NoError(t, eng.Pause(ctx, env.bob))
}

func TestAdmin_SetSplitOnPayValidation(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))

	assert.ErrorIs(t, eng.SetSplitOnPay(ctx, env.owner, 101), amount.ErrInvalidPercentage)
	require.NoError(t, eng.SetSplitOnPay(ctx, env.owner, 0))
	require.NoError(t, eng.SetSplitOnPay(ctx, env.owner, 100))
	assert.Equal(t, uint64(100), eng.SplitOnPay())
}

func TestAdmin_SetMilestoneCap(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, eng.SetMilestoneCap(ctx, env.owner, u(999)), bonding.ErrCapBelowSupply)
	require.NoError(t, eng.SetMilestoneCap(ctx, env.owner, u(1000)), "a cap at the current supply is allowed")
	require.NoError(t, eng.SetMilestoneCap(ctx, env.owner, nil))
	assert.Nil(t, eng.MilestoneCap())

	// Zero clears like nil.
	require.NoError(t, eng.SetMilestoneCap(ctx, env.owner, u(2000)))
	require.NoError(t, eng.SetMilestoneCap(ctx, env.owner, u(0)))
	assert.Nil(t, eng.MilestoneCap())
}

func TestStake_DepositAndWithdrawMoveBondedTokens(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000_000_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(3_000_000_000), nil)
	require.NoError(t, err)

	_, err = eng.DepositStake(ctx, env.alice, u(2_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), balance(t, env.bonded, env.alice))
	assert.Equal(t, uint64(2_000_000_000), balance(t, env.bonded, env.pool))
	assert.Equal(t, uint64(2_000_000_000), eng.Stake(env.alice).Uint64())

	_, err = eng.WithdrawStake(ctx, env.alice, u(500_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), balance(t, env.bonded, env.alice))

	res, err := eng.WithdrawAllStake(ctx, env.alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), res.Amount.Uint64())
	assert.Equal(t, uint64(3_000_000_000), balance(t, env.bonded, env.alice))
	assert.Equal(t, uint64(0), balance(t, env.bonded, env.pool))
}

func TestStake_DepositWithoutTokensFails(t *testing.T) {
	env := newEnv(t)
	eng := env.engine(t, env.config(t))

	_, err := eng.DepositStake(t.Context(), env.alice, u(1_000_000_000))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.True(t, eng.Stake(env.alice).IsZero())
}

func TestWithdrawReward_PaysCollateralFromPool(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000_000_000)
	env.fund(t, env.bob, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1_000_000_000), nil)
	require.NoError(t, err)
	_, err = eng.DepositStake(ctx, env.alice, u(1_000_000_000))
	require.NoError(t, err)
	_, err = eng.Pay(ctx, env.bob, u(1000))
	require.NoError(t, err)

	before := balance(t, env.collateral, env.alice)
	res, err := eng.WithdrawReward(ctx, env.alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), res.Amount.Uint64())
	assert.Equal(t, before+900, balance(t, env.collateral, env.alice))
	assert.Equal(t, uint64(0), balance(t, env.collateral, env.pool))
}

func TestQuotes_AreSideEffectFree(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	eng := env.engine(t, env.config(t))
	env.fund(t, env.alice, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(1000), nil)
	require.NoError(t, err)

	for range 3 {
		price, err := eng.QuoteBuy(ctx, u(500))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), price.Uint64())

		reward, err := eng.QuoteSell(ctx, u(500))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), reward.Uint64())
	}
	assert.Equal(t, uint64(1000), eng.ReserveBalance().Uint64())
	assert.Equal(t, uint64(1000), eng.CurveBought().Uint64())
}

func TestSnapshot_RestoreRebuildsState(t *testing.T) {
	ctx := t.Context()
	env := newEnv(t)
	cfg := env.config(t)
	cfg.MilestoneCap = u(50_000_000_000)
	eng := env.engine(t, cfg)
	env.fund(t, env.alice, 10_000_000_000)
	env.fund(t, env.bob, 10_000)

	_, err := eng.Buy(ctx, env.alice, env.alice, u(2_000_000_000), nil)
	require.NoError(t, err)
	_, err = eng.DepositStake(ctx, env.alice, u(2_000_000_000))
	require.NoError(t, err)
	_, err = eng.Pay(ctx, env.bob, u(1000))
	require.NoError(t, err)
	require.NoError(t, eng.TransferOwnership(ctx, env.owner, env.bob))

	snap := eng.Snapshot()

	// A fresh engine with the same wiring picks up where the old one left
	// off. The restored distributor state rides along in the snapshot.
	dist2, err := rewards.NewDistributor(rewards.Config{
		Logger: bondtesting.NewLogger(),
		Ledger: env.collateral,
		Pool:   env.pool,
	})
	require.NoError(t, err)
	cfg2 := env.config(t)
	cfg2.ID = snap.ID
	cfg2.Distributor = dist2
	restored, err := bonding.New(ctx, cfg2)
	require.NoError(t, err)
	restored.RestoreSnapshot(snap)

	assert.Equal(t, eng.ID(), restored.ID())
	assert.Equal(t, env.bob, restored.Owner())
	assert.Equal(t, snap.ReserveBalance.Dec(), restored.ReserveBalance().Dec())
	assert.Equal(t, snap.CurveBought.Dec(), restored.CurveBought().Dec())
	assert.Equal(t, uint64(50_000_000_000), restored.MilestoneCap().Uint64())

	reward, err := restored.Reward(env.alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), reward.Uint64())
}

func TestNew_ConfigValidation(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	cfg := env.config(t)
	cfg.Owner = account.Account("")
	_, err := bonding.New(ctx, cfg)
	assert.Error(t, err)

	cfg = env.config(t)
	cfg.ReservePercentage = 101
	_, err = bonding.New(ctx, cfg)
	assert.ErrorIs(t, err, amount.ErrInvalidPercentage)

	cfg = env.config(t)
	cfg.PreMint = u(1000)
	cfg.MilestoneCap = u(999)
	_, err = bonding.New(ctx, cfg)
	assert.ErrorIs(t, err, bonding.ErrCapBelowSupply)
}
