// Package bonding implements the bonding curve engine: continuous token
// issuance against a collateral reserve, beneficiary payments with dividend
// distribution, and owner-gated configuration of a running curve.
package bonding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/curve"
	"github.com/curvelabs/bondcurve/pkg/journal"
	"github.com/curvelabs/bondcurve/pkg/ledger"
	"github.com/curvelabs/bondcurve/pkg/rewards"
)

// Config holds the construction parameters of one curve instance.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	ID     uuid.UUID

	Owner       account.Account
	Beneficiary account.Account
	Reserve     account.Account // custody of reserve collateral
	Pool        account.Account // custody of staked tokens and reward collateral

	Collateral ledger.Ledger // tokens paid in and held in reserve
	Bonded     ledger.Ledger // tokens minted by the curve

	BuyCurve  curve.Logic
	SellCurve curve.Logic

	// ReservePercentage is the share of every purchase price kept in the
	// reserve; the complement is skimmed to the beneficiary. 100 keeps the
	// curve round-trip exact.
	ReservePercentage uint64

	// SplitOnPay is the share of every payment routed to the beneficiary;
	// the complement is distributed to stakers as dividends.
	SplitOnPay uint64

	PreMint      *uint256.Int // minted to the beneficiary at genesis
	MilestoneCap *uint256.Int // total supply ceiling, nil or zero = unset

	Journal     journal.Journal
	Distributor *rewards.Distributor
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Owner.IsZero() {
		return errors.New("owner account is required")
	}
	if cfg.Beneficiary.IsZero() {
		return errors.New("beneficiary account is required")
	}
	if cfg.Reserve.IsZero() {
		return errors.New("reserve account is required")
	}
	if cfg.Pool.IsZero() {
		return errors.New("pool account is required")
	}
	if cfg.Collateral == nil {
		return errors.New("collateral ledger is required")
	}
	if cfg.Bonded == nil {
		return errors.New("bonded ledger is required")
	}
	if cfg.BuyCurve == nil {
		return errors.New("buy curve is required")
	}
	if cfg.SellCurve == nil {
		return errors.New("sell curve is required")
	}
	if err := amount.ValidatePercentage(cfg.ReservePercentage); err != nil {
		return fmt.Errorf("reserve percentage: %w", err)
	}
	if err := amount.ValidatePercentage(cfg.SplitOnPay); err != nil {
		return fmt.Errorf("split on pay: %w", err)
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Discard
	}
	if cfg.Distributor == nil {
		return errors.New("distributor is required")
	}
	cfg.PreMint = amount.Clone(cfg.PreMint)
	if cfg.MilestoneCap != nil && cfg.MilestoneCap.IsZero() {
		cfg.MilestoneCap = nil
	}
	if cfg.MilestoneCap != nil {
		cfg.MilestoneCap = new(uint256.Int).Set(cfg.MilestoneCap)
		if cfg.MilestoneCap.Lt(cfg.PreMint) {
			return ErrCapBelowSupply
		}
	}
	return nil
}

// Engine is one bonding curve instance. All state mutations hold the
// instance mutex; failed operations leave state untouched.
type Engine struct {
	log   *slog.Logger
	clock clockwork.Clock
	id    uuid.UUID

	collateral ledger.Ledger
	bonded     ledger.Ledger
	journal    journal.Journal
	dist       *rewards.Distributor

	mu           sync.RWMutex
	owner        account.Account
	beneficiary  account.Account
	reserveAcct  account.Account
	pool         account.Account
	buyCurve     curve.Logic
	sellCurve    curve.Logic
	reservePct   uint64
	splitOnPay   uint64
	preMint      *uint256.Int
	milestoneCap *uint256.Int

	reserveBalance *uint256.Int
	curveBought    *uint256.Int
	curveSold      *uint256.Int
	paused         bool
}

// New builds an engine and mints the pre-mint amount to the beneficiary.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		log:            cfg.Logger.With("curve", cfg.ID),
		clock:          cfg.Clock,
		id:             cfg.ID,
		collateral:     cfg.Collateral,
		bonded:         cfg.Bonded,
		journal:        cfg.Journal,
		dist:           cfg.Distributor,
		owner:          cfg.Owner,
		beneficiary:    cfg.Beneficiary,
		reserveAcct:    cfg.Reserve,
		pool:           cfg.Pool,
		buyCurve:       cfg.BuyCurve,
		sellCurve:      cfg.SellCurve,
		reservePct:     cfg.ReservePercentage,
		splitOnPay:     cfg.SplitOnPay,
		preMint:        cfg.PreMint,
		milestoneCap:   cfg.MilestoneCap,
		reserveBalance: uint256.NewInt(0),
		curveBought:    uint256.NewInt(0),
		curveSold:      uint256.NewInt(0),
	}

	if !e.preMint.IsZero() {
		if err := e.bonded.Mint(ctx, e.beneficiary, e.preMint); err != nil {
			return nil, fmt.Errorf("pre-mint %s to beneficiary: %w", e.preMint.Dec(), err)
		}
		e.log.Info("pre-minted supply to beneficiary", "amount", e.preMint.Dec(), "beneficiary", e.beneficiary)
	}
	return e, nil
}

func (e *Engine) ID() uuid.UUID { return e.id }

func (e *Engine) emit(ctx context.Context, ev journal.Event) {
	ev.ID = uuid.New()
	ev.At = e.clock.Now()
	ev.CurveID = e.id
	if err := e.journal.Record(ctx, ev); err != nil {
		// History is best-effort, the completed operation stands.
		e.log.Error("failed to record journal event", "kind", ev.Kind, "error", err)
	}
}

// BuyResult describes a completed purchase.
type BuyResult struct {
	Buyer             account.Account
	Recipient         account.Account
	Amount            *uint256.Int
	Price             *uint256.Int
	ReserveAmount     *uint256.Int // portion of the price added to reserve
	BeneficiaryAmount *uint256.Int // portion skimmed to the beneficiary
}

// Buy mints amount bonded tokens to recipient against collateral pulled
// from buyer. A non-zero maxPrice bounds the accepted price; zero means no
// bound. A zero recipient defaults to the buyer.
func (e *Engine) Buy(ctx context.Context, buyer, recipient account.Account, amt, maxPrice *uint256.Int) (*BuyResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("buy: %w", ErrZeroAmount)
	}
	if recipient.IsZero() {
		recipient = buyer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, fmt.Errorf("buy: %w", ErrPaused)
	}

	supply, err := e.bonded.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("buy: total supply: %w", err)
	}
	if e.milestoneCap != nil {
		newSupply, err := amount.Add(supply, amt)
		if err != nil {
			return nil, fmt.Errorf("buy: %w", err)
		}
		if newSupply.Gt(e.milestoneCap) {
			return nil, fmt.Errorf("buy %s at supply %s with cap %s: %w",
				amt.Dec(), supply.Dec(), e.milestoneCap.Dec(), ErrCapExceeded)
		}
	}

	price, err := e.buyCurve.PriceToMint(supply, e.reserveBalance, amt)
	if err != nil {
		return nil, fmt.Errorf("buy: price: %w", err)
	}
	if maxPrice != nil && !maxPrice.IsZero() && price.Gt(maxPrice) {
		return nil, fmt.Errorf("buy: price %s over bound %s: %w", price.Dec(), maxPrice.Dec(), ErrSlippageExceeded)
	}

	reserveShare, beneficiaryShare, err := amount.Split(price, e.reservePct)
	if err != nil {
		return nil, fmt.Errorf("buy: split price: %w", err)
	}

	// Resolve the post-trade state before any ledger movement so the only
	// failures past this point are ledger ones, each compensated below.
	newReserve, err := amount.Add(e.reserveBalance, reserveShare)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	newBought, err := amount.Add(e.curveBought, amt)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}

	if !reserveShare.IsZero() {
		if err := e.collateral.Transfer(ctx, buyer, e.reserveAcct, reserveShare); err != nil {
			return nil, fmt.Errorf("buy: collect reserve share: %w", err)
		}
	}
	if !beneficiaryShare.IsZero() {
		if err := e.collateral.Transfer(ctx, buyer, e.beneficiary, beneficiaryShare); err != nil {
			e.compensate(ctx, e.reserveAcct, buyer, reserveShare)
			return nil, fmt.Errorf("buy: collect beneficiary share: %w", err)
		}
	}
	if err := e.bonded.Mint(ctx, recipient, amt); err != nil {
		e.compensate(ctx, e.reserveAcct, buyer, reserveShare)
		e.compensate(ctx, e.beneficiary, buyer, beneficiaryShare)
		return nil, fmt.Errorf("buy: mint: %w", err)
	}

	e.reserveBalance = newReserve
	e.curveBought = newBought

	e.log.Debug("buy",
		"buyer", buyer, "recipient", recipient,
		"amount", amt.Dec(), "price", price.Dec(), "reserve", e.reserveBalance.Dec())
	e.emit(ctx, journal.Event{
		Kind:              journal.KindBuy,
		Actor:             buyer,
		Recipient:         recipient,
		Amount:            amount.Clone(amt),
		Price:             amount.Clone(price),
		Reserve:           amount.Clone(e.reserveBalance),
		BeneficiaryAmount: amount.Clone(beneficiaryShare),
	})

	return &BuyResult{
		Buyer:             buyer,
		Recipient:         recipient,
		Amount:            amount.Clone(amt),
		Price:             price,
		ReserveAmount:     reserveShare,
		BeneficiaryAmount: beneficiaryShare,
	}, nil
}

// SellResult describes a completed sale.
type SellResult struct {
	Seller    account.Account
	Recipient account.Account
	Amount    *uint256.Int
	Reward    *uint256.Int
}

// Sell burns amount bonded tokens from seller and pays the curve reward in
// collateral to recipient. A non-zero minReward bounds the accepted reward;
// zero means no bound. A zero recipient defaults to the seller.
func (e *Engine) Sell(ctx context.Context, seller, recipient account.Account, amt, minReward *uint256.Int) (*SellResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("sell: %w", ErrZeroAmount)
	}
	if recipient.IsZero() {
		recipient = seller
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, fmt.Errorf("sell: %w", ErrPaused)
	}

	balance, err := e.bonded.BalanceOf(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("sell: balance: %w", err)
	}
	if balance.Lt(amt) {
		return nil, fmt.Errorf("sell %s of %s held: %w", amt.Dec(), balance.Dec(), ledger.ErrInsufficientBalance)
	}

	newSold, err := amount.Add(e.curveSold, amt)
	if err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	// While pre-minted supply is outstanding, sells may never outrun what
	// was bought through the curve.
	if !e.preMint.IsZero() && newSold.Gt(e.curveBought) {
		return nil, fmt.Errorf("sell %s with %s bought and %s sold: %w",
			amt.Dec(), e.curveBought.Dec(), e.curveSold.Dec(), ErrPreMintNotCovered)
	}

	supply, err := e.bonded.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("sell: total supply: %w", err)
	}
	reward, err := e.sellCurve.RewardForBurn(supply, e.reserveBalance, amt)
	if err != nil {
		return nil, fmt.Errorf("sell: reward: %w", err)
	}
	if minReward != nil && !minReward.IsZero() && reward.Lt(minReward) {
		return nil, fmt.Errorf("sell: reward %s under bound %s: %w", reward.Dec(), minReward.Dec(), ErrSlippageExceeded)
	}
	if reward.Gt(e.reserveBalance) {
		return nil, fmt.Errorf("sell: reward %s of reserve %s: %w",
			reward.Dec(), e.reserveBalance.Dec(), ErrInsolventReserve)
	}
	newReserve := new(uint256.Int).Sub(e.reserveBalance, reward)

	if err := e.bonded.Burn(ctx, seller, amt); err != nil {
		return nil, fmt.Errorf("sell: burn: %w", err)
	}
	if !reward.IsZero() {
		if err := e.collateral.Transfer(ctx, e.reserveAcct, recipient, reward); err != nil {
			if mintErr := e.bonded.Mint(ctx, seller, amt); mintErr != nil {
				e.log.Error("failed to compensate burn after payout failure", "seller", seller, "error", mintErr)
			}
			return nil, fmt.Errorf("sell: pay reward: %w", err)
		}
	}

	e.reserveBalance = newReserve
	e.curveSold = newSold

	e.log.Debug("sell",
		"seller", seller, "recipient", recipient,
		"amount", amt.Dec(), "reward", reward.Dec(), "reserve", e.reserveBalance.Dec())
	e.emit(ctx, journal.Event{
		Kind:      journal.KindSell,
		Actor:     seller,
		Recipient: recipient,
		Amount:    amount.Clone(amt),
		Price:     amount.Clone(reward),
		Reserve:   amount.Clone(e.reserveBalance),
	})

	return &SellResult{
		Seller:    seller,
		Recipient: recipient,
		Amount:    amount.Clone(amt),
		Reward:    reward,
	}, nil
}

// PayResult describes a completed payment.
type PayResult struct {
	Payer             account.Account
	Amount            *uint256.Int
	BeneficiaryAmount *uint256.Int
	DividendAmount    *uint256.Int
}

// Pay splits a collateral payment between the beneficiary and the stakers'
// dividend pool. The dividend share is distributed immediately; with no
// eligible stake the whole payment is rejected.
func (e *Engine) Pay(ctx context.Context, payer account.Account, amt *uint256.Int) (*PayResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("pay: %w", ErrZeroAmount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	beneficiaryShare, dividend, err := amount.Split(amt, e.splitOnPay)
	if err != nil {
		return nil, fmt.Errorf("pay: split: %w", err)
	}
	if !dividend.IsZero() && e.dist.TotalEligibleStake().IsZero() {
		return nil, fmt.Errorf("pay: %w", rewards.ErrNoEligibleStake)
	}

	if !beneficiaryShare.IsZero() {
		if err := e.collateral.Transfer(ctx, payer, e.beneficiary, beneficiaryShare); err != nil {
			return nil, fmt.Errorf("pay: beneficiary share: %w", err)
		}
	}
	if !dividend.IsZero() {
		if err := e.collateral.Transfer(ctx, payer, e.pool, dividend); err != nil {
			e.compensate(ctx, e.beneficiary, payer, beneficiaryShare)
			return nil, fmt.Errorf("pay: dividend share: %w", err)
		}
		if _, err := e.dist.Distribute(ctx, dividend); err != nil {
			e.compensate(ctx, e.pool, payer, dividend)
			e.compensate(ctx, e.beneficiary, payer, beneficiaryShare)
			return nil, fmt.Errorf("pay: distribute: %w", err)
		}
	}

	e.log.Debug("pay",
		"payer", payer, "amount", amt.Dec(),
		"beneficiary_amount", beneficiaryShare.Dec(), "dividend_amount", dividend.Dec())
	e.emit(ctx, journal.Event{
		Kind:              journal.KindPay,
		Actor:             payer,
		Amount:            amount.Clone(amt),
		BeneficiaryAmount: amount.Clone(beneficiaryShare),
		DividendAmount:    amount.Clone(dividend),
	})
	if !dividend.IsZero() {
		e.emit(ctx, journal.Event{Kind: journal.KindRewardsDistributed, Actor: payer, DividendAmount: amount.Clone(dividend)})
	}

	return &PayResult{
		Payer:             payer,
		Amount:            amount.Clone(amt),
		BeneficiaryAmount: beneficiaryShare,
		DividendAmount:    dividend,
	}, nil
}

// compensate reverses an earlier collateral movement after a later ledger
// step failed. A failure here can only mean the ledger itself is broken, so
// it is logged rather than returned.
func (e *Engine) compensate(ctx context.Context, from, to account.Account, amt *uint256.Int) {
	if amt == nil || amt.IsZero() {
		return
	}
	if err := e.collateral.Transfer(ctx, from, to, amt); err != nil {
		e.log.Error("failed to compensate transfer", "from", from, "to", to, "amount", amt.Dec(), "error", err)
	}
}

// QuoteBuy returns the collateral price to mint amt without trading.
func (e *Engine) QuoteBuy(ctx context.Context, amt *uint256.Int) (*uint256.Int, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("quote buy: %w", ErrZeroAmount)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	supply, err := e.bonded.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("quote buy: total supply: %w", err)
	}
	return e.buyCurve.PriceToMint(supply, e.reserveBalance, amt)
}

// QuoteSell returns the collateral reward for burning amt without trading.
func (e *Engine) QuoteSell(ctx context.Context, amt *uint256.Int) (*uint256.Int, error) {
	if amt == nil || amt.IsZero() {
		return nil, fmt.Errorf("quote sell: %w", ErrZeroAmount)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	supply, err := e.bonded.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("quote sell: total supply: %w", err)
	}
	return e.sellCurve.RewardForBurn(supply, e.reserveBalance, amt)
}
