// Package handlers implements the HTTP surface of the bondcurve API. All
// token amounts travel as decimal strings so 256-bit values survive JSON.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/curve"
	"github.com/curvelabs/bondcurve/pkg/journal"
	"github.com/holiman/uint256"
)

// CreateCurveParams carries the parsed curve-creation request. The factory
// supplies everything else: ledgers, accounts, journal, distributor.
type CreateCurveParams struct {
	Owner             account.Account
	Beneficiary       account.Account
	BuyCurve          curve.Logic
	SellCurve         curve.Logic
	ReservePercentage uint64
	SplitOnPay        uint64
	PreMint           *uint256.Int
	MilestoneCap      *uint256.Int
}

// EngineFactory builds a live engine from creation params. The returned
// engine is not yet registered; the handler registers it.
type EngineFactory func(ctx context.Context, p CreateCurveParams) (*bonding.Engine, error)

type Config struct {
	Logger    *slog.Logger
	Registry  *bonding.Registry
	Events    *journal.Memory // optional, serves the recent-events endpoint
	NewEngine EngineFactory   // optional, enables the creation endpoint

	// TradeLimiter guards the trade and payment routes. Defaults to the
	// shared TradeRateLimiter.
	TradeLimiter *RateLimiter
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	return nil
}

// Handlers serves the curve API off a shared registry.
type Handlers struct {
	log       *slog.Logger
	registry  *bonding.Registry
	events    *journal.Memory
	newEngine EngineFactory
	limiter   *RateLimiter
}

func New(cfg Config) (*Handlers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limiter := cfg.TradeLimiter
	if limiter == nil {
		limiter = TradeRateLimiter
	}
	return &Handlers{
		log:       cfg.Logger,
		registry:  cfg.Registry,
		events:    cfg.Events,
		newEngine: cfg.NewEngine,
		limiter:   limiter,
	}, nil
}

// Routes registers the curve endpoints. Trade and payment routes go through
// the shared per-IP rate limiter.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/", h.CreateCurve)
	r.Get("/", h.ListCurves)

	r.Route("/{curveID}", func(r chi.Router) {
		r.Get("/", h.GetCurve)
		r.Get("/quote/buy", h.QuoteBuy)
		r.Get("/quote/sell", h.QuoteSell)
		r.Get("/events", h.GetEvents)

		limited := r.With(RateLimitMiddleware(h.limiter))
		limited.Post("/buy", h.Buy)
		limited.Post("/sell", h.Sell)
		limited.Post("/pay", h.Pay)

		r.Post("/stake/deposit", h.DepositStake)
		r.Post("/stake/withdraw", h.WithdrawStake)
		r.Get("/stake/{account}", h.GetPosition)
		r.Post("/reward/withdraw", h.WithdrawReward)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/transfer-ownership", h.TransferOwnership)
			r.Post("/beneficiary", h.SetBeneficiary)
			r.Post("/split-on-pay", h.SetSplitOnPay)
			r.Post("/reserve-percentage", h.SetReservePercentage)
			r.Post("/milestone-cap", h.SetMilestoneCap)
			r.Post("/pause", h.Pause)
			r.Post("/unpause", h.Unpause)
		})
	})
}

// engineFromRequest resolves the {curveID} URL param against the registry.
func (h *Handlers) engineFromRequest(r *http.Request) (*bonding.Engine, error) {
	id, err := parseCurveID(chi.URLParam(r, "curveID"))
	if err != nil {
		return nil, err
	}
	return h.registry.Get(id)
}
