package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/api/metrics"
	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/bancor"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/curve"
)

// CurveSpec selects and parameterizes the pricing strategy.
type CurveSpec struct {
	Type string `json:"type"` // "static" or "bancor"

	// Ratio is the static tokens-per-collateral ratio scaled by
	// curve.Precision, as a decimal string.
	Ratio string `json:"ratio,omitempty"`

	// ReserveRatio is the bancor connector weight in ppm of bancor.MaxRatio.
	ReserveRatio uint32 `json:"reserve_ratio,omitempty"`
}

func buildCurveLogic(spec CurveSpec) (curve.Logic, error) {
	switch spec.Type {
	case "static":
		ratio, err := amount.Parse(spec.Ratio)
		if err != nil {
			return nil, fmt.Errorf("static ratio: %w", err)
		}
		return curve.NewStatic(ratio)
	case "bancor":
		return curve.NewBancor(bancor.NewService(), spec.ReserveRatio)
	default:
		return nil, fmt.Errorf("curve type %q: %w", spec.Type, amount.ErrInvalidAmount)
	}
}

// parseOptionalAmount treats an absent field as nil, not zero.
func parseOptionalAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return amount.Parse(s)
}

type CreateCurveRequest struct {
	Owner             string    `json:"owner"`
	Beneficiary       string    `json:"beneficiary"`
	BuyCurve          CurveSpec `json:"buy_curve"`
	SellCurve         CurveSpec `json:"sell_curve"`
	ReservePercentage uint64    `json:"reserve_percentage"`
	SplitOnPay        uint64    `json:"split_on_pay"`
	PreMint           string    `json:"pre_mint,omitempty"`
	MilestoneCap      string    `json:"milestone_cap,omitempty"`
}

type CurveResponse struct {
	ID                string `json:"id"`
	Owner             string `json:"owner"`
	Beneficiary       string `json:"beneficiary"`
	ReservePercentage uint64 `json:"reserve_percentage"`
	SplitOnPay        uint64 `json:"split_on_pay"`
	PreMint           string `json:"pre_mint"`
	MilestoneCap      string `json:"milestone_cap,omitempty"`
	ReserveBalance    string `json:"reserve_balance"`
	CurveBought       string `json:"curve_bought"`
	CurveSold         string `json:"curve_sold"`
	Paused            bool   `json:"paused"`
}

func describeCurve(e *bonding.Engine) CurveResponse {
	resp := CurveResponse{
		ID:                e.ID().String(),
		Owner:             e.Owner().String(),
		Beneficiary:       e.Beneficiary().String(),
		ReservePercentage: e.ReservePercentage(),
		SplitOnPay:        e.SplitOnPay(),
		PreMint:           amount.String(e.PreMint()),
		ReserveBalance:    amount.String(e.ReserveBalance()),
		CurveBought:       amount.String(e.CurveBought()),
		CurveSold:         amount.String(e.CurveSold()),
		Paused:            e.Paused(),
	}
	if ceiling := e.MilestoneCap(); ceiling != nil {
		resp.MilestoneCap = amount.String(ceiling)
	}
	return resp
}

// parseOptionalAccount treats an absent field as the zero account.
func parseOptionalAccount(s string) (account.Account, error) {
	if s == "" {
		return account.Account(""), nil
	}
	return account.Parse(s)
}

// CreateCurve builds a new engine through the injected factory and registers
// it. Requests fail with 503 when the deployment has no factory wired.
func (h *Handlers) CreateCurve(w http.ResponseWriter, r *http.Request) {
	if h.newEngine == nil {
		http.Error(w, "curve creation is not enabled", http.StatusServiceUnavailable)
		return
	}

	var req CreateCurveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}

	params, err := parseCreateCurveRequest(req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	eng, err := h.newEngine(r.Context(), params)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.registry.Register(eng); err != nil {
		writeError(w, h.log, err)
		return
	}
	metrics.CurvesActive.Set(float64(h.registry.Len()))

	h.log.Info("curve created",
		"curve", eng.ID(),
		"owner", params.Owner,
		"beneficiary", params.Beneficiary)

	writeJSON(w, h.log, http.StatusCreated, describeCurve(eng))
}

func parseCreateCurveRequest(req CreateCurveRequest) (CreateCurveParams, error) {
	var p CreateCurveParams
	var err error

	if p.Owner, err = account.Parse(req.Owner); err != nil {
		return p, fmt.Errorf("owner: %w", err)
	}
	if p.Beneficiary, err = account.Parse(req.Beneficiary); err != nil {
		return p, fmt.Errorf("beneficiary: %w", err)
	}
	if p.BuyCurve, err = buildCurveLogic(req.BuyCurve); err != nil {
		return p, fmt.Errorf("buy curve: %w", err)
	}
	if p.SellCurve, err = buildCurveLogic(req.SellCurve); err != nil {
		return p, fmt.Errorf("sell curve: %w", err)
	}
	if err = amount.ValidatePercentage(req.ReservePercentage); err != nil {
		return p, fmt.Errorf("reserve percentage: %w", err)
	}
	if err = amount.ValidatePercentage(req.SplitOnPay); err != nil {
		return p, fmt.Errorf("split on pay: %w", err)
	}
	p.ReservePercentage = req.ReservePercentage
	p.SplitOnPay = req.SplitOnPay

	if p.PreMint, err = parseOptionalAmount(req.PreMint); err != nil {
		return p, fmt.Errorf("pre mint: %w", err)
	}
	if p.MilestoneCap, err = parseOptionalAmount(req.MilestoneCap); err != nil {
		return p, fmt.Errorf("milestone cap: %w", err)
	}
	return p, nil
}

// ListCurves returns the IDs of all registered curves.
func (h *Handlers) ListCurves(w http.ResponseWriter, r *http.Request) {
	ids := h.registry.List()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.ID().String())
	}
	writeJSON(w, h.log, http.StatusOK, map[string][]string{"curves": out})
}

// GetCurve returns the current state of one curve.
func (h *Handlers) GetCurve(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, describeCurve(eng))
}

type QuoteResponse struct {
	Amount string `json:"amount"`
	Price  string `json:"price,omitempty"`
	Reward string `json:"reward,omitempty"`
}

// QuoteBuy prices a prospective purchase without side effects.
func (h *Handlers) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	amt, err := amount.Parse(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	price, err := eng.QuoteBuy(r.Context(), amt)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, QuoteResponse{
		Amount: amount.String(amt),
		Price:  amount.String(price),
	})
}

// QuoteSell prices a prospective sale without side effects.
func (h *Handlers) QuoteSell(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	amt, err := amount.Parse(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	reward, err := eng.QuoteSell(r.Context(), amt)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, QuoteResponse{
		Amount: amount.String(amt),
		Reward: amount.String(reward),
	})
}

type BuyRequest struct {
	Buyer     string `json:"buyer"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount"`
	MaxPrice  string `json:"max_price,omitempty"`
}

type BuyResponse struct {
	Buyer             string `json:"buyer"`
	Recipient         string `json:"recipient"`
	Amount            string `json:"amount"`
	Price             string `json:"price"`
	ReserveAmount     string `json:"reserve_amount"`
	BeneficiaryAmount string `json:"beneficiary_amount"`
}

// Buy executes a purchase against the curve.
func (h *Handlers) Buy(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	buyer, err := account.Parse(req.Buyer)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("buyer: %w", err))
		return
	}
	recipient, err := parseOptionalAccount(req.Recipient)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("recipient: %w", err))
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	maxPrice, err := parseOptionalAmount(req.MaxPrice)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("max price: %w", err))
		return
	}

	res, err := eng.Buy(r.Context(), buyer, recipient, amt, maxPrice)
	metrics.RecordTrade("buy", err)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, BuyResponse{
		Buyer:             res.Buyer.String(),
		Recipient:         res.Recipient.String(),
		Amount:            amount.String(res.Amount),
		Price:             amount.String(res.Price),
		ReserveAmount:     amount.String(res.ReserveAmount),
		BeneficiaryAmount: amount.String(res.BeneficiaryAmount),
	})
}

type SellRequest struct {
	Seller    string `json:"seller"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount"`
	MinReward string `json:"min_reward,omitempty"`
}

type SellResponse struct {
	Seller    string `json:"seller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Reward    string `json:"reward"`
}

// Sell executes a sale against the curve.
func (h *Handlers) Sell(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	seller, err := account.Parse(req.Seller)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("seller: %w", err))
		return
	}
	recipient, err := parseOptionalAccount(req.Recipient)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("recipient: %w", err))
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	minReward, err := parseOptionalAmount(req.MinReward)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("min reward: %w", err))
		return
	}

	res, err := eng.Sell(r.Context(), seller, recipient, amt, minReward)
	metrics.RecordTrade("sell", err)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, SellResponse{
		Seller:    res.Seller.String(),
		Recipient: res.Recipient.String(),
		Amount:    amount.String(res.Amount),
		Reward:    amount.String(res.Reward),
	})
}

type PayRequest struct {
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
}

type PayResponse struct {
	Payer             string `json:"payer"`
	Amount            string `json:"amount"`
	BeneficiaryAmount string `json:"beneficiary_amount"`
	DividendAmount    string `json:"dividend_amount"`
}

// Pay splits a collateral payment between the beneficiary and stakers.
func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	payer, err := account.Parse(req.Payer)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("payer: %w", err))
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := eng.Pay(r.Context(), payer, amt)
	metrics.RecordPayment(err)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, PayResponse{
		Payer:             res.Payer.String(),
		Amount:            amount.String(res.Amount),
		BeneficiaryAmount: amount.String(res.BeneficiaryAmount),
		DividendAmount:    amount.String(res.DividendAmount),
	})
}
