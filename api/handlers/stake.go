package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curvelabs/bondcurve/api/metrics"
	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
)

type StakeRequest struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount,omitempty"`
	All         bool   `json:"all,omitempty"` // withdraw the full stake
}

type StakeResponse struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
	NewStake    string `json:"new_stake"`
}

// DepositStake moves bonded tokens from the participant into the staking
// pool and starts accruing dividends for them.
func (h *Handlers) DepositStake(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	who, err := account.Parse(req.Participant)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("participant: %w", err))
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := eng.DepositStake(r.Context(), who, amt)
	metrics.RecordStakeOp("deposit", err)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, StakeResponse{
		Participant: res.Participant.String(),
		Amount:      amount.String(res.Amount),
		NewStake:    amount.String(res.NewStake),
	})
}

// WithdrawStake returns staked bonded tokens to the participant. With
// "all" set the whole stake is withdrawn and the amount field is ignored.
func (h *Handlers) WithdrawStake(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	who, err := account.Parse(req.Participant)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("participant: %w", err))
		return
	}

	if req.All {
		res, err := eng.WithdrawAllStake(r.Context(), who)
		metrics.RecordStakeOp("withdraw_all", err)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		writeJSON(w, h.log, http.StatusOK, StakeResponse{
			Participant: res.Participant.String(),
			Amount:      amount.String(res.Amount),
			NewStake:    amount.String(res.NewStake),
		})
		return
	}

	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := eng.WithdrawStake(r.Context(), who, amt)
	metrics.RecordStakeOp("withdraw", err)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, StakeResponse{
		Participant: res.Participant.String(),
		Amount:      amount.String(res.Amount),
		NewStake:    amount.String(res.NewStake),
	})
}

type PositionResponse struct {
	Participant string `json:"participant"`
	Stake       string `json:"stake"`
	Reward      string `json:"reward"`
}

// GetPosition returns a participant's current stake and settled-plus-pending
// reward.
func (h *Handlers) GetPosition(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	who, err := account.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, h.log, fmt.Errorf("account: %w", err))
		return
	}

	reward, err := eng.Reward(who)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, PositionResponse{
		Participant: who.String(),
		Stake:       amount.String(eng.Stake(who)),
		Reward:      amount.String(reward),
	})
}

type RewardWithdrawalRequest struct {
	Participant string `json:"participant"`
}

type RewardWithdrawalResponse struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

// WithdrawReward pays out a participant's accrued dividend in collateral.
func (h *Handlers) WithdrawReward(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req RewardWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	who, err := account.Parse(req.Participant)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("participant: %w", err))
		return
	}

	res, err := eng.WithdrawReward(r.Context(), who)
	metrics.RecordStakeOp("withdraw_reward", err)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, RewardWithdrawalResponse{
		Participant: res.Participant.String(),
		Amount:      amount.String(res.Amount),
	})
}
