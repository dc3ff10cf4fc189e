package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/bonding"
)

// AdminRequest carries an owner-gated mutation. Actor must be the current
// owner; the engine enforces this.
type AdminRequest struct {
	Actor        string `json:"actor"`
	Account      string `json:"account,omitempty"`       // transfer-ownership, beneficiary
	Percentage   uint64 `json:"percentage,omitempty"`    // split-on-pay, reserve-percentage
	MilestoneCap string `json:"milestone_cap,omitempty"` // empty clears the cap
}

func (h *Handlers) adminCall(w http.ResponseWriter, r *http.Request, fn func(eng *bonding.Engine, req AdminRequest, actor account.Account) error) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, fmt.Errorf("decode request: %w", amount.ErrInvalidAmount))
		return
	}
	actor, err := account.Parse(req.Actor)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("actor: %w", err))
		return
	}

	if err := fn(eng, req, actor); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, describeCurve(eng))
}

func (h *Handlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		newOwner, err := account.Parse(req.Account)
		if err != nil {
			return fmt.Errorf("new owner: %w", err)
		}
		return eng.TransferOwnership(r.Context(), actor, newOwner)
	})
}

func (h *Handlers) SetBeneficiary(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		beneficiary, err := account.Parse(req.Account)
		if err != nil {
			return fmt.Errorf("beneficiary: %w", err)
		}
		return eng.SetBeneficiary(r.Context(), actor, beneficiary)
	})
}

func (h *Handlers) SetSplitOnPay(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		return eng.SetSplitOnPay(r.Context(), actor, req.Percentage)
	})
}

func (h *Handlers) SetReservePercentage(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		return eng.SetReservePercentage(r.Context(), actor, req.Percentage)
	})
}

func (h *Handlers) SetMilestoneCap(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		ceiling, err := parseOptionalAmount(req.MilestoneCap)
		if err != nil {
			return fmt.Errorf("milestone cap: %w", err)
		}
		return eng.SetMilestoneCap(r.Context(), actor, ceiling)
	})
}

func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		return eng.Pause(r.Context(), actor)
	})
}

func (h *Handlers) Unpause(w http.ResponseWriter, r *http.Request) {
	h.adminCall(w, r, func(eng *bonding.Engine, req AdminRequest, actor account.Account) error {
		return eng.Unpause(r.Context(), actor)
	})
}
