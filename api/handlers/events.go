package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/journal"
)

const defaultEventLimit = 50

// EventResponse is one journal entry, newest first. Amount fields are
// decimal strings and omitted when the event kind does not carry them.
type EventResponse struct {
	ID                string `json:"id"`
	At                string `json:"at"`
	Kind              string `json:"kind"`
	Actor             string `json:"actor,omitempty"`
	Recipient         string `json:"recipient,omitempty"`
	Amount            string `json:"amount,omitempty"`
	Price             string `json:"price,omitempty"`
	Reserve           string `json:"reserve,omitempty"`
	BeneficiaryAmount string `json:"beneficiary_amount,omitempty"`
	DividendAmount    string `json:"dividend_amount,omitempty"`
}

// GetEvents returns the most recent journal entries for one curve from the
// in-memory ring. Older history lives in ClickHouse, not here.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFromRequest(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	out := make([]EventResponse, 0, limit)
	if h.events != nil {
		// The ring holds every curve's events; scan for this curve's.
		for _, ev := range h.events.Recent(h.events.Len()) {
			if ev.CurveID != eng.ID() {
				continue
			}
			out = append(out, eventResponse(ev))
			if len(out) == limit {
				break
			}
		}
	}

	writeJSON(w, h.log, http.StatusOK, map[string][]EventResponse{"events": out})
}

func eventResponse(ev journal.Event) EventResponse {
	return EventResponse{
		ID:                ev.ID.String(),
		At:                ev.At.UTC().Format(time.RFC3339Nano),
		Kind:              string(ev.Kind),
		Actor:             ev.Actor.String(),
		Recipient:         ev.Recipient.String(),
		Amount:            decString(ev.Amount),
		Price:             decString(ev.Price),
		Reserve:           decString(ev.Reserve),
		BeneficiaryAmount: decString(ev.BeneficiaryAmount),
		DividendAmount:    decString(ev.DividendAmount),
	}
}

// decString renders a set amount, keeping unset fields out of the JSON.
func decString(a *uint256.Int) string {
	if a == nil {
		return ""
	}
	return a.Dec()
}
