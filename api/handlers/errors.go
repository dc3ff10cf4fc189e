package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/ledger"
	"github.com/curvelabs/bondcurve/pkg/rewards"
)

// ErrorResponse is the JSON body returned for all failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errInvalidCurveID = errors.New("invalid curve id")

func parseCurveID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errInvalidCurveID
	}
	return id, nil
}

// statusForError maps domain errors onto HTTP statuses. Rejections that
// depend on current state (slippage, caps, pauses, balances) are conflicts;
// malformed input is a bad request.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, bonding.ErrCurveNotFound):
		return http.StatusNotFound, "curve_not_found"
	case errors.Is(err, bonding.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, amount.ErrOverflow):
		return http.StatusUnprocessableEntity, "overflow"
	case errors.Is(err, bonding.ErrSlippageExceeded),
		errors.Is(err, bonding.ErrCapExceeded),
		errors.Is(err, bonding.ErrInsolventReserve),
		errors.Is(err, bonding.ErrPaused),
		errors.Is(err, bonding.ErrPreMintNotCovered),
		errors.Is(err, rewards.ErrNoEligibleStake),
		errors.Is(err, rewards.ErrInsufficientStake),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, bonding.ErrCurveAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, bonding.ErrZeroAmount),
		errors.Is(err, rewards.ErrZeroAmount),
		errors.Is(err, bonding.ErrCapBelowSupply),
		errors.Is(err, amount.ErrInvalidAmount),
		errors.Is(err, amount.ErrInvalidPercentage),
		errors.Is(err, account.ErrInvalidAccount),
		errors.Is(err, errInvalidCurveID):
		return http.StatusBadRequest, "invalid_argument"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps err to an HTTP status and writes the JSON error body.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: err.Error(),
	}); encErr != nil {
		log.Error("failed to encode error response", "error", encErr)
	}
}

// writeJSON writes v with a 200 unless status says otherwise.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
