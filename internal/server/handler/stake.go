package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/service"
)

// StakePreparer is the service slice behind the stake endpoints.
type StakePreparer interface {
	Prepare(ctx context.Context, in service.StakeInput) (service.StakeIntent, error)
	IntentStatus(ctx context.Context, intentID string) (domain.StakePosition, error)
	Abandon(ctx context.Context, intentID string) error
}

// StakeHandler serves stake intent preparation and tracking.
type StakeHandler struct {
	staking StakePreparer
	logger  *slog.Logger
}

// NewStakeHandler creates a StakeHandler.
func NewStakeHandler(staking StakePreparer, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{staking: staking, logger: logger}
}

type stakeRequest struct {
	Owner  string  `json:"owner"`
	PoolID string  `json:"poolId"`
	Amount float64 `json:"amount"`
}

// PrepareStake validates a stake request and returns the unsigned payment
// for the user's wallet to sign.
// POST /api/stake
func (h *StakeHandler) PrepareStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, err := h.staking.Prepare(r.Context(), service.StakeInput{
		Owner:  req.Owner,
		PoolID: req.PoolID,
		Amount: req.Amount,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stake preparation failed",
			slog.String("owner", req.Owner),
			slog.String("pool_id", req.PoolID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// IntentStatus reports where a stake intent is in its lifecycle.
// GET /api/stake/{intentId}/status
func (h *StakeHandler) IntentStatus(w http.ResponseWriter, r *http.Request) {
	intentID := r.PathValue("intentId")
	if intentID == "" {
		writeError(w, http.StatusBadRequest, "intent ID is required")
		return
	}

	pos, err := h.staking.IntentStatus(r.Context(), intentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intentId": pos.ID,
		"status":   string(pos.Status),
		"position": pos,
	})
}

// AbandonIntent drops an unsigned stake intent.
// DELETE /api/stake/{intentId}
func (h *StakeHandler) AbandonIntent(w http.ResponseWriter, r *http.Request) {
	intentID := r.PathValue("intentId")
	if intentID == "" {
		writeError(w, http.StatusBadRequest, "intent ID is required")
		return
	}

	if err := h.staking.Abandon(r.Context(), intentID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"intentId": intentID, "status": "abandoned"})
}
