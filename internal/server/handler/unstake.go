package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/service"
)

// UnstakeProcessor is the service slice behind the unstake endpoints.
type UnstakeProcessor interface {
	Unstake(ctx context.Context, in service.UnstakeInput) (domain.UnstakeRequest, error)
	Status(ctx context.Context, stakeID string) (domain.UnstakeRequest, error)
}

// UnstakeHandler serves withdrawal submission and status.
type UnstakeHandler struct {
	unstakes UnstakeProcessor
	logger   *slog.Logger
}

// NewUnstakeHandler creates an UnstakeHandler.
func NewUnstakeHandler(unstakes UnstakeProcessor, logger *slog.Logger) *UnstakeHandler {
	return &UnstakeHandler{unstakes: unstakes, logger: logger}
}

type unstakeRequest struct {
	Owner   string `json:"owner"`
	StakeID string `json:"stakeId"`
}

// Unstake processes a withdrawal end to end and returns the terminal
// request state. The call blocks through signing, submission, and
// confirmation.
// POST /api/unstake
func (h *UnstakeHandler) Unstake(w http.ResponseWriter, r *http.Request) {
	var req unstakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.unstakes.Unstake(r.Context(), service.UnstakeInput{
		Owner:   req.Owner,
		StakeID: req.StakeID,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "unstake failed",
			slog.String("owner", req.Owner),
			slog.String("stake_id", req.StakeID),
			slog.String("error", err.Error()),
		)
		// A failed request still carries its recorded state; surface it
		// alongside the error mapping when available.
		if result.RequestID != "" {
			writeJSON(w, http.StatusBadGateway, result)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status returns the recorded state of the latest unstake request for a
// stake.
// GET /api/unstake/{stakeId}/status
func (h *UnstakeHandler) Status(w http.ResponseWriter, r *http.Request) {
	stakeID := r.PathValue("stakeId")
	if stakeID == "" {
		writeError(w, http.StatusBadRequest, "stake ID is required")
		return
	}

	req, err := h.unstakes.Status(r.Context(), stakeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
