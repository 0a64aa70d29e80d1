package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/service"
)

// RewardsReader computes or settles rewards for the handlers below.
type RewardsReader interface {
	Rewards(ctx context.Context, owner string) (domain.RewardLedgerEntry, error)
	Claim(ctx context.Context, req service.ClaimRequest) (domain.ClaimRecord, error)
}

// RewardsHandler serves reward figures and claim submission.
type RewardsHandler struct {
	rewards RewardsReader
	logger  *slog.Logger
}

// NewRewardsHandler creates a RewardsHandler.
func NewRewardsHandler(rewards RewardsReader, logger *slog.Logger) *RewardsHandler {
	return &RewardsHandler{rewards: rewards, logger: logger}
}

// GetRewards returns the owner's current reward state.
// GET /api/rewards/{owner}
func (h *RewardsHandler) GetRewards(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner address is required")
		return
	}

	entry, err := h.rewards.Rewards(r.Context(), owner)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get rewards failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if entry.History == nil {
		entry.History = []domain.ClaimRecord{}
	}
	writeJSON(w, http.StatusOK, entry)
}

type claimRequest struct {
	Owner         string `json:"owner"`
	PayoutAddress string `json:"payoutAddress"`
}

// Claim settles the owner's available balance and pays it out in FLR.
// POST /api/rewards/claim
func (h *RewardsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.rewards.Claim(r.Context(), service.ClaimRequest{
		Owner:         req.Owner,
		PayoutAddress: req.PayoutAddress,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "claim failed",
			slog.String("owner", req.Owner),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
