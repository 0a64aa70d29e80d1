package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flarexfi/flarestake/internal/domain"
)

// PositionReader is the service slice behind the positions endpoint.
type PositionReader interface {
	ActivePositions(ctx context.Context, owner string) ([]domain.StakePosition, error)
}

// PositionHandler serves the per-owner position view.
type PositionHandler struct {
	positions PositionReader
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

// ListPositions returns the owner's active stake positions, reconciled
// against the ledger.
// GET /api/positions/{owner}
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner address is required")
		return
	}

	positions, err := h.positions.ActivePositions(r.Context(), owner)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.StakePosition{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"positions": positions,
		"count":     len(positions),
	})
}
