package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flarexfi/flarestake/internal/domain"
)

// StatsReader is the service slice behind the platform endpoints.
type StatsReader interface {
	PlatformStats(ctx context.Context) (domain.PlatformStats, error)
	Pools(ctx context.Context) []domain.Pool
}

// StatsHandler serves platform aggregates and the pool catalog.
type StatsHandler struct {
	stats  StatsReader
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats StatsReader, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// PlatformStats returns the aggregate view over all active positions. The
// scan is O(participants); slow responses are expected on large ledgers.
// GET /api/platform-stats
func (h *StatsHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.PlatformStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "platform stats failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Pools returns the configured pool catalog.
// GET /api/pools
func (h *StatsHandler) Pools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pools": h.stats.Pools(r.Context()),
	})
}
