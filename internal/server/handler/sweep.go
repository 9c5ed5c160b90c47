package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/castmarket/castmarket/internal/domain"
)

// SweepService defines what the sweep handler needs from the service layer.
type SweepService interface {
	SweepExpired(ctx context.Context) ([]domain.Question, error)
}

// SweepHandler triggers an on-demand expiration sweep, the same pass the
// background sweeper runs on its interval.
type SweepHandler struct {
	sweeper SweepService
	logger  *slog.Logger
}

func NewSweepHandler(sweeper SweepService, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{
		sweeper: sweeper,
		logger:  logger,
	}
}

// TriggerSweep expires every open question past its deadline and reports
// the affected IDs. Running it twice is harmless.
// POST /api/sweep
func (h *SweepHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.sweeper.SweepExpired(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "sweep expired questions")
		return
	}

	ids := make([]string, 0, len(expired))
	for _, q := range expired {
		ids = append(ids, q.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"expired":      len(ids),
		"question_ids": ids,
	})
}
