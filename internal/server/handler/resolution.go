package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ResolutionService defines what the resolution handler needs from the
// service layer.
type ResolutionService interface {
	EndQuestion(ctx context.Context, id, winningOutcome, requester string) error
}

// ResolutionHandler serves the question resolution endpoint.
type ResolutionHandler struct {
	resolution ResolutionService
	logger     *slog.Logger
}

func NewResolutionHandler(resolution ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolution: resolution,
		logger:     logger,
	}
}

type endQuestionRequest struct {
	Result string `json:"result"`
}

// EndQuestion resolves an open question with a winning outcome. Only the
// creator may resolve, and a question resolves at most once.
// POST /api/questions/{id}/end
func (h *ResolutionHandler) EndQuestion(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing question id")
		return
	}
	user := requestUser(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User header is required")
		return
	}

	var req endQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.resolution.EndQuestion(r.Context(), id, req.Result, user); err != nil {
		writeDomainError(w, r, h.logger, err, "end question")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ended",
		"question_id": id,
		"result":      req.Result,
	})
}
