package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/castmarket/castmarket/internal/domain"
	"github.com/castmarket/castmarket/internal/service"
)

// VoteService defines what the vote handler needs from the service layer.
type VoteService interface {
	Stake(ctx context.Context, questionID, userID, outcome string, amount float64) (service.StakeResult, error)
	Preview(ctx context.Context, questionID, outcome string, amount float64) ([]float64, error)
	ListVotes(ctx context.Context, questionID string, opts domain.ListOpts) ([]domain.VoteRecord, error)
	ListUserVotes(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.VoteRecord, error)
	GetPosition(ctx context.Context, questionID, userID string) (domain.Position, error)
}

// VoteHandler serves the stake, preview, journal and position endpoints.
type VoteHandler struct {
	votes  VoteService
	logger *slog.Logger
}

func NewVoteHandler(votes VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{
		votes:  votes,
		logger: logger,
	}
}

type stakeRequest struct {
	Outcome string  `json:"outcome"`
	Amount  float64 `json:"amount"`
}

type listVotesResponse struct {
	Votes  []domain.VoteRecord `json:"votes"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// Stake applies a signed stake delta for the caller. A positive amount
// backs the named outcome; a negative amount withdraws symmetrically from
// every outcome.
// POST /api/questions/{id}/stake
func (h *VoteHandler) Stake(w http.ResponseWriter, r *http.Request) {
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

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.votes.Stake(r.Context(), id, user, req.Outcome, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "stake")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Preview computes the probability vector a stake would produce without
// persisting anything.
// POST /api/questions/{id}/preview
func (h *VoteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing question id")
		return
	}

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	probs, err := h.votes.Preview(r.Context(), id, req.Outcome, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "preview stake")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"question_id":   id,
		"probabilities": probs,
	})
}

// ListVotes returns the question's vote journal, newest first.
// GET /api/questions/{id}/votes?limit=50&offset=0
func (h *VoteHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing question id")
		return
	}
	opts := parseListOpts(r)

	votes, err := h.votes.ListVotes(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list votes")
		return
	}

	if votes == nil {
		votes = []domain.VoteRecord{}
	}

	writeJSON(w, http.StatusOK, listVotesResponse{
		Votes:  votes,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// ListUserVotes returns a user's stake history across all questions,
// newest first.
// GET /api/users/{user}/votes?limit=50&offset=0
func (h *VoteHandler) ListUserVotes(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "missing user")
		return
	}
	opts := parseListOpts(r)

	votes, err := h.votes.ListUserVotes(r.Context(), user, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list user votes")
		return
	}

	if votes == nil {
		votes = []domain.VoteRecord{}
	}

	writeJSON(w, http.StatusOK, listVotesResponse{
		Votes:  votes,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetPosition returns the caller's per-outcome holdings on a question. A
// user with no ledger row gets a zero position, not a 404.
// GET /api/questions/{id}/position
func (h *VoteHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
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

	pos, err := h.votes.GetPosition(r.Context(), id, user)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get position")
		return
	}

	writeJSON(w, http.StatusOK, pos)
}
