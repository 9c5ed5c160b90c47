package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
	"github.com/castmarket/castmarket/internal/service"
)

// QuestionService defines what the question handler needs from the service
// layer. It is declared locally so the handler package does not depend on
// the concrete service implementation.
type QuestionService interface {
	CreateQuestion(ctx context.Context, in service.CreateQuestionInput) (domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]service.QuestionSummary, error)
	DeleteQuestion(ctx context.Context, id, requester string) error
}

// QuestionHandler serves the question registry endpoints.
type QuestionHandler struct {
	questions QuestionService
	logger    *slog.Logger
}

func NewQuestionHandler(questions QuestionService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questions: questions,
		logger:    logger,
	}
}

type createQuestionRequest struct {
	Title         string    `json:"title"`
	Outcomes      []string  `json:"outcomes"`
	Probabilities []float64 `json:"probabilities"`
	Tags          []string  `json:"tags"`
	Rules         string    `json:"rules"`
	ExpireAt      time.Time `json:"expire_at"`
}

type listQuestionsResponse struct {
	Questions []service.QuestionSummary `json:"questions"`
	Limit     int                       `json:"limit"`
	Offset    int                       `json:"offset"`
}

// CreateQuestion registers a new open question owned by the caller.
// POST /api/questions
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, "X-User header is required")
		return
	}

	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	q, err := h.questions.CreateQuestion(r.Context(), service.CreateQuestionInput{
		Title:         req.Title,
		Outcomes:      req.Outcomes,
		Probabilities: req.Probabilities,
		Tags:          req.Tags,
		Rules:         req.Rules,
		CreatedBy:     user,
		ExpireAt:      req.ExpireAt,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "create question")
		return
	}

	writeJSON(w, http.StatusCreated, q)
}

// ListQuestions returns questions filtered by status and tag.
// GET /api/questions?status=open&tag=politics&limit=50&offset=0
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	filter := domain.QuestionFilter{
		Status: domain.QuestionStatus(q.Get("status")),
		Tag:    q.Get("tag"),
		Opts:   opts,
	}

	summaries, err := h.questions.ListQuestions(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list questions")
		return
	}

	if summaries == nil {
		summaries = []service.QuestionSummary{}
	}

	writeJSON(w, http.StatusOK, listQuestionsResponse{
		Questions: summaries,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// GetQuestion returns a single question by ID.
// GET /api/questions/{id}
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing question id")
		return
	}

	q, err := h.questions.GetQuestion(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get question")
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// DeleteQuestion removes a question and its positions and votes. Only the
// creator may delete.
// DELETE /api/questions/{id}
func (h *QuestionHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
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

	if err := h.questions.DeleteQuestion(r.Context(), id, user); err != nil {
		writeDomainError(w, r, h.logger, err, "delete question")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "deleted",
		"question_id": id,
	})
}
