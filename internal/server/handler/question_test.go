package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmarket/castmarket/internal/domain"
	"github.com/castmarket/castmarket/internal/service"
)

type stubQuestionService struct {
	createFn func(ctx context.Context, in service.CreateQuestionInput) (domain.Question, error)
	getFn    func(ctx context.Context, id string) (domain.Question, error)
	listFn   func(ctx context.Context, filter domain.QuestionFilter) ([]service.QuestionSummary, error)
	deleteFn func(ctx context.Context, id, requester string) error
}

func (s *stubQuestionService) CreateQuestion(ctx context.Context, in service.CreateQuestionInput) (domain.Question, error) {
	return s.createFn(ctx, in)
}

func (s *stubQuestionService) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	return s.getFn(ctx, id)
}

func (s *stubQuestionService) ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]service.QuestionSummary, error) {
	return s.listFn(ctx, filter)
}

func (s *stubQuestionService) DeleteQuestion(ctx context.Context, id, requester string) error {
	return s.deleteFn(ctx, id, requester)
}

func questionMux(svc QuestionService) *http.ServeMux {
	h := NewQuestionHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/questions", h.CreateQuestion)
	mux.HandleFunc("GET /api/questions", h.ListQuestions)
	mux.HandleFunc("GET /api/questions/{id}", h.GetQuestion)
	mux.HandleFunc("DELETE /api/questions/{id}", h.DeleteQuestion)
	return mux
}

func TestCreateQuestion_Created(t *testing.T) {
	var got service.CreateQuestionInput
	svc := &stubQuestionService{
		createFn: func(_ context.Context, in service.CreateQuestionInput) (domain.Question, error) {
			got = in
			return domain.Question{ID: "q1", Title: in.Title, Status: domain.QuestionStatusOpen}, nil
		},
	}

	body := `{"title":"Will it rain?","outcomes":["Yes","No"],"probabilities":[0.5,0.5],"tags":["weather"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(body))
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Equal(t, []string{"Yes", "No"}, got.Outcomes)

	var resp domain.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "q1", resp.ID)
}

func TestCreateQuestion_RequiresCallerIdentity(t *testing.T) {
	svc := &stubQuestionService{}

	req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "X-User")
}

func TestCreateQuestion_ValidationErrorIs400(t *testing.T) {
	svc := &stubQuestionService{
		createFn: func(context.Context, service.CreateQuestionInput) (domain.Question, error) {
			return domain.Question{}, domain.ErrValidation
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{"title":""}`))
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListQuestions_PassesFilterAndWrapsEmpty(t *testing.T) {
	var got domain.QuestionFilter
	svc := &stubQuestionService{
		listFn: func(_ context.Context, filter domain.QuestionFilter) ([]service.QuestionSummary, error) {
			got = filter
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/questions?status=open&tag=politics&limit=10", nil)
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.QuestionStatusOpen, got.Status)
	assert.Equal(t, "politics", got.Tag)
	assert.Equal(t, 10, got.Opts.Limit)

	var resp struct {
		Questions []service.QuestionSummary `json:"questions"`
		Limit     int                       `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Questions)
	assert.Empty(t, resp.Questions)
	assert.Equal(t, 10, resp.Limit)
}

func TestGetQuestion_NotFound(t *testing.T) {
	svc := &stubQuestionService{
		getFn: func(context.Context, string) (domain.Question, error) {
			return domain.Question{}, domain.ErrNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/questions/missing", nil)
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetQuestion_OK(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubQuestionService{
		getFn: func(_ context.Context, id string) (domain.Question, error) {
			return domain.Question{ID: id, Title: "q", CreatedAt: now}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/questions/q1", nil)
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp domain.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "q1", resp.ID)
}

func TestDeleteQuestion_ForbiddenForNonCreator(t *testing.T) {
	svc := &stubQuestionService{
		deleteFn: func(context.Context, string, string) error {
			return domain.ErrUnauthorized
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/questions/q1", nil)
	req.Header.Set("X-User", "bob")
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteQuestion_OK(t *testing.T) {
	var gotID, gotUser string
	svc := &stubQuestionService{
		deleteFn: func(_ context.Context, id, requester string) error {
			gotID, gotUser = id, requester
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/questions/q1", nil)
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	questionMux(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q1", gotID)
	assert.Equal(t, "alice", gotUser)
}
