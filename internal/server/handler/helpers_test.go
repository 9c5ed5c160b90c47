package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/castmarket/castmarket/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseListOpts(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "?limit=10&offset=20", 10, 20},
		{"limit capped", "?limit=9999", 500, 0},
		{"garbage ignored", "?limit=abc&offset=-3", 50, 0},
		{"zero limit ignored", "?limit=0", 50, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/questions"+tc.query, nil)
			opts := parseListOpts(r)
			assert.Equal(t, tc.wantLimit, opts.Limit)
			assert.Equal(t, tc.wantOffset, opts.Offset)
		})
	}
}

func TestWriteDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrValidation, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrAlreadyEnded, http.StatusConflict},
		{domain.ErrQuestionNotOpen, http.StatusConflict},
		{domain.ErrInsufficientPosition, http.StatusUnprocessableEntity},
		{domain.ErrQuestionBusy, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			writeDomainError(w, r, discardLogger(), tc.err, "test op")
			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestWriteDomainError_BusySetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	writeDomainError(w, r, discardLogger(), domain.ErrQuestionBusy, "stake")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestWriteDomainError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	writeDomainError(w, r, discardLogger(), errors.New("pq: connection refused"), "stake")
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRequestUser_TrimsHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-User", "  alice ")
	assert.Equal(t, "alice", requestUser(r))

	r.Header.Del("X-User")
	assert.Empty(t, requestUser(r))
}
