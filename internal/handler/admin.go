package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.store.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		slog.Error("failed to get quiz", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !h.authorized(r, quiz.UserID) {
		writeError(w, http.StatusUnauthorized, errSubjectMismatch)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.authorized(r, userID) {
		writeError(w, http.StatusUnauthorized, errSubjectMismatch)
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	quizzes, err := h.store.ListQuizzes(r.Context(), userID, limit)
	if err != nil {
		slog.Error("failed to list quizzes", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if quizzes == nil {
		quizzes = []model.GeneratedQuiz{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes, "count": len(quizzes)})
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.authorized(r, userID) {
		writeError(w, http.StatusUnauthorized, errSubjectMismatch)
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := h.store.ListAuditEvents(r.Context(), userID, limit)
	if err != nil {
		slog.Error("failed to list audit events", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func listLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxListLimit), nil
}
