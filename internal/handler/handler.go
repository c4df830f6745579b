package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/monitoring"
	"github.com/pavelanni/quizgen/internal/service"
	"github.com/pavelanni/quizgen/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	service *service.QuizService
	metrics *monitoring.Metrics
	config  model.ServerConfig
	limiter *rate.Limiter
}

// New creates a new Handler. metrics may be nil.
func New(s *store.Store, svc *service.QuizService, metrics *monitoring.Metrics, cfg model.ServerConfig) (*Handler, error) {
	if s == nil || svc == nil {
		return nil, errors.New("handler needs a store and a quiz service")
	}
	h := &Handler{store: s, service: svc, metrics: metrics, config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return h, nil
}

// Routes registers all HTTP routes. It must be called before any other
// route is added to r because it installs middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Use(corsMiddleware)
	r.Use(h.metrics.Middleware)

	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Use(h.authenticate)

		r.Post("/functions/v1/enhanced-quiz-generator", h.handleGenerate)
		r.Post("/v1/quizzes/generate", h.handleGenerate)

		r.Get("/v1/quizzes/{quizID}", h.handleGetQuiz)
		r.Get("/v1/users/{userID}/quizzes", h.handleListQuizzes)
		r.Get("/v1/users/{userID}/audit", h.handleListAudit)
	})
}

// corsMiddleware allows any origin and answers preflight requests itself.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.QuizCount(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("database: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Warn("bad generation request", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("decode request: %w", err))
		return
	}
	if !h.authorized(r, req.UserID) {
		writeError(w, http.StatusUnauthorized, errSubjectMismatch)
		return
	}

	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		slog.Error("failed to generate quiz", "user_id", req.UserID, "subject", req.Subject,
			"topic", req.Topic, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
