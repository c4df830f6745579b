package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/quizgen/internal/model"
)

var (
	errMissingToken    = errors.New("missing bearer token")
	errInvalidToken    = errors.New("invalid bearer token")
	errSubjectMismatch = errors.New("token subject does not match user")
	errTooManyRequests = errors.New("too many requests")
)

// authenticate verifies the bearer token when a JWT secret is configured and
// stores the caller in the request context. Without a secret any bearer
// token is forwarded unverified.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)

		if h.config.JWTSecret == "" {
			if token != "" {
				r = r.WithContext(model.ContextWithCaller(r.Context(), &model.Caller{Token: token}))
			}
			next.ServeHTTP(w, r)
			return
		}

		if token == "" {
			writeError(w, http.StatusUnauthorized, errMissingToken)
			return
		}
		subject, err := h.verifyToken(token)
		if err != nil {
			slog.Warn("rejected bearer token", "error", err)
			writeError(w, http.StatusUnauthorized, errInvalidToken)
			return
		}

		ctx := model.ContextWithCaller(r.Context(), &model.Caller{Subject: subject, Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) verifyToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(h.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// authorized reports whether the caller may act for userID. Always true when
// tokens are not verified.
func (h *Handler) authorized(r *http.Request, userID string) bool {
	if h.config.JWTSecret == "" {
		return true
	}
	c := model.CallerFromContext(r.Context())
	return c != nil && c.Subject == userID
}

func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// rateLimit applies the global request budget.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
