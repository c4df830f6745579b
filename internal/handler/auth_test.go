package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizgen/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, nil, model.ServerConfig{JWTSecret: testSecret})
	env.seedLearner(t, "u1")

	tests := []struct {
		name   string
		header http.Header
	}{
		{"no header", nil},
		{"not bearer", http.Header{"Authorization": {"Basic dTE6cHc="}}},
		{"garbage", bearer("not-a-jwt")},
		{"wrong secret", bearer(signToken(t, "other-secret", "u1", time.Hour))},
		{"expired", bearer(signToken(t, testSecret, "u1", -time.Minute))},
		{"other subject", bearer(signToken(t, testSecret, "u2", time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, generatePath, generateBody("u1"), tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	n, err := env.store.QuizCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuthRecordsSubjectOnAudit(t *testing.T) {
	env := newTestEnv(t, nil, model.ServerConfig{JWTSecret: testSecret})
	env.seedLearner(t, "u1")
	token := signToken(t, testSecret, "u1", time.Hour)

	rec := env.do(t, http.MethodPost, generatePath, generateBody("u1"), bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	events, err := env.store.ListAuditEvents(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].Actor)

	rec = env.do(t, http.MethodGet, "/v1/users/u1/quizzes", nil, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/users/u2/quizzes", nil, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthDisabledForwardsToken(t *testing.T) {
	env := newTestEnv(t, nil, model.ServerConfig{})
	env.seedLearner(t, "u1")

	rec := env.do(t, http.MethodPost, generatePath, generateBody("u1"), bearer("opaque-token"))
	require.Equal(t, http.StatusOK, rec.Code)

	events, err := env.store.ListAuditEvents(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Actor)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
	}
	for _, tt := range tests {
		r, err := http.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, err)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, bearerToken(r), "header %q", tt.header)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, model.ServerConfig{RateLimit: 0.001, RateBurst: 2})

	for range 2 {
		rec := env.do(t, http.MethodGet, "/v1/users/u1/quizzes", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/v1/users/u1/quizzes", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health checks are outside the budget
	rec = env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
