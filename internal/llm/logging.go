package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/quizgen/internal/model"
)

type contextKey string

const purposeKey contextKey = "llm_purpose"

// WithPurpose attaches a purpose label to the context for request logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// Recorder persists provider call events. *store.Store satisfies it.
type Recorder interface {
	AppendLLMRequest(ctx context.Context, ev model.LLMRequestEvent) error
}

// LoggingProvider records every request through a Recorder.
type LoggingProvider struct {
	inner    Provider
	recorder Recorder
}

// WithLogging wraps a Provider so each call is recorded.
func WithLogging(p Provider, rec Recorder) Provider {
	return &LoggingProvider{inner: p, recorder: rec}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	latency := time.Since(start)

	ev := model.LLMRequestEvent{
		ID:        uuid.NewString(),
		Purpose:   PurposeFrom(ctx),
		Model:     l.inner.ModelID(),
		LatencyMs: latency.Milliseconds(),
		Success:   err == nil,
		CreatedAt: start.UTC(),
	}
	if resp != nil {
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			ev.Model = resp.Model
		}
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
	}

	slog.Info("LLM request", "purpose", ev.Purpose, "model", ev.Model,
		"latency", latency, "success", ev.Success)

	// Recorded even when the request context is already cancelled.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recErr := l.recorder.AppendLLMRequest(recCtx, ev); recErr != nil {
		slog.Warn("record LLM request", "error", recErr)
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
