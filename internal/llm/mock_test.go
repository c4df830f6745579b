package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pavelanni/quizgen/internal/model"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []model.LLMRequestEvent
	err    error
}

func (f *fakeRecorder) AppendLLMRequest(_ context.Context, ev model.LLMRequestEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func TestMockProvider_FIFO(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"n":1}`)},
		MockResponse{Err: &ErrRateLimit{}},
	)
	m.AddResponse(MockResponse{Content: json.RawMessage(`{"n":3}`)})
	ctx := context.Background()

	resp, err := m.Generate(ctx, Request{})
	if err != nil || string(resp.Content) != `{"n":1}` {
		t.Fatalf("first call: %v %v", resp, err)
	}
	var rl *ErrRateLimit
	if _, err := m.Generate(ctx, Request{}); !errors.As(err, &rl) {
		t.Fatalf("second call: expected rate limit, got %v", err)
	}
	resp, err = m.Generate(ctx, Request{})
	if err != nil || string(resp.Content) != `{"n":3}` {
		t.Fatalf("third call: %v %v", resp, err)
	}

	var unavail *ErrProviderUnavailable
	if _, err := m.Generate(ctx, Request{}); !errors.As(err, &unavail) {
		t.Fatalf("empty queue: expected unavailable, got %v", err)
	}
	if m.CallCount() != 4 {
		t.Errorf("expected 4 calls, got %d", m.CallCount())
	}
}

func TestMockProvider_ValidatesSchema(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`not json`)},
		MockResponse{Content: json.RawMessage(``)},
	)
	for i := 0; i < 2; i++ {
		_, err := m.Generate(context.Background(), Request{Schema: quizSchema()})
		var inv *ErrInvalidResponse
		if !errors.As(err, &inv) {
			t.Errorf("call %d: expected ErrInvalidResponse, got %v", i, err)
		}
	}
}

func TestLoggingProvider_Records(t *testing.T) {
	rec := &fakeRecorder{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"ok":true}`),
		Usage:   Usage{InputTokens: 10, OutputTokens: 5},
	})
	p := WithLogging(mock, rec)
	ctx := WithPurpose(context.Background(), "quiz-generation")

	if _, err := p.Generate(ctx, Request{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected error on empty queue")
	}

	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
	first, second := rec.events[0], rec.events[1]
	if !first.Success || first.InputTokens != 10 || first.Purpose != "quiz-generation" || first.Model != "mock" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if second.Success || second.ErrorMessage == "" {
		t.Errorf("unexpected second event: %+v", second)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Error("events need distinct IDs")
	}
}

func TestLoggingProvider_RecorderFailureIgnored(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	p := WithLogging(NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)}), rec)

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("recorder failure leaked into Generate: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Errorf("expected mock model, got %q", p.ModelID())
	}
}

func TestPurposeDefault(t *testing.T) {
	if got := PurposeFrom(context.Background()); got != "unknown" {
		t.Errorf("expected 'unknown', got %q", got)
	}
}
