// Package quizgen asks an LLM for a quiz and reports either the generated
// questions or the reason generation must fall back.
package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/quizgen/internal/llm"
	"github.com/pavelanni/quizgen/internal/llm/prompts"
	"github.com/pavelanni/quizgen/internal/model"
)

const (
	Temperature = 0.7
	MaxTokens   = 4000

	// Purpose labels provider calls in the request log.
	Purpose = "quiz-generation"
)

// Input is what one generation needs.
type Input struct {
	Subject              string
	Topic                string
	Difficulty           model.Difficulty
	QuestionCount        int
	QuizType             model.QuizType
	LearningObjectives   []string
	LearningStyle        model.LearningStyle
	PredictedPerformance float64
	KnowledgeGaps        []string
	Trend                string
	Velocity             string
}

// Outcome is either a generated quiz body or a fallback signal.
// Exactly one of the two shapes is populated, selected by Source.
type Outcome struct {
	Source model.Source

	// Set when Source is SourceGenerated.
	Model       string
	Title       string
	Description string
	Questions   []model.Question

	// Set when Source is SourceFallback.
	Reason string
}

// Generated reports whether the LLM produced usable questions.
func (o Outcome) Generated() bool { return o.Source == model.SourceGenerated }

func fallback(reason string) Outcome {
	return Outcome{Source: model.SourceFallback, Reason: reason}
}

// Generator wraps one LLM provider.
type Generator struct {
	provider llm.Provider
	prompts  *prompts.Composer
	timeout  time.Duration
}

// New creates a Generator. A zero timeout leaves the context as is.
func New(p llm.Provider, c *prompts.Composer, timeout time.Duration) *Generator {
	if c == nil {
		c = prompts.Default()
	}
	return &Generator{provider: p, prompts: c, timeout: timeout}
}

// ModelID returns the configured provider's model.
func (g *Generator) ModelID() string { return g.provider.ModelID() }

// Generate performs exactly one provider call. It never returns an error:
// every failure becomes a fallback Outcome carrying the reason.
func (g *Generator) Generate(ctx context.Context, in Input) Outcome {
	system, user, err := g.prompts.BuildQuizPrompt(prompts.QuizPromptData{
		Subject:              in.Subject,
		Topic:                in.Topic,
		Difficulty:           in.Difficulty,
		QuestionCount:        in.QuestionCount,
		QuizType:             in.QuizType,
		LearningObjectives:   in.LearningObjectives,
		LearningStyle:        in.LearningStyle,
		PredictedPerformance: in.PredictedPerformance,
		KnowledgeGaps:        in.KnowledgeGaps,
		Trend:                in.Trend,
		Velocity:             in.Velocity,
	})
	if err != nil {
		return fallback(fmt.Sprintf("build prompt: %v", err))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.provider.Generate(llm.WithPurpose(ctx, Purpose), llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		Schema:      QuizSchema,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	})
	if err != nil {
		slog.Warn("LLM generation failed, using fallback", "error", err, "kind", errorKind(err))
		return fallback(err.Error())
	}

	payload, err := ParsePayload(resp.Content)
	if err != nil {
		slog.Warn("LLM payload rejected, using fallback", "error", err)
		return fallback(err.Error())
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = DefaultTitle(in.Subject, in.Topic)
	}
	questions := Normalize(payload.Questions, in.QuizType, in.Difficulty, in.LearningObjectives)
	if len(questions) == 0 {
		slog.Warn("LLM questions were all blank, using fallback")
		return fallback("LLM returned no usable questions")
	}
	if in.QuestionCount > 0 && len(questions) > in.QuestionCount {
		questions = questions[:in.QuestionCount]
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = g.provider.ModelID()
	}
	return Outcome{
		Source:      model.SourceGenerated,
		Model:       modelID,
		Title:       title,
		Description: strings.TrimSpace(payload.Description),
		Questions:   questions,
	}
}

func errorKind(err error) string {
	var (
		rl   *llm.ErrRateLimit
		inv  *llm.ErrInvalidResponse
		unav *llm.ErrProviderUnavailable
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &rl):
		return "rate_limit"
	case errors.As(err, &inv):
		return "invalid_response"
	case errors.As(err, &unav):
		return "unavailable"
	default:
		return "other"
	}
}

// Payload is the JSON object the LLM is asked to return.
type Payload struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []model.Question `json:"questions"`
}

// ParsePayload decodes model output. Empty content, malformed JSON and an empty
// question list are all errors.
func ParsePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	text := strings.TrimSpace(llm.StripCodeFence(string(raw)))
	if text == "" {
		return p, errors.New("empty LLM content")
	}
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return p, fmt.Errorf("parse LLM response: %w", err)
	}
	if len(p.Questions) == 0 {
		return p, errors.New("LLM returned no questions")
	}
	return p, nil
}

// Normalize fills in what the model left out: ids, type, difficulty, the
// learning objective, and empty lists in place of nulls.
func Normalize(qs []model.Question, quizType model.QuizType, d model.Difficulty, objectives []string) []model.Question {
	out := make([]model.Question, 0, len(qs))
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		if q.ID == "" || seen[q.ID] {
			q.ID = uuid.NewString()
		}
		seen[q.ID] = true
		if !q.Type.Valid() {
			q.Type = quizType
		}
		if !q.Difficulty.Valid() {
			q.Difficulty = d
		}
		if q.LearningObjective == "" && len(objectives) > 0 {
			q.LearningObjective = objectives[0]
		}
		if q.Hints == nil {
			q.Hints = []string{}
		}
		if q.ReasoningSteps == nil {
			q.ReasoningSteps = []string{}
		}
		if q.CommonMistakes == nil {
			q.CommonMistakes = []string{}
		}
		out = append(out, q)
	}
	return out
}

// DefaultTitle is used when the model or the fallback bank gives no title.
func DefaultTitle(subject, topic string) string {
	return fmt.Sprintf("%s: %s Quiz", titleCase(subject), titleCase(topic))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
