// Package service runs the quiz generation pipeline: load the learner's
// context, analyze it, generate questions (LLM or fallback), persist the quiz
// with its audit event and write the accompanying insights.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/quizgen/internal/fallback"
	"github.com/pavelanni/quizgen/internal/insights"
	"github.com/pavelanni/quizgen/internal/learning"
	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/monitoring"
	"github.com/pavelanni/quizgen/internal/quizgen"
	"github.com/pavelanni/quizgen/internal/store"
)

const (
	DefaultQuestionCount = 5
	MaxQuestionCount     = 20

	attemptLimit  = 20
	progressLimit = 30
)

// ErrInvalidRequest marks a request rejected before any lookup.
var ErrInvalidRequest = errors.New("invalid request")

var tracer = otel.Tracer("github.com/pavelanni/quizgen/internal/service")

// QuizService wires the pipeline stages together.
type QuizService struct {
	store    *store.Store
	llm      *quizgen.Generator
	fallback *fallback.Generator
	metrics  *monitoring.Metrics
	cfg      model.ServerConfig
	now      func() time.Time
}

// New creates a QuizService. gen may be nil, in which case every quiz comes
// from the fallback generator. fb defaults to a clock-seeded generator and
// metrics may be nil.
func New(s *store.Store, gen *quizgen.Generator, fb *fallback.Generator, metrics *monitoring.Metrics, cfg model.ServerConfig) *QuizService {
	if fb == nil {
		fb = fallback.New(nil)
	}
	if cfg.DefaultQuestionCount <= 0 {
		cfg.DefaultQuestionCount = DefaultQuestionCount
	}
	if cfg.MaxQuestionCount <= 0 {
		cfg.MaxQuestionCount = MaxQuestionCount
	}
	return &QuizService{
		store:    s,
		llm:      gen,
		fallback: fb,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate runs the whole pipeline for one request. Nothing is written unless
// every lookup succeeds; the quiz and its audit event are saved together.
func (s *QuizService) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	ctx, span := tracer.Start(ctx, "quiz.generate")
	defer span.End()

	resp, err := s.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("quiz.id", resp.Quiz.ID),
		attribute.String("quiz.source", string(resp.Quiz.Metadata.GeneratedBy)),
	)
	return resp, nil
}

func (s *QuizService) generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	lc, lesson, err := s.loadContext(ctx, req)
	if err != nil {
		return nil, err
	}

	difficulty := req.DifficultyLevel
	if difficulty == "" {
		difficulty = lc.Profile.DifficultyPreference
	}
	if !difficulty.Valid() {
		difficulty = model.DifficultyIntermediate
	}
	style := req.UserLearningStyle
	if style == "" {
		style = lc.Profile.LearningStyle
	}
	if !style.Valid() {
		style = model.StyleVisual
	}

	patterns := learning.Analyze(lc, req.PreviousPerformance)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Float64("learner.predicted_performance", patterns.PredictedPerformance),
		attribute.String("learner.trend", string(patterns.Trend)),
		attribute.Int("learner.gaps", len(patterns.KnowledgeGaps)),
	)

	now := s.now().UTC()
	quiz := model.GeneratedQuiz{
		ID:        uuid.NewString(),
		LessonID:  lesson.ID,
		UserID:    req.UserID,
		CreatedAt: now,
		Metadata: model.QuizMetadata{
			Subject:              req.Subject,
			Topic:                req.Topic,
			QuizType:             req.QuizType,
			RequestedDifficulty:  difficulty,
			LearningStyle:        style,
			LearningObjectives:   nonNil(req.LearningObjectives),
			PredictedPerformance: patterns.PredictedPerformance,
			KnowledgeGaps:        patterns.KnowledgeGaps,
			Trend:                string(patterns.Trend),
			Velocity:             string(patterns.Velocity),
			GeneratedAt:          now,
		},
	}

	outcome := s.runLLM(ctx, req, difficulty, style, patterns)
	if outcome.Generated() {
		quiz.Title = outcome.Title
		quiz.Description = outcome.Description
		if quiz.Description == "" {
			quiz.Description = fmt.Sprintf("A %s quiz on %s.", difficulty, req.Topic)
		}
		quiz.Questions = outcome.Questions
		quiz.Difficulty = learning.AdjustDifficultyForUser(difficulty, patterns.PredictedPerformance)
		quiz.TimeLimit = learning.TimeLimit(lc.Twin)
		quiz.PassingScore = learning.PassingScore(patterns.PredictedPerformance)
		quiz.Metadata.GeneratedBy = model.SourceGenerated
		quiz.Metadata.Model = outcome.Model
	} else {
		_, fbSpan := tracer.Start(ctx, "quiz.fallback")
		fq := s.fallback.Generate(fallback.Params{
			Subject:              req.Subject,
			Topic:                req.Topic,
			Difficulty:           difficulty,
			QuestionCount:        req.QuestionCount,
			QuizType:             req.QuizType,
			LearningStyle:        style,
			LearningObjectives:   req.LearningObjectives,
			PredictedPerformance: patterns.PredictedPerformance,
			Twin:                 lc.Twin,
		})
		fbSpan.End()
		quiz.Title = fq.Title
		quiz.Description = fq.Description
		quiz.Questions = fq.Questions
		quiz.Difficulty = fq.Difficulty
		quiz.TimeLimit = fq.TimeLimit
		quiz.PassingScore = fq.PassingScore
		quiz.Metadata.GeneratedBy = model.SourceFallback
		quiz.Metadata.FallbackReason = outcome.Reason
	}
	if req.TimeConstraints != nil {
		quiz.TimeLimit = *req.TimeConstraints
	}

	audit, err := auditEvent(ctx, quiz, req, now)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, quiz, audit); err != nil {
		return nil, err
	}
	s.metrics.ObserveGeneration(quiz.Metadata.GeneratedBy)

	ins, pers := insights.Build(ctx, insights.Params{
		Subject:            req.Subject,
		Topic:              req.Topic,
		LearningStyle:      style,
		LearningObjectives: req.LearningObjectives,
		Patterns:           patterns,
		Difficulty:         quiz.Difficulty,
		QuestionCount:      len(quiz.Questions),
		TimeLimit:          quiz.TimeLimit,
		Source:             quiz.Metadata.GeneratedBy,
	})

	slog.Info("quiz generated", "quiz_id", quiz.ID, "user_id", quiz.UserID,
		"lesson_id", quiz.LessonID, "source", quiz.Metadata.GeneratedBy,
		"questions", len(quiz.Questions), "predicted", patterns.PredictedPerformance)

	return &model.GenerateResponse{Quiz: quiz, Insights: ins, Personalization: pers}, nil
}

// normalize validates the request and fills in defaults that do not depend
// on the learner's profile.
func (s *QuizService) normalize(req model.GenerateRequest) (model.GenerateRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Topic = strings.TrimSpace(req.Topic)

	switch {
	case req.UserID == "":
		return req, fmt.Errorf("user_id is required: %w", ErrInvalidRequest)
	case req.Subject == "":
		return req, fmt.Errorf("subject is required: %w", ErrInvalidRequest)
	case req.Topic == "":
		return req, fmt.Errorf("topic is required: %w", ErrInvalidRequest)
	}

	if req.QuestionCount == 0 {
		req.QuestionCount = s.cfg.DefaultQuestionCount
	}
	if req.QuestionCount < 1 || req.QuestionCount > s.cfg.MaxQuestionCount {
		return req, fmt.Errorf("question_count must be between 1 and %d: %w", s.cfg.MaxQuestionCount, ErrInvalidRequest)
	}
	if req.QuizType == "" {
		req.QuizType = model.QuizMultipleChoice
	}
	if !req.QuizType.Valid() {
		return req, fmt.Errorf("unknown quiz_type %q: %w", req.QuizType, ErrInvalidRequest)
	}
	if req.DifficultyLevel != "" && !req.DifficultyLevel.Valid() {
		return req, fmt.Errorf("unknown difficulty_level %q: %w", req.DifficultyLevel, ErrInvalidRequest)
	}
	if req.UserLearningStyle != "" && !req.UserLearningStyle.Valid() {
		return req, fmt.Errorf("unknown user_learning_style %q: %w", req.UserLearningStyle, ErrInvalidRequest)
	}
	if p := req.PreviousPerformance; p != nil && (*p < 0 || *p > 100) {
		return req, fmt.Errorf("previous_performance must be between 0 and 100: %w", ErrInvalidRequest)
	}
	if tc := req.TimeConstraints; tc != nil && *tc <= 0 {
		return req, fmt.Errorf("time_constraints must be positive: %w", ErrInvalidRequest)
	}
	return req, nil
}

// loadContext reads the learner's history and resolves the lesson the quiz
// attaches to. Only the cognitive twin may be absent. The reads run
// concurrently but failures are reported in a fixed order, profile first.
func (s *QuizService) loadContext(ctx context.Context, req model.GenerateRequest) (model.LearnerContext, model.Lesson, error) {
	ctx, span := tracer.Start(ctx, "quiz.load_context")
	defer span.End()

	var (
		lc     model.LearnerContext
		lesson model.Lesson
		errs   [6]error
		g      errgroup.Group
	)
	g.Go(func() error {
		lc.Profile, errs[0] = s.store.GetUserProfile(ctx, req.UserID)
		errs[0] = wrapLoad("load profile", errs[0])
		return nil
	})
	g.Go(func() error {
		lc.Attempts, errs[1] = s.store.ListRecentAttempts(ctx, req.UserID, attemptLimit)
		errs[1] = wrapLoad("load quiz attempts", errs[1])
		return nil
	})
	g.Go(func() error {
		lc.Knowledge, errs[2] = s.store.ListKnowledgeGraph(ctx, req.UserID)
		errs[2] = wrapLoad("load knowledge graph", errs[2])
		return nil
	})
	g.Go(func() error {
		lc.Progress, errs[3] = s.store.ListRecentProgress(ctx, req.UserID, progressLimit)
		errs[3] = wrapLoad("load progress", errs[3])
		return nil
	})
	g.Go(func() error {
		lc.Twin, errs[4] = s.store.GetCognitiveTwin(ctx, req.UserID)
		errs[4] = wrapLoad("load cognitive twin", errs[4])
		return nil
	})
	g.Go(func() error {
		lesson, errs[5] = s.store.ResolveLesson(ctx, req.UserID, req.Subject, req.Topic)
		errs[5] = wrapLoad("resolve lesson", errs[5])
		return nil
	})
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return lc, lesson, err
		}
	}
	return lc, lesson, nil
}

func wrapLoad(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *QuizService) runLLM(ctx context.Context, req model.GenerateRequest, d model.Difficulty, style model.LearningStyle, p learning.Patterns) quizgen.Outcome {
	if s.llm == nil {
		return quizgen.Outcome{Source: model.SourceFallback, Reason: "no LLM provider configured"}
	}
	ctx, span := tracer.Start(ctx, "quiz.llm")
	defer span.End()

	out := s.llm.Generate(ctx, quizgen.Input{
		Subject:              req.Subject,
		Topic:                req.Topic,
		Difficulty:           d,
		QuestionCount:        req.QuestionCount,
		QuizType:             req.QuizType,
		LearningObjectives:   req.LearningObjectives,
		LearningStyle:        style,
		PredictedPerformance: p.PredictedPerformance,
		KnowledgeGaps:        p.KnowledgeGaps,
		Trend:                string(p.Trend),
		Velocity:             string(p.Velocity),
	})
	span.SetAttributes(attribute.String("quiz.source", string(out.Source)))
	if !out.Generated() {
		span.SetAttributes(attribute.String("quiz.fallback_reason", out.Reason))
	}
	return out
}

func (s *QuizService) save(ctx context.Context, quiz model.GeneratedQuiz, ev model.AuditEvent) error {
	ctx, span := tracer.Start(ctx, "quiz.save")
	defer span.End()
	if err := s.store.SaveQuiz(ctx, quiz, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// auditPayload records the generation parameters.
type auditPayload struct {
	QuizID               string           `json:"quiz_id"`
	LessonID             string           `json:"lesson_id"`
	Subject              string           `json:"subject"`
	Topic                string           `json:"topic"`
	QuizType             model.QuizType   `json:"quiz_type"`
	RequestedDifficulty  model.Difficulty `json:"requested_difficulty"`
	Difficulty           model.Difficulty `json:"difficulty"`
	QuestionCount        int              `json:"question_count"`
	GeneratedBy          model.Source     `json:"generated_by"`
	FallbackReason       string           `json:"fallback_reason,omitempty"`
	PredictedPerformance float64          `json:"predicted_performance"`
}

func auditEvent(ctx context.Context, quiz model.GeneratedQuiz, req model.GenerateRequest, now time.Time) (model.AuditEvent, error) {
	payload, err := json.Marshal(auditPayload{
		QuizID:               quiz.ID,
		LessonID:             quiz.LessonID,
		Subject:              req.Subject,
		Topic:                req.Topic,
		QuizType:             req.QuizType,
		RequestedDifficulty:  quiz.Metadata.RequestedDifficulty,
		Difficulty:           quiz.Difficulty,
		QuestionCount:        len(quiz.Questions),
		GeneratedBy:          quiz.Metadata.GeneratedBy,
		FallbackReason:       quiz.Metadata.FallbackReason,
		PredictedPerformance: quiz.Metadata.PredictedPerformance,
	})
	if err != nil {
		return model.AuditEvent{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	ev := model.AuditEvent{
		ID:        uuid.NewString(),
		UserID:    quiz.UserID,
		EventType: model.AuditQuizGenerated,
		Payload:   payload,
		CreatedAt: now,
	}
	if c := model.CallerFromContext(ctx); c != nil {
		ev.Actor = c.Subject
	}
	return ev, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
