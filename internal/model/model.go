package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// LearningStyle is a learner's preferred way of taking in material.
type LearningStyle string

const (
	StyleVisual      LearningStyle = "visual"
	StyleAuditory    LearningStyle = "auditory"
	StyleKinesthetic LearningStyle = "kinesthetic"
	StyleReading     LearningStyle = "reading"
)

// Valid reports whether s is one of the known learning styles.
func (s LearningStyle) Valid() bool {
	switch s {
	case StyleVisual, StyleAuditory, StyleKinesthetic, StyleReading:
		return true
	}
	return false
}

// Difficulty represents question and quiz difficulty level.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// QuizType controls which question shape is requested.
type QuizType string

const (
	QuizMultipleChoice QuizType = "multiple_choice"
	QuizTrueFalse      QuizType = "true_false"
	QuizFillBlank      QuizType = "fill_blank"
	QuizEssay          QuizType = "essay"
	QuizInteractive    QuizType = "interactive"
)

// Valid reports whether t is one of the known quiz types.
func (t QuizType) Valid() bool {
	switch t {
	case QuizMultipleChoice, QuizTrueFalse, QuizFillBlank, QuizEssay, QuizInteractive:
		return true
	}
	return false
}

// UserProfile holds the learner preferences read from the profiles table.
type UserProfile struct {
	ID                   string        `json:"id"`
	LearningStyle        LearningStyle `json:"learning_style"`
	DifficultyPreference Difficulty    `json:"difficulty_preference"`
}

// QuizAttempt is one historical quiz result.
type QuizAttempt struct {
	UserID      string    `json:"user_id"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// KnowledgeGraphEntry is a learner's recorded mastery of one topic.
type KnowledgeGraphEntry struct {
	UserID       string  `json:"user_id"`
	Topic        string  `json:"topic"`
	MasteryLevel float64 `json:"mastery_level"`
}

// ProgressEvent records lesson progress.
type ProgressEvent struct {
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Percentage float64   `json:"percentage"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProgressLessonCompleted is the progress event type emitted when a lesson is finished.
const ProgressLessonCompleted = "lesson_completed"

// CognitiveTwin holds inferred learning-style parameters for a learner.
type CognitiveTwin struct {
	UserID                 string          `json:"user_id"`
	LearningStyleProfile   json.RawMessage `json:"learning_style_profile,omitempty"`
	PreferredSessionLength int             `json:"preferred_session_length"`
}

// LearningPath groups lessons for a learner.
type LearningPath struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Subject   string    `json:"subject"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Lesson is a single unit inside a learning path. Every quiz references one.
type Lesson struct {
	ID             string `json:"id"`
	LearningPathID string `json:"learning_path_id"`
	Title          string `json:"title"`
	Topic          string `json:"topic"`
	Position       int    `json:"position"`
}

// LearnerContext is everything loaded about a learner before generation.
type LearnerContext struct {
	Profile   UserProfile
	Attempts  []QuizAttempt         // most recent first
	Knowledge []KnowledgeGraphEntry // mastery descending
	Progress  []ProgressEvent       // most recent first
	Twin      *CognitiveTwin        // nil when the learner has none
}

// CorrectAnswer is either a single answer or a list of answers. The form is
// preserved exactly as received; nothing infers one from the other.
type CorrectAnswer struct {
	single string
	list   []string
	isList bool
}

// SingleAnswer returns a CorrectAnswer holding one string.
func SingleAnswer(s string) CorrectAnswer {
	return CorrectAnswer{single: s}
}

// MultipleAnswers returns a CorrectAnswer holding a list of strings.
func MultipleAnswers(answers ...string) CorrectAnswer {
	return CorrectAnswer{list: append([]string(nil), answers...), isList: true}
}

// IsList reports whether the answer was given as a list.
func (a CorrectAnswer) IsList() bool { return a.isList }

// String returns the single answer, or the first list element.
func (a CorrectAnswer) String() string {
	if a.isList {
		if len(a.list) == 0 {
			return ""
		}
		return a.list[0]
	}
	return a.single
}

// Values returns the answer as a slice regardless of form.
func (a CorrectAnswer) Values() []string {
	if a.isList {
		return append([]string(nil), a.list...)
	}
	if a.single == "" {
		return nil
	}
	return []string{a.single}
}

// MarshalJSON writes a JSON string or array depending on the form received.
func (a CorrectAnswer) MarshalJSON() ([]byte, error) {
	if a.isList {
		if a.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.list)
	}
	return json.Marshal(a.single)
}

// UnmarshalJSON accepts a scalar, an array of scalars, or null. Numbers and
// booleans are kept as their JSON text.
func (a *CorrectAnswer) UnmarshalJSON(data []byte) error {
	if s, ok := scalarText(data); ok {
		*a = CorrectAnswer{single: s}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.New("correct_answer must be a scalar or an array of scalars")
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := scalarText(item)
		if !ok {
			return errors.New("correct_answer list items must be scalars")
		}
		list = append(list, s)
	}
	*a = CorrectAnswer{list: list, isList: true}
	return nil
}

// scalarText returns the text of a JSON string, number, boolean or null.
func scalarText(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// Question is one quiz question.
type Question struct {
	ID                   string        `json:"id"`
	Question             string        `json:"question"`
	Type                 QuizType      `json:"type"`
	Options              []string      `json:"options,omitempty"`
	CorrectAnswer        CorrectAnswer `json:"correct_answer"`
	Explanation          string        `json:"explanation"`
	Difficulty           Difficulty    `json:"difficulty"`
	LearningObjective    string        `json:"learning_objective"`
	Hints                []string      `json:"hints"`
	ReasoningSteps       []string      `json:"reasoning_steps"`
	RealWorldApplication string        `json:"real_world_application"`
	CommonMistakes       []string      `json:"common_mistakes"`
}

// UnmarshalJSON also accepts a numeric id, which models often emit.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(q)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	q.ID = ""
	if len(aux.ID) > 0 {
		id, ok := scalarText(aux.ID)
		if !ok {
			return errors.New("question id must be a string or a number")
		}
		q.ID = id
	}
	return nil
}

// Source tells where a quiz's questions came from.
type Source string

const (
	SourceGenerated Source = "ai"
	SourceFallback  Source = "fallback"
)

// QuizMetadata records how a quiz was produced.
type QuizMetadata struct {
	GeneratedBy          Source        `json:"generated_by"`
	Model                string        `json:"model,omitempty"`
	FallbackReason       string        `json:"fallback_reason,omitempty"`
	Subject              string        `json:"subject"`
	Topic                string        `json:"topic"`
	QuizType             QuizType      `json:"quiz_type"`
	RequestedDifficulty  Difficulty    `json:"requested_difficulty"`
	LearningStyle        LearningStyle `json:"learning_style"`
	LearningObjectives   []string      `json:"learning_objectives"`
	PredictedPerformance float64       `json:"predicted_performance"`
	KnowledgeGaps        []string      `json:"knowledge_gaps"`
	Trend                string        `json:"trend"`
	Velocity             string        `json:"velocity"`
	GeneratedAt          time.Time     `json:"generated_at"`
}

// GeneratedQuiz is the artifact produced by one generation request.
type GeneratedQuiz struct {
	ID           string       `json:"id"`
	LessonID     string       `json:"lesson_id"`
	UserID       string       `json:"user_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Questions    []Question   `json:"questions"`
	TimeLimit    int          `json:"time_limit"`
	PassingScore int          `json:"passing_score"`
	Difficulty   Difficulty   `json:"difficulty"`
	Metadata     QuizMetadata `json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`
}

// AuditEvent is an append-only record of something the service did.
type AuditEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Actor     string          `json:"actor,omitempty"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditQuizGenerated is the event type written for every generated quiz.
const AuditQuizGenerated = "quiz_generated"

// LLMRequestEvent records one call to the LLM provider.
type LLMRequestEvent struct {
	ID           string    `json:"id"`
	Purpose      string    `json:"purpose"`
	Model        string    `json:"model"`
	LatencyMs    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerateRequest is the JSON body accepted by the generation endpoint.
type GenerateRequest struct {
	UserID              string        `json:"user_id"`
	Subject             string        `json:"subject"`
	Topic               string        `json:"topic"`
	DifficultyLevel     Difficulty    `json:"difficulty_level"`
	QuestionCount       int           `json:"question_count"`
	QuizType            QuizType      `json:"quiz_type"`
	LearningObjectives  []string      `json:"learning_objectives,omitempty"`
	UserLearningStyle   LearningStyle `json:"user_learning_style,omitempty"`
	PreviousPerformance *float64      `json:"previous_performance,omitempty"`
	TimeConstraints     *int          `json:"time_constraints,omitempty"`
}

// Insights is the static guidance attached to a generated quiz.
type Insights struct {
	RecommendedApproach     string   `json:"recommended_approach"`
	KeyConcepts             []string `json:"key_concepts"`
	CommonMistakes          []string `json:"common_mistakes"`
	StudyTips               []string `json:"study_tips"`
	LearningPathSuggestions []string `json:"learning_path_suggestions"`
}

// Personalization explains how the quiz was tailored to the learner.
type Personalization struct {
	DifficultyAdjustment       string   `json:"difficulty_adjustment"`
	LearningStyleAccommodation string   `json:"learning_style_accommodation"`
	PerformancePrediction      float64  `json:"performance_prediction"`
	EngagementTips             []string `json:"engagement_tips"`
}

// GenerateResponse is the success body of the generation endpoint.
type GenerateResponse struct {
	Quiz            GeneratedQuiz   `json:"quiz"`
	Insights        Insights        `json:"ai_insights"`
	Personalization Personalization `json:"personalization"`
}

// ServerConfig holds runtime generation parameters set via CLI flags.
type ServerConfig struct {
	DefaultQuestionCount int           // used when the request omits question_count
	MaxQuestionCount     int           // upper bound on question_count
	LLMTimeout           time.Duration // 0 means no timeout beyond the HTTP client's
	JWTSecret            string        // empty disables bearer verification
	RateLimit            float64       // requests per second, 0 disables
	RateBurst            int
}

type authCtxKey struct{}

// Caller is the authenticated identity forwarded from the bearer token.
type Caller struct {
	Subject string
	Token   string
}

// ContextWithCaller stores the caller in the request context.
func ContextWithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, authCtxKey{}, c)
}

// CallerFromContext retrieves the caller from context, or nil.
func CallerFromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(authCtxKey{}).(*Caller)
	return c
}
