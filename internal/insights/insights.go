// Package insights writes the study guidance and personalization notes that
// accompany a quiz. All text comes from the i18n message catalog.
package insights

import (
	"context"
	"strings"

	"github.com/pavelanni/quizgen/internal/i18n"
	"github.com/pavelanni/quizgen/internal/learning"
	"github.com/pavelanni/quizgen/internal/model"
)

const (
	adjustMargin  = 10.0
	advanceAt     = 80.0
	maxGapsListed = 3
	maxGapTips    = 2
)

// Params is what the writer needs to know about the quiz and the learner.
type Params struct {
	Subject            string
	Topic              string
	LearningStyle      model.LearningStyle
	LearningObjectives []string
	Patterns           learning.Patterns
	Difficulty         model.Difficulty // the quiz's final difficulty
	QuestionCount      int
	TimeLimit          int
	Source             model.Source
}

// Build returns the insights and personalization blocks for a quiz.
func Build(ctx context.Context, p Params) (model.Insights, model.Personalization) {
	return buildInsights(ctx, p), buildPersonalization(ctx, p)
}

func buildInsights(ctx context.Context, p Params) model.Insights {
	gaps := p.Patterns.KnowledgeGaps

	concepts := append([]string(nil), p.LearningObjectives...)
	if len(concepts) == 0 && strings.TrimSpace(p.Topic) != "" {
		concepts = []string{strings.TrimSpace(p.Topic)}
	}

	mistakes := []string{
		i18n.T(ctx, "MistakeRushing"),
		i18n.T(ctx, "MistakeSkipExplanation"),
	}
	if len(gaps) > 0 {
		mistakes = append(mistakes, i18n.Td(ctx, "MistakeGap", map[string]any{"Topic": gaps[0]}))
	}

	tips := []string{
		i18n.T(ctx, "TipSpacedPractice"),
		i18n.T(ctx, "TipReviewExplanations"),
	}
	for _, g := range gaps[:min(len(gaps), maxGapTips)] {
		tips = append(tips, i18n.Td(ctx, "TipFocusGap", map[string]any{"Topic": g}))
	}
	switch p.Patterns.Trend {
	case learning.TrendDeclining:
		tips = append(tips, i18n.T(ctx, "TipDeclining"))
	case learning.TrendImproving:
		tips = append(tips, i18n.T(ctx, "TipImproving"))
	}

	var path []string
	if len(gaps) > 0 {
		listed := strings.Join(gaps[:min(len(gaps), maxGapsListed)], ", ")
		path = append(path, i18n.Td(ctx, "PathReviewGaps", map[string]any{"Topics": listed}))
	}
	if p.Patterns.PredictedPerformance >= advanceAt {
		path = append(path, i18n.Td(ctx, "PathAdvance", map[string]any{"Topic": p.Topic}))
	} else {
		path = append(path, i18n.Td(ctx, "PathConsolidate", map[string]any{"Topic": p.Topic}))
	}

	return model.Insights{
		RecommendedApproach:     i18n.T(ctx, approachID(p.LearningStyle)),
		KeyConcepts:             concepts,
		CommonMistakes:          mistakes,
		StudyTips:               tips,
		LearningPathSuggestions: path,
	}
}

func buildPersonalization(ctx context.Context, p Params) model.Personalization {
	engagement := []string{
		i18n.Tp(ctx, "EngagementQuestions", p.QuestionCount),
		i18n.Td(ctx, "EngagementTimeLimit", map[string]any{"Minutes": p.TimeLimit}),
		i18n.T(ctx, "EngagementCelebrate"),
	}
	if p.Source == model.SourceFallback {
		engagement = append(engagement, i18n.T(ctx, "EngagementOffline"))
	}

	return model.Personalization{
		DifficultyAdjustment: i18n.Td(ctx, DifficultyMessageID(p.Patterns.PredictedPerformance, p.Patterns.PreviousPerformance),
			map[string]any{"Difficulty": string(p.Difficulty)}),
		LearningStyleAccommodation: i18n.T(ctx, accommodationID(p.LearningStyle)),
		PerformancePrediction:      p.Patterns.PredictedPerformance,
		EngagementTips:             engagement,
	}
}

// DifficultyMessageID picks the difficulty sentence by how far the prediction
// sits from the learner's previous performance.
func DifficultyMessageID(predicted, previous float64) string {
	switch diff := predicted - previous; {
	case diff > adjustMargin:
		return "DifficultyRaise"
	case diff < -adjustMargin:
		return "DifficultyEase"
	default:
		return "DifficultyKeep"
	}
}

func approachID(style model.LearningStyle) string {
	switch style {
	case model.StyleAuditory:
		return "ApproachAuditory"
	case model.StyleKinesthetic:
		return "ApproachKinesthetic"
	case model.StyleReading:
		return "ApproachReading"
	default:
		return "ApproachVisual"
	}
}

func accommodationID(style model.LearningStyle) string {
	switch style {
	case model.StyleVisual:
		return "AccommodationVisual"
	case model.StyleAuditory:
		return "AccommodationAuditory"
	default:
		return "AccommodationOther"
	}
}
