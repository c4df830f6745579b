package insights

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizgen/internal/i18n"
	"github.com/pavelanni/quizgen/internal/learning"
	"github.com/pavelanni/quizgen/internal/model"
)

func ctxFor(t *testing.T, lang string) context.Context {
	t.Helper()
	require.NoError(t, i18n.Init("en"))
	return i18n.WithLocalizer(context.Background(), i18n.NewLocalizer(lang))
}

func baseParams() Params {
	return Params{
		Subject:            "mathematics",
		Topic:              "algebra",
		LearningStyle:      model.StyleVisual,
		LearningObjectives: []string{"solve linear equations"},
		Patterns: learning.Patterns{
			AverageScore:         70,
			Trend:                learning.TrendImproving,
			Velocity:             learning.VelocityModerate,
			KnowledgeGaps:        []string{"fractions", "decimals", "ratios", "percentages"},
			PredictedPerformance: 67,
			PreviousPerformance:  70,
		},
		Difficulty:    model.DifficultyBeginner,
		QuestionCount: 5,
		TimeLimit:     30,
		Source:        model.SourceGenerated,
	}
}

func TestBuild(t *testing.T) {
	ctx := ctxFor(t, "en")
	ins, pers := Build(ctx, baseParams())

	assert.Contains(t, ins.RecommendedApproach, "diagrams")
	assert.Equal(t, []string{"solve linear equations"}, ins.KeyConcepts)
	require.Len(t, ins.CommonMistakes, 3)
	assert.Contains(t, ins.CommonMistakes[2], "fractions")

	// two general tips, two gap tips, one trend tip
	require.Len(t, ins.StudyTips, 5)
	assert.Contains(t, ins.StudyTips[2], "fractions")
	assert.Contains(t, ins.StudyTips[3], "decimals")
	assert.Equal(t, "Your scores are climbing; keep the same routine.", ins.StudyTips[4])

	require.Len(t, ins.LearningPathSuggestions, 2)
	assert.Equal(t, "Review these topics next: fractions, decimals, ratios.", ins.LearningPathSuggestions[0])
	assert.Contains(t, ins.LearningPathSuggestions[1], "Consolidate algebra")

	assert.Equal(t, "The quiz stays at beginner, in line with your recent performance.", pers.DifficultyAdjustment)
	assert.Contains(t, pers.LearningStyleAccommodation, "diagrams")
	assert.Equal(t, 67.0, pers.PerformancePrediction)
	require.Len(t, pers.EngagementTips, 3)
	assert.Equal(t, "Aim to finish all 5 questions in one focused sitting.", pers.EngagementTips[0])
	assert.Equal(t, "Set a 30-minute timer and take a short break afterwards.", pers.EngagementTips[1])
}

func TestBuild_NoGapsHighPrediction(t *testing.T) {
	ctx := ctxFor(t, "en")
	p := baseParams()
	p.LearningObjectives = nil
	p.Patterns.KnowledgeGaps = nil
	p.Patterns.Trend = learning.TrendStable
	p.Patterns.PredictedPerformance = 92

	ins, _ := Build(ctx, p)
	assert.Equal(t, []string{"algebra"}, ins.KeyConcepts)
	assert.Len(t, ins.CommonMistakes, 2)
	assert.Len(t, ins.StudyTips, 2)
	assert.Equal(t, []string{"You are ready to move beyond algebra to the next lesson."}, ins.LearningPathSuggestions)
}

func TestBuild_FallbackAddsOfflineTip(t *testing.T) {
	ctx := ctxFor(t, "en")
	p := baseParams()
	p.Source = model.SourceFallback
	_, pers := Build(ctx, p)
	require.Len(t, pers.EngagementTips, 4)
	assert.Contains(t, pers.EngagementTips[3], "practice bank")
}

func TestDifficultyMessageID(t *testing.T) {
	tests := []struct {
		predicted, previous float64
		want                string
	}{
		{90, 70, "DifficultyRaise"},
		{80, 70, "DifficultyKeep"},
		{60, 70, "DifficultyKeep"},
		{59, 70, "DifficultyEase"},
		{0, 0, "DifficultyKeep"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DifficultyMessageID(tt.predicted, tt.previous), "%v vs %v", tt.predicted, tt.previous)
	}
}

func TestAccommodationByStyle(t *testing.T) {
	ctx := ctxFor(t, "en")
	texts := map[model.LearningStyle]string{}
	for _, s := range []model.LearningStyle{model.StyleVisual, model.StyleAuditory, model.StyleKinesthetic, model.StyleReading} {
		p := baseParams()
		p.LearningStyle = s
		_, pers := Build(ctx, p)
		texts[s] = pers.LearningStyleAccommodation
	}
	assert.NotEqual(t, texts[model.StyleVisual], texts[model.StyleAuditory])
	assert.Equal(t, texts[model.StyleKinesthetic], texts[model.StyleReading])
}

func TestBuild_Spanish(t *testing.T) {
	ctx := ctxFor(t, "es")
	ins, pers := Build(ctx, baseParams())
	assert.Contains(t, ins.RecommendedApproach, "diagramas")
	assert.Equal(t, "Intenta terminar las 5 preguntas en una sola sesión concentrada.", pers.EngagementTips[0])
}
