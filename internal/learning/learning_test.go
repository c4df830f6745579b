package learning

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizgen/internal/model"
)

func attempts(scores ...float64) []model.QuizAttempt {
	out := make([]model.QuizAttempt, len(scores))
	for i, s := range scores {
		out[i] = model.QuizAttempt{UserID: "u1", Score: s}
	}
	return out
}

func TestScoreTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   Trend
	}{
		{"none", nil, TrendInsufficientData},
		{"two", []float64{90, 10}, TrendInsufficientData},
		{"three without older window", []float64{90, 10, 50}, TrendStable},
		{"improving", []float64{90, 90, 90, 90, 90, 80, 80, 80, 80, 80}, TrendImproving},
		{"declining", []float64{60, 60, 60, 60, 60, 80, 80, 80, 80, 80}, TrendDeclining},
		{"within margin", []float64{84, 84, 84, 84, 84, 80, 80, 80, 80, 80}, TrendStable},
		{"exactly five points", []float64{85, 85, 85, 85, 85, 80, 80, 80, 80, 80}, TrendStable},
		{"short older window", []float64{90, 90, 90, 90, 90, 70}, TrendImproving},
		{"only ten are compared", []float64{90, 90, 90, 90, 90, 80, 80, 80, 80, 80, 0, 0, 0}, TrendImproving},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreTrend(attempts(tt.scores...)))
		})
	}
}

func TestLessonVelocity(t *testing.T) {
	assert.Equal(t, VelocitySlow, LessonVelocity(0))
	assert.Equal(t, VelocitySlow, LessonVelocity(8))
	assert.Equal(t, VelocityModerate, LessonVelocity(9))
	assert.Equal(t, VelocityModerate, LessonVelocity(15))
	assert.Equal(t, VelocityFast, LessonVelocity(16))
}

func TestCompletedLessons(t *testing.T) {
	events := []model.ProgressEvent{
		{Type: model.ProgressLessonCompleted},
		{Type: "lesson_started", Percentage: 10},
		{Type: "lesson_progress", Percentage: 100},
		{Type: "quiz_taken", Percentage: 50},
	}
	assert.Equal(t, 2, CompletedLessons(events))
}

func TestKnowledgeGaps(t *testing.T) {
	entries := []model.KnowledgeGraphEntry{
		{Topic: "algebra", MasteryLevel: 90},
		{Topic: "geometry", MasteryLevel: 70},
		{Topic: "fractions", MasteryLevel: 69.9},
		{Topic: "decimals", MasteryLevel: 20},
	}
	assert.Equal(t, []string{"fractions", "decimals"}, KnowledgeGaps(entries))
	assert.Empty(t, KnowledgeGaps(nil))
	assert.NotNil(t, KnowledgeGaps(nil))
}

func TestPredictPerformance(t *testing.T) {
	assert.InDelta(t, 80.0, PredictPerformance(80, TrendStable, VelocityModerate, 0), 1e-9)
	assert.InDelta(t, 88.0, PredictPerformance(80, TrendImproving, VelocityFast, 0), 1e-9)
	assert.InDelta(t, 68.0, PredictPerformance(80, TrendDeclining, VelocitySlow, 2), 1e-9)
	assert.Equal(t, 100.0, PredictPerformance(99, TrendImproving, VelocityFast, 0))
	assert.Equal(t, 0.0, PredictPerformance(0, TrendInsufficientData, VelocitySlow, 3))
}

func TestPredictPerformanceAlwaysInRange(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	trends := []Trend{TrendInsufficientData, TrendImproving, TrendDeclining, TrendStable}
	velocities := []Velocity{VelocityFast, VelocityModerate, VelocitySlow}

	for i := 0; i < 5000; i++ {
		n := r.IntN(25)
		scores := make([]float64, n)
		for j := range scores {
			scores[j] = r.Float64() * 100
		}
		lc := model.LearnerContext{Attempts: attempts(scores...)}
		for j := r.IntN(40); j > 0; j-- {
			lc.Knowledge = append(lc.Knowledge, model.KnowledgeGraphEntry{Topic: "t", MasteryLevel: r.Float64() * 100})
		}
		for j := r.IntN(40); j > 0; j-- {
			lc.Progress = append(lc.Progress, model.ProgressEvent{Percentage: r.Float64() * 120})
		}

		p := Analyze(lc, nil)
		require.GreaterOrEqual(t, p.PredictedPerformance, 0.0)
		require.LessOrEqual(t, p.PredictedPerformance, 100.0)

		direct := PredictPerformance(r.Float64()*300-100, trends[r.IntN(len(trends))], velocities[r.IntN(len(velocities))], r.IntN(60))
		require.GreaterOrEqual(t, direct, 0.0)
		require.LessOrEqual(t, direct, 100.0)
	}
}

func TestAnalyze(t *testing.T) {
	lc := model.LearnerContext{
		Attempts: attempts(90, 90, 90, 90, 90, 80, 80, 80, 80, 80),
		Knowledge: []model.KnowledgeGraphEntry{
			{Topic: "algebra", MasteryLevel: 95},
			{Topic: "fractions", MasteryLevel: 40},
		},
	}
	p := Analyze(lc, nil)
	assert.InDelta(t, 85.0, p.AverageScore, 1e-9)
	assert.Equal(t, TrendImproving, p.Trend)
	assert.Equal(t, VelocitySlow, p.Velocity)
	assert.Equal(t, []string{"fractions"}, p.KnowledgeGaps)
	// 85 + 5 improving - 3 slow - 2 for one gap
	assert.InDelta(t, 85.0, p.PredictedPerformance, 1e-9)
	assert.InDelta(t, 85.0, p.PreviousPerformance, 1e-9)

	prev := 42.0
	p = Analyze(lc, &prev)
	assert.InDelta(t, 42.0, p.PreviousPerformance, 1e-9)
}

func TestAnalyzeEmptyContext(t *testing.T) {
	p := Analyze(model.LearnerContext{}, nil)
	assert.Equal(t, 0.0, p.AverageScore)
	assert.Equal(t, TrendInsufficientData, p.Trend)
	assert.Equal(t, VelocitySlow, p.Velocity)
	assert.Equal(t, 0.0, p.PredictedPerformance)
}

func TestAdjustDifficultyForUser(t *testing.T) {
	assert.Equal(t, model.DifficultyIntermediate, AdjustDifficultyForUser(model.DifficultyBeginner, 90))
	assert.Equal(t, model.DifficultyBeginner, AdjustDifficultyForUser(model.DifficultyIntermediate, 50))

	levels := []model.Difficulty{model.DifficultyBeginner, model.DifficultyIntermediate, model.DifficultyAdvanced}
	for _, d := range levels {
		for p := 0.0; p <= 100; p += 0.5 {
			got := AdjustDifficultyForUser(d, p)
			switch {
			case d == model.DifficultyBeginner && p > 85:
				assert.Equal(t, model.DifficultyIntermediate, got)
			case d == model.DifficultyIntermediate && p < 60:
				assert.Equal(t, model.DifficultyBeginner, got)
			default:
				assert.Equal(t, d, got, "difficulty %s at %v", d, p)
			}
		}
	}
}

func TestTimeLimit(t *testing.T) {
	assert.Equal(t, 30, TimeLimit(nil))
	assert.Equal(t, 30, TimeLimit(&model.CognitiveTwin{}))
	assert.Equal(t, 45, TimeLimit(&model.CognitiveTwin{PreferredSessionLength: 45}))
	assert.Equal(t, 60, TimeLimit(&model.CognitiveTwin{PreferredSessionLength: 120}))
}

func TestPassingScore(t *testing.T) {
	assert.Equal(t, 85, PassingScore(92))
	assert.Equal(t, 85, PassingScore(85))
	assert.Equal(t, 75, PassingScore(70))
	assert.Equal(t, 70, PassingScore(69.9))
}
