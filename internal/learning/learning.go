// Package learning derives trend, velocity, knowledge gaps and a performance
// prediction from a learner's history. Everything here is pure and deterministic.
package learning

import (
	"github.com/pavelanni/quizgen/internal/model"
)

// Trend describes the direction of recent quiz scores.
type Trend string

const (
	TrendInsufficientData Trend = "insufficient_data"
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
)

// Velocity buckets how many lessons a learner completed recently.
type Velocity string

const (
	VelocityFast     Velocity = "fast"
	VelocityModerate Velocity = "moderate"
	VelocitySlow     Velocity = "slow"
)

const (
	// GapThreshold is the mastery level below which a topic counts as a gap.
	GapThreshold = 70

	trendWindow    = 5
	trendMargin    = 5.0
	minTrendPoints = 3

	fastLessons     = 15
	moderateLessons = 8

	defaultTimeLimit = 30
	maxTimeLimit     = 60
)

// Patterns is the result of analyzing one learner.
type Patterns struct {
	AverageScore         float64
	Trend                Trend
	Velocity             Velocity
	CompletedLessons     int
	KnowledgeGaps        []string
	PredictedPerformance float64
	PreviousPerformance  float64
}

// Analyze computes learning patterns from a loaded learner context.
// previous, when non-nil, overrides the average score as the previous performance.
func Analyze(lc model.LearnerContext, previous *float64) Patterns {
	avg := averageScore(lc.Attempts)
	completed := CompletedLessons(lc.Progress)
	p := Patterns{
		AverageScore:     avg,
		Trend:            ScoreTrend(lc.Attempts),
		Velocity:         LessonVelocity(completed),
		CompletedLessons: completed,
		KnowledgeGaps:    KnowledgeGaps(lc.Knowledge),
	}
	p.PredictedPerformance = PredictPerformance(avg, p.Trend, p.Velocity, len(p.KnowledgeGaps))
	p.PreviousPerformance = avg
	if previous != nil {
		p.PreviousPerformance = *previous
	}
	return p
}

func averageScore(attempts []model.QuizAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	return meanScore(attempts)
}

func meanScore(attempts []model.QuizAttempt) float64 {
	var sum float64
	for _, a := range attempts {
		sum += a.Score
	}
	return sum / float64(len(attempts))
}

// ScoreTrend compares the mean of the five most recent attempts with the five
// before them. attempts must be ordered most recent first.
func ScoreTrend(attempts []model.QuizAttempt) Trend {
	if len(attempts) < minTrendPoints {
		return TrendInsufficientData
	}
	recent := attempts[:min(trendWindow, len(attempts))]
	older := attempts[len(recent):min(2*trendWindow, len(attempts))]
	if len(older) == 0 {
		return TrendStable
	}
	diff := meanScore(recent) - meanScore(older)
	switch {
	case diff > trendMargin:
		return TrendImproving
	case diff < -trendMargin:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// CompletedLessons counts progress events that mark a finished lesson.
func CompletedLessons(events []model.ProgressEvent) int {
	n := 0
	for _, e := range events {
		if e.Type == model.ProgressLessonCompleted || e.Percentage >= 100 {
			n++
		}
	}
	return n
}

// LessonVelocity buckets a completed-lesson count.
func LessonVelocity(completed int) Velocity {
	switch {
	case completed > fastLessons:
		return VelocityFast
	case completed > moderateLessons:
		return VelocityModerate
	default:
		return VelocitySlow
	}
}

// KnowledgeGaps returns the topics whose mastery is below GapThreshold, in input order.
func KnowledgeGaps(entries []model.KnowledgeGraphEntry) []string {
	gaps := []string{}
	for _, e := range entries {
		if e.MasteryLevel < GapThreshold {
			gaps = append(gaps, e.Topic)
		}
	}
	return gaps
}

// PredictPerformance estimates the next quiz score. The result is always in [0, 100].
func PredictPerformance(avg float64, trend Trend, velocity Velocity, gaps int) float64 {
	p := avg
	switch trend {
	case TrendImproving:
		p += 5
	case TrendDeclining:
		p -= 5
	}
	switch velocity {
	case VelocityFast:
		p += 3
	case VelocitySlow:
		p -= 3
	}
	p -= 2 * float64(gaps)
	return max(0, min(100, p))
}

// AdjustDifficultyForUser moves a beginner up when the prediction is high and an
// intermediate learner down when it is low. Every other combination is unchanged.
func AdjustDifficultyForUser(d model.Difficulty, predicted float64) model.Difficulty {
	switch {
	case d == model.DifficultyBeginner && predicted > 85:
		return model.DifficultyIntermediate
	case d == model.DifficultyIntermediate && predicted < 60:
		return model.DifficultyBeginner
	default:
		return d
	}
}

// TimeLimit returns the quiz time limit in minutes: the twin's preferred
// session length capped at one hour, or 30 minutes without one.
func TimeLimit(twin *model.CognitiveTwin) int {
	if twin == nil || twin.PreferredSessionLength <= 0 {
		return defaultTimeLimit
	}
	return min(twin.PreferredSessionLength, maxTimeLimit)
}

// PassingScore picks the passing threshold for a predicted performance.
func PassingScore(predicted float64) int {
	switch {
	case predicted >= 85:
		return 85
	case predicted >= 70:
		return 75
	default:
		return 70
	}
}
