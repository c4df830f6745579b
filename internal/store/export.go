package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/quizgen/internal/model"
)

// ExportQuizzes builds an export of stored quizzes, oldest first.
// An empty userID exports every learner.
func (s *Store) ExportQuizzes(ctx context.Context, userID string) (model.QuizExport, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at, id`

	quizzes, err := s.queryQuizzes(ctx, query, args...)
	if err != nil {
		return model.QuizExport{}, fmt.Errorf("list quizzes: %w", err)
	}
	if quizzes == nil {
		quizzes = []model.GeneratedQuiz{}
	}
	return model.QuizExport{
		ExportedAt: time.Now().UTC(),
		Count:      len(quizzes),
		Quizzes:    quizzes,
	}, nil
}
