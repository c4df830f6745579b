package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/quizgen/internal/model"
)

// GetUserProfile returns a learner profile. A missing profile is ErrNotFound.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	var p model.UserProfile
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, learning_style, difficulty_preference FROM profiles WHERE id = ?`), userID,
	).Scan(&p.ID, &p.LearningStyle, &p.DifficultyPreference)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return p, err
}

// ListRecentAttempts returns up to limit quiz attempts, most recent first.
func (s *Store) ListRecentAttempts(ctx context.Context, userID string, limit int) ([]model.QuizAttempt, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT user_id, score, completed_at FROM quiz_attempts
		 WHERE user_id = ? ORDER BY completed_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.QuizAttempt
	for rows.Next() {
		var a model.QuizAttempt
		if err := rows.Scan(&a.UserID, &a.Score, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListKnowledgeGraph returns all topic mastery rows for a learner, highest mastery first.
func (s *Store) ListKnowledgeGraph(ctx context.Context, userID string) ([]model.KnowledgeGraphEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT user_id, topic, mastery_level FROM knowledge_graph
		 WHERE user_id = ? ORDER BY mastery_level DESC, topic`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.KnowledgeGraphEntry
	for rows.Next() {
		var e model.KnowledgeGraphEntry
		if err := rows.Scan(&e.UserID, &e.Topic, &e.MasteryLevel); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListRecentProgress returns up to limit progress events, most recent first.
func (s *Store) ListRecentProgress(ctx context.Context, userID string, limit int) ([]model.ProgressEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT user_id, type, percentage, created_at FROM user_progress
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.ProgressEvent
	for rows.Next() {
		var e model.ProgressEvent
		if err := rows.Scan(&e.UserID, &e.Type, &e.Percentage, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetCognitiveTwin returns the learner's cognitive twin.
// Returns nil and nil error if the learner has none.
func (s *Store) GetCognitiveTwin(ctx context.Context, userID string) (*model.CognitiveTwin, error) {
	var (
		t       model.CognitiveTwin
		profile string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT user_id, learning_style_profile, preferred_session_length
		 FROM cognitive_twins WHERE user_id = ?`), userID,
	).Scan(&t.UserID, &profile, &t.PreferredSessionLength)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if profile != "" {
		t.LearningStyleProfile = []byte(profile)
	}
	return &t, nil
}

// ResolveLesson finds the lesson a new quiz for subject/topic attaches to.
// The learner's newest learning path is used, preferring one for the subject;
// inside it the lesson whose topic matches wins, else the first lesson.
func (s *Store) ResolveLesson(ctx context.Context, userID, subject, topic string) (model.Lesson, error) {
	var pathID string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id FROM learning_paths WHERE user_id = ?
		 ORDER BY CASE WHEN LOWER(subject) = LOWER(CAST(? AS TEXT)) THEN 0 ELSE 1 END, created_at DESC
		 LIMIT 1`), userID, subject,
	).Scan(&pathID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lesson{}, fmt.Errorf("learning path for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return model.Lesson{}, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, learning_path_id, title, topic, position FROM lessons
		 WHERE learning_path_id = ? ORDER BY position, id`), pathID)
	if err != nil {
		return model.Lesson{}, err
	}
	defer rows.Close()
	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.LearningPathID, &l.Title, &l.Topic, &l.Position); err != nil {
			return model.Lesson{}, err
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return model.Lesson{}, err
	}
	if len(lessons) == 0 {
		return model.Lesson{}, fmt.Errorf("lesson in learning path %s: %w", pathID, ErrNotFound)
	}
	for _, l := range lessons {
		if strings.EqualFold(strings.TrimSpace(l.Topic), strings.TrimSpace(topic)) {
			return l, nil
		}
	}
	return lessons[0], nil
}
