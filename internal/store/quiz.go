package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/quizgen/internal/model"
)

// SaveQuiz inserts a generated quiz and its audit event in one transaction.
func (s *Store) SaveQuiz(ctx context.Context, q model.GeneratedQuiz, ev model.AuditEvent) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	meta, err := json.Marshal(q.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO quizzes (id, lesson_id, user_id, title, description, questions,
		 time_limit, passing_score, difficulty, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		q.ID, q.LessonID, q.UserID, q.Title, q.Description, string(questions),
		q.TimeLimit, q.PassingScore, q.Difficulty, string(meta), q.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	if err := s.insertAuditEvent(ctx, tx, ev); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return tx.Commit()
}

const quizColumns = `id, lesson_id, user_id, title, description, questions,
	time_limit, passing_score, difficulty, metadata, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (model.GeneratedQuiz, error) {
	var (
		q               model.GeneratedQuiz
		questions, meta string
	)
	if err := row.Scan(&q.ID, &q.LessonID, &q.UserID, &q.Title, &q.Description, &questions,
		&q.TimeLimit, &q.PassingScore, &q.Difficulty, &meta, &q.CreatedAt); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
		return q, fmt.Errorf("decode questions of quiz %s: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &q.Metadata); err != nil {
		return q, fmt.Errorf("decode metadata of quiz %s: %w", q.ID, err)
	}
	return q, nil
}

// GetQuiz returns a stored quiz by ID.
func (s *Store) GetQuiz(ctx context.Context, id string) (model.GeneratedQuiz, error) {
	q, err := scanQuiz(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+quizColumns+` FROM quizzes WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return q, err
}

// ListQuizzes returns a learner's quizzes, newest first. A limit <= 0 returns all.
func (s *Store) ListQuizzes(ctx context.Context, userID string, limit int) ([]model.GeneratedQuiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryQuizzes(ctx, query, args...)
}

// QuizCount returns the number of stored quizzes.
func (s *Store) QuizCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes`).Scan(&count)
	return count, err
}

func (s *Store) queryQuizzes(ctx context.Context, query string, args ...any) ([]model.GeneratedQuiz, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []model.GeneratedQuiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertAuditEvent(ctx context.Context, ex execer, ev model.AuditEvent) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO audit_events (id, user_id, actor, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		ev.ID, ev.UserID, ev.Actor, ev.EventType, string(payload), createdAt.UTC(),
	)
	return err
}

// ListAuditEvents returns a learner's audit events, newest first.
func (s *Store) ListAuditEvents(ctx context.Context, userID string, limit int) ([]model.AuditEvent, error) {
	query := `SELECT id, user_id, actor, event_type, payload, created_at FROM audit_events
		WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.AuditEvent
	for rows.Next() {
		var (
			ev      model.AuditEvent
			payload string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Actor, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AppendLLMRequest records one provider call.
func (s *Store) AppendLLMRequest(ctx context.Context, ev model.LLMRequestEvent) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO llm_requests (id, purpose, model, latency_ms, success, input_tokens,
		 output_tokens, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.ID, ev.Purpose, ev.Model, ev.LatencyMs, ev.Success, ev.InputTokens,
		ev.OutputTokens, ev.ErrorMessage, createdAt.UTC(),
	)
	return err
}

// LLMRequestCount returns the number of recorded provider calls.
func (s *Store) LLMRequestCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_requests`).Scan(&count)
	return count, err
}
