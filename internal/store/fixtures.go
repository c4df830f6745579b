package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/quizgen/internal/model"
)

// InsertProfile upserts a learner profile.
func (s *Store) InsertProfile(ctx context.Context, p model.UserProfile) error {
	return s.insertProfile(ctx, s.db, p)
}

func (s *Store) insertProfile(ctx context.Context, ex execer, p model.UserProfile) error {
	style := p.LearningStyle
	if style == "" {
		style = model.StyleVisual
	}
	pref := p.DifficultyPreference
	if pref == "" {
		pref = model.DifficultyIntermediate
	}
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO profiles (id, learning_style, difficulty_preference) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET learning_style = excluded.learning_style,
		 difficulty_preference = excluded.difficulty_preference`),
		p.ID, style, pref,
	)
	return err
}

// InsertAttempt appends a quiz attempt.
func (s *Store) InsertAttempt(ctx context.Context, a model.QuizAttempt) error {
	return s.insertAttempt(ctx, s.db, a)
}

func (s *Store) insertAttempt(ctx context.Context, ex execer, a model.QuizAttempt) error {
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO quiz_attempts (id, user_id, score, completed_at) VALUES (?, ?, ?, ?)`),
		uuid.NewString(), a.UserID, a.Score, orNow(a.CompletedAt),
	)
	return err
}

// InsertKnowledgeEntry upserts a topic mastery row.
func (s *Store) InsertKnowledgeEntry(ctx context.Context, e model.KnowledgeGraphEntry) error {
	return s.insertKnowledgeEntry(ctx, s.db, e)
}

func (s *Store) insertKnowledgeEntry(ctx context.Context, ex execer, e model.KnowledgeGraphEntry) error {
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO knowledge_graph (user_id, topic, mastery_level) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, topic) DO UPDATE SET mastery_level = excluded.mastery_level`),
		e.UserID, e.Topic, e.MasteryLevel,
	)
	return err
}

// InsertProgressEvent appends a progress event.
func (s *Store) InsertProgressEvent(ctx context.Context, e model.ProgressEvent) error {
	return s.insertProgressEvent(ctx, s.db, e)
}

func (s *Store) insertProgressEvent(ctx context.Context, ex execer, e model.ProgressEvent) error {
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO user_progress (id, user_id, type, percentage, created_at) VALUES (?, ?, ?, ?, ?)`),
		uuid.NewString(), e.UserID, e.Type, e.Percentage, orNow(e.CreatedAt),
	)
	return err
}

// UpsertCognitiveTwin stores a learner's cognitive twin.
func (s *Store) UpsertCognitiveTwin(ctx context.Context, t model.CognitiveTwin) error {
	return s.upsertCognitiveTwin(ctx, s.db, t)
}

func (s *Store) upsertCognitiveTwin(ctx context.Context, ex execer, t model.CognitiveTwin) error {
	profile := string(t.LearningStyleProfile)
	if profile == "" {
		profile = "{}"
	}
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO cognitive_twins (user_id, learning_style_profile, preferred_session_length)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET learning_style_profile = excluded.learning_style_profile,
		 preferred_session_length = excluded.preferred_session_length`),
		t.UserID, profile, t.PreferredSessionLength,
	)
	return err
}

// InsertLearningPath creates a learning path. An empty ID is generated.
func (s *Store) InsertLearningPath(ctx context.Context, p model.LearningPath) (string, error) {
	return s.insertLearningPath(ctx, s.db, p)
}

func (s *Store) insertLearningPath(ctx context.Context, ex execer, p model.LearningPath) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO learning_paths (id, user_id, subject, title, created_at) VALUES (?, ?, ?, ?, ?)`),
		p.ID, p.UserID, p.Subject, p.Title, orNow(p.CreatedAt),
	)
	return p.ID, err
}

// InsertLesson adds a lesson to a learning path. An empty ID is generated.
func (s *Store) InsertLesson(ctx context.Context, l model.Lesson) (string, error) {
	return s.insertLesson(ctx, s.db, l)
}

func (s *Store) insertLesson(ctx context.Context, ex execer, l model.Lesson) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO lessons (id, learning_path_id, title, topic, position) VALUES (?, ?, ?, ?, ?)`),
		l.ID, l.LearningPathID, l.Title, l.Topic, l.Position,
	)
	return l.ID, err
}

// ImportFixtures loads a fixture file's rows in one transaction.
func (s *Store) ImportFixtures(ctx context.Context, fx model.FixtureImport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range fx.Profiles {
		if err := s.insertProfile(ctx, tx, p); err != nil {
			return fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}
	for _, a := range fx.Attempts {
		if err := s.insertAttempt(ctx, tx, a); err != nil {
			return fmt.Errorf("attempt for %s: %w", a.UserID, err)
		}
	}
	for _, e := range fx.KnowledgeGraph {
		if err := s.insertKnowledgeEntry(ctx, tx, e); err != nil {
			return fmt.Errorf("knowledge %s/%s: %w", e.UserID, e.Topic, err)
		}
	}
	for _, e := range fx.Progress {
		if err := s.insertProgressEvent(ctx, tx, e); err != nil {
			return fmt.Errorf("progress for %s: %w", e.UserID, err)
		}
	}
	for _, t := range fx.CognitiveTwins {
		if err := s.upsertCognitiveTwin(ctx, tx, t); err != nil {
			return fmt.Errorf("cognitive twin %s: %w", t.UserID, err)
		}
	}
	for _, lp := range fx.LearningPaths {
		pathID, err := s.insertLearningPath(ctx, tx, model.LearningPath{
			ID:      lp.ID,
			UserID:  lp.UserID,
			Subject: lp.Subject,
			Title:   lp.Title,
		})
		if err != nil {
			return fmt.Errorf("learning path %q: %w", lp.Title, err)
		}
		for i, l := range lp.Lessons {
			l.LearningPathID = pathID
			if l.Position == 0 {
				l.Position = i + 1
			}
			if strings.TrimSpace(l.Title) == "" {
				l.Title = l.Topic
			}
			if _, err := s.insertLesson(ctx, tx, l); err != nil {
				return fmt.Errorf("lesson %q: %w", l.Title, err)
			}
		}
	}
	return tx.Commit()
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
