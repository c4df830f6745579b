package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a required row does not exist.
var ErrNotFound = errors.New("not found")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens the database named by dsn. A postgres:// or postgresql:// URL selects
// the pgx driver; anything else is treated as a SQLite path.
func New(dsn string) (*Store, error) {
	s := &Store{dialect: dialectFor(dsn)}

	var err error
	switch s.dialect {
	case dialectPostgres:
		s.db, err = sql.Open("pgx", dsn)
	default:
		s.db, err = sql.Open("sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		if err == nil {
			// One connection keeps :memory: databases shared and serializes writers.
			s.db.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.db.Ping(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := s.migrate(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func dialectFor(dsn string) dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return dialectPostgres
	}
	return dialectSQLite
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *Store) migrate() error {
	timestamp := "DATETIME"
	boolean := "INTEGER"
	if s.dialect == dialectPostgres {
		timestamp = "TIMESTAMPTZ"
		boolean = "BOOLEAN"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			learning_style TEXT NOT NULL DEFAULT 'visual',
			difficulty_preference TEXT NOT NULL DEFAULT 'intermediate'
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_attempts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			score REAL NOT NULL,
			completed_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user ON quiz_attempts (user_id, completed_at)`,
		`CREATE TABLE IF NOT EXISTS knowledge_graph (
			user_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			mastery_level REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, topic)
		)`,
		`CREATE TABLE IF NOT EXISTS user_progress (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			percentage REAL NOT NULL DEFAULT 0,
			created_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS cognitive_twins (
			user_id TEXT PRIMARY KEY,
			learning_style_profile TEXT NOT NULL DEFAULT '{}',
			preferred_session_length INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS learning_paths (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			learning_path_id TEXT NOT NULL REFERENCES learning_paths(id),
			title TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			lesson_id TEXT NOT NULL REFERENCES lessons(id),
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			questions TEXT NOT NULL,
			time_limit INTEGER NOT NULL,
			passing_score INTEGER NOT NULL,
			difficulty TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quizzes_user ON quizzes (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS llm_requests (
			id TEXT PRIMARY KEY,
			purpose TEXT NOT NULL,
			model TEXT NOT NULL,
			latency_ms INTEGER NOT NULL,
			success ` + boolean + ` NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
