package model

import "time"

// QuizExport is the top-level JSON structure for the export command.
type QuizExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Quizzes    []GeneratedQuiz `json:"quizzes"`
}

// FixtureImport is the JSON layout of a learner fixture file loaded by the seed command.
type FixtureImport struct {
	Profiles       []UserProfile         `json:"profiles"`
	Attempts       []QuizAttempt         `json:"quiz_attempts"`
	KnowledgeGraph []KnowledgeGraphEntry `json:"knowledge_graph"`
	Progress       []ProgressEvent       `json:"progress_events"`
	CognitiveTwins []CognitiveTwin       `json:"cognitive_twins"`
	LearningPaths  []LearningPathImport  `json:"learning_paths"`
}

// LearningPathImport is a learning path with its lessons inline.
type LearningPathImport struct {
	ID      string   `json:"id"`
	UserID  string   `json:"user_id"`
	Subject string   `json:"subject"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}
