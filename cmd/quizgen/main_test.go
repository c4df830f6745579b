package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizgen/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFixturesImportsOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	path := filepath.Join("..", "..", "fixtures", "demo.json")

	require.NoError(t, loadFixtures(ctx, db, []string{path}))
	attempts, err := db.ListRecentAttempts(ctx, "demo-ana", 20)
	require.NoError(t, err)
	assert.Len(t, attempts, 10)

	// A second run sees the same hash and skips the file.
	require.NoError(t, loadFixtures(ctx, db, []string{path}))
	attempts, err = db.ListRecentAttempts(ctx, "demo-ana", 20)
	require.NoError(t, err)
	assert.Len(t, attempts, 10)

	lesson, err := db.ResolveLesson(ctx, "demo-ben", "programming", "loops")
	require.NoError(t, err)
	assert.Equal(t, "Loops", lesson.Title)
}

func TestLoadFixturesSkipsChangedFile(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	path := filepath.Join(t.TempDir(), "fx.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"profiles":[{"id":"a","learning_style":"visual","difficulty_preference":"beginner"}]}`), 0o644))
	require.NoError(t, loadFixtures(ctx, db, []string{path}))

	require.NoError(t, os.WriteFile(path, []byte(`{"profiles":[{"id":"b","learning_style":"visual","difficulty_preference":"beginner"}]}`), 0o644))
	require.NoError(t, loadFixtures(ctx, db, []string{path}))

	_, err := db.GetUserProfile(ctx, "b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadFixturesErrors(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	assert.Error(t, loadFixtures(ctx, db, []string{filepath.Join(t.TempDir(), "missing.json")}))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"profiles": [`), 0o644))
	assert.Error(t, loadFixtures(ctx, db, []string{bad}))

	hash, err := db.GetImportedFileHash(ctx, bad)
	require.NoError(t, err)
	assert.Empty(t, hash, "failed imports are not recorded")
}

func TestNewGenerator(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	ctx := context.Background()

	tests := []struct {
		name     string
		settings map[string]any
		wantNil  bool
		wantErr  bool
	}{
		{"disabled", map[string]any{"llm-provider": "none"}, true, false},
		{"missing key", map[string]any{"llm-provider": "openai"}, true, false},
		{"mock", map[string]any{"llm-provider": "mock"}, false, false},
		{"openai with key", map[string]any{"llm-provider": "openai", "llm-api-key": "k", "llm-model": "gpt-4.1"}, false, false},
		{"unknown", map[string]any{"llm-provider": "oracle", "llm-api-key": "k"}, true, true},
		{"misspelled without key", map[string]any{"llm-provider": "opena1"}, true, true},
		{"empty means openai", map[string]any{"llm-provider": "", "llm-api-key": "k"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.settings {
				v.Set(k, val)
			}
			gen, err := newGenerator(ctx, v, nil, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, gen == nil)
		})
	}
}

func TestNewGeneratorUsesModelFlag(t *testing.T) {
	v := viper.New()
	v.Set("llm-provider", "openai")
	v.Set("llm-api-key", "k")
	v.Set("llm-model", "gpt-4.1")
	gen, err := newGenerator(context.Background(), v, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", gen.ModelID())
}

func TestSha256sum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sha256sum(nil))
}
