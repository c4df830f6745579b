package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/quizgen/internal/fallback"
	"github.com/pavelanni/quizgen/internal/handler"
	appI18n "github.com/pavelanni/quizgen/internal/i18n"
	"github.com/pavelanni/quizgen/internal/llm"
	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/monitoring"
	"github.com/pavelanni/quizgen/internal/quizgen"
	"github.com/pavelanni/quizgen/internal/service"
	"github.com/pavelanni/quizgen/internal/store"
	"github.com/pavelanni/quizgen/internal/tracing"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "quizgen",
		Short:   "Adaptive quiz generation service",
		Version: version,
	}

	serve := serveCmd()
	root.AddCommand(serve, seedCmd(), generateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz generation server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language for insights (en, es)")
	f.String("jwt-secret", "", "HS256 secret for bearer tokens (empty disables verification)")
	f.Float64("rate-limit", 0, "Requests per second across the API (0 = unlimited)")
	f.Int("rate-burst", 10, "Burst size for the rate limit")
	f.Bool("trace-stdout", false, "Print OpenTelemetry spans to stderr")
	addDBFlag(f)
	addGenerationFlags(f)
	addLogFlags(f)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import learner fixtures (each file once per content hash)",
		RunE:  runSeed,
	}
	f := cmd.Flags()
	f.StringSliceP("fixtures", "f", []string{"fixtures/demo.json"}, "Paths to fixture JSON files (repeatable)")
	addDBFlag(f)
	addLogFlags(f)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one quiz and print the response as JSON",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("user", "u", "", "Learner ID (required)")
	f.StringP("subject", "s", "", "Quiz subject (required)")
	f.StringP("topic", "t", "", "Quiz topic (required)")
	f.StringP("difficulty", "d", "", "Difficulty (beginner, intermediate, advanced); defaults to the learner's preference")
	f.IntP("count", "n", 0, "Number of questions (0 = default)")
	f.String("quiz-type", string(model.QuizMultipleChoice), "Quiz type (multiple_choice, true_false, fill_blank, essay, interactive)")
	f.StringSlice("objective", nil, "Learning objective (repeatable)")
	f.String("style", "", "Learning style override (visual, auditory, kinesthetic, reading)")
	f.Float64("previous", 0, "Previous performance 0-100 (defaults to the learner's average)")
	f.Int("time", 0, "Time limit in minutes (0 = from the learner's session length)")
	f.StringP("lang", "l", "en", "Language for insights (en, es)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addDBFlag(f)
	addGenerationFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export generated quizzes as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("user", "u", "", "Only export this learner's quizzes")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addDBFlag(f)
	addLogFlags(f)
	return cmd
}

func addDBFlag(f *pflag.FlagSet) {
	f.String("db", "quizgen.db", "SQLite database path or postgres:// URL")
}

func addGenerationFlags(f *pflag.FlagSet) {
	f.String("llm-provider", "openai", "LLM provider (openai, anthropic, gemini, mock, none)")
	f.String("llm-model", "", "LLM model name (empty = provider default)")
	f.String("llm-base-url", "", "Base URL overriding the provider's API endpoint")
	f.String("llm-api-key", "", "LLM API key (or OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY)")
	f.Duration("llm-timeout", 0, "Timeout for one LLM call (0 = HTTP client default)")
	f.Int("default-questions", service.DefaultQuestionCount, "Question count when the request omits it")
	f.Int("max-questions", service.MaxQuestionCount, "Largest question count a request may ask for")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizgen")
	v.AddConfigPath("/etc/quizgen")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func serverConfig(v *viper.Viper) model.ServerConfig {
	return model.ServerConfig{
		DefaultQuestionCount: v.GetInt("default-questions"),
		MaxQuestionCount:     v.GetInt("max-questions"),
		LLMTimeout:           v.GetDuration("llm-timeout"),
		JWTSecret:            v.GetString("jwt-secret"),
		RateLimit:            v.GetFloat64("rate-limit"),
		RateBurst:            v.GetInt("rate-burst"),
	}
}

var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// newGenerator builds the LLM-backed generator. It returns nil, and every
// quiz comes from the fallback bank, when the provider is "none" or has no
// API key.
func newGenerator(ctx context.Context, v *viper.Viper, rec llm.Recorder, timeout time.Duration) (*quizgen.Generator, error) {
	name := strings.ToLower(strings.TrimSpace(v.GetString("llm-provider")))
	switch name {
	case "none":
		slog.Info("LLM disabled, serving fallback quizzes only")
		return nil, nil
	case "":
		name = "openai"
	case "openai", "anthropic", "gemini", "mock":
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want openai, anthropic, gemini, mock or none)", name)
	}

	key := v.GetString("llm-api-key")
	if key == "" {
		key = os.Getenv(providerKeyEnv[name])
	}
	if key == "" && name != "mock" {
		slog.Warn("no LLM API key configured, serving fallback quizzes only", "provider", name)
		return nil, nil
	}

	cfg := llm.DefaultConfig()
	cfg.Provider = name
	modelName := v.GetString("llm-model")
	baseURL := v.GetString("llm-base-url")
	switch name {
	case "openai":
		cfg.OpenAI.APIKey = key
		cfg.OpenAI.BaseURL = baseURL
		if modelName != "" {
			cfg.OpenAI.Model = modelName
		}
	case "anthropic":
		cfg.Anthropic.APIKey = key
		cfg.Anthropic.BaseURL = baseURL
		if modelName != "" {
			cfg.Anthropic.Model = modelName
		}
	case "gemini":
		cfg.Gemini.APIKey = key
		cfg.Gemini.BaseURL = baseURL
		if modelName != "" {
			cfg.Gemini.Model = modelName
		}
	}

	provider, err := llm.NewProvider(ctx, cfg, rec)
	if err != nil {
		return nil, err
	}
	slog.Info("LLM provider ready", "provider", name, "model", provider.ModelID(), "timeout", timeout)
	return quizgen.New(provider, nil, timeout), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var traceOut io.Writer
	if v.GetBool("trace-stdout") {
		traceOut = os.Stderr
	}
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{ServiceName: "quizgen", Version: version, Writer: traceOut})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	metrics := monitoring.New()
	cfg := serverConfig(v)
	gen, err := newGenerator(ctx, v, metrics.Recorder(db), cfg.LLMTimeout)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}

	svc := service.New(db, gen, fallback.New(nil), metrics, cfg)
	h, err := handler.New(db, svc, metrics, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"llm", gen != nil,
		"auth", cfg.JWTSecret != "",
		"rate_limit", cfg.RateLimit,
		"default_questions", cfg.DefaultQuestionCount,
		"max_questions", cfg.MaxQuestionCount,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadFixtures(ctx, db, v.GetStringSlice("fixtures"))
}

func loadFixtures(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("fixture file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("fixture file changed since last import, skipping to avoid duplicate rows", "path", path)
			continue
		}

		var fx model.FixtureImport
		if err := json.Unmarshal(data, &fx); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := db.ImportFixtures(ctx, fx); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported fixtures", "path", path,
			"profiles", len(fx.Profiles),
			"attempts", len(fx.Attempts),
			"learning_paths", len(fx.LearningPaths))
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	cfg := serverConfig(v)
	gen, err := newGenerator(ctx, v, db, cfg.LLMTimeout)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	svc := service.New(db, gen, fallback.New(nil), nil, cfg)

	req := model.GenerateRequest{
		UserID:             v.GetString("user"),
		Subject:            v.GetString("subject"),
		Topic:              v.GetString("topic"),
		DifficultyLevel:    model.Difficulty(v.GetString("difficulty")),
		QuestionCount:      v.GetInt("count"),
		QuizType:           model.QuizType(v.GetString("quiz-type")),
		LearningObjectives: v.GetStringSlice("objective"),
		UserLearningStyle:  model.LearningStyle(v.GetString("style")),
	}
	if cmd.Flags().Changed("previous") {
		p := v.GetFloat64("previous")
		req.PreviousPerformance = &p
	}
	if minutes := v.GetInt("time"); minutes > 0 {
		req.TimeConstraints = &minutes
	}

	resp, err := svc.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generate quiz: %w", err)
	}
	return writeJSONOutput(v.GetString("output"), resp)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportQuizzes(cmd.Context(), v.GetString("user"))
	if err != nil {
		return fmt.Errorf("export quizzes: %w", err)
	}
	return writeJSONOutput(v.GetString("output"), export)
}

func writeJSONOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
