package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/quizgen/internal/model"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var (
	tagRegex   = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9-]*(\s[^<>]*)?/?>`)
	spaceRegex = regexp.MustCompile(`\s+`)
)

const (
	maxFieldRunes = 200
	maxListItems  = 10
)

// QuizPromptData holds everything the quiz prompt embeds.
type QuizPromptData struct {
	Subject              string
	Topic                string
	Difficulty           model.Difficulty
	QuestionCount        int
	QuizType             model.QuizType
	LearningObjectives   []string
	LearningStyle        model.LearningStyle
	PredictedPerformance float64
	KnowledgeGaps        []string
	Trend                string
	Velocity             string
}

// Composer renders the system and quiz prompts.
type Composer struct {
	system *template.Template
	quiz   *template.Template
}

// Default returns a Composer over the embedded templates.
func Default() *Composer {
	c, err := New(embedded)
	if err != nil {
		panic(err)
	}
	return c
}

// New loads system.tmpl and quiz.tmpl from the templates directory of fsys.
func New(fsys fs.FS) (*Composer, error) {
	funcs := template.FuncMap{"join": strings.Join}
	load := func(name string) (*template.Template, error) {
		path := "templates/" + name
		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", path, err)
		}
		t, err := template.New(name).Funcs(funcs).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", path, err)
		}
		return t, nil
	}

	system, err := load("system.tmpl")
	if err != nil {
		return nil, err
	}
	quiz, err := load("quiz.tmpl")
	if err != nil {
		return nil, err
	}
	return &Composer{system: system, quiz: quiz}, nil
}

// BuildQuizPrompt returns the system prompt and the user prompt for one quiz.
// Free-text fields are sanitized before rendering.
func (c *Composer) BuildQuizPrompt(d QuizPromptData) (system, user string, err error) {
	d.Subject = Sanitize(d.Subject)
	d.Topic = Sanitize(d.Topic)
	d.LearningObjectives = sanitizeList(d.LearningObjectives)
	d.KnowledgeGaps = sanitizeList(d.KnowledgeGaps)

	var sys, usr bytes.Buffer
	if err := c.system.Execute(&sys, d); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := c.quiz.Execute(&usr, d); err != nil {
		return "", "", fmt.Errorf("render quiz prompt: %w", err)
	}
	return strings.TrimSpace(sys.String()), strings.TrimSpace(usr.String()), nil
}

// Sanitize strips markup, collapses whitespace and caps the length of a
// caller-supplied string before it is placed in a prompt.
func Sanitize(s string) string {
	s = tagRegex.ReplaceAllString(s, "")
	s = spaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes])
	}
	return s
}

func sanitizeList(items []string) []string {
	var out []string
	for _, it := range items {
		if s := Sanitize(it); s != "" {
			out = append(out, s)
		}
		if len(out) == maxListItems {
			break
		}
	}
	return out
}
