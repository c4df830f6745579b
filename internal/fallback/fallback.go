// Package fallback builds a quiz without the LLM: questions from a small static
// bank, topped up with randomized filler questions.
package fallback

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/quizgen/internal/learning"
	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/quizgen"
)

// Params describes the quiz to build.
type Params struct {
	Subject              string
	Topic                string
	Difficulty           model.Difficulty // as requested
	QuestionCount        int
	QuizType             model.QuizType
	LearningStyle        model.LearningStyle
	LearningObjectives   []string
	PredictedPerformance float64
	Twin                 *model.CognitiveTwin
}

// Quiz is the fallback result.
type Quiz struct {
	Title        string
	Description  string
	Questions    []model.Question
	Difficulty   model.Difficulty // adjusted for the learner
	TimeLimit    int
	PassingScore int
}

// Generator produces fallback quizzes. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Generator drawing from rng. A nil rng is seeded from the clock.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Generator{rng: rng}
}

// Generate builds a quiz with exactly p.QuestionCount questions (at least one).
// Bank questions come first and are kept as written, apart from one
// learning-style hint appended to each.
func (g *Generator) Generate(p Params) Quiz {
	count := max(p.QuestionCount, 1)
	hint := StyleHint(p.LearningStyle)

	questions := bankQuestions(p.Subject, p.Topic, p.Difficulty)
	if len(questions) > count {
		questions = questions[:count]
	}
	for i := range questions {
		questions[i].Hints = append(questions[i].Hints, hint)
	}

	g.mu.Lock()
	for n := len(questions) + 1; n <= count; n++ {
		q := g.filler(p)
		q.ID = strconv.Itoa(n)
		q.Difficulty = p.Difficulty
		if len(p.LearningObjectives) > 0 {
			q.LearningObjective = p.LearningObjectives[0]
		}
		q.Hints = append(q.Hints, hint)
		questions = append(questions, q)
	}
	g.mu.Unlock()

	return Quiz{
		Title: quizgen.DefaultTitle(p.Subject, p.Topic),
		Description: fmt.Sprintf("A %s practice quiz on %s, tailored to a %s learner.",
			p.Difficulty, strings.TrimSpace(p.Topic), p.LearningStyle),
		Questions:    questions,
		Difficulty:   learning.AdjustDifficultyForUser(p.Difficulty, p.PredictedPerformance),
		TimeLimit:    learning.TimeLimit(p.Twin),
		PassingScore: learning.PassingScore(p.PredictedPerformance),
	}
}

// StyleHint is the study hint added to every fallback question.
func StyleHint(style model.LearningStyle) string {
	switch style {
	case model.StyleVisual:
		return "Sketch a diagram or table of the problem before you answer."
	case model.StyleAuditory:
		return "Read the question aloud and talk through each step."
	case model.StyleKinesthetic:
		return "Work it out by hand, one physical step at a time."
	case model.StyleReading:
		return "Write down the key rule or definition before you start."
	default:
		return "Break the problem into small steps and check each one."
	}
}

// filler must be called with g.mu held.
func (g *Generator) filler(p Params) model.Question {
	switch strings.ToLower(strings.TrimSpace(p.Subject)) {
	case "mathematics", "math", "maths":
		return g.equationQuestion(p.QuizType)
	case "programming", "python", "computer science":
		return g.snippetQuestion(p.QuizType)
	default:
		return conceptQuestion(p.Subject, p.Topic, p.QuizType)
	}
}

func (g *Generator) equationQuestion(qt model.QuizType) model.Question {
	a := g.rng.IntN(8) + 2
	x := g.rng.IntN(10) + 1
	b := g.rng.IntN(20) + 1
	c := a*x + b
	eq := fmt.Sprintf("%dx + %d = %d", a, b, c)

	q := model.Question{
		Explanation: fmt.Sprintf("Subtract %d from both sides to get %dx = %d, then divide by %d to get x = %d.",
			b, a, c-b, a, x),
		Hints:                []string{"Isolate the x term first."},
		ReasoningSteps:       []string{fmt.Sprintf("%dx = %d - %d = %d", a, c, b, c-b), fmt.Sprintf("x = %d / %d = %d", c-b, a, x)},
		RealWorldApplication: "Working backwards from a total cost to a unit price.",
		CommonMistakes:       []string{"Dividing before subtracting the constant", "Sign errors when moving terms"},
	}

	switch qt {
	case model.QuizTrueFalse:
		claim := x
		if g.rng.IntN(2) == 0 {
			claim = x + g.rng.IntN(3) + 1
		}
		q.Type = model.QuizTrueFalse
		q.Question = fmt.Sprintf("True or false: x = %d is the solution of %s.", claim, eq)
		q.Options = []string{"True", "False"}
		q.CorrectAnswer = model.SingleAnswer(trueFalse(claim == x))
	case model.QuizFillBlank:
		q.Type = model.QuizFillBlank
		q.Question = fmt.Sprintf("Solve %s. x = ____", eq)
		q.CorrectAnswer = model.SingleAnswer(strconv.Itoa(x))
	case model.QuizMultipleChoice:
		q.Type = model.QuizMultipleChoice
		q.Question = "Solve for x: " + eq
		q.Options = g.shuffled(
			fmt.Sprintf("x = %d", x),
			fmt.Sprintf("x = %d", x+1),
			fmt.Sprintf("x = %d", x+2),
			fmt.Sprintf("x = %d", x-1),
		)
		q.CorrectAnswer = model.SingleAnswer(fmt.Sprintf("x = %d", x))
	default:
		q.Type = qt
		q.Question = fmt.Sprintf("Explain, step by step, how to solve %s.", eq)
		q.CorrectAnswer = model.SingleAnswer(fmt.Sprintf("x = %d", x))
	}
	return q
}

type snippet struct {
	code        string
	output      string
	distractors []string
	explanation string
}

var snippets = []snippet{
	{
		code:        "nums = [1, 2, 3]\nprint(len(nums))",
		output:      "3",
		distractors: []string{"2", "4", "[1, 2, 3]"},
		explanation: "len returns the number of elements in the list, which is 3.",
	},
	{
		code:        "print(\"ab\" * 3)",
		output:      "ababab",
		distractors: []string{"ab3", "ab ab ab", "TypeError"},
		explanation: "Multiplying a string by an integer repeats it.",
	},
	{
		code:        "print(10 // 3)",
		output:      "3",
		distractors: []string{"3.33", "4", "1"},
		explanation: "// is floor division, so 10 // 3 is 3.",
	},
	{
		code:        "total = 0\nfor i in range(4):\n    total += i\nprint(total)",
		output:      "6",
		distractors: []string{"10", "4", "3"},
		explanation: "range(4) yields 0, 1, 2 and 3, which sum to 6.",
	},
}

func (g *Generator) snippetQuestion(qt model.QuizType) model.Question {
	s := snippets[g.rng.IntN(len(snippets))]
	q := model.Question{
		Explanation:          s.explanation,
		Hints:                []string{"Trace the code line by line."},
		ReasoningSteps:       []string{"Read each statement in order", "Track every variable's value", "Note what print receives"},
		RealWorldApplication: "Predicting program output is how you debug without a debugger.",
		CommonMistakes:       []string{"Skipping a line while tracing", "Confusing similar operators"},
	}

	switch qt {
	case model.QuizTrueFalse:
		claim := s.output
		if g.rng.IntN(2) == 0 {
			claim = s.distractors[g.rng.IntN(len(s.distractors))]
		}
		q.Type = model.QuizTrueFalse
		q.Question = fmt.Sprintf("True or false: this code prints %s\n\n%s", claim, s.code)
		q.Options = []string{"True", "False"}
		q.CorrectAnswer = model.SingleAnswer(trueFalse(claim == s.output))
	case model.QuizMultipleChoice:
		q.Type = model.QuizMultipleChoice
		q.Question = "What does this code print?\n\n" + s.code
		q.Options = g.shuffled(append([]string{s.output}, s.distractors...)...)
		q.CorrectAnswer = model.SingleAnswer(s.output)
	case model.QuizFillBlank:
		q.Type = model.QuizFillBlank
		q.Question = "This code prints ____\n\n" + s.code
		q.CorrectAnswer = model.SingleAnswer(s.output)
	default:
		q.Type = qt
		q.Question = "Explain what this code prints and why.\n\n" + s.code
		q.CorrectAnswer = model.SingleAnswer(s.output)
	}
	return q
}

func conceptQuestion(subject, topic string, qt model.QuizType) model.Question {
	subject = strings.TrimSpace(subject)
	topic = strings.TrimSpace(topic)
	q := model.Question{
		Explanation:          fmt.Sprintf("%s is a building block of %s; knowing how its parts relate lets you apply it.", topic, subject),
		Hints:                []string{fmt.Sprintf("Think about where %s shows up in %s.", topic, subject)},
		ReasoningSteps:       []string{"Recall the definition", "Connect it to an example", "Check the example against the definition"},
		RealWorldApplication: fmt.Sprintf("Recognizing %s in everyday %s problems.", topic, subject),
		CommonMistakes:       []string{"Memorizing the term without its meaning"},
	}
	switch qt {
	case model.QuizTrueFalse:
		q.Type = model.QuizTrueFalse
		q.Question = fmt.Sprintf("True or false: understanding %s helps you solve problems in %s.", topic, subject)
		q.Options = []string{"True", "False"}
		q.CorrectAnswer = model.SingleAnswer("True")
	case model.QuizFillBlank:
		q.Type = model.QuizFillBlank
		q.Question = fmt.Sprintf("%s is a key concept in ____.", topic)
		q.CorrectAnswer = model.SingleAnswer(subject)
	case model.QuizMultipleChoice:
		correct := fmt.Sprintf("It explains how the parts of %s relate to each other", topic)
		q.Type = model.QuizMultipleChoice
		q.Question = fmt.Sprintf("Which statement best describes the role of %s in %s?", topic, subject)
		q.Options = []string{
			correct,
			fmt.Sprintf("It is unrelated to %s", subject),
			"It only matters for memorization",
			"It has no practical use",
		}
		q.CorrectAnswer = model.SingleAnswer(correct)
	default:
		q.Type = qt
		q.Question = fmt.Sprintf("Explain the main idea of %s and give one example from %s.", topic, subject)
		q.CorrectAnswer = model.SingleAnswer(fmt.Sprintf("A clear definition of %s with a concrete %s example.", topic, subject))
	}
	return q
}

// shuffled must be called with g.mu held.
func (g *Generator) shuffled(opts ...string) []string {
	out := append([]string(nil), opts...)
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func trueFalse(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
