package fallback

import (
	"strings"

	"github.com/pavelanni/quizgen/internal/model"
)

type bankKey struct {
	subject    string
	topic      string
	difficulty model.Difficulty
}

func keyFor(subject, topic string, d model.Difficulty) bankKey {
	return bankKey{
		subject:    strings.ToLower(strings.TrimSpace(subject)),
		topic:      strings.ToLower(strings.TrimSpace(topic)),
		difficulty: d,
	}
}

// bank holds hand-written questions for the two demonstration domains.
var bank = map[bankKey][]model.Question{
	{"mathematics", "algebra", model.DifficultyBeginner}: {
		{
			ID:                   "1",
			Question:             "Solve for x: 2x + 5 = 13",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"x = 3", "x = 4", "x = 5", "x = 6"},
			CorrectAnswer:        model.SingleAnswer("x = 4"),
			Explanation:          "Subtract 5 from both sides to get 2x = 8, then divide by 2 to get x = 4.",
			Difficulty:           model.DifficultyBeginner,
			LearningObjective:    "Solve one-variable linear equations",
			Hints:                []string{"Undo the addition first, then the multiplication."},
			ReasoningSteps:       []string{"2x + 5 - 5 = 13 - 5", "2x = 8", "x = 8 / 2 = 4"},
			RealWorldApplication: "Working out how many items you can buy after a fixed delivery fee.",
			CommonMistakes:       []string{"Dividing before subtracting 5", "Adding 5 to both sides instead of subtracting"},
		},
		{
			ID:                   "2",
			Question:             "Simplify: 3(x + 4) - 2x",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"x + 12", "5x + 12", "x + 4", "3x + 10"},
			CorrectAnswer:        model.SingleAnswer("x + 12"),
			Explanation:          "Distribute 3 to get 3x + 12, then subtract 2x to get x + 12.",
			Difficulty:           model.DifficultyBeginner,
			LearningObjective:    "Simplify expressions with the distributive property",
			Hints:                []string{"Multiply every term inside the parentheses by 3."},
			ReasoningSteps:       []string{"3(x + 4) = 3x + 12", "3x + 12 - 2x = x + 12"},
			RealWorldApplication: "Combining repeated costs, such as three tickets plus a fee each, minus a discount.",
			CommonMistakes:       []string{"Multiplying only the x by 3", "Adding 2x instead of subtracting it"},
		},
	},
	{"mathematics", "algebra", model.DifficultyIntermediate}: {
		{
			ID:                   "1",
			Question:             "Solve the system: x + y = 10 and x - y = 4",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"x = 7, y = 3", "x = 6, y = 4", "x = 3, y = 7", "x = 5, y = 5"},
			CorrectAnswer:        model.SingleAnswer("x = 7, y = 3"),
			Explanation:          "Adding the equations gives 2x = 14, so x = 7 and then y = 10 - 7 = 3.",
			Difficulty:           model.DifficultyIntermediate,
			LearningObjective:    "Solve systems of linear equations by elimination",
			Hints:                []string{"Add the two equations to eliminate y."},
			ReasoningSteps:       []string{"(x + y) + (x - y) = 10 + 4", "2x = 14, x = 7", "y = 10 - 7 = 3"},
			RealWorldApplication: "Finding two prices when you know their total and their difference.",
			CommonMistakes:       []string{"Subtracting the equations and losing track of signs", "Stopping after finding x"},
		},
		{
			ID:                   "2",
			Question:             "Factor: x² - 5x + 6",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"(x - 2)(x - 3)", "(x + 2)(x + 3)", "(x - 1)(x - 6)", "(x - 2)(x + 3)"},
			CorrectAnswer:        model.SingleAnswer("(x - 2)(x - 3)"),
			Explanation:          "Look for two numbers that multiply to 6 and add to -5: they are -2 and -3.",
			Difficulty:           model.DifficultyIntermediate,
			LearningObjective:    "Factor quadratic trinomials",
			Hints:                []string{"Find two numbers with product 6 and sum -5."},
			ReasoningSteps:       []string{"-2 × -3 = 6", "-2 + -3 = -5", "x² - 5x + 6 = (x - 2)(x - 3)"},
			RealWorldApplication: "Finding the dimensions of a rectangle from its area formula.",
			CommonMistakes:       []string{"Choosing positive factors", "Matching the product but not the sum"},
		},
	},
	{"programming", "python", model.DifficultyBeginner}: {
		{
			ID:                   "1",
			Question:             "What does print(len(\"hello\")) output?",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"4", "5", "6", "hello"},
			CorrectAnswer:        model.SingleAnswer("5"),
			Explanation:          "len returns the number of characters in the string, and \"hello\" has five.",
			Difficulty:           model.DifficultyBeginner,
			LearningObjective:    "Use built-in functions on strings",
			Hints:                []string{"Count the characters one by one."},
			ReasoningSteps:       []string{"\"hello\" is h, e, l, l, o", "That is 5 characters", "print writes 5"},
			RealWorldApplication: "Checking that a password or username meets a length rule.",
			CommonMistakes:       []string{"Counting from zero", "Thinking len prints the string itself"},
		},
		{
			ID:                   "2",
			Question:             "Which keyword defines a function in Python?",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"func", "function", "def", "define"},
			CorrectAnswer:        model.SingleAnswer("def"),
			Explanation:          "Python functions are declared with def, followed by the name and parameters.",
			Difficulty:           model.DifficultyBeginner,
			LearningObjective:    "Recognize Python function syntax",
			Hints:                []string{"It is short for the word \"define\"."},
			ReasoningSteps:       []string{"Function definitions start with a keyword", "Python uses def name(params):"},
			RealWorldApplication: "Packaging a calculation you repeat, such as converting temperatures.",
			CommonMistakes:       []string{"Using func from Go or function from JavaScript"},
		},
	},
	{"programming", "python", model.DifficultyIntermediate}: {
		{
			ID:                   "1",
			Question:             "What is the value of [x * 2 for x in range(3)]?",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"[0, 2, 4]", "[2, 4, 6]", "[0, 1, 2]", "[1, 2, 3]"},
			CorrectAnswer:        model.SingleAnswer("[0, 2, 4]"),
			Explanation:          "range(3) yields 0, 1 and 2; doubling each gives [0, 2, 4].",
			Difficulty:           model.DifficultyIntermediate,
			LearningObjective:    "Read list comprehensions",
			Hints:                []string{"range(3) starts at 0."},
			ReasoningSteps:       []string{"range(3) -> 0, 1, 2", "Double each value", "[0, 2, 4]"},
			RealWorldApplication: "Transforming every row of a dataset in one expression.",
			CommonMistakes:       []string{"Assuming range starts at 1", "Including 3 in the range"},
		},
		{
			ID:                   "2",
			Question:             "What does {\"a\": 1}.get(\"b\", 0) return?",
			Type:                 model.QuizMultipleChoice,
			Options:              []string{"None", "0", "1", "KeyError"},
			CorrectAnswer:        model.SingleAnswer("0"),
			Explanation:          "dict.get returns the default argument when the key is missing instead of raising KeyError.",
			Difficulty:           model.DifficultyIntermediate,
			LearningObjective:    "Look up dictionary keys safely",
			Hints:                []string{"The second argument to get is a default."},
			ReasoningSteps:       []string{"\"b\" is not a key", "get falls back to its default", "The default is 0"},
			RealWorldApplication: "Reading optional settings from a configuration dictionary.",
			CommonMistakes:       []string{"Expecting a KeyError like d[\"b\"]", "Expecting None when a default is given"},
		},
	},
}

// bankQuestions returns copies of the bank entries for a triple, or nil.
func bankQuestions(subject, topic string, d model.Difficulty) []model.Question {
	src := bank[keyFor(subject, topic, d)]
	out := make([]model.Question, len(src))
	for i, q := range src {
		out[i] = cloneQuestion(q)
	}
	return out
}

func cloneQuestion(q model.Question) model.Question {
	q.Options = append([]string(nil), q.Options...)
	q.Hints = append([]string(nil), q.Hints...)
	q.ReasoningSteps = append([]string(nil), q.ReasoningSteps...)
	q.CommonMistakes = append([]string(nil), q.CommonMistakes...)
	return q
}
