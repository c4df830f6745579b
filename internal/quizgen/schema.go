package quizgen

import "github.com/pavelanni/quizgen/internal/llm"

// Models are loose with types: ids come back as numbers, answers as
// booleans, and empty lists as null. The schema only rejects payloads the
// decoder in model.Question could not read.

func nullable(types ...any) map[string]any {
	return map[string]any{"type": append(types, "null")}
}

var scalar = []any{"string", "number", "integer", "boolean"}

var nullableStrings = map[string]any{
	"type":  []any{"array", "null"},
	"items": map[string]any{"type": "string"},
}

// QuizSchema is the shape required of the LLM's quiz payload.
var QuizSchema = &llm.Schema{
	Name:        "generated-quiz",
	Description: "A personalized quiz with explained questions",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"title", "questions"},
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": nullable("string"),
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"question"},
					"properties": map[string]any{
						"id":       nullable("string", "number", "integer"),
						"question": map[string]any{"type": "string", "minLength": 1},
						"type":     nullable("string"),
						"options":  nullableStrings,
						"correct_answer": map[string]any{
							"type":  append(append([]any{}, scalar...), "array", "null"),
							"items": map[string]any{"type": scalar},
						},
						"explanation":            nullable("string"),
						"difficulty":             nullable("string"),
						"learning_objective":     nullable("string"),
						"hints":                  nullableStrings,
						"reasoning_steps":        nullableStrings,
						"real_world_application": nullable("string"),
						"common_mistakes":        nullableStrings,
					},
				},
			},
		},
	},
}
