package llm

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// JSON-schema validation of parsed LLM items. Objects failing validation are
// dropped at item granularity, never fatal on their own.

const topicSchemaJSON = `{
	"type": "object",
	"required": ["title", "estimated_time_minutes", "keywords", "summary"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"estimated_time_minutes": {"type": "integer", "minimum": 1},
		"keywords": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"minItems": 1
		},
		"summary": {"type": "string", "minLength": 1}
	}
}`

const questionSchemaJSON = `{
	"type": "object",
	"required": ["question", "option_a", "option_b", "option_c", "option_d", "answer", "explanation"],
	"properties": {
		"question": {"type": "string", "minLength": 1},
		"option_a": {"type": "string", "minLength": 1},
		"option_b": {"type": "string", "minLength": 1},
		"option_c": {"type": "string", "minLength": 1},
		"option_d": {"type": "string", "minLength": 1},
		"answer": {"type": "string", "enum": ["A", "B", "C", "D"]},
		"explanation": {"type": "string", "minLength": 1}
	}
}`

var (
	topicSchema    = gojsonschema.NewStringLoader(topicSchemaJSON)
	questionSchema = gojsonschema.NewStringLoader(questionSchemaJSON)
)

// validateAgainstSchema checks one decoded item against a schema
func validateAgainstSchema(schema gojsonschema.JSONLoader, item interface{}) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item for validation: %w", err)
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		first := ""
		if errs := result.Errors(); len(errs) > 0 {
			first = errs[0].String()
		}
		return fmt.Errorf("item failed schema validation: %s", first)
	}

	return nil
}

// ValidateTopic checks one extracted topic against the topic schema
func ValidateTopic(t ExtractedTopic) error {
	return validateAgainstSchema(topicSchema, t)
}

// ValidateQuestion checks one generated question against the question schema
func ValidateQuestion(q GeneratedQuestion) error {
	return validateAgainstSchema(questionSchema, q)
}
