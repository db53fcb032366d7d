package lesson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedQuickReview means a quick-review payload did not match QuickReviewSchema.
var ErrMalformedQuickReview = errors.New("malformed quick review response")

// QuickReviewSchema is the JSON Schema of a quick-review batch. It is also sent to the
// provider as the response schema.
const QuickReviewSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "properties": {
      "id": {"type": "string"},
      "question": {"type": "string"},
      "options": {
        "type": "array",
        "minItems": 4,
        "maxItems": 4,
        "items": {
          "type": "object",
          "properties": {
            "key": {"type": "string"},
            "text": {"type": "string"}
          },
          "required": ["key", "text"]
        }
      },
      "correctAnswer": {"type": "string"},
      "topic": {"type": "string"}
    },
    "required": ["id", "question", "options", "correctAnswer", "topic"]
  }
}`

var quickReviewSchema = mustSchema(QuickReviewSchema)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile quick review schema: %v", err))
	}
	return schema
}

// ParseQuickReview decodes a quick-review batch. There is no fallback: anything that does not
// satisfy QuickReviewSchema is reported as ErrMalformedQuickReview.
func ParseQuickReview(raw string) ([]QuickReviewQuestion, error) {
	body := stripFence(strings.TrimSpace(normalize(raw)))
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedQuickReview)
	}

	result, err := quickReviewSchema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuickReview, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedQuickReview, strings.Join(msgs, "; "))
	}

	var questions []QuickReviewQuestion
	if err := json.Unmarshal([]byte(body), &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuickReview, err)
	}
	return questions, nil
}
