// Package ai provides a provider-agnostic content generation gateway with fallback routing.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// TaskType defines the kind of generation task, used for logging and request tuning.
type TaskType int

const (
	TaskLesson TaskType = iota
	TaskQuickReview
	TaskFeedback
)

func (t TaskType) String() string {
	switch t {
	case TaskLesson:
		return "lesson"
	case TaskQuickReview:
		return "quick_review"
	case TaskFeedback:
		return "feedback"
	default:
		return "unknown"
	}
}

// Message represents a prompt message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the provider for a JSON response. A non-empty Schema constrains its shape.
type ResponseFormat struct {
	Schema json.RawMessage `json:"schema,omitempty"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages       []Message       `json:"messages"`
	Model          string          `json:"model,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	Task           TaskType        `json:"task,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Completer produces a completion. Router and every Provider satisfy it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Completer
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// ErrNoProvider is returned by a Router with nothing registered.
var ErrNoProvider = errors.New("no AI provider configured")

// StatusError is a non-2xx reply from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// StatusCode extracts the provider HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
