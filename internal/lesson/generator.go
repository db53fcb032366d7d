package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-toan6/internal/ai"
)

// ErrGenerationFailed matches every *GenerationError.
var ErrGenerationFailed = errors.New("content generation failed")

// User-facing messages for failed generation requests.
const (
	msgBadRequest     = "Yêu cầu không hợp lệ. Vui lòng kiểm tra lại cấu trúc lời nhắc."
	msgAuth           = "Lỗi xác thực API. Vui lòng kiểm tra khóa API của bạn."
	msgServer         = "Lỗi máy chủ nội bộ. Vui lòng thử lại sau."
	msgLessonDefault  = "Không thể tải nội dung bài học. Vui lòng thử lại sau."
	msgQuickReview    = "Không thể tải câu hỏi ôn tập nhanh. Vui lòng thử lại sau."
	msgFeedbackFailed = "Lỗi khi tạo gợi ý. Vui lòng thử lại sau."
	msgFeedbackEmpty  = "Không thể tạo gợi ý lộ trình tiếp theo. Vui lòng thử lại."
)

// FeedbackUnavailable replaces the narrative when feedback generation fails.
const FeedbackUnavailable = msgFeedbackFailed

// GenerationError is a failed generation request. Message is safe to show to students.
type GenerationError struct {
	Task       ai.TaskType
	StatusCode int // provider HTTP status, 0 when unknown
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Task, e.Err)
}

// Unwrap exposes both ErrGenerationFailed and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}

func newGenerationError(task ai.TaskType, err error) *GenerationError {
	ge := &GenerationError{Task: task, StatusCode: ai.StatusCode(err), Err: err}
	switch task {
	case ai.TaskQuickReview:
		ge.Message = msgQuickReview
	case ai.TaskFeedback:
		ge.Message = msgFeedbackFailed
	default:
		switch ge.StatusCode {
		case http.StatusBadRequest:
			ge.Message = msgBadRequest
		case http.StatusForbidden:
			ge.Message = msgAuth
		case http.StatusInternalServerError:
			ge.Message = msgServer
		default:
			ge.Message = msgLessonDefault
		}
	}
	return ge
}

// Generator requests lesson material from an AI completer and parses the replies.
type Generator struct {
	ai ai.Completer
}

// NewGenerator creates a generator over c, usually an *ai.Router.
func NewGenerator(c ai.Completer) *Generator {
	return &Generator{ai: c}
}

// Lesson generates and parses the content of one lesson.
func (g *Generator) Lesson(ctx context.Context, chapterTitle, lessonTitle string) (Content, error) {
	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: LessonPrompt(chapterTitle, lessonTitle)}},
		Temperature: lessonTemperature,
		MaxTokens:   lessonMaxTokens,
		Task:        ai.TaskLesson,
	})
	if err != nil {
		return Content{}, newGenerationError(ai.TaskLesson, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return Content{}, newGenerationError(ai.TaskLesson, errors.New("no content generated"))
	}
	return ParseLessonResponse(resp.Content), nil
}

// QuickReview generates a batch of quick-review questions.
func (g *Generator) QuickReview(ctx context.Context) ([]QuickReviewQuestion, error) {
	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages:       []ai.Message{{Role: "user", Content: QuickReviewPrompt()}},
		Temperature:    quickReviewTemperature,
		Task:           ai.TaskQuickReview,
		ResponseFormat: &ai.ResponseFormat{Schema: json.RawMessage(QuickReviewSchema)},
	})
	if err != nil {
		return nil, newGenerationError(ai.TaskQuickReview, err)
	}

	questions, err := ParseQuickReview(resp.Content)
	if err != nil {
		return nil, newGenerationError(ai.TaskQuickReview, err)
	}
	return questions, nil
}

// Feedback asks for a study-path narrative about a graded quiz.
func (g *Generator) Feedback(ctx context.Context, questions []QuizQuestion, answers map[string]string, score int) (string, error) {
	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: FeedbackPrompt(questions, answers, score)}},
		Temperature: feedbackTemperature,
		MaxTokens:   feedbackMaxTokens,
		Task:        ai.TaskFeedback,
	})
	if err != nil {
		return "", newGenerationError(ai.TaskFeedback, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return msgFeedbackEmpty, nil
	}
	return resp.Content, nil
}
