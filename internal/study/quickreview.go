package study

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-toan6/internal/lesson"
	"github.com/p-n-ai/pai-toan6/internal/progress"
)

// QuickReview generates a fresh batch of review questions and keeps it for grading.
// The correct answers stay on the server until the batch is graded.
func (c *Controller) QuickReview(ctx context.Context) ([]lesson.QuickReviewQuestion, error) {
	questions, err := c.gen.QuickReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("quick review: %w", err)
	}

	c.mu.Lock()
	c.review = questions
	c.mu.Unlock()
	return questions, nil
}

// ReviewResult is the grading of one quick-review question.
type ReviewResult struct {
	QuestionID    string `json:"questionId"`
	Topic         string `json:"topic"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

// QuickReviewResult is the outcome of a graded quick review.
type QuickReviewResult struct {
	Score     int            `json:"score"`
	Total     int            `json:"total"`
	Questions []ReviewResult `json:"questions"`
	WeakAreas []string       `json:"weakAreas"`
}

// GradeQuickReview grades answers against the last generated batch. Topics of missed questions
// are added to the weak areas of the selected lesson, when one is selected.
func (c *Controller) GradeQuickReview(ctx context.Context, answers map[string]string) (*QuickReviewResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.review) == 0 {
		return nil, ErrNoQuickReview
	}

	result := &QuickReviewResult{
		Total:     len(c.review),
		Questions: make([]ReviewResult, 0, len(c.review)),
		WeakAreas: []string{},
	}
	var missed []string
	for _, q := range c.review {
		answer := answers[q.ID]
		correct := answer != "" && answer == q.CorrectAnswer
		if correct {
			result.Score++
		} else if q.Topic != "" {
			missed = append(missed, q.Topic)
		}
		if answer == "" {
			answer = lesson.NoAnswer
		}
		result.Questions = append(result.Questions, ReviewResult{
			QuestionID:    q.ID,
			Topic:         q.Topic,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
		})
	}
	c.review = nil

	sel := c.selected
	if sel.lessonID != "" && len(missed) > 0 {
		p := c.progress.Update(c.catalog, sel.chapterID, sel.lessonID, c.now(), func(lp *progress.LessonProgress) {
			for _, topic := range missed {
				lp.AddWeakArea(topic)
			}
		})
		c.commitLocked(ctx, p, c.outline)
		if lp, ok := c.progress.Lesson(sel.chapterID, sel.lessonID); ok {
			result.WeakAreas = append(result.WeakAreas, lp.WeakAreas...)
		}
	}

	c.logEvent(Event{Type: EventQuickReviewGraded, ChapterID: sel.chapterID, LessonID: sel.lessonID,
		Data: map[string]any{"score": result.Score, "total": result.Total}})
	slog.Info("quick review graded", "score", result.Score, "total", result.Total, "missed_topics", len(missed))
	return result, nil
}
