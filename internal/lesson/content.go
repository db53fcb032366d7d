// Package lesson models generated lesson content and turns raw generator output into it.
package lesson

import (
	"bytes"
	"encoding/json"
)

// Placeholders used when a section is missing from generated content.
const (
	DefaultTheoryText = "Nội dung lý thuyết đang được cập nhật."
	DefaultNextSteps  = "Tiếp tục bài học kế tiếp!"
	DefaultAnswer     = "Chưa có đáp án"
	MissingField      = "N/A"
)

// QuestionType distinguishes lettered-option questions from free-text ones.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
)

// Content is the structured form of one generated lesson.
type Content struct {
	Theory           Theory            `json:"theory"`
	Examples         []Example         `json:"examples"`
	PracticeProblems []PracticeProblem `json:"practiceProblems"`
	Quiz             []QuizQuestion    `json:"quiz"`
	NextSteps        string            `json:"nextSteps"`
}

// Theory is the "things to remember" section.
type Theory struct {
	Text          string   `json:"text"`
	Illustrations []string `json:"illustrations"`
}

// UnmarshalJSON accepts either an object or a bare string for the theory text.
func (t *Theory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Text)
	}
	type plain Theory
	return json.Unmarshal(data, (*plain)(t))
}

// Example is a worked example for one problem type.
type Example struct {
	Title          string `json:"title"`
	Problem        string `json:"problem"`
	Solution       string `json:"solution"`
	CommonMistakes string `json:"commonMistakes"`
}

// PracticeProblem is a self-study exercise with its final answer.
type PracticeProblem struct {
	Problem string `json:"problem"`
	Answer  string `json:"answer"`
}

// QuizOption is one lettered choice.
type QuizOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuizQuestion is one graded question of the lesson quiz.
type QuizQuestion struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Question      string       `json:"question"`
	Options       []QuizOption `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
}

// QuickReviewQuestion is one item of a quick-review batch.
type QuickReviewQuestion struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Options       []QuizOption `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
	Topic         string       `json:"topic"`
}

// complete fills missing sections so the value is always safe to render.
func (c *Content) complete() {
	if c.Theory.Text == "" {
		c.Theory.Text = DefaultTheoryText
	}
	if c.Theory.Illustrations == nil {
		c.Theory.Illustrations = []string{}
	}
	if c.Examples == nil {
		c.Examples = []Example{}
	}
	if c.PracticeProblems == nil {
		c.PracticeProblems = []PracticeProblem{}
	}
	if c.Quiz == nil {
		c.Quiz = []QuizQuestion{}
	}
	for i := range c.Quiz {
		q := &c.Quiz[i]
		if q.ID == "" {
			q.ID = quizID(i)
		}
		if q.Type == "" {
			q.Type = ShortAnswer
			if len(q.Options) > 0 {
				q.Type = MultipleChoice
			}
		}
	}
	if c.NextSteps == "" {
		c.NextSteps = DefaultNextSteps
	}
}

// QuizByID returns the quiz question with the given id.
func (c Content) QuizByID(id string) (QuizQuestion, bool) {
	for _, q := range c.Quiz {
		if q.ID == id {
			return q, true
		}
	}
	return QuizQuestion{}, false
}
