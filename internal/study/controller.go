// Package study orchestrates lesson selection, quiz grading and quick review on top of the
// progress model and the lesson generator.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/p-n-ai/pai-toan6/internal/curriculum"
	"github.com/p-n-ai/pai-toan6/internal/lesson"
	"github.com/p-n-ai/pai-toan6/internal/progress"
	"github.com/p-n-ai/pai-toan6/internal/storage"
)

const (
	DefaultPassScore       = 7
	DefaultStartedProgress = 25
	practiceProgress       = 50
)

var (
	// ErrLessonLocked is returned when selecting or grading a lesson that is still locked.
	ErrLessonLocked = errors.New("lesson is locked")
	// ErrSuperseded is returned when a newer selection replaced this one while it was loading.
	ErrSuperseded = errors.New("lesson selection superseded")
	// ErrContentNotLoaded is returned when grading a lesson whose content was never generated.
	ErrContentNotLoaded = errors.New("lesson content not loaded")
	// ErrNoQuickReview is returned when grading without a generated quick-review batch.
	ErrNoQuickReview = errors.New("no quick review in progress")
)

// ContentGenerator produces lesson material. *lesson.Generator implements it.
type ContentGenerator interface {
	Lesson(ctx context.Context, chapterTitle, lessonTitle string) (lesson.Content, error)
	QuickReview(ctx context.Context) ([]lesson.QuickReviewQuestion, error)
	Feedback(ctx context.Context, questions []lesson.QuizQuestion, answers map[string]string, score int) (string, error)
}

// Config holds dependencies for the controller.
type Config struct {
	Catalog         *curriculum.Catalog
	Store           storage.Store
	Generator       ContentGenerator
	Events          EventLogger
	PassScore       int                    // correct answers needed to pass (default 7)
	StartedProgress int                    // progress recorded when a lesson is opened (default 25)
	OnOutline       func(progress.Outline) // called with a copy after every outline change
	Now             func() time.Time
}

// Controller is the single-user session over catalog, progress and generated content.
type Controller struct {
	catalog         *curriculum.Catalog
	store           storage.Store
	repo            *progress.Repository
	gen             ContentGenerator
	events          EventLogger
	passScore       int
	startedProgress int
	onOutline       func(progress.Outline)
	now             func() time.Time

	mu       sync.Mutex
	progress progress.UserProgress
	outline  progress.Outline
	epoch    uint64
	selected lessonRef
	current  lesson.Content // content of the selected lesson
	review   []lesson.QuickReviewQuestion
}

type lessonRef struct {
	chapterID string
	lessonID  string
}

// NewController creates a controller. Call Load before use.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	c := &Controller{
		catalog:         cfg.Catalog,
		store:           cfg.Store,
		gen:             cfg.Generator,
		events:          cfg.Events,
		passScore:       cfg.PassScore,
		startedProgress: cfg.StartedProgress,
		onOutline:       cfg.OnOutline,
		now:             cfg.Now,
		progress:        progress.UserProgress{},
	}
	if c.store == nil {
		c.store = storage.NewMemoryStore()
	}
	if c.events == nil {
		c.events = NopEventLogger{}
	}
	if c.passScore == 0 {
		c.passScore = DefaultPassScore
	}
	if c.startedProgress == 0 {
		c.startedProgress = DefaultStartedProgress
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.repo = progress.NewRepository(c.store)
	c.outline = progress.Derive(c.catalog, c.progress)
	return c, nil
}

// Load reads the stored progress and outline cache, projects the outline and persists it.
// Unreadable documents are logged and replaced by empty ones.
func (c *Controller) Load(ctx context.Context) {
	p, err := c.repo.LoadProgress(ctx)
	if err != nil {
		slog.Warn("failed to load progress, starting empty", "error", err)
	}
	cached, err := c.repo.LoadOutline(ctx)
	if err != nil {
		slog.Warn("failed to load outline cache", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitLocked(ctx, p, cached)

	chapterID, lessonID, _ := c.outline.FirstUnlocked()
	slog.Info("progress loaded",
		"chapters", len(p),
		"first_unlocked_chapter", chapterID,
		"first_unlocked_lesson", lessonID,
	)
}

// Outline returns a copy of the current outline.
func (c *Controller) Outline() progress.Outline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outline.Clone()
}

// Progress returns a copy of the current progress document.
func (c *Controller) Progress() progress.UserProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Clone()
}

// Catalog returns the curriculum the controller serves.
func (c *Controller) Catalog() *curriculum.Catalog {
	return c.catalog
}

// PassScore returns the number of correct answers needed to pass a quiz.
func (c *Controller) PassScore() int {
	return c.passScore
}

// Selected returns the lesson chosen by the latest successful selection.
func (c *Controller) Selected() (chapterID, lessonID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected.chapterID, c.selected.lessonID, c.selected.lessonID != ""
}

// LessonView is everything needed to display a selected lesson.
type LessonView struct {
	ChapterID    string                  `json:"chapterId"`
	ChapterTitle string                  `json:"chapterTitle"`
	LessonID     string                  `json:"lessonId"`
	LessonTitle  string                  `json:"lessonTitle"`
	Content      lesson.Content          `json:"content"`
	Progress     progress.LessonProgress `json:"progress"`
	DraftAnswers map[string]string       `json:"draftAnswers"`
	Cached       bool                    `json:"cached"`
}

// SelectLesson opens a lesson: cached or freshly generated content, a "lesson started" progress
// update and restored draft answers. Unknown ids return nil, nil.
// If another selection starts while content is being generated, the older call returns ErrSuperseded
// and its result is discarded.
func (c *Controller) SelectLesson(ctx context.Context, chapterID, lessonID string) (*LessonView, error) {
	c.mu.Lock()
	if _, l, ok := c.outline.Find(chapterID, lessonID); !ok {
		c.mu.Unlock()
		slog.Debug("stale lesson selection ignored", "chapter_id", chapterID, "lesson_id", lessonID)
		return nil, nil
	} else if l.IsLocked {
		c.mu.Unlock()
		return nil, ErrLessonLocked
	}
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	ch, l, _ := c.catalog.Lesson(chapterID, lessonID)

	content, cached := c.cachedContent(ctx, lessonID)
	var genErr error
	if !cached {
		content, genErr = c.gen.Lesson(ctx, ch.Title, l.Title)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		c.logEvent(Event{Type: EventSelectionSuperseded, ChapterID: chapterID, LessonID: lessonID})
		slog.Info("discarding superseded lesson content", "chapter_id", chapterID, "lesson_id", lessonID)
		return nil, ErrSuperseded
	}
	if genErr != nil {
		return nil, fmt.Errorf("load lesson %s: %w", lessonID, genErr)
	}

	if !cached {
		c.saveJSON(ctx, contentKey(lessonID), content)
		c.logEvent(Event{Type: EventContentGenerated, ChapterID: chapterID, LessonID: lessonID,
			Data: map[string]any{"quiz_questions": len(content.Quiz), "examples": len(content.Examples)}})
	}

	now := c.now()
	p := c.progress.Update(c.catalog, chapterID, lessonID, now, func(lp *progress.LessonProgress) {
		lp.SetProgress(max(lp.Progress, c.startedProgress))
		lp.LastAccessed = now
	})
	c.commitLocked(ctx, p, c.outline)
	c.selected = lessonRef{chapterID: chapterID, lessonID: lessonID}
	c.current = content
	c.logEvent(Event{Type: EventLessonStarted, ChapterID: chapterID, LessonID: lessonID,
		Data: map[string]any{"cached": cached}})

	lp, _ := c.progress.Lesson(chapterID, lessonID)
	view := &LessonView{
		ChapterID:    chapterID,
		ChapterTitle: ch.Title,
		LessonID:     lessonID,
		LessonTitle:  l.Title,
		Content:      content,
		Progress:     lp,
		DraftAnswers: map[string]string{},
		Cached:       cached,
	}
	if !lp.Attempted() {
		view.DraftAnswers = c.loadDrafts(ctx, lessonID)
	}
	return view, nil
}

// SaveDraftAnswer remembers an answer of a quiz in progress. Unknown ids return nil, nil and
// leave the store untouched.
func (c *Controller) SaveDraftAnswer(ctx context.Context, chapterID, lessonID, questionID, answer string) (map[string]string, error) {
	if questionID == "" {
		return nil, fmt.Errorf("question id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, l, ok := c.outline.Find(chapterID, lessonID); !ok {
		return nil, nil
	} else if l.IsLocked {
		return nil, ErrLessonLocked
	}

	drafts := c.loadDrafts(ctx, lessonID)
	drafts[questionID] = answer
	c.saveJSON(ctx, draftsKey(lessonID), drafts)
	return drafts, nil
}

// QuestionResult is the grading of one quiz question.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

// QuizResult is the outcome of a quiz submission.
type QuizResult struct {
	Score     int              `json:"score"`
	Total     int              `json:"total"`
	PassScore int              `json:"passScore"`
	Passed    bool             `json:"passed"`
	Questions []QuestionResult `json:"questions"`
	Feedback  string           `json:"feedback"`
	Outline   progress.Outline `json:"outline"`
}

// SubmitQuiz grades answers against the cached lesson quiz, records the score, unlocks the next
// lesson on a pass and asks for a feedback narrative. Unknown ids return nil, nil.
// Feedback failures never fail the submission.
func (c *Controller) SubmitQuiz(ctx context.Context, chapterID, lessonID string, answers map[string]string) (*QuizResult, error) {
	c.mu.Lock()
	if _, l, ok := c.outline.Find(chapterID, lessonID); !ok {
		c.mu.Unlock()
		return nil, nil
	} else if l.IsLocked {
		c.mu.Unlock()
		return nil, ErrLessonLocked
	}

	content, ok := c.contentLocked(ctx, chapterID, lessonID)
	if !ok {
		c.mu.Unlock()
		return nil, ErrContentNotLoaded
	}

	score := lesson.Score(content.Quiz, answers)
	passed := score >= c.passScore

	now := c.now()
	p := c.progress.Update(c.catalog, chapterID, lessonID, now, func(lp *progress.LessonProgress) {
		lp.QuizScore = &score
		lp.QuizPassed = passed
		if passed {
			lp.SetProgress(100)
		}
		lp.LastAccessed = now
	})
	cached := c.outline
	if passed {
		cached = progress.UnlockNext(cached, chapterID, lessonID)
	}
	c.commitLocked(ctx, p, cached)
	c.saveJSON(ctx, draftsKey(lessonID), map[string]string{})
	c.logEvent(Event{Type: EventQuizSubmitted, ChapterID: chapterID, LessonID: lessonID,
		Data: map[string]any{"score": score, "total": len(content.Quiz), "passed": passed}})
	outline := c.outline.Clone()
	c.mu.Unlock()

	slog.Info("quiz submitted",
		"chapter_id", chapterID,
		"lesson_id", lessonID,
		"score", score,
		"total", len(content.Quiz),
		"passed", passed,
	)

	feedback, err := c.gen.Feedback(ctx, content.Quiz, answers, score)
	if err != nil {
		slog.Warn("quiz feedback unavailable", "lesson_id", lessonID, "error", err)
		feedback = lesson.FeedbackUnavailable
	}

	result := &QuizResult{
		Score:     score,
		Total:     len(content.Quiz),
		PassScore: c.passScore,
		Passed:    passed,
		Questions: make([]QuestionResult, 0, len(content.Quiz)),
		Feedback:  feedback,
		Outline:   outline,
	}
	for _, q := range content.Quiz {
		answer := answers[q.ID]
		if answer == "" {
			answer = lesson.NoAnswer
		}
		result.Questions = append(result.Questions, QuestionResult{
			QuestionID:    q.ID,
			Question:      q.Question,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       lesson.IsCorrect(q, answers),
		})
	}
	return result, nil
}

// RetakeQuiz clears the score and pass flag of one lesson and its draft answers. Lessons that
// were unlocked stay unlocked. Unknown ids are a no-op.
func (c *Controller) RetakeQuiz(ctx context.Context, chapterID, lessonID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, l, ok := c.outline.Find(chapterID, lessonID); !ok {
		return nil
	} else if l.IsLocked {
		return ErrLessonLocked
	}

	p := c.progress.Update(c.catalog, chapterID, lessonID, c.now(), func(lp *progress.LessonProgress) {
		lp.QuizScore = nil
		lp.QuizPassed = false
	})
	c.commitLocked(ctx, p, c.outline)
	c.saveJSON(ctx, draftsKey(lessonID), map[string]string{})
	c.logEvent(Event{Type: EventQuizRetake, ChapterID: chapterID, LessonID: lessonID})
	return nil
}

// RecordPractice marks a practice problem (by position) as attempted. Unknown ids are a no-op.
func (c *Controller) RecordPractice(ctx context.Context, chapterID, lessonID string, problem int) error {
	if problem < 1 {
		return fmt.Errorf("practice problem must be positive, got %d", problem)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, l, ok := c.outline.Find(chapterID, lessonID); !ok {
		return nil
	} else if l.IsLocked {
		return ErrLessonLocked
	}

	now := c.now()
	p := c.progress.Update(c.catalog, chapterID, lessonID, now, func(lp *progress.LessonProgress) {
		lp.MarkPracticeAttempted("practice-" + strconv.Itoa(problem))
		if !lp.Attempted() {
			lp.SetProgress(max(lp.Progress, practiceProgress))
		}
		lp.LastAccessed = now
	})
	c.commitLocked(ctx, p, c.outline)
	c.logEvent(Event{Type: EventPracticeAttempted, ChapterID: chapterID, LessonID: lessonID,
		Data: map[string]any{"problem": problem}})
	return nil
}

// commitLocked replaces the progress document, re-projects the outline against cached and
// persists both. Persistence failures are logged and the in-memory state is kept.
// c.mu must be held.
func (c *Controller) commitLocked(ctx context.Context, p progress.UserProgress, cached progress.Outline) {
	c.progress = p
	c.outline = progress.Project(c.catalog, p, cached)

	if err := c.repo.SaveProgress(ctx, c.progress); err != nil {
		slog.Warn("failed to persist progress", "error", err)
	}
	if err := c.repo.SaveOutline(ctx, c.outline); err != nil {
		slog.Warn("failed to persist outline", "error", err)
	}
	if c.onOutline != nil {
		c.onOutline(c.outline.Clone())
	}
}

func (c *Controller) cachedContent(ctx context.Context, lessonID string) (lesson.Content, bool) {
	raw, found, err := c.store.Get(ctx, contentKey(lessonID))
	if err != nil {
		slog.Warn("failed to read lesson cache", "lesson_id", lessonID, "error", err)
		return lesson.Content{}, false
	}
	if !found {
		return lesson.Content{}, false
	}
	content, ok := lesson.ParseStrict(raw)
	if !ok {
		slog.Warn("ignoring unreadable lesson cache", "lesson_id", lessonID)
		return lesson.Content{}, false
	}
	slog.Debug("lesson cache hit", "lesson_id", lessonID)
	return content, true
}

// contentLocked prefers the in-memory content of the selected lesson so grading works even when
// the store is unavailable. c.mu must be held.
func (c *Controller) contentLocked(ctx context.Context, chapterID, lessonID string) (lesson.Content, bool) {
	if c.selected == (lessonRef{chapterID: chapterID, lessonID: lessonID}) {
		return c.current, true
	}
	return c.cachedContent(ctx, lessonID)
}

func (c *Controller) loadDrafts(ctx context.Context, lessonID string) map[string]string {
	drafts := map[string]string{}
	raw, found, err := c.store.Get(ctx, draftsKey(lessonID))
	if err != nil {
		slog.Warn("failed to read draft answers", "lesson_id", lessonID, "error", err)
		return drafts
	}
	if !found {
		return drafts
	}
	if err := json.Unmarshal([]byte(raw), &drafts); err != nil || drafts == nil {
		slog.Warn("ignoring unreadable draft answers", "lesson_id", lessonID, "error", err)
		return map[string]string{}
	}
	return drafts
}

func (c *Controller) saveJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to encode document", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		slog.Warn("failed to persist document", "key", key, "error", err)
	}
}

func (c *Controller) logEvent(e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = c.now()
	}
	if err := c.events.LogEvent(e); err != nil {
		slog.Warn("failed to log event", "type", e.Type, "error", err)
	}
}

func contentKey(lessonID string) string {
	return "lesson_content_" + lessonID
}

func draftsKey(lessonID string) string {
	return "quiz_answers_" + lessonID
}
