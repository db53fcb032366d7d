// Package progress models learner progress and derives the locked/unlocked course outline from it.
//
// UserProgress is the authoritative document. The Outline is a projection of the catalog and
// progress; its lock state is a ratchet that only ever moves from locked to unlocked.
package progress

import (
	"slices"
	"time"
)

// ChapterStatus is the derived state of a chapter.
type ChapterStatus string

const (
	StatusNotStarted ChapterStatus = "not_started"
	StatusInProgress ChapterStatus = "in_progress"
	StatusCompleted  ChapterStatus = "completed"
)

// Label returns the display label shown to students.
func (s ChapterStatus) Label() string {
	switch s {
	case StatusInProgress:
		return "Đang học"
	case StatusCompleted:
		return "Đã hoàn thành"
	default:
		return "Chưa học"
	}
}

// LessonProgress is the persisted record for one lesson.
type LessonProgress struct {
	LessonID                  string    `json:"lessonId"`
	Progress                  int       `json:"progress"`  // 0-100
	QuizScore                 *int      `json:"quizScore"` // nil until a quiz is submitted
	QuizPassed                bool      `json:"quizPassed"`
	AttemptedPracticeProblems []string  `json:"attemptedPracticeProblems"`
	WeakAreas                 []string  `json:"weakAreas"`
	LastAccessed              time.Time `json:"lastAccessed"`
}

// Attempted reports whether a quiz score is recorded.
func (lp LessonProgress) Attempted() bool {
	return lp.QuizScore != nil
}

// SetProgress clamps v into 0-100.
func (lp *LessonProgress) SetProgress(v int) {
	lp.Progress = min(max(v, 0), 100)
}

// AddWeakArea records a topic the learner struggles with. Duplicates are ignored.
func (lp *LessonProgress) AddWeakArea(topic string) {
	lp.WeakAreas = addUnique(lp.WeakAreas, topic)
}

// MarkPracticeAttempted records a practice problem identifier. Duplicates are ignored.
func (lp *LessonProgress) MarkPracticeAttempted(id string) {
	lp.AttemptedPracticeProblems = addUnique(lp.AttemptedPracticeProblems, id)
}

// ChapterProgress is the persisted record for one chapter.
type ChapterProgress struct {
	ChapterID string                    `json:"chapterId"`
	Status    ChapterStatus             `json:"status"`
	Lessons   map[string]LessonProgress `json:"lessons"`
}

// UserProgress maps chapter IDs to chapter progress. The zero value is an empty, usable document.
type UserProgress map[string]ChapterProgress

// Lesson returns the stored record for a lesson.
func (p UserProgress) Lesson(chapterID, lessonID string) (LessonProgress, bool) {
	lp, ok := p[chapterID].Lessons[lessonID]
	return lp, ok
}

// Clone returns a deep copy.
func (p UserProgress) Clone() UserProgress {
	out := make(UserProgress, len(p))
	for id, cp := range p {
		lessons := make(map[string]LessonProgress, len(cp.Lessons))
		for lid, lp := range cp.Lessons {
			lessons[lid] = lp.clone()
		}
		cp.Lessons = lessons
		out[id] = cp
	}
	return out
}

func (lp LessonProgress) clone() LessonProgress {
	if lp.QuizScore != nil {
		score := *lp.QuizScore
		lp.QuizScore = &score
	}
	lp.AttemptedPracticeProblems = slices.Clone(lp.AttemptedPracticeProblems)
	lp.WeakAreas = slices.Clone(lp.WeakAreas)
	return lp
}

func newLessonProgress(lessonID string, now time.Time) LessonProgress {
	return LessonProgress{
		LessonID:                  lessonID,
		AttemptedPracticeProblems: []string{},
		WeakAreas:                 []string{},
		LastAccessed:              now,
	}
}

func addUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
