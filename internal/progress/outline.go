package progress

import (
	"slices"
	"time"

	"github.com/p-n-ai/pai-toan6/internal/curriculum"
)

// LessonOutline is a lesson as displayed: catalog fields plus derived progress and lock state.
type LessonOutline struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	IsLocked bool   `json:"isLocked"`
}

// ChapterOutline is a chapter as displayed.
type ChapterOutline struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Status  ChapterStatus   `json:"status"`
	Lessons []LessonOutline `json:"lessons"`
}

// Outline is the derived, displayable projection of catalog and progress.
type Outline []ChapterOutline

// Clone returns a deep copy.
func (o Outline) Clone() Outline {
	out := make(Outline, len(o))
	for i, ch := range o {
		ch.Lessons = slices.Clone(ch.Lessons)
		out[i] = ch
	}
	return out
}

// Find looks up a lesson by (chapterID, lessonID).
func (o Outline) Find(chapterID, lessonID string) (ChapterOutline, LessonOutline, bool) {
	for _, ch := range o {
		if ch.ID != chapterID {
			continue
		}
		for _, l := range ch.Lessons {
			if l.ID == lessonID {
				return ch, l, true
			}
		}
	}
	return ChapterOutline{}, LessonOutline{}, false
}

// FirstUnlocked returns the first selectable lesson in outline order.
func (o Outline) FirstUnlocked() (chapterID, lessonID string, ok bool) {
	for _, ch := range o {
		for _, l := range ch.Lessons {
			if !l.IsLocked {
				return ch.ID, l.ID, true
			}
		}
	}
	return "", "", false
}

// ChapterStatusFor applies the status rule: Completed when every lesson has a passed quiz,
// InProgress when any of its lessons has a record, NotStarted otherwise. Records for lessons no
// longer in the chapter are ignored.
// A chapter without lessons is always NotStarted.
func ChapterStatusFor(ch curriculum.Chapter, cp ChapterProgress) ChapterStatus {
	if len(ch.Lessons) == 0 {
		return StatusNotStarted
	}

	passed, touched := 0, 0
	for _, l := range ch.Lessons {
		lp, ok := cp.Lessons[l.ID]
		if !ok {
			continue
		}
		touched++
		if lp.QuizPassed {
			passed++
		}
	}
	if passed == len(ch.Lessons) {
		return StatusCompleted
	}
	if touched > 0 {
		return StatusInProgress
	}
	return StatusNotStarted
}

// Derive computes the outline from scratch. It is pure and deterministic.
//
// The first lesson of the first chapter is always unlocked. Any other lesson is unlocked when the
// preceding lesson of the same chapter has a passed quiz. The first lesson of a later chapter is
// unlocked once the nearest preceding non-empty chapter is Completed.
func Derive(catalog *curriculum.Catalog, p UserProgress) Outline {
	out := make(Outline, 0, len(catalog.Chapters))
	gateOpen := true

	for _, ch := range catalog.Chapters {
		cp := p[ch.ID]
		status := ChapterStatusFor(ch, cp)

		co := ChapterOutline{
			ID:      ch.ID,
			Title:   ch.Title,
			Status:  status,
			Lessons: make([]LessonOutline, 0, len(ch.Lessons)),
		}
		for i, l := range ch.Lessons {
			unlocked := gateOpen
			if i > 0 {
				unlocked = cp.Lessons[ch.Lessons[i-1].ID].QuizPassed
			}
			co.Lessons = append(co.Lessons, LessonOutline{
				ID:       l.ID,
				Title:    l.Title,
				Progress: cp.Lessons[l.ID].Progress,
				IsLocked: !unlocked,
			})
		}
		out = append(out, co)

		if len(ch.Lessons) > 0 {
			gateOpen = status == StatusCompleted
		}
	}
	return out
}

// Reconcile applies the unlock ratchet: every lesson unlocked in cached stays unlocked in the
// result. Everything else comes from derived. Lessons are matched by (chapterID, lessonID), so
// entries of cached that no longer exist in the catalog are ignored.
func Reconcile(derived, cached Outline) Outline {
	out := derived.Clone()
	if len(cached) == 0 {
		return out
	}

	unlocked := make(map[[2]string]bool)
	for _, ch := range cached {
		for _, l := range ch.Lessons {
			if !l.IsLocked {
				unlocked[[2]string{ch.ID, l.ID}] = true
			}
		}
	}

	for ci := range out {
		for li := range out[ci].Lessons {
			if unlocked[[2]string{out[ci].ID, out[ci].Lessons[li].ID}] {
				out[ci].Lessons[li].IsLocked = false
			}
		}
	}
	return out
}

// Project derives the outline and merges previously granted unlocks from cached.
func Project(catalog *curriculum.Catalog, p UserProgress, cached Outline) Outline {
	return Reconcile(Derive(catalog, p), cached)
}

// UnlockNext unlocks the lesson following (chapterID, lessonID) in the same chapter.
// Unknown ids, the last lesson of a chapter, or an already unlocked successor are no-ops.
// The input outline is not modified.
func UnlockNext(o Outline, chapterID, lessonID string) Outline {
	out := o.Clone()
	for ci := range out {
		if out[ci].ID != chapterID {
			continue
		}
		lessons := out[ci].Lessons
		for li := range lessons {
			if lessons[li].ID == lessonID && li+1 < len(lessons) {
				lessons[li+1].IsLocked = false
				return out
			}
		}
	}
	return out
}

// Update returns a copy of p with the lesson record created if missing, changed by fn, and the
// chapter status recomputed against catalog. p itself is not modified.
func (p UserProgress) Update(catalog *curriculum.Catalog, chapterID, lessonID string, now time.Time, fn func(*LessonProgress)) UserProgress {
	out := p.Clone()

	cp, ok := out[chapterID]
	if !ok {
		cp = ChapterProgress{ChapterID: chapterID, Status: StatusNotStarted}
	}
	if cp.Lessons == nil {
		cp.Lessons = make(map[string]LessonProgress)
	}

	lp, ok := cp.Lessons[lessonID]
	if !ok {
		lp = newLessonProgress(lessonID, now)
	}
	if fn != nil {
		fn(&lp)
	}
	cp.Lessons[lessonID] = lp

	if ch, found := catalog.Chapter(chapterID); found {
		cp.Status = ChapterStatusFor(ch, cp)
	}
	out[chapterID] = cp
	return out
}
