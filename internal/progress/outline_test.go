package progress_test

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/p-n-ai/pai-toan6/internal/curriculum"
	"github.com/p-n-ai/pai-toan6/internal/progress"
)

var now = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func defaultCatalog(t *testing.T) *curriculum.Catalog {
	t.Helper()
	c, err := curriculum.Default()
	if err != nil {
		t.Fatalf("curriculum.Default() error = %v", err)
	}
	return c
}

// record returns p with a submitted quiz for the lesson.
func record(c *curriculum.Catalog, p progress.UserProgress, chapterID, lessonID string, score int, passed bool) progress.UserProgress {
	return p.Update(c, chapterID, lessonID, now, func(lp *progress.LessonProgress) {
		lp.QuizScore = &score
		lp.QuizPassed = passed
		if passed {
			lp.SetProgress(100)
		}
	})
}

func lockedIDs(o progress.Outline) []string {
	var ids []string
	for _, ch := range o {
		for _, l := range ch.Lessons {
			if l.IsLocked {
				ids = append(ids, l.ID)
			}
		}
	}
	return ids
}

func TestDerive_EmptyProgress(t *testing.T) {
	c := defaultCatalog(t)
	o := progress.Derive(c, progress.UserProgress{})

	if len(o) != len(c.Chapters) {
		t.Fatalf("len(outline) = %d, want %d", len(o), len(c.Chapters))
	}
	if o[0].Lessons[0].IsLocked {
		t.Error("c1l1 should be unlocked")
	}
	if o[0].Status != progress.StatusNotStarted {
		t.Errorf("chapter1 status = %q, want not_started", o[0].Status)
	}
	for ci, ch := range o {
		if ch.Status != progress.StatusNotStarted {
			t.Errorf("%s status = %q, want not_started", ch.ID, ch.Status)
		}
		for li, l := range ch.Lessons {
			if ci == 0 && li == 0 {
				continue
			}
			if !l.IsLocked {
				t.Errorf("%s should be locked", l.ID)
			}
			if l.Progress != 0 {
				t.Errorf("%s progress = %d, want 0", l.ID, l.Progress)
			}
		}
	}
}

func TestDerive_NilProgress(t *testing.T) {
	c := defaultCatalog(t)
	o := progress.Derive(c, nil)
	if o[0].Lessons[0].IsLocked {
		t.Error("c1l1 should be unlocked for nil progress")
	}
}

func TestDerive_PassedQuizUnlocksNext(t *testing.T) {
	c := defaultCatalog(t)
	p := record(c, progress.UserProgress{}, "chapter1", "c1l1", 8, true)

	o := progress.Derive(c, p)
	if o[0].Lessons[1].IsLocked {
		t.Error("c1l2 should be unlocked after passing c1l1")
	}
	if o[0].Lessons[2].IsLocked == false {
		t.Error("c1l3 should stay locked")
	}
	if o[0].Lessons[0].Progress != 100 {
		t.Errorf("c1l1 progress = %d, want 100", o[0].Lessons[0].Progress)
	}
	if o[0].Status != progress.StatusInProgress {
		t.Errorf("chapter1 status = %q, want in_progress", o[0].Status)
	}
	if !o[1].Lessons[0].IsLocked {
		t.Error("chapter2 should stay locked until chapter1 is completed")
	}
}

func TestDerive_FailedQuizKeepsNextLocked(t *testing.T) {
	c := defaultCatalog(t)
	p := progress.UserProgress{}.Update(c, "chapter1", "c1l1", now, func(lp *progress.LessonProgress) {
		lp.SetProgress(25)
	})
	p = record(c, p, "chapter1", "c1l1", 5, false)

	o := progress.Derive(c, p)
	if !o[0].Lessons[1].IsLocked {
		t.Error("c1l2 should stay locked after a failed quiz")
	}
	if o[0].Lessons[0].Progress != 25 {
		t.Errorf("c1l1 progress = %d, want unchanged 25", o[0].Lessons[0].Progress)
	}
}

func TestDerive_ChapterCompletedUnlocksNextChapter(t *testing.T) {
	c := defaultCatalog(t)
	p := progress.UserProgress{}
	for _, l := range c.Chapters[0].Lessons {
		p = record(c, p, "chapter1", l.ID, 9, true)
	}

	o := progress.Derive(c, p)
	if o[0].Status != progress.StatusCompleted {
		t.Errorf("chapter1 status = %q, want completed", o[0].Status)
	}
	if p["chapter1"].Status != progress.StatusCompleted {
		t.Errorf("stored chapter1 status = %q, want completed", p["chapter1"].Status)
	}
	if o[1].Lessons[0].IsLocked {
		t.Error("c2l1 should unlock once chapter1 is completed")
	}
	if !o[1].Lessons[1].IsLocked {
		t.Error("c2l2 should stay locked")
	}
	if !o[2].Lessons[0].IsLocked {
		t.Error("c3l1 should stay locked")
	}
}

func TestDerive_EmptyChapter(t *testing.T) {
	c := &curriculum.Catalog{Chapters: []curriculum.Chapter{
		{ID: "a", Title: "A", Lessons: []curriculum.Lesson{{ID: "a1", Title: "A1"}}},
		{ID: "empty", Title: "Empty"},
		{ID: "b", Title: "B", Lessons: []curriculum.Lesson{{ID: "b1", Title: "B1"}}},
	}}

	o := progress.Derive(c, progress.UserProgress{})
	if o[1].Status != progress.StatusNotStarted {
		t.Errorf("empty chapter status = %q, want not_started", o[1].Status)
	}
	if !o[2].Lessons[0].IsLocked {
		t.Error("b1 should be locked while a is incomplete")
	}

	p := record(c, progress.UserProgress{}, "a", "a1", 10, true)
	o = progress.Derive(c, p)
	if o[2].Lessons[0].IsLocked {
		t.Error("an empty chapter should not block the next chapter")
	}
	if got := progress.UnlockNext(o, "empty", "x"); !reflect.DeepEqual(got, o) {
		t.Error("UnlockNext on an empty chapter should be a no-op")
	}
}

func TestChapterStatusFor_IgnoresRecordsOutsideChapter(t *testing.T) {
	ch := curriculum.Chapter{ID: "chapter1", Title: "Chương 1", Lessons: []curriculum.Lesson{
		{ID: "c1l1", Title: "Bài 1"},
		{ID: "c1l2", Title: "Bài 2"},
	}}

	tests := []struct {
		name    string
		lessons map[string]progress.LessonProgress
		want    progress.ChapterStatus
	}{
		{"no records", nil, progress.StatusNotStarted},
		{"only removed lesson", map[string]progress.LessonProgress{"c1l9": {LessonID: "c1l9", Progress: 100, QuizPassed: true}}, progress.StatusNotStarted},
		{"one current lesson", map[string]progress.LessonProgress{"c1l1": {LessonID: "c1l1", Progress: 25}}, progress.StatusInProgress},
		{"all passed plus removed", map[string]progress.LessonProgress{
			"c1l1": {LessonID: "c1l1", QuizPassed: true},
			"c1l2": {LessonID: "c1l2", QuizPassed: true},
			"c1l9": {LessonID: "c1l9"},
		}, progress.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := progress.ChapterProgress{ChapterID: ch.ID, Lessons: tt.lessons}
			if got := progress.ChapterStatusFor(ch, cp); got != tt.want {
				t.Errorf("ChapterStatusFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDerive_Deterministic(t *testing.T) {
	c := defaultCatalog(t)
	p := record(c, progress.UserProgress{}, "chapter1", "c1l1", 7, true)
	p = record(c, p, "chapter1", "c1l2", 3, false)

	a := progress.Derive(c, p)
	b := progress.Derive(c, p.Clone())
	if !reflect.DeepEqual(a, b) {
		t.Error("Derive should return equal outlines for equal inputs")
	}
}

func TestDerive_RandomProgressProperties(t *testing.T) {
	c := defaultCatalog(t)
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		p := progress.UserProgress{}
		for _, ch := range c.Chapters {
			for _, l := range ch.Lessons {
				switch rng.Intn(4) {
				case 0:
					p = record(c, p, ch.ID, l.ID, 10, true)
				case 1:
					p = record(c, p, ch.ID, l.ID, 2, false)
				}
			}
		}

		var cached progress.Outline
		if rng.Intn(2) == 0 {
			cached = progress.Derive(c, progress.UserProgress{})
			cached[0].Lessons[3].IsLocked = false
		}

		o := progress.Project(c, p, cached)
		if o[0].Lessons[0].IsLocked {
			t.Fatalf("iter %d: first lesson locked", iter)
		}
		for ci, ch := range o {
			for li := 1; li < len(ch.Lessons); li++ {
				if ch.Lessons[li].IsLocked {
					continue
				}
				prevPassed := p[ch.ID].Lessons[ch.Lessons[li-1].ID].QuizPassed
				wasUnlocked := cached != nil && !cached[ci].Lessons[li].IsLocked
				if !prevPassed && !wasUnlocked {
					t.Fatalf("iter %d: %s unlocked without a passed predecessor or prior unlock", iter, ch.Lessons[li].ID)
				}
			}
		}
	}
}

func TestReconcile_NeverRelocks(t *testing.T) {
	c := defaultCatalog(t)
	p := record(c, progress.UserProgress{}, "chapter1", "c1l1", 9, true)
	cached := progress.Derive(c, p)

	// Retake clears the pass; derivation alone would lock c1l2 again.
	retaken := p.Update(c, "chapter1", "c1l1", now, func(lp *progress.LessonProgress) {
		lp.QuizScore = nil
		lp.QuizPassed = false
	})
	if !progress.Derive(c, retaken)[0].Lessons[1].IsLocked {
		t.Fatal("precondition: fresh derivation should lock c1l2")
	}

	o := progress.Reconcile(progress.Derive(c, retaken), cached)
	if o[0].Lessons[1].IsLocked {
		t.Error("c1l2 was unlocked before and must stay unlocked")
	}
}

func TestReconcile_AddsNewUnlocks(t *testing.T) {
	c := defaultCatalog(t)
	cached := progress.Derive(c, progress.UserProgress{})
	p := record(c, progress.UserProgress{}, "chapter1", "c1l1", 9, true)

	o := progress.Project(c, p, cached)
	if o[0].Lessons[1].IsLocked {
		t.Error("newly satisfied unlock should be added")
	}
}

func TestReconcile_IgnoresStaleCacheEntries(t *testing.T) {
	c := defaultCatalog(t)
	cached := progress.Outline{{ID: "old", Lessons: []progress.LessonOutline{{ID: "gone"}}}}

	o := progress.Project(c, progress.UserProgress{}, cached)
	if got := len(lockedIDs(o)); got != 14 {
		t.Errorf("locked lessons = %d, want 14", got)
	}
}

func TestReconcile_TitlesComeFromCatalog(t *testing.T) {
	c := defaultCatalog(t)
	cached := progress.Derive(c, progress.UserProgress{})
	cached[0].Lessons[0].Title = "stale"

	o := progress.Project(c, progress.UserProgress{}, cached)
	if o[0].Lessons[0].Title != c.Chapters[0].Lessons[0].Title {
		t.Errorf("title = %q, want catalog title", o[0].Lessons[0].Title)
	}
}

func TestUnlockNext(t *testing.T) {
	c := defaultCatalog(t)
	o := progress.Derive(c, progress.UserProgress{})

	once := progress.UnlockNext(o, "chapter1", "c1l1")
	if once[0].Lessons[1].IsLocked {
		t.Error("c1l2 should be unlocked")
	}
	if !o[0].Lessons[1].IsLocked {
		t.Error("UnlockNext must not modify its input")
	}

	twice := progress.UnlockNext(once, "chapter1", "c1l1")
	if !reflect.DeepEqual(once, twice) {
		t.Error("UnlockNext should be idempotent")
	}
}

func TestUnlockNext_NoOps(t *testing.T) {
	c := defaultCatalog(t)
	o := progress.Derive(c, progress.UserProgress{})

	tests := []struct {
		name      string
		chapterID string
		lessonID  string
	}{
		{"last lesson", "chapter1", "c1l7"},
		{"unknown lesson", "chapter1", "nope"},
		{"unknown chapter", "nope", "c1l1"},
		{"lesson from another chapter", "chapter2", "c1l1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := progress.UnlockNext(o, tt.chapterID, tt.lessonID)
			if !reflect.DeepEqual(got, o) {
				t.Error("outline should be unchanged")
			}
		})
	}
}

func TestOutline_FindAndFirstUnlocked(t *testing.T) {
	c := defaultCatalog(t)
	o := progress.Derive(c, progress.UserProgress{})

	ch, l, ok := o.Find("chapter2", "c2l2")
	if !ok || ch.ID != "chapter2" || l.ID != "c2l2" {
		t.Errorf("Find() = %q/%q/%v", ch.ID, l.ID, ok)
	}
	if _, _, ok := o.Find("chapter2", "c1l1"); ok {
		t.Error("Find() should not cross chapters")
	}

	chID, lID, ok := o.FirstUnlocked()
	if !ok || chID != "chapter1" || lID != "c1l1" {
		t.Errorf("FirstUnlocked() = %q/%q/%v", chID, lID, ok)
	}

	if _, _, ok := (progress.Outline{}).FirstUnlocked(); ok {
		t.Error("empty outline has no unlocked lesson")
	}
}

func TestChapterStatus_Label(t *testing.T) {
	tests := []struct {
		status progress.ChapterStatus
		want   string
	}{
		{progress.StatusNotStarted, "Chưa học"},
		{progress.StatusInProgress, "Đang học"},
		{progress.StatusCompleted, "Đã hoàn thành"},
	}
	for _, tt := range tests {
		if got := tt.status.Label(); got != tt.want {
			t.Errorf("%q.Label() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
