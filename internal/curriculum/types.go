// Package curriculum holds the static chapter/lesson catalog the outline is derived from.
package curriculum

// Catalog is the ordered chapter/lesson hierarchy of a course.
type Catalog struct {
	Name     string    `yaml:"name" json:"name"`
	Chapters []Chapter `yaml:"chapters" json:"chapters" validate:"required,min=1,unique=ID,dive"`
}

// Chapter is an ordered group of lessons. Lesson order defines the prerequisite chain.
type Chapter struct {
	ID      string   `yaml:"id" json:"id" validate:"required"`
	Title   string   `yaml:"title" json:"title" validate:"required"`
	Lessons []Lesson `yaml:"lessons" json:"lessons" validate:"unique=ID,dive"`
}

// Lesson is a single catalog entry. IDs are unique within their chapter.
type Lesson struct {
	ID    string `yaml:"id" json:"id" validate:"required"`
	Title string `yaml:"title" json:"title" validate:"required"`
}

// Chapter returns the chapter with the given ID.
func (c *Catalog) Chapter(id string) (Chapter, bool) {
	for _, ch := range c.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}

// Lesson looks up a lesson by its (chapterID, lessonID) address.
func (c *Catalog) Lesson(chapterID, lessonID string) (Chapter, Lesson, bool) {
	ch, ok := c.Chapter(chapterID)
	if !ok {
		return Chapter{}, Lesson{}, false
	}
	if i := ch.LessonIndex(lessonID); i >= 0 {
		return ch, ch.Lessons[i], true
	}
	return Chapter{}, Lesson{}, false
}

// LessonIndex returns the position of a lesson in the chapter, or -1.
func (ch Chapter) LessonIndex(lessonID string) int {
	for i, l := range ch.Lessons {
		if l.ID == lessonID {
			return i
		}
	}
	return -1
}
