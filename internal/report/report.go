// Package report exports learner progress as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-toan6/internal/progress"
)

// Sheet names of the exported workbook.
const (
	SheetChapters = "Chương"
	SheetLessons  = "Bài học"
)

const timeLayout = "2006-01-02 15:04"

var (
	chapterHeader = []any{"Mã chương", "Chương", "Trạng thái", "Bài đã đạt", "Tổng số bài"}
	lessonHeader  = []any{"Chương", "Mã bài", "Bài học", "Tiến độ (%)", "Điểm kiểm tra", "Đạt", "Đã mở khóa", "Chủ đề cần ôn", "Truy cập gần nhất"}
)

// Write renders the outline and progress as an xlsx workbook with one sheet per level.
func Write(w io.Writer, outline progress.Outline, p progress.UserProgress) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetChapters); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetLessons); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	chapterRows := make([][]any, 0, len(outline))
	var lessonRows [][]any
	for _, ch := range outline {
		passed := 0
		for _, l := range ch.Lessons {
			lp, _ := p.Lesson(ch.ID, l.ID)
			if lp.QuizPassed {
				passed++
			}
			lessonRows = append(lessonRows, lessonRow(ch, l, lp))
		}
		chapterRows = append(chapterRows, []any{ch.ID, ch.Title, ch.Status.Label(), passed, len(ch.Lessons)})
	}

	if err := writeSheet(f, SheetChapters, chapterHeader, chapterRows, bold); err != nil {
		return err
	}
	if err := writeSheet(f, SheetLessons, lessonHeader, lessonRows, bold); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetChapters, "B", "B", 45)
	_ = f.SetColWidth(SheetLessons, "C", "C", 45)
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func lessonRow(ch progress.ChapterOutline, l progress.LessonOutline, lp progress.LessonProgress) []any {
	score := ""
	if lp.QuizScore != nil {
		score = fmt.Sprint(*lp.QuizScore)
	}
	accessed := ""
	if !lp.LastAccessed.IsZero() {
		accessed = lp.LastAccessed.Format(timeLayout)
	}
	return []any{
		ch.Title,
		l.ID,
		l.Title,
		l.Progress,
		score,
		yesNo(lp.QuizPassed),
		yesNo(!l.IsLocked),
		strings.Join(lp.WeakAreas, ", "),
		accessed,
	}
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Có"
	}
	return "Không"
}
