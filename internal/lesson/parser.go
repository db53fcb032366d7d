package lesson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// section identifies one of the five lesson sections.
type section int

const (
	sectionNone section = iota
	sectionTheory
	sectionExamples
	sectionPractice
	sectionQuiz
	sectionNextSteps
)

const exampleDelimiter = "--- Dạng bài mới ---"

var (
	headingOrdinal = regexp.MustCompile(`^\(([1-5])\)`)

	exampleLabel = regexp.MustCompile(`^\**\s*(Tên dạng bài|Ví dụ mẫu|Lời giải chi tiết|Sai lầm thường gặp)\s*\**\s*:\s*\**\s*(.*)$`)
	practiceLine = regexp.MustCompile(`^[-*+]\s*\*\*\s*Bài\s*\d+\s*:?\s*\*\*\s*:?\s*(.*)$`)
	answerSplit  = regexp.MustCompile(`\|\s*\**Đáp án\**\s*:`)
	quizMarker   = regexp.MustCompile(`^[-*+]\s*\*\*\s*Câu\s*\d+\s*:?\s*\*\*\s*:?\s*(.*)$`)
	optionLine   = regexp.MustCompile(`^([A-D])\.\s*(.*)$`)
	answerLine   = regexp.MustCompile(`^\**Đáp án\**\s*:\s*\**\s*(.*?)\s*\**$`)
	choiceKey    = regexp.MustCompile(`^\(?([A-D])(?:[.):]|\s|$)`)
)

// knownKeys are the top-level JSON keys of Content.
var knownKeys = []string{"theory", "examples", "practiceProblems", "quiz", "nextSteps"}

// ParseLessonResponse converts raw generator output into Content. It never fails: input that is
// neither lesson JSON nor recognizable markdown yields a Content made of placeholders.
func ParseLessonResponse(raw string) Content {
	if c, ok := ParseStrict(raw); ok {
		return c
	}
	slog.Debug("lesson response is not JSON, using markdown parser", "bytes", len(raw))
	return ParseMarkdown(raw)
}

// ParseStrict decodes raw as a JSON lesson document, optionally wrapped in a code fence.
// It reports false when raw is not a JSON object or has none of the lesson keys.
func ParseStrict(raw string) (Content, bool) {
	body := stripFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(body, "{") {
		return Content{}, false
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return Content{}, false
	}
	found := false
	for _, k := range knownKeys {
		if v, ok := keys[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			found = true
			break
		}
	}
	if !found {
		return Content{}, false
	}

	var c Content
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return Content{}, false
	}
	c.complete()
	return c, true
}

// ParseMarkdown extracts Content from the five-section markdown layout requested by the lesson
// prompt. Text before the first recognized heading is discarded.
func ParseMarkdown(raw string) Content {
	bodies := splitSections(normalize(raw))

	var c Content
	c.Theory.Text = strings.TrimSpace(bodies[sectionTheory])
	c.Examples = parseExamples(bodies[sectionExamples])
	c.PracticeProblems = parsePractice(bodies[sectionPractice])
	c.Quiz = parseQuiz(bodies[sectionQuiz])
	c.NextSteps = strings.TrimSpace(bodies[sectionNextSteps])
	c.complete()
	return c
}

func normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	s = s[nl+1:]
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// sectionKeywords are title prefixes recognized when the response carries no "(N)" ordinals.
var sectionKeywords = []struct {
	prefix string
	sec    section
}{
	{"lý thuyết", sectionTheory},
	{"ví dụ", sectionExamples},
	{"bài tập", sectionPractice},
	{"bài kiểm tra", sectionQuiz},
	{"kiểm tra", sectionQuiz},
	{"gợi ý", sectionNextSteps},
	{"lộ trình", sectionNextSteps},
}

// splitSections groups lines under the recognized heading that precedes them. When any heading
// carries a "(N)" ordinal only ordinal headings split sections. Otherwise a keyword heading starts
// a section that comes after the current one. Every other heading stays in the section body.
func splitSections(text string) map[section]string {
	lines := strings.Split(text, "\n")
	ordinals := false
	for _, line := range lines {
		if title, ok := headingTitle(line); ok && headingOrdinal.MatchString(title) {
			ordinals = true
			break
		}
	}

	bodies := make(map[section]string)
	current := sectionNone
	var buf strings.Builder

	flush := func() {
		if current != sectionNone {
			bodies[current] += buf.String()
		}
		buf.Reset()
	}

	for _, line := range lines {
		if s := classifyHeading(line, ordinals); s != sectionNone && (ordinals || s > current) {
			flush()
			current = s
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()
	return bodies
}

// headingTitle returns the title of a ## or ### heading.
func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
	if level < 2 || level > 3 {
		return "", false
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(trimmed[level:]), "*")), true
}

// classifyHeading recognizes a section heading by its "(N)" ordinal, or by a keyword at the start
// of its title when ordinals is false.
func classifyHeading(line string, ordinals bool) section {
	title, ok := headingTitle(line)
	if !ok {
		return sectionNone
	}

	if m := headingOrdinal.FindStringSubmatch(title); m != nil {
		n, _ := strconv.Atoi(m[1])
		return section(n)
	}
	if ordinals {
		return sectionNone
	}

	lower := strings.ToLower(title)
	for _, k := range sectionKeywords {
		if strings.HasPrefix(lower, k.prefix) {
			return k.sec
		}
	}
	return sectionNone
}

func stripBullet(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

func parseExamples(body string) []Example {
	var out []Example
	for _, block := range strings.Split(body, exampleDelimiter) {
		fields := make(map[string]*strings.Builder)
		var current *strings.Builder

		for _, line := range strings.Split(block, "\n") {
			if m := exampleLabel.FindStringSubmatch(stripBullet(line)); m != nil {
				current = &strings.Builder{}
				current.WriteString(m[2])
				fields[m[1]] = current
				continue
			}
			if current != nil {
				current.WriteByte('\n')
				current.WriteString(strings.TrimRight(line, " \t"))
			}
		}
		if len(fields) == 0 {
			continue
		}

		value := func(label string) string {
			b, ok := fields[label]
			if !ok {
				return MissingField
			}
			v := strings.TrimSpace(b.String())
			if v == "" {
				return MissingField
			}
			return v
		}
		out = append(out, Example{
			Title:          value("Tên dạng bài"),
			Problem:        value("Ví dụ mẫu"),
			Solution:       value("Lời giải chi tiết"),
			CommonMistakes: value("Sai lầm thường gặp"),
		})
	}
	return out
}

func parsePractice(body string) []PracticeProblem {
	var out []PracticeProblem
	for _, line := range strings.Split(body, "\n") {
		m := practiceLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		parts := answerSplit.Split(m[1], 2)
		p := PracticeProblem{Problem: strings.TrimSpace(parts[0]), Answer: DefaultAnswer}
		if len(parts) == 2 {
			if a := strings.TrimSpace(parts[1]); a != "" {
				p.Answer = a
			}
		}
		out = append(out, p)
	}
	return out
}

func parseQuiz(body string) []QuizQuestion {
	var out []QuizQuestion

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := quizMarker.FindStringSubmatch(trimmed); m != nil {
			out = append(out, QuizQuestion{Question: strings.TrimSpace(m[1])})
			continue
		}
		if len(out) == 0 || trimmed == "" {
			continue
		}

		q := &out[len(out)-1]
		item := stripBullet(trimmed)
		if m := optionLine.FindStringSubmatch(item); m != nil {
			q.Options = append(q.Options, QuizOption{Key: m[1], Text: strings.TrimSpace(m[2])})
		} else if m := answerLine.FindStringSubmatch(item); m != nil {
			q.CorrectAnswer = m[1]
		} else if len(q.Options) == 0 && q.CorrectAnswer == "" {
			if q.Question != "" {
				q.Question += "\n"
			}
			q.Question += item
		}
	}

	for i := range out {
		q := &out[i]
		q.ID = quizID(i)
		if q.Question == "" {
			q.Question = fmt.Sprintf("Câu hỏi %d", i+1)
		}
		q.Type = ShortAnswer
		if len(q.Options) > 0 {
			q.Type = MultipleChoice
			if m := choiceKey.FindStringSubmatch(q.CorrectAnswer); m != nil {
				q.CorrectAnswer = m[1]
			}
		}
	}
	return out
}

func quizID(i int) string {
	return "quiz-q-" + strconv.Itoa(i+1)
}
