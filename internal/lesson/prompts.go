package lesson

import (
	"fmt"
	"strings"
)

// Sampling settings per request kind.
const (
	lessonTemperature      = 0.7
	lessonMaxTokens        = 2048
	quickReviewTemperature = 0.8
	feedbackTemperature    = 0.7
	feedbackMaxTokens      = 500

	// QuickReviewSize is the number of questions requested per batch.
	QuickReviewSize = 5

	// NoAnswer stands in for a question the student left blank.
	NoAnswer = "Không trả lời"

	practiceCount = 10
	quizCount     = 10
)

// LessonPrompt builds the request for one lesson in the five-section markdown layout that
// ParseMarkdown understands.
func LessonPrompt(chapterTitle, lessonTitle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bạn là một giáo viên Toán lớp 6, có kiến thức sâu rộng về chương trình 'Kết nối tri thức'. "+
		"Vui lòng tạo nội dung chi tiết cho bài học %q thuộc %q với cấu trúc sau, sử dụng ngôn ngữ rõ ràng, "+
		"dễ hiểu và thân thiện với học sinh lớp 6. Trả lời bằng tiếng Việt.\n\n", lessonTitle, chapterTitle)
	b.WriteString("Sử dụng định dạng Markdown cho tiêu đề và định dạng nội dung, ví dụ: **Lý thuyết cần nhớ**, *Ví dụ mẫu*.\n\n")

	b.WriteString("### (1) Lý thuyết cần nhớ\n")
	b.WriteString("Viết ngắn gọn, dễ hiểu. Highlight các công thức, tính chất quan trọng bằng in đậm.\n")
	b.WriteString("Mô tả 1-2 hình minh hoạ (ví dụ: \"Hình ảnh một nhóm học sinh đang thảo luận bài tập\", " +
		"\"Sơ đồ venn biểu diễn các tập hợp số\").\n\n")

	b.WriteString("### (2) Ví dụ minh họa cho từng dạng bài\n")
	b.WriteString("Cung cấp 2 dạng bài tiêu biểu cho chủ đề này. Với mỗi dạng:\n")
	for i, name := range []string{"[Tên dạng]", "[Tên dạng thứ hai]"} {
		if i > 0 {
			b.WriteString(exampleDelimiter + "\n")
		}
		fmt.Fprintf(&b, "- **Tên dạng bài:** %s\n", name)
		b.WriteString("- **Ví dụ mẫu:** [Đề bài]\n")
		b.WriteString("- **Lời giải chi tiết:** [Các bước giải từng bước, rõ ràng]\n")
		b.WriteString("- **Sai lầm thường gặp:** [Mô tả chi tiết sai lầm và cách khắc phục]\n")
	}

	b.WriteString("\n### (3) Bài tập tự luyện\n")
	fmt.Fprintf(&b, "Tạo %d bài tập tự luyện từ cơ bản đến nâng cao. Chỉ cung cấp đề bài và đáp án cuối cùng.\n", practiceCount)
	for i := 1; i <= practiceCount; i++ {
		fmt.Fprintf(&b, "- **Bài %d:** [Đề bài] | Đáp án: [Đáp án]\n", i)
	}

	b.WriteString("\n### (4) Bài kiểm tra\n")
	fmt.Fprintf(&b, "Tạo %d câu hỏi trắc nghiệm liên quan đến chủ đề, mỗi câu có 4 phương án A, B, C, D.\n", quizCount)
	for i := 1; i <= quizCount; i++ {
		fmt.Fprintf(&b, "- **Câu %d:** [Đề bài]\n", i)
		for _, key := range []string{"A", "B", "C", "D"} {
			fmt.Fprintf(&b, "    %s. [Phương án %s]\n", key, key)
		}
		b.WriteString("    Đáp án: [Đáp án đúng (A, B, C hoặc D)]\n")
	}

	b.WriteString("\n### (5) Gợi ý lộ trình tiếp theo\n")
	b.WriteString("Nhắc học sinh nên học bài nào tiếp (Ví dụ: \"Bạn nên học Bài X tiếp theo.\"). " +
		"Gợi ý dạng bài còn yếu (nếu có thông tin). Gợi ý sửa lỗi sai (nếu có thông tin).")
	return b.String()
}

// QuickReviewPrompt asks for a batch of random grade 6 questions with topics.
func QuickReviewPrompt() string {
	return fmt.Sprintf("Tạo %d câu hỏi trắc nghiệm ngẫu nhiên về Toán lớp 6 (chương trình Kết nối tri thức). "+
		"Mỗi câu có 4 phương án A, B, C, D và đáp án đúng. Bao gồm chủ đề của câu hỏi.\n\n"+
		"Trả về một mảng JSON. Mỗi phần tử có dạng "+
		`{"id": "qr_q_1", "question": "...", "options": [{"key": "A", "text": "..."}, {"key": "B", "text": "..."}, `+
		`{"key": "C", "text": "..."}, {"key": "D", "text": "..."}], "correctAnswer": "A", "topic": "Số tự nhiên"}.`,
		QuickReviewSize)
}

// FeedbackPrompt describes a graded quiz so the model can suggest a study path.
func FeedbackPrompt(questions []QuizQuestion, answers map[string]string, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Một học sinh vừa hoàn thành bài kiểm tra với %d câu hỏi. Học sinh đạt %d/%d điểm.\n\n",
		len(questions), score, len(questions))
	b.WriteString("Dựa trên kết quả này, hãy đưa ra một gợi ý lộ trình học tập tiếp theo. Cụ thể:\n")
	b.WriteString("- Nhận xét chung về điểm số.\n")
	b.WriteString("- Gợi ý các dạng bài hoặc chủ đề có thể còn yếu, dựa trên các câu hỏi và đáp án nếu có thể suy luận " +
		"(giả định các câu hỏi thuộc các dạng/chủ đề khác nhau).\n")
	b.WriteString("- Khuyến khích và động viên học sinh.\n\n")
	b.WriteString("Đây là các câu hỏi và đáp án của học sinh (đáp án đúng được chỉ định):\n")

	for i, q := range questions {
		answer := answers[q.ID]
		if answer == "" {
			answer = NoAnswer
		}
		result := "Sai"
		if IsCorrect(q, answers) {
			result = "Đúng"
		}

		fmt.Fprintf(&b, "\nCâu %d: %q", i+1, q.Question)
		if len(q.Options) > 0 {
			opts := make([]string, len(q.Options))
			for j, o := range q.Options {
				opts[j] = o.Key + ". " + o.Text
			}
			fmt.Fprintf(&b, "\n   Các lựa chọn: %s", strings.Join(opts, ", "))
		}
		fmt.Fprintf(&b, "\n   Đáp án của học sinh: %s", answer)
		fmt.Fprintf(&b, "\n   Đáp án đúng: %s", q.CorrectAnswer)
		fmt.Fprintf(&b, "\n   Kết quả: %s\n", result)
	}
	return b.String()
}

// IsCorrect reports an exact, case-sensitive match between the stored and submitted answers.
// A blank answer is never correct.
func IsCorrect(q QuizQuestion, answers map[string]string) bool {
	answer := answers[q.ID]
	return answer != "" && answer == q.CorrectAnswer
}

// Score counts the correctly answered questions.
func Score(questions []QuizQuestion, answers map[string]string) int {
	n := 0
	for _, q := range questions {
		if IsCorrect(q, answers) {
			n++
		}
	}
	return n
}
