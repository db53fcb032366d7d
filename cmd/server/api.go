package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-toan6/internal/lesson"
	"github.com/p-n-ai/pai-toan6/internal/report"
	"github.com/p-n-ai/pai-toan6/internal/study"
)

const maxBodyBytes = 1 << 20

// api exposes the study controller over local JSON endpoints.
type api struct {
	ctrl   *study.Controller
	checks map[string]func(context.Context) error
}

// newMux creates the HTTP router with health checks, the study API and the outline feed.
func newMux(a *api, hub *outlineHub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)

	mux.HandleFunc("GET /api/outline", a.handleOutline)
	mux.HandleFunc("POST /api/chapters/{chapterID}/lessons/{lessonID}/select", a.handleSelect)
	mux.HandleFunc("PUT /api/chapters/{chapterID}/lessons/{lessonID}/answers/{questionID}", a.handleDraftAnswer)
	mux.HandleFunc("POST /api/chapters/{chapterID}/lessons/{lessonID}/quiz", a.handleSubmitQuiz)
	mux.HandleFunc("POST /api/chapters/{chapterID}/lessons/{lessonID}/retake", a.handleRetake)
	mux.HandleFunc("POST /api/chapters/{chapterID}/lessons/{lessonID}/practice/{problem}", a.handlePractice)
	mux.HandleFunc("GET /api/quick-review", a.handleQuickReview)
	mux.HandleFunc("POST /api/quick-review/grade", a.handleGradeQuickReview)
	mux.HandleFunc("GET /api/report.xlsx", a.handleReport)
	mux.Handle("GET /ws/outline", hub.handler(a.ctrl.Outline))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for name, check := range a.checks {
		if err := check(r.Context()); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "check": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *api) handleOutline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"outline":   a.ctrl.Outline(),
		"passScore": a.ctrl.PassScore(),
	})
}

func (a *api) handleSelect(w http.ResponseWriter, r *http.Request) {
	view, err := a.ctrl.SelectLesson(r.Context(), r.PathValue("chapterID"), r.PathValue("lessonID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if view == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "lesson not found"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type draftRequest struct {
	Answer string `json:"answer"`
}

func (a *api) handleDraftAnswer(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	drafts, err := a.ctrl.SaveDraftAnswer(r.Context(), r.PathValue("chapterID"), r.PathValue("lessonID"), r.PathValue("questionID"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	if drafts == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "lesson not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draftAnswers": drafts})
}

type answersRequest struct {
	Answers map[string]string `json:"answers"`
}

func (a *api) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := a.ctrl.SubmitQuiz(r.Context(), r.PathValue("chapterID"), r.PathValue("lessonID"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "lesson not found"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleRetake(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.RetakeQuiz(r.Context(), r.PathValue("chapterID"), r.PathValue("lessonID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handlePractice(w http.ResponseWriter, r *http.Request) {
	problem, err := strconv.Atoi(r.PathValue("problem"))
	if err != nil || problem < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid practice problem"})
		return
	}
	if err := a.ctrl.RecordPractice(r.Context(), r.PathValue("chapterID"), r.PathValue("lessonID"), problem); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reviewQuestion is a quick-review question without its answer.
type reviewQuestion struct {
	ID       string              `json:"id"`
	Question string              `json:"question"`
	Options  []lesson.QuizOption `json:"options"`
	Topic    string              `json:"topic"`
}

func (a *api) handleQuickReview(w http.ResponseWriter, r *http.Request) {
	questions, err := a.ctrl.QuickReview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]reviewQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, reviewQuestion{ID: q.ID, Question: q.Question, Options: q.Options, Topic: q.Topic})
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": out})
}

func (a *api) handleGradeQuickReview(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := a.ctrl.GradeQuickReview(r.Context(), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="tien-do-toan6.xlsx"`)
	if err := report.Write(w, a.ctrl.Outline(), a.ctrl.Progress()); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

// writeError maps controller and generation errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var genErr *lesson.GenerationError
	switch {
	case errors.As(err, &genErr):
		slog.Warn("content generation failed", "task", genErr.Task, "status", genErr.StatusCode, "error", genErr.Err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: genErr.Message, Retry: true})
	case errors.Is(err, study.ErrLessonLocked):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, study.ErrSuperseded),
		errors.Is(err, study.ErrContentNotLoaded),
		errors.Is(err, study.ErrNoQuickReview):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
