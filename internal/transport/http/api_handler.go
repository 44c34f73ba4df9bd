package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
)

const defaultListLimit = 100

// APIHandler serves the read side (history, practice set, bookmarks,
// leaderboard, resume pointer) and the written-exam submission over plain
// JSON endpoints.
type APIHandler struct {
	service *app.QuizService
}

func NewAPIHandler(service *app.QuizService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts the API routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /api/users/{uid}/attempts", h.attempts)
	mux.HandleFunc("GET /api/users/{uid}/mistakes", h.mistakes)
	mux.HandleFunc("DELETE /api/users/{uid}/mistakes/{id}", h.deleteMistake)
	mux.HandleFunc("GET /api/users/{uid}/bookmarks", h.bookmarks)
	mux.HandleFunc("GET /api/users/{uid}/resume", h.resume)
	mux.HandleFunc("POST /api/written", h.submitWritten)
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) attempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.service.Attempts(r.Context(), r.PathValue("uid"), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *APIHandler) mistakes(w http.ResponseWriter, r *http.Request) {
	mistakes, err := h.service.Mistakes(r.Context(), r.PathValue("uid"), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mistakes)
}

func (h *APIHandler) deleteMistake(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMistake(r.Context(), r.PathValue("uid"), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) bookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := h.service.Bookmarks(r.Context(), r.PathValue("uid"), limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

func (h *APIHandler) resume(w http.ResponseWriter, r *http.Request) {
	ptr, ok, err := h.service.Resume(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ptr)
}

type writtenRequest struct {
	UID       string            `json:"uid"`
	QuizID    string            `json:"quizId"`
	Subject   string            `json:"subject"`
	Questions []domain.Question `json:"questions"`
	Answers   []string          `json:"answers"`
}

func (h *APIHandler) submitWritten(w http.ResponseWriter, r *http.Request) {
	var req writtenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UID == "" {
		http.Error(w, "missing uid", http.StatusBadRequest)
		return
	}
	sub, err := h.service.SubmitWritten(r.Context(), app.WrittenRequest{
		UID:       req.UID,
		QuizID:    req.QuizID,
		Subject:   req.Subject,
		Questions: req.Questions,
		Answers:   req.Answers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var subErr *domain.SubmissionError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrMissingAnswer):
		status = http.StatusBadRequest
	case errors.As(err, &subErr):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}
