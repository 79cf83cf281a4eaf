package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/xelth-com/spectraq/internal/ai"
)

// ChatRequest is a copilot question
type ChatRequest struct {
	Question string `json:"question"`
}

// ManualRequest asks how to fix an equipment error code
type ManualRequest struct {
	ErrorCode string `json:"errorCode"`
}

// ChatResponse mirrors the dashboard's chat bubble
type ChatResponse struct {
	Success  bool   `json:"success"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer"`
}

// chatContext snapshots the history for the copilot prompt
func (r *Router) chatContext() ai.ChatContext {
	m := r.Store.Metrics(0)
	return ai.ChatContext{
		Total:       m.Total,
		Passed:      m.Passed,
		Rejected:    m.Rejected,
		PassRate:    m.PassRate,
		Technicians: r.Plant.TechnicianNames(),
		RecentLogs:  ai.Summarize(r.Store.Recent(5)),
	}
}

func (r *Router) chat(w http.ResponseWriter, req *http.Request) {
	var body ChatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		respondError(w, http.StatusBadRequest, "Empty question")
		return
	}

	answer, err := r.Assistant.Ask(req.Context(), body.Question, r.chatContext())
	if err != nil {
		log.Printf("❌ Chat failed: %v", err)
		respondJSON(w, http.StatusBadGateway, ChatResponse{Answer: ai.FailureChat})
		return
	}

	respondJSON(w, http.StatusOK, ChatResponse{Success: true, Answer: answer})
}

// chatManual attaches the manual extract for an error code to the question
func (r *Router) chatManual(w http.ResponseWriter, req *http.Request) {
	var body ManualRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(body.ErrorCode))
	if code == "" {
		respondError(w, http.StatusBadRequest, "Missing error code")
		return
	}
	manual, ok := r.Plant.Manual(code)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown error code")
		return
	}

	question, answer, err := r.Assistant.AskManual(req.Context(), code, manual, r.chatContext())
	if err != nil {
		log.Printf("❌ Manual lookup for %s failed: %v", code, err)
		respondJSON(w, http.StatusBadGateway, ChatResponse{Question: question, Answer: ai.FailureChat})
		return
	}

	respondJSON(w, http.StatusOK, ChatResponse{Success: true, Question: question, Answer: answer})
}
