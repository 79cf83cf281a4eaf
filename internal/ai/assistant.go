package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
)

const recentLogLimit = 5

// LogSummary is the trimmed view of a record the copilot sees
type LogSummary struct {
	Status string `json:"status"`
	Defect string `json:"defect"`
	Reason string `json:"reason"`
}

// ChatContext is the dashboard snapshot forwarded with each question
type ChatContext struct {
	Total       int
	Passed      int
	Rejected    int
	PassRate    string
	Technicians []string
	RecentLogs  []LogSummary
}

// Summarize converts newest-first records into copilot log lines
func Summarize(records []inspection.Record) []LogSummary {
	if len(records) > recentLogLimit {
		records = records[:recentLogLimit]
	}
	out := make([]LogSummary, 0, len(records))
	for _, r := range records {
		out = append(out, LogSummary{
			Status: string(r.Status),
			Defect: r.FirstDefect("None"),
			Reason: r.Reasoning,
		})
	}
	return out
}

// Assistant answers operational questions through the model
type Assistant struct {
	model   Model
	timeout time.Duration
}

// NewAssistant creates the chat copilot
func NewAssistant(model Model, timeout time.Duration) *Assistant {
	return &Assistant{model: model, timeout: timeout}
}

// Ask forwards the question with the dashboard context and returns free text
func (a *Assistant) Ask(ctx context.Context, question string, c ChatContext) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is empty")
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	answer, err := a.model.GenerateContent(ctx, BuildChatPrompt(question, c))
	if err != nil {
		log.Printf("❌ Chat error: %v", err)
		return "", fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	if strings.TrimSpace(answer) == "" {
		return FallbackAnswer, nil
	}
	return answer, nil
}

// AskManual asks how to clear a machine error code, attaching the manual
// extract. It returns the question that was asked alongside the answer.
func (a *Assistant) AskManual(ctx context.Context, errorCode, manual string, c ChatContext) (string, string, error) {
	errorCode = strings.TrimSpace(errorCode)
	if errorCode == "" {
		return "", "", fmt.Errorf("error code is empty")
	}
	question := BuildManualQuestion(errorCode)
	// the manual lookup is a standalone question; recent logs would only add noise
	c.RecentLogs = nil
	c.Technicians = nil
	answer, err := a.Ask(ctx, question+"\n\nReference Manual: "+manual, c)
	return question, answer, err
}
