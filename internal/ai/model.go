package ai

import (
	"context"
	"errors"
	"time"
)

// Model is an external text/image generation backend
type Model interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

var (
	// ErrNoImage is returned before any external call when no frame was supplied
	ErrNoImage = errors.New("no image uploaded")
	// ErrModelCall wraps network and provider failures
	ErrModelCall = errors.New("model call failed")
	// ErrInvalidModelOutput is returned when the reply is not the expected JSON shape
	ErrInvalidModelOutput = errors.New("invalid model output")
)

// User-facing failure messages
const (
	FailureClassify = "Failed to analyze image"
	FailureChat     = "เกิดข้อผิดพลาดในการเชื่อมต่อกับ AI"
	FallbackAnswer  = "ขออภัย ระบบไม่สามารถประมวลผลได้ในขณะนี้"
)

// CallRecord describes one model round trip for auditing
type CallRecord struct {
	Provider      string
	Operation     string
	PromptChars   int
	ImageBytes    int
	MimeType      string
	ResponseChars int
	Duration      time.Duration
	Err           error
}

// CallRecorder persists call records. Implementations must not block for long.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord)
}

// recordedModel decorates a Model with call auditing
type recordedModel struct {
	Model
	provider string
	recorder CallRecorder
}

// WithRecorder wraps m so every call is reported to recorder. A nil recorder returns m.
func WithRecorder(m Model, provider string, recorder CallRecorder) Model {
	if recorder == nil {
		return m
	}
	return &recordedModel{Model: m, provider: provider, recorder: recorder}
}

func (r *recordedModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := r.Model.GenerateContent(ctx, prompt)
	r.recorder.RecordCall(ctx, CallRecord{
		Provider:      r.provider,
		Operation:     "generate",
		PromptChars:   len(prompt),
		ResponseChars: len(text),
		Duration:      time.Since(start),
		Err:           err,
	})
	return text, err
}

func (r *recordedModel) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	start := time.Now()
	text, err := r.Model.GenerateWithImage(ctx, prompt, image, mimeType)
	r.recorder.RecordCall(ctx, CallRecord{
		Provider:      r.provider,
		Operation:     "generate_with_image",
		PromptChars:   len(prompt),
		ImageBytes:    len(image),
		MimeType:      mimeType,
		ResponseChars: len(text),
		Duration:      time.Since(start),
		Err:           err,
	})
	return text, err
}
