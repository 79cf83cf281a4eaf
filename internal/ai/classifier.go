package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/utils"
)

// ClassifyRequest is one frame to inspect
type ClassifyRequest struct {
	Image          []byte
	MimeType       string
	Target         string
	InspectionType inspection.Type
}

// Classifier turns an image into a validated verdict
type Classifier struct {
	model   Model
	timeout time.Duration
	now     func() time.Time
}

// NewClassifier creates a classifier. timeout <= 0 disables the per-call deadline.
func NewClassifier(model Model, timeout time.Duration) *Classifier {
	return &Classifier{model: model, timeout: timeout, now: time.Now}
}

// Classify sends the frame to the model and parses its verdict. It never retries.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) (inspection.Verdict, error) {
	if len(req.Image) == 0 {
		return inspection.Verdict{}, ErrNoImage
	}
	mimeType := req.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(req.Image)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := BuildInspectionPrompt(req.InspectionType, req.Target, c.now())
	text, err := c.model.GenerateWithImage(ctx, prompt, req.Image, mimeType)
	if err != nil {
		log.Printf("❌ Classifier error: %v", err)
		return inspection.Verdict{}, fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	v, err := ParseVerdict(text)
	if err != nil {
		log.Printf("❌ Classifier returned unusable output: %v", err)
		return inspection.Verdict{}, err
	}
	return v, nil
}

// ParseVerdict decodes and validates the model's JSON reply
func ParseVerdict(text string) (inspection.Verdict, error) {
	var v inspection.Verdict
	if err := json.Unmarshal([]byte(utils.SanitizeJSON(text)), &v); err != nil {
		return inspection.Verdict{}, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}

	v.Status = inspection.Status(strings.ToUpper(strings.TrimSpace(string(v.Status))))
	v.Severity = inspection.Severity(strings.ToUpper(strings.TrimSpace(string(v.Severity))))
	if err := v.Validate(); err != nil {
		return inspection.Verdict{}, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}
	return v, nil
}
