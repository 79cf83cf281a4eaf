package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
)

type fakeModel struct {
	reply     string
	err       error
	calls     int
	prompt    string
	mimeType  string
	imageSize int
}

func (f *fakeModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

func (f *fakeModel) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	f.calls++
	f.prompt = prompt
	f.mimeType = mimeType
	f.imageSize = len(image)
	return f.reply, f.err
}

const rejectReply = "```json\n" + `{
  "status": "reject",
  "confidence": 0.95,
  "defects": ["Scratch"],
  "reasoning": "visible scratch on housing",
  "action_command": "REJECT_PART",
  "root_cause": "handling damage",
  "severity": "medium",
  "qc_list": {"visual_qc": {"issues": ["Scratch"], "ok": false}}
}` + "\n```"

func TestClassify_ParsesFencedReply(t *testing.T) {
	m := &fakeModel{reply: rejectReply}
	c := NewClassifier(m, time.Second)

	v, err := c.Classify(context.Background(), ClassifyRequest{
		Image:          []byte{0xFF, 0xD8, 0xFF, 0xE0},
		MimeType:       "image/jpeg",
		Target:         "Line 4",
		InspectionType: inspection.TypeProductQC,
	})
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if v.Status != inspection.StatusReject {
		t.Errorf("Status = %q, want REJECT", v.Status)
	}
	if v.Severity != inspection.SeverityMedium {
		t.Errorf("Severity = %q, want MEDIUM", v.Severity)
	}
	if len(v.Defects) != 1 || v.Defects[0] != "Scratch" {
		t.Errorf("Defects = %v", v.Defects)
	}
	if m.calls != 1 {
		t.Errorf("model calls = %d, want 1", m.calls)
	}
	if m.mimeType != "image/jpeg" {
		t.Errorf("mime = %q", m.mimeType)
	}
	if !strings.Contains(m.prompt, "Line 4") {
		t.Error("prompt does not mention target")
	}
}

func TestClassify_NoImage(t *testing.T) {
	m := &fakeModel{reply: rejectReply}
	c := NewClassifier(m, 0)

	_, err := c.Classify(context.Background(), ClassifyRequest{})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("err = %v, want ErrNoImage", err)
	}
	if m.calls != 0 {
		t.Errorf("model was called %d times without an image", m.calls)
	}
}

func TestClassify_ModelError(t *testing.T) {
	m := &fakeModel{err: errors.New("connection reset")}
	c := NewClassifier(m, 0)

	_, err := c.Classify(context.Background(), ClassifyRequest{Image: []byte("x")})
	if !errors.Is(err, ErrModelCall) {
		t.Fatalf("err = %v, want ErrModelCall", err)
	}
	if m.calls != 1 {
		t.Errorf("model calls = %d, want exactly 1", m.calls)
	}
}

func TestClassify_DetectsMimeType(t *testing.T) {
	m := &fakeModel{reply: rejectReply}
	c := NewClassifier(m, 0)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	if _, err := c.Classify(context.Background(), ClassifyRequest{Image: png}); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if m.mimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", m.mimeType)
	}
}

func TestParseVerdict_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "I cannot see the image"},
		{"unknown status", `{"status":"MAYBE","severity":"LOW","confidence":0.5,"defects":[],"reasoning":"x"}`},
		{"unknown severity", `{"status":"PASS","severity":"CRITICAL","confidence":0.5,"defects":[],"reasoning":"x"}`},
		{"missing defects", `{"status":"PASS","severity":"LOW","confidence":0.9,"reasoning":"clean"}`},
		{"null defects", `{"status":"PASS","severity":"LOW","confidence":0.9,"defects":null,"reasoning":"clean"}`},
		{"missing reasoning", `{"status":"PASS","severity":"LOW","confidence":0.5,"defects":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVerdict(tt.reply)
			if !errors.Is(err, ErrInvalidModelOutput) {
				t.Errorf("ParseVerdict() err = %v, want ErrInvalidModelOutput", err)
			}
		})
	}
}

func TestParseVerdict_ConfidencePassesThrough(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"fraction", `{"status":"PASS","confidence":0.9,"defects":[],"reasoning":"ok","severity":"LOW"}`, 0.9},
		{"percentage", `{"status":"PASS","confidence":95,"defects":[],"reasoning":"ok","severity":"LOW"}`, 95},
		{"omitted", `Here you go: {"status":"PASS","defects":[],"reasoning":"ok","severity":"LOW"} done`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.reply)
			if err != nil {
				t.Fatalf("ParseVerdict() error: %v", err)
			}
			if v.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", v.Confidence, tt.want)
			}
			if v.Defects == nil || len(v.Defects) != 0 {
				t.Errorf("Defects = %#v, want empty slice", v.Defects)
			}
		})
	}
}

func TestBuildInspectionPrompt_Focus(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	machine := BuildInspectionPrompt(inspection.TypeMachineCheck, "Press 2", now)
	if !strings.Contains(machine, "Machine check focus") {
		t.Error("machine prompt missing machine focus")
	}
	if !strings.Contains(machine, "2026-01-02T03:04:05Z") {
		t.Error("machine prompt missing timestamp")
	}

	product := BuildInspectionPrompt(inspection.TypeProductQC, "Line 4", now)
	if !strings.Contains(product, "Product QC focus") {
		t.Error("product prompt missing product focus")
	}
}
