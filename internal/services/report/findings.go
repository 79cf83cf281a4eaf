package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xelth-com/spectraq/internal/inspection"
)

const findingsPrefix = "spectraq-findings:"

// ErrNoFindings is returned when a PDF carries no embedded findings
var ErrNoFindings = errors.New("no findings in document")

// Findings is the machine-readable summary embedded in every report
type Findings struct {
	RecordID string              `json:"recordId"`
	Status   inspection.Status   `json:"status"`
	Severity inspection.Severity `json:"severity"`
	Defects  []string            `json:"defects"`
}

// FindingsOf extracts the summary of rec
func FindingsOf(rec inspection.Record) Findings {
	defects := make([]string, len(rec.Defects))
	copy(defects, rec.Defects)
	return Findings{
		RecordID: rec.ID,
		Status:   rec.Status,
		Severity: rec.Severity,
		Defects:  defects,
	}
}

// encode packs findings into a keyword token. Base64 keeps the value free of
// characters the PDF string syntax would escape.
func (f Findings) encode() (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return findingsPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// ExtractFindings reads the findings back out of a rendered PDF
func ExtractFindings(pdf []byte) (Findings, error) {
	idx := bytes.Index(pdf, []byte(findingsPrefix))
	if idx < 0 {
		return Findings{}, ErrNoFindings
	}
	rest := pdf[idx+len(findingsPrefix):]
	end := bytes.IndexAny(rest, " )")
	if end < 0 {
		return Findings{}, fmt.Errorf("%w: unterminated token", ErrNoFindings)
	}

	raw, err := base64.StdEncoding.DecodeString(string(rest[:end]))
	if err != nil {
		return Findings{}, fmt.Errorf("decode findings: %w", err)
	}
	var f Findings
	if err := json.Unmarshal(raw, &f); err != nil {
		return Findings{}, fmt.Errorf("decode findings: %w", err)
	}
	if f.Defects == nil {
		f.Defects = []string{}
	}
	return f, nil
}
