// Package inspection holds the inspection record model and the rules that turn a
// classifier verdict plus sensor telemetry into an authoritative record.
package inspection

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the pass/reject outcome of an inspection
type Status string

const (
	StatusPass   Status = "PASS"
	StatusReject Status = "REJECT"
)

// Severity grades a reject
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Type selects the inspection profile. It gates whether sensor thresholds apply.
type Type string

const (
	TypeProductQC    Type = "QC_PRODUCT"
	TypeMachineCheck Type = "MACHINE_CHECK"
)

// TicketStatus tracks operator remediation of a reject
type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketResolved TicketStatus = "RESOLVED"
	TicketArchived TicketStatus = "ARCHIVED"
)

// DefaultInspector is assigned to every record created by the camera pipeline
const DefaultInspector = "AUTO-CCTV"

// ID prefixes per capture source
const (
	PrefixStill = "LOG"
	PrefixVideo = "V-LOG"
)

// ErrInvalidVerdict is returned when classifier output fails validation
var ErrInvalidVerdict = errors.New("invalid verdict")

// ParseType maps a form value to an inspection type. Empty input and unknown
// values fall back to product QC, matching the upload form default.
func ParseType(s string) Type {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(TypeMachineCheck):
		return TypeMachineCheck
	default:
		return TypeProductQC
	}
}

// CanTransition reports whether a ticket may move from s to next.
// OPEN -> RESOLVED is the only operator transition; nothing returns to OPEN.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	return s == TicketOpen && next == TicketResolved
}

// QCListEntry is one checklist lane of the verdict
type QCListEntry struct {
	Issues []string `json:"issues"`
	OK     bool     `json:"ok"`
}

// QCList groups the three checklist lanes
type QCList struct {
	VisualQC       QCListEntry `json:"visual_qc"`
	MachinePanelQC QCListEntry `json:"machine_panel_qc"`
	ProcessQC      QCListEntry `json:"process_qc"`
}

// Solution is the model's remediation proposal
type Solution struct {
	Summary            string   `json:"summary"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Verdict is the structured reply of the vision model
type Verdict struct {
	Status        Status   `json:"status"`
	Confidence    float64  `json:"confidence"`
	Defects       []string `json:"defects"`
	Reasoning     string   `json:"reasoning"`
	ActionCommand string   `json:"action_command"`
	RootCause     string   `json:"root_cause"`
	Severity      Severity `json:"severity"`
	QCList        QCList   `json:"qc_list"`
	PainPoints    []string `json:"pain_points"`
	Solution      Solution `json:"solution"`
}

// Validate checks the fields the merger depends on. Confidence is passed
// through as the model sent it.
func (v Verdict) Validate() error {
	switch v.Status {
	case StatusPass, StatusReject:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidVerdict, v.Status)
	}
	switch v.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return fmt.Errorf("%w: severity %q", ErrInvalidVerdict, v.Severity)
	}
	if v.Defects == nil {
		return fmt.Errorf("%w: defects missing", ErrInvalidVerdict)
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return fmt.Errorf("%w: reasoning is empty", ErrInvalidVerdict)
	}
	return nil
}

// Record is one inspection event after merging
type Record struct {
	ID             string       `json:"id"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         Status       `json:"status"`
	Confidence     float64      `json:"confidence"`
	Defects        []string     `json:"defects"`
	Severity       Severity     `json:"severity"`
	Reasoning      string       `json:"reasoning"`
	RootCause      string       `json:"root_cause"`
	ActionCommand  string       `json:"action_command"`
	QCList         QCList       `json:"qc_list"`
	PainPoints     []string     `json:"pain_points"`
	Solution       Solution     `json:"solution"`
	Temperature    int          `json:"temperature"`
	Noise          int          `json:"noise_level"`
	InspectionType Type         `json:"inspectionType"`
	TicketStatus   TicketStatus `json:"ticketStatus"`
	InspectorID    string       `json:"inspectorId"`
}

// FirstDefect returns the headline defect or fallback when there is none
func (r Record) FirstDefect(fallback string) string {
	if len(r.Defects) > 0 {
		return r.Defects[0]
	}
	return fallback
}

// Clone returns a deep copy so callers cannot mutate stored slices
func (r Record) Clone() Record {
	c := r
	c.Defects = cloneStrings(r.Defects)
	c.PainPoints = cloneStrings(r.PainPoints)
	c.Solution.RecommendedActions = cloneStrings(r.Solution.RecommendedActions)
	c.QCList.VisualQC.Issues = cloneStrings(r.QCList.VisualQC.Issues)
	c.QCList.MachinePanelQC.Issues = cloneStrings(r.QCList.MachinePanelQC.Issues)
	c.QCList.ProcessQC.Issues = cloneStrings(r.QCList.ProcessQC.Issues)
	return c
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
