package websocket

import (
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
)

// EventType names a dashboard push message
type EventType string

const (
	EventRecordCreated EventType = "RECORD_CREATED"
	EventTicketUpdated EventType = "TICKET_UPDATED"
	EventAlert         EventType = "ALERT"
	EventSensorTick    EventType = "SENSOR_TICK"
	EventShiftSummary  EventType = "SHIFT_SUMMARY"
)

// Tone patterns the dashboard plays before speaking an alert
const (
	ToneChime    = "chime"
	ToneEscalate = "escalate"
)

// Event is the envelope sent over the socket
type Event struct {
	Type    EventType   `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload"`
}

// NewEvent stamps payload with the current time
func NewEvent(t EventType, payload interface{}) Event {
	return Event{Type: t, Time: time.Now().UTC(), Payload: payload}
}

// Alert is the spoken notification for a reject
type Alert struct {
	RecordID string              `json:"recordId,omitempty"`
	Defect   string              `json:"defect"`
	Severity inspection.Severity `json:"severity"`
	Speech   string              `json:"speech"`
	Lang     string              `json:"lang"`
	Tone     string              `json:"tone"`
}

// severityLabel is the spoken Thai grade
func severityLabel(s inspection.Severity) string {
	switch s {
	case inspection.SeverityHigh:
		return "สูง"
	case inspection.SeverityMedium:
		return "ปานกลาง"
	default:
		return "ต่ำ"
	}
}

// NewAlert builds the spoken alert for a defect and severity
func NewAlert(defect string, severity inspection.Severity) Alert {
	tone := ToneChime
	if severity == inspection.SeverityHigh {
		tone = ToneEscalate
	}
	return Alert{
		Defect:   defect,
		Severity: severity,
		Speech:   fmt.Sprintf("แจ้งเตือน พบความผิดปกติ %s ระดับความรุนแรง %s", defect, severityLabel(severity)),
		Lang:     "th-TH",
		Tone:     tone,
	}
}

// AlertFor returns the alert for a reject record. ok is false for passes.
func AlertFor(rec inspection.Record) (Alert, bool) {
	if rec.Status != inspection.StatusReject {
		return Alert{}, false
	}
	fallback := "Unknown Defect"
	if strings.HasPrefix(rec.ID, inspection.PrefixVideo+"-") {
		fallback = "Defect Found"
	}
	a := NewAlert(rec.FirstDefect(fallback), rec.Severity)
	a.RecordID = rec.ID
	return a, true
}

// TestAlert is the alert emitted by the dashboard's sound check
func TestAlert() Alert {
	return NewAlert("ทดสอบเสียงเตือน", inspection.SeverityMedium)
}
