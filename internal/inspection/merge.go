package inspection

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Sensor gate thresholds for machine checks
const (
	TempLimit  = 80
	NoiseLimit = 90
)

// SensorReading is the telemetry captured alongside a frame
type SensorReading struct {
	Temperature int `json:"temperature"`
	Noise       int `json:"noise"`
}

// MergeOptions carries the per-capture values the merger does not derive itself
type MergeOptions struct {
	ID         string
	CapturedAt time.Time
}

// Sequence hands out session-unique record IDs
type Sequence struct {
	n atomic.Int64
}

// Next returns "<prefix>-<n>"
func (s *Sequence) Next(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, s.n.Add(1))
}

// Merge combines a classifier verdict with sensor telemetry into the final record.
//
// In MACHINE_CHECK mode each breached threshold appends an alert to the defects,
// prefixes the reasoning and escalates the record to REJECT/HIGH. Escalation never
// goes the other way. Product QC ignores telemetry.
func Merge(v Verdict, reading SensorReading, t Type, opts MergeOptions) Record {
	status := v.Status
	severity := v.Severity
	var extra, alerts []string

	if t == TypeMachineCheck {
		if reading.Temperature > TempLimit {
			status, severity = StatusReject, SeverityHigh
			msg := fmt.Sprintf("อุณหภูมิสูงผิดปกติ (%d°C)", reading.Temperature)
			extra = append(extra, msg)
			alerts = append(alerts, "⚠️ SYSTEM ALERT: "+msg)
		}
		if reading.Noise > NoiseLimit {
			status, severity = StatusReject, SeverityHigh
			msg := fmt.Sprintf("เสียงดังผิดปกติ (%ddB)", reading.Noise)
			extra = append(extra, msg)
			alerts = append(alerts, "⚠️ SYSTEM ALERT: "+msg)
		}
	}

	defects := make([]string, 0, len(v.Defects)+len(extra))
	defects = append(defects, v.Defects...)
	defects = append(defects, extra...)

	reasoning := v.Reasoning
	if len(alerts) > 0 {
		reasoning = strings.Join(alerts, " ") + "\n" + v.Reasoning
	}

	ticket := TicketArchived
	if status == StatusReject {
		ticket = TicketOpen
	}

	capturedAt := opts.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	rec := Record{
		ID:             opts.ID,
		Timestamp:      capturedAt.UTC(),
		Status:         status,
		Confidence:     v.Confidence,
		Defects:        defects,
		Severity:       severity,
		Reasoning:      reasoning,
		RootCause:      v.RootCause,
		ActionCommand:  v.ActionCommand,
		QCList:         v.QCList,
		PainPoints:     v.PainPoints,
		Solution:       v.Solution,
		Temperature:    reading.Temperature,
		Noise:          reading.Noise,
		InspectionType: t,
		TicketStatus:   ticket,
		InspectorID:    DefaultInspector,
	}
	return rec.Clone()
}
