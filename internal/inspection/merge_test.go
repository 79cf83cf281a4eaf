package inspection

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func passVerdict() Verdict {
	return Verdict{
		Status:     StatusPass,
		Confidence: 0.93,
		Defects:    []string{},
		Reasoning:  "ไม่พบความผิดปกติ",
		Severity:   SeverityLow,
	}
}

func TestMergeMachineCheckTemperatureBreach(t *testing.T) {
	rec := Merge(passVerdict(), SensorReading{Temperature: 85, Noise: 50}, TypeMachineCheck, MergeOptions{ID: "LOG-1"})

	if rec.Status != StatusReject {
		t.Errorf("Expected REJECT, got %s", rec.Status)
	}
	if rec.Severity != SeverityHigh {
		t.Errorf("Expected HIGH, got %s", rec.Severity)
	}
	want := []string{"อุณหภูมิสูงผิดปกติ (85°C)"}
	if !reflect.DeepEqual(rec.Defects, want) {
		t.Errorf("Defects mismatch: got %v, want %v", rec.Defects, want)
	}
	if rec.TicketStatus != TicketOpen {
		t.Errorf("Expected OPEN ticket, got %s", rec.TicketStatus)
	}
	if !strings.HasPrefix(rec.Reasoning, "⚠️ SYSTEM ALERT: อุณหภูมิสูงผิดปกติ (85°C)\n") {
		t.Errorf("Reasoning not prefixed with alert: %q", rec.Reasoning)
	}
	if rec.InspectorID != DefaultInspector {
		t.Errorf("Expected default inspector, got %s", rec.InspectorID)
	}
}

func TestMergeProductQCIgnoresSensors(t *testing.T) {
	rec := Merge(passVerdict(), SensorReading{Temperature: 85, Noise: 50}, TypeProductQC, MergeOptions{ID: "LOG-2"})

	if rec.Status != StatusPass {
		t.Errorf("Expected PASS, got %s", rec.Status)
	}
	if len(rec.Defects) != 0 {
		t.Errorf("Expected no defects, got %v", rec.Defects)
	}
	if rec.TicketStatus != TicketArchived {
		t.Errorf("Expected ARCHIVED ticket, got %s", rec.TicketStatus)
	}
	if rec.Reasoning != "ไม่พบความผิดปกติ" {
		t.Errorf("Reasoning should be untouched, got %q", rec.Reasoning)
	}
	if rec.Temperature != 85 || rec.Noise != 50 {
		t.Errorf("Sensor readings not recorded: %d/%d", rec.Temperature, rec.Noise)
	}
}

func TestMergeBothAlertsInFixedOrder(t *testing.T) {
	v := passVerdict()
	v.Defects = []string{"รอยขีดข่วน"}
	rec := Merge(v, SensorReading{Temperature: 81, Noise: 91}, TypeMachineCheck, MergeOptions{})

	want := []string{"รอยขีดข่วน", "อุณหภูมิสูงผิดปกติ (81°C)", "เสียงดังผิดปกติ (91dB)"}
	if !reflect.DeepEqual(rec.Defects, want) {
		t.Errorf("Defects mismatch: got %v, want %v", rec.Defects, want)
	}
	prefix := "⚠️ SYSTEM ALERT: อุณหภูมิสูงผิดปกติ (81°C) ⚠️ SYSTEM ALERT: เสียงดังผิดปกติ (91dB)\n"
	if !strings.HasPrefix(rec.Reasoning, prefix) {
		t.Errorf("Unexpected reasoning: %q", rec.Reasoning)
	}
}

func TestMergeThresholdsAreStrict(t *testing.T) {
	rec := Merge(passVerdict(), SensorReading{Temperature: 80, Noise: 90}, TypeMachineCheck, MergeOptions{})
	if rec.Status != StatusPass || rec.Severity != SeverityLow {
		t.Errorf("Readings at the limit must not escalate, got %s/%s", rec.Status, rec.Severity)
	}
}

func TestMergeNeverDowngradesReject(t *testing.T) {
	v := passVerdict()
	v.Status = StatusReject
	v.Severity = SeverityMedium
	v.Defects = []string{"dent"}

	for _, typ := range []Type{TypeProductQC, TypeMachineCheck} {
		rec := Merge(v, SensorReading{Temperature: 40, Noise: 60}, typ, MergeOptions{})
		if rec.Status != StatusReject {
			t.Errorf("%s: REJECT verdict downgraded to %s", typ, rec.Status)
		}
		if rec.Severity != SeverityMedium {
			t.Errorf("%s: severity changed to %s", typ, rec.Severity)
		}
		if rec.TicketStatus != TicketOpen {
			t.Errorf("%s: expected OPEN ticket", typ)
		}
	}
}

func TestMergeDoesNotAliasVerdict(t *testing.T) {
	v := passVerdict()
	v.Defects = []string{"a"}
	rec := Merge(v, SensorReading{Temperature: 90, Noise: 60}, TypeMachineCheck, MergeOptions{})
	rec.Defects[0] = "changed"
	if v.Defects[0] != "a" {
		t.Error("Merge must copy the verdict defects")
	}
}

func TestMergeTimestampAndID(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 30, 0, 0, time.FixedZone("ICT", 7*3600))
	rec := Merge(passVerdict(), SensorReading{}, TypeProductQC, MergeOptions{ID: "V-LOG-9", CapturedAt: at})
	if rec.ID != "V-LOG-9" {
		t.Errorf("Unexpected ID %s", rec.ID)
	}
	if !rec.Timestamp.Equal(at) || rec.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp should be the capture time in UTC, got %v", rec.Timestamp)
	}
}

func TestSequence(t *testing.T) {
	var seq Sequence
	if got := seq.Next(PrefixStill); got != "LOG-1" {
		t.Errorf("got %s", got)
	}
	if got := seq.Next(PrefixVideo); got != "V-LOG-2" {
		t.Errorf("got %s", got)
	}
}

func TestVerdictValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Verdict)
		wantErr bool
	}{
		{"valid", func(v *Verdict) {}, false},
		{"bad status", func(v *Verdict) { v.Status = "OK" }, true},
		{"missing severity", func(v *Verdict) { v.Severity = "" }, true},
		{"confidence as percentage", func(v *Verdict) { v.Confidence = 95 }, false},
		{"negative confidence", func(v *Verdict) { v.Confidence = -0.1 }, false},
		{"nil defects", func(v *Verdict) { v.Defects = nil }, true},
		{"empty reasoning", func(v *Verdict) { v.Reasoning = "  " }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := passVerdict()
			tt.mutate(&v)
			err := v.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVerdict) {
					t.Errorf("Expected ErrInvalidVerdict, got %v", err)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestTicketTransitions(t *testing.T) {
	if !TicketOpen.CanTransition(TicketResolved) {
		t.Error("OPEN -> RESOLVED must be allowed")
	}
	for _, from := range []TicketStatus{TicketResolved, TicketArchived} {
		for _, to := range []TicketStatus{TicketOpen, TicketResolved, TicketArchived} {
			if from.CanTransition(to) {
				t.Errorf("%s -> %s must be rejected", from, to)
			}
		}
	}
	if TicketOpen.CanTransition(TicketOpen) {
		t.Error("OPEN -> OPEN is not a transition")
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"MACHINE_CHECK": TypeMachineCheck,
		"machine_check": TypeMachineCheck,
		"QC_PRODUCT":    TypeProductQC,
		"PRODUCT_QC":    TypeProductQC,
		"":              TypeProductQC,
	}
	for in, want := range cases {
		if got := ParseType(in); got != want {
			t.Errorf("ParseType(%q) = %s, want %s", in, got, want)
		}
	}
}
