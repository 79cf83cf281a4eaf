package report

import (
	"fmt"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/plant"
)

// Meta is the project block printed above the findings
type Meta struct {
	Project    string `json:"project"`
	Location   string `json:"location"`
	Activity   string `json:"activity"`
	Materials  string `json:"materials"`
	LaborHours string `json:"laborHours"`
	Equipment  string `json:"equipment"`
	Accidents  string `json:"accidents"`
	Inspector  string `json:"inspector"`
}

// DefaultMeta derives report metadata for a stored record
func DefaultMeta(rec inspection.Record, p *plant.Plant) Meta {
	profile := p.Profile(rec.InspectionType)
	return Meta{
		Project:    p.Report.Project,
		Location:   p.Report.Location,
		Activity:   profile.Activity,
		Materials:  profile.Target,
		LaborHours: p.Report.LaborHours,
		Equipment:  fmt.Sprintf("Cam + Temp Sensor (%d°C)", rec.Temperature),
		Accidents:  p.Report.Accidents,
		Inspector:  p.InspectorName(rec.InspectorID),
	}
}

// FileName builds QC_Report_<record date>_<now epoch ms>.pdf
func FileName(rec inspection.Record, now time.Time) string {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return fmt.Sprintf("QC_Report_%s_%d.pdf", ts.UTC().Format("2006-01-02"), now.UnixMilli())
}
