// Package plant loads the line profile: inspection targets, the technician
// roster, equipment manual extracts and report defaults.
package plant

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xelth-com/spectraq/internal/inspection"
)

// Profile describes what an inspection type looks at
type Profile struct {
	Label    string `yaml:"label" json:"label"`
	Target   string `yaml:"target" json:"target"`
	Activity string `yaml:"activity" json:"activity"`
}

// Technician is an operator that can own a ticket
type Technician struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Role   string `yaml:"role,omitempty" json:"role,omitempty"`
	Avatar string `yaml:"avatar,omitempty" json:"avatar,omitempty"`
}

// ReportDefaults fills report metadata that the line does not measure
type ReportDefaults struct {
	Project    string `yaml:"project"`
	Location   string `yaml:"location"`
	LaborHours string `yaml:"labor_hours"`
	Accidents  string `yaml:"accidents"`
}

// Plant is the parsed plant.yaml
type Plant struct {
	Name        string                      `yaml:"name"`
	Profiles    map[inspection.Type]Profile `yaml:"profiles"`
	Technicians []Technician                `yaml:"technicians"`
	Manuals     map[string]string           `yaml:"manuals"`
	Report      ReportDefaults              `yaml:"report"`
}

// Default returns the built-in line profile
func Default() *Plant {
	return &Plant{
		Name: "Line 4 • Integrated IoT Node",
		Profiles: map[inspection.Type]Profile{
			inspection.TypeProductQC: {
				Label:    "QC Product",
				Target:   "Electronic PCB",
				Activity: "Product Quality Inspection",
			},
			inspection.TypeMachineCheck: {
				Label:    "ตรวจสอบเครื่องจักร",
				Target:   "Machine Panel & Conveyor Health Check",
				Activity: "Machine Condition Audit",
			},
		},
		Technicians: []Technician{
			{ID: "T01", Name: "Somchai Engineering", Role: "Senior QC", Avatar: "SE"},
			{ID: "T02", Name: "Wipa Tech", Role: "Line Inspector", Avatar: "WT"},
			{ID: "T03", Name: "Kenji Systems", Role: "System Admin", Avatar: "KS"},
		},
		Manuals: map[string]string{
			"E-104": "[MANUAL EXTRACT: SERIES-4 CONVEYOR]\nError E-104: Motor Overheat. Cause: Bearing friction or dust buildup. Action: 1. Stop line immediately. 2. Inspect bearing #4. 3. Apply grease type lithium-complex.",
			"E-200": "[MANUAL EXTRACT: SERIES-4 CONVEYOR]\nError E-200: Sensor Misalignment. Action: Re-calibrate position X-Y.",
		},
		Report: ReportDefaults{
			Project:    "Spectra IoT Node 04",
			Location:   "Line 4",
			LaborHours: "0",
			Accidents:  "N/A",
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not an error.
func Load(path string) (*Plant, error) {
	p := Default()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("⚠️ Plant config %s not found, using built-in profile", path)
			return p, nil
		}
		return nil, fmt.Errorf("read plant config: %w", err)
	}

	var file Plant
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plant config %s: %w", path, err)
	}

	if file.Name != "" {
		p.Name = file.Name
	}
	for t, prof := range file.Profiles {
		p.Profiles[inspection.ParseType(string(t))] = prof
	}
	if len(file.Technicians) > 0 {
		p.Technicians = file.Technicians
	}
	for code, text := range file.Manuals {
		p.Manuals[strings.ToUpper(strings.TrimSpace(code))] = text
	}
	if file.Report.Project != "" {
		p.Report.Project = file.Report.Project
	}
	if file.Report.Location != "" {
		p.Report.Location = file.Report.Location
	}
	if file.Report.LaborHours != "" {
		p.Report.LaborHours = file.Report.LaborHours
	}
	if file.Report.Accidents != "" {
		p.Report.Accidents = file.Report.Accidents
	}
	return p, nil
}

// Profile returns the profile for t, falling back to product QC
func (p *Plant) Profile(t inspection.Type) Profile {
	if prof, ok := p.Profiles[t]; ok {
		return prof
	}
	return p.Profiles[inspection.TypeProductQC]
}

// Technician looks up a roster entry by id
func (p *Plant) Technician(id string) (Technician, bool) {
	for _, t := range p.Technicians {
		if t.ID == id {
			return t, true
		}
	}
	return Technician{}, false
}

// TechnicianNames lists roster names in order
func (p *Plant) TechnicianNames() []string {
	names := make([]string, 0, len(p.Technicians))
	for _, t := range p.Technicians {
		names = append(names, t.Name)
	}
	return names
}

// InspectorName resolves an inspector id to a printable name
func (p *Plant) InspectorName(id string) string {
	if t, ok := p.Technician(id); ok {
		return t.Name
	}
	if id == inspection.DefaultInspector {
		return "AI AUTO-AGENT"
	}
	return "Unknown"
}

// IsAssignable reports whether id may own a ticket
func (p *Plant) IsAssignable(id string) bool {
	if id == inspection.DefaultInspector {
		return true
	}
	_, ok := p.Technician(id)
	return ok
}

// Manual returns the manual extract for an error code
func (p *Plant) Manual(code string) (string, bool) {
	text, ok := p.Manuals[strings.ToUpper(strings.TrimSpace(code))]
	return text, ok
}
