package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReportArchive tracks one asynchronous PDF write
type ReportArchive struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	RecordID     string         `gorm:"index" json:"recordId"`
	FileName     string         `gorm:"not null" json:"fileName"`
	Path         string         `json:"path"`
	Status       string         `gorm:"not null;default:'PENDING'" json:"status"` // PENDING, SAVED, FAILED
	ErrorMessage string         `json:"errorMessage,omitempty"`
	SizeBytes    int            `json:"sizeBytes"`
	Findings     datatypes.JSON `gorm:"type:jsonb" json:"findings"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for ReportArchive model
func (ReportArchive) TableName() string {
	return "report_archives"
}
