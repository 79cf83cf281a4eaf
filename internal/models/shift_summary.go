package models

import (
	"time"

	"gorm.io/datatypes"
)

// ShiftSummary is the metrics snapshot taken on each scheduled tick
type ShiftSummary struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Total      int            `json:"total"`
	Passed     int            `json:"passed"`
	Rejected   int            `json:"rejected"`
	OpenIssues int            `json:"openIssues"`
	PassRate   string         `json:"passRate"`
	Defects    datatypes.JSON `gorm:"type:jsonb" json:"defects"`
	Watchdog   string         `json:"watchdog"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TableName specifies the table name for ShiftSummary model
func (ShiftSummary) TableName() string {
	return "shift_summaries"
}
