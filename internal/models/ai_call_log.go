package models

import (
	"time"

	"gorm.io/datatypes"
)

// AICallLog records one round trip to the vision/chat provider
type AICallLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Provider      string         `gorm:"not null;index" json:"provider"`  // gemini, anthropic
	Operation     string         `gorm:"not null;index" json:"operation"` // generate, generate_with_image
	Status        string         `gorm:"default:'success'" json:"status"` // success, failed
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	ExecutionTime int            `json:"executionTimeMs"`
	Summary       datatypes.JSON `gorm:"type:jsonb" json:"summary"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// TableName specifies the table name for AICallLog model
func (AICallLog) TableName() string {
	return "ai_call_logs"
}
