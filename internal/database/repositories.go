package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/spectraq/internal/ai"
	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/models"
	"github.com/xelth-com/spectraq/internal/services/report"
)

// CallLogRepository stores model call audits
type CallLogRepository struct {
	db *gorm.DB
}

func NewCallLogRepository(db *DB) *CallLogRepository {
	return &CallLogRepository{db: db.DB}
}

// RecordCall implements ai.CallRecorder. Failures are logged, never returned.
func (r *CallLogRepository) RecordCall(ctx context.Context, rec ai.CallRecord) {
	summary, _ := json.Marshal(map[string]interface{}{
		"promptChars":   rec.PromptChars,
		"imageBytes":    rec.ImageBytes,
		"mimeType":      rec.MimeType,
		"responseChars": rec.ResponseChars,
	})

	entry := models.AICallLog{
		Provider:      rec.Provider,
		Operation:     rec.Operation,
		Status:        "success",
		ExecutionTime: int(rec.Duration.Milliseconds()),
		Summary:       datatypes.JSON(summary),
	}
	if rec.Err != nil {
		entry.Status = "failed"
		entry.ErrorMessage = rec.Err.Error()
	}

	// the request context may already be cancelled when the call failed on timeout
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error; err != nil {
		log.Printf("⚠️ Failed to write AI call log: %v", err)
	}
}

// ReportArchiveRepository indexes archive jobs in report_archives
type ReportArchiveRepository struct {
	db *gorm.DB
}

func NewReportArchiveRepository(db *DB) *ReportArchiveRepository {
	return &ReportArchiveRepository{db: db.DB}
}

// Put implements report.JobIndex
func (r *ReportArchiveRepository) Put(ctx context.Context, state report.JobState) error {
	findings, err := json.Marshal(state.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}

	row := models.ReportArchive{
		ID:           state.ID,
		RecordID:     state.RecordID,
		FileName:     state.FileName,
		Path:         state.Path,
		Status:       string(state.Status),
		ErrorMessage: state.Error,
		SizeBytes:    state.SizeBytes,
		Findings:     datatypes.JSON(findings),
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    state.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save report archive %s: %w", state.ID, err)
	}
	return nil
}

// Get implements report.JobIndex
func (r *ReportArchiveRepository) Get(ctx context.Context, id string) (report.JobState, error) {
	var row models.ReportArchive
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report.JobState{}, report.ErrJobNotFound
		}
		return report.JobState{}, fmt.Errorf("load report archive %s: %w", id, err)
	}

	state := report.JobState{
		ID:        row.ID,
		RecordID:  row.RecordID,
		FileName:  row.FileName,
		Path:      row.Path,
		Status:    report.JobStatus(row.Status),
		Error:     row.ErrorMessage,
		SizeBytes: row.SizeBytes,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Findings) > 0 {
		if err := json.Unmarshal(row.Findings, &state.Findings); err != nil {
			return report.JobState{}, fmt.Errorf("decode findings: %w", err)
		}
	}
	return state, nil
}

// ShiftSummaryRepository stores scheduled metrics snapshots
type ShiftSummaryRepository struct {
	db *gorm.DB
}

func NewShiftSummaryRepository(db *DB) *ShiftSummaryRepository {
	return &ShiftSummaryRepository{db: db.DB}
}

// SaveShiftSummary implements scheduler.SummaryStore
func (r *ShiftSummaryRepository) SaveShiftSummary(ctx context.Context, m history.Metrics) error {
	defects, err := json.Marshal(m.Defects)
	if err != nil {
		return fmt.Errorf("encode defects: %w", err)
	}

	row := models.ShiftSummary{
		Total:      m.Total,
		Passed:     m.Passed,
		Rejected:   m.Rejected,
		OpenIssues: m.OpenIssues,
		PassRate:   m.PassRate,
		Defects:    datatypes.JSON(defects),
		Watchdog:   m.Watchdog.Status,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save shift summary: %w", err)
	}
	return nil
}
