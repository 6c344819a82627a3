package dto

import (
	"time"

	"github.com/mert/schoolhub/internal/app/models"
)

// RowError describes one failed spreadsheet row, correlated by its 1-based
// line number in the source file
type RowError struct {
	RowNumber int    `json:"rowNumber" example:"7"`
	Message   string `json:"message" example:"validate: email is required"`
}

// BatchReport is the caller-facing result of one import batch. Status is
// "failed" only when the batch could not run at all; individual row failures
// still produce "completed" with a non-zero failure count.
type BatchReport struct {
	UploadID     int64               `json:"uploadId" example:"42"`
	TotalRows    int                 `json:"totalRows" example:"120"`
	SuccessCount int                 `json:"successCount" example:"118"`
	FailureCount int                 `json:"failureCount" example:"2"`
	Errors       []RowError          `json:"errors"`
	Status       models.UploadStatus `json:"status" example:"completed"`
}

// UploadAuditResponse is the persisted audit projection returned by the
// upload listing endpoints
type UploadAuditResponse struct {
	ID                int64               `json:"id"`
	SchoolID          int64               `json:"schoolId"`
	UploadType        models.ImportType   `json:"uploadType"`
	FileName          string              `json:"fileName"`
	TotalRecords      int                 `json:"totalRecords"`
	SuccessfulRecords int                 `json:"successfulRecords"`
	FailedRecords     int                 `json:"failedRecords"`
	Status            models.UploadStatus `json:"status"`
	ErrorLog          []string            `json:"errorLog"`
	StartedAt         time.Time           `json:"startedAt"`
	CompletedAt       *time.Time          `json:"completedAt,omitempty"`
}

// NewUploadAuditResponse maps the audit model to its response shape
func NewUploadAuditResponse(audit *models.UploadAudit) *UploadAuditResponse {
	return &UploadAuditResponse{
		ID:                audit.ID,
		SchoolID:          audit.SchoolID,
		UploadType:        audit.UploadType,
		FileName:          audit.FileName,
		TotalRecords:      audit.TotalRecords,
		SuccessfulRecords: audit.SuccessfulRecords,
		FailedRecords:     audit.FailedRecords,
		Status:            audit.Status,
		ErrorLog:          audit.ErrorLog,
		StartedAt:         audit.CreatedAt,
		CompletedAt:       audit.CompletedAt,
	}
}
