package models

import "time"

// UploadAudit defines the persisted batch record based on the 'upload_audits'
// table. The row is created as soon as a batch enters processing so that a
// crash mid-batch still leaves a discoverable record, and finalized exactly
// once when the batch ends.
type UploadAudit struct {
	ID                int64        `json:"id" db:"id"`
	SchoolID          int64        `json:"schoolId" db:"school_id"`
	UploadType        ImportType   `json:"uploadType" db:"upload_type"`
	FileName          string       `json:"fileName" db:"file_name"`
	TotalRecords      int          `json:"totalRecords" db:"total_records"`
	SuccessfulRecords int          `json:"successfulRecords" db:"successful_records"`
	FailedRecords     int          `json:"failedRecords" db:"failed_records"`
	Status            UploadStatus `json:"status" db:"status"`
	ErrorLog          []string     `json:"errorLog" db:"error_log"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
	CompletedAt       *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
}
