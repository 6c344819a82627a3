package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/logger"
)

// UploadAuditRepository handles upload audit database operations. The
// orchestrator is the only writer: one insert at batch start, one update at
// batch end.
type UploadAuditRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewUploadAuditRepository creates a new UploadAuditRepository
func NewUploadAuditRepository(db *pgxpool.Pool) *UploadAuditRepository {
	return &UploadAuditRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateUploadAudit inserts the audit row in processing state and returns its ID
func (r *UploadAuditRepository) CreateUploadAudit(ctx context.Context, audit *models.UploadAudit) (int64, error) {
	sql, args, err := r.sb.Insert("upload_audits").
		Columns("school_id", "upload_type", "file_name", "total_records", "status", "error_log").
		Values(audit.SchoolID, audit.UploadType, audit.FileName, audit.TotalRecords, models.UploadProcessing, []string{}).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create upload audit query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&audit.ID, &audit.CreatedAt)
	if err != nil {
		logger.Error().Err(err).Int64("schoolID", audit.SchoolID).Msg("Error executing create upload audit query")
		return 0, fmt.Errorf("error creating upload audit: %w", err)
	}

	audit.Status = models.UploadProcessing
	return audit.ID, nil
}

// FinalizeUploadAudit closes the audit row with the batch tallies
func (r *UploadAuditRepository) FinalizeUploadAudit(ctx context.Context, auditID int64, status models.UploadStatus,
	totalRecords, successCount, failureCount int, errorLog []string) error {
	if errorLog == nil {
		errorLog = []string{}
	}

	sql, args, err := r.sb.Update("upload_audits").
		Set("status", status).
		Set("total_records", totalRecords).
		Set("successful_records", successCount).
		Set("failed_records", failureCount).
		Set("error_log", errorLog).
		Set("completed_at", time.Now()).
		Where(squirrel.Eq{"id": auditID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build finalize upload audit query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("auditID", auditID).Msg("Error executing finalize upload audit query")
		return fmt.Errorf("error finalizing upload audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUploadNotFound
	}

	return nil
}

// GetUploadAuditByID retrieves a single audit row scoped to a school
func (r *UploadAuditRepository) GetUploadAuditByID(ctx context.Context, schoolID, auditID int64) (*models.UploadAudit, error) {
	sql, args, err := r.auditSelect().
		Where(squirrel.Eq{"id": auditID, "school_id": schoolID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get upload audit query: %w", err)
	}

	var audit models.UploadAudit
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&audit.ID, &audit.SchoolID, &audit.UploadType, &audit.FileName, &audit.TotalRecords,
		&audit.SuccessfulRecords, &audit.FailedRecords, &audit.Status, &audit.ErrorLog,
		&audit.CreatedAt, &audit.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUploadNotFound
		}
		logger.Error().Err(err).Int64("auditID", auditID).Msg("Error scanning upload audit row")
		return nil, fmt.Errorf("error retrieving upload audit: %w", err)
	}

	return &audit, nil
}

// ListUploadAudits returns the audits of a school, newest first
func (r *UploadAuditRepository) ListUploadAudits(ctx context.Context, schoolID int64, limit int) ([]*models.UploadAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := r.auditSelect().
		Where(squirrel.Eq{"school_id": schoolID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list upload audits query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("schoolID", schoolID).Msg("Error querying upload audits")
		return nil, fmt.Errorf("error listing upload audits: %w", err)
	}
	defer rows.Close()

	var audits []*models.UploadAudit
	for rows.Next() {
		var audit models.UploadAudit
		err = rows.Scan(
			&audit.ID, &audit.SchoolID, &audit.UploadType, &audit.FileName, &audit.TotalRecords,
			&audit.SuccessfulRecords, &audit.FailedRecords, &audit.Status, &audit.ErrorLog,
			&audit.CreatedAt, &audit.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning upload audit row: %w", err)
		}
		audits = append(audits, &audit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upload audits: %w", err)
	}

	return audits, nil
}

func (r *UploadAuditRepository) auditSelect() squirrel.SelectBuilder {
	return r.sb.Select(
		"id", "school_id", "upload_type", "file_name", "total_records",
		"successful_records", "failed_records", "status", "error_log",
		"created_at", "completed_at").
		From("upload_audits")
}
