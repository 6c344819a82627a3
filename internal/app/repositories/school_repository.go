package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/dberrors"
	"github.com/mert/schoolhub/internal/pkg/logger"
)

// SchoolRepository handles school (tenant) database operations
type SchoolRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewSchoolRepository creates a new SchoolRepository
func NewSchoolRepository(db *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateSchool creates a new school and returns its ID
func (r *SchoolRepository) CreateSchool(ctx context.Context, school *models.School) (int64, error) {
	sql, args, err := r.sb.Insert("schools").
		Columns("name", "code", "is_active").
		Values(school.Name, school.Code, school.IsActive).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create school query: %w", err)
	}

	var id int64
	err = r.db.QueryRow(ctx, sql, args...).Scan(&id)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "schools_code_key") {
			return 0, apperrors.ErrResourceAlreadyExists
		}
		logger.Error().Err(err).Str("code", school.Code).Msg("Error creating school")
		return 0, fmt.Errorf("error creating school: %w", err)
	}

	return id, nil
}

// GetSchoolByCode retrieves a school by its unique code
func (r *SchoolRepository) GetSchoolByCode(ctx context.Context, code string) (*models.School, error) {
	sql, args, err := r.sb.Select("id", "name", "code", "is_active", "created_at").
		From("schools").
		Where(squirrel.Eq{"code": code}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get school query: %w", err)
	}

	var school models.School
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&school.ID, &school.Name, &school.Code, &school.IsActive, &school.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSchoolNotFound
		}
		logger.Error().Err(err).Str("code", code).Msg("Error scanning school row")
		return nil, fmt.Errorf("error retrieving school: %w", err)
	}

	return &school, nil
}

// GetSchoolByID retrieves a school by ID
func (r *SchoolRepository) GetSchoolByID(ctx context.Context, id int64) (*models.School, error) {
	sql, args, err := r.sb.Select("id", "name", "code", "is_active", "created_at").
		From("schools").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get school query: %w", err)
	}

	var school models.School
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&school.ID, &school.Name, &school.Code, &school.IsActive, &school.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSchoolNotFound
		}
		return nil, fmt.Errorf("error retrieving school: %w", err)
	}

	return &school, nil
}
