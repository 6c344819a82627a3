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

// IdentityRepository handles identity database operations
type IdentityRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewIdentityRepository creates a new IdentityRepository
func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindByEmail looks an identity up by its natural key within a school.
// Returns apperrors.ErrIdentityNotFound when no row matches.
func (r *IdentityRepository) FindByEmail(ctx context.Context, schoolID int64, email string) (*models.Identity, error) {
	sql, args, err := r.sb.Select(
		"id", "school_id", "first_name", "last_name", "email", "role", "is_active", "created_at", "updated_at").
		From("identities").
		Where(squirrel.Eq{"school_id": schoolID, "email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build find identity query: %w", err)
	}

	var identity models.Identity
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&identity.ID, &identity.SchoolID, &identity.FirstName, &identity.LastName,
		&identity.Email, &identity.Role, &identity.IsActive, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrIdentityNotFound
		}
		logger.Error().Err(err).Int64("schoolID", schoolID).Msg("Error scanning identity row")
		return nil, fmt.Errorf("error retrieving identity: %w", err)
	}

	return &identity, nil
}

// CreateIdentity inserts a new identity and fills in its server-assigned ID
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	sql, args, err := r.sb.Insert("identities").
		Columns("school_id", "first_name", "last_name", "email", "role", "is_active").
		Values(identity.SchoolID, identity.FirstName, identity.LastName, identity.Email, identity.Role, identity.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create identity query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "identities_school_email_key") {
			logger.Warn().Int64("schoolID", identity.SchoolID).Msg("Attempted to create identity with duplicate email")
			return apperrors.ErrEmailAlreadyExists
		}
		logger.Error().Err(err).Int64("schoolID", identity.SchoolID).Msg("Error executing create identity query")
		return fmt.Errorf("error creating identity: %w", err)
	}

	return nil
}

// UpdateIdentity overwrites the mutable identity fields (name, role, active
// flag). The email and school scope never change through this path.
func (r *IdentityRepository) UpdateIdentity(ctx context.Context, identity *models.Identity) error {
	sql, args, err := r.sb.Update("identities").
		Set("first_name", identity.FirstName).
		Set("last_name", identity.LastName).
		Set("role", identity.Role).
		Set("is_active", identity.IsActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": identity.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update identity query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("identityID", identity.ID).Msg("Error executing update identity query")
		return fmt.Errorf("error updating identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrIdentityNotFound
	}

	return nil
}

// GetIdentityByID retrieves an identity by ID
func (r *IdentityRepository) GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error) {
	sql, args, err := r.sb.Select(
		"id", "school_id", "first_name", "last_name", "email", "role", "is_active", "created_at", "updated_at").
		From("identities").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get identity query: %w", err)
	}

	var identity models.Identity
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&identity.ID, &identity.SchoolID, &identity.FirstName, &identity.LastName,
		&identity.Email, &identity.Role, &identity.IsActive, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("error retrieving identity: %w", err)
	}

	return &identity, nil
}
