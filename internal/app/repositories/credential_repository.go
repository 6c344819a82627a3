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

// CredentialRepository handles credential database operations
type CredentialRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(db *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// UsernameExists checks whether a username is already taken within a school
func (r *CredentialRepository) UsernameExists(ctx context.Context, schoolID int64, username string) (bool, error) {
	sql, args, err := r.sb.Select("1").
		From("credentials").
		Where(squirrel.Eq{"school_id": schoolID, "username": username}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build username exists query: %w", err)
	}

	var exists bool
	err = r.db.QueryRow(ctx, sql, args...).Scan(&exists)
	if err != nil {
		logger.Error().Err(err).Int64("schoolID", schoolID).Str("username", username).Msg("Error checking username existence")
		return false, fmt.Errorf("error checking username existence: %w", err)
	}

	return exists, nil
}

// CreateCredential inserts a new credential for an identity. Returns
// apperrors.ErrUsernameTaken on a (school_id, username) unique violation so
// callers can re-run allocation.
func (r *CredentialRepository) CreateCredential(ctx context.Context, credential *models.Credential) error {
	sql, args, err := r.sb.Insert("credentials").
		Columns("identity_id", "school_id", "username", "password_hash", "default_password", "password_changed", "is_active").
		Values(credential.IdentityID, credential.SchoolID, credential.Username, credential.PasswordHash,
			credential.DefaultPassword, credential.PasswordChanged, credential.IsActive).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create credential query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&credential.ID, &credential.CreatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "credentials_school_username_key") {
			logger.Warn().Int64("schoolID", credential.SchoolID).Str("username", credential.Username).
				Msg("Username already taken, allocation will retry")
			return apperrors.ErrUsernameTaken
		}
		if dberrors.IsDuplicateConstraintError(err, "credentials_identity_id_key") {
			return apperrors.ErrResourceAlreadyExists
		}
		logger.Error().Err(err).Int64("identityID", credential.IdentityID).Msg("Error executing create credential query")
		return fmt.Errorf("error creating credential: %w", err)
	}

	return nil
}

// GetByIdentityID retrieves the credential owned by an identity
func (r *CredentialRepository) GetByIdentityID(ctx context.Context, identityID int64) (*models.Credential, error) {
	return r.getOne(ctx, squirrel.Eq{"identity_id": identityID})
}

// GetByUsername retrieves a credential by school and username
func (r *CredentialRepository) GetByUsername(ctx context.Context, schoolID int64, username string) (*models.Credential, error) {
	return r.getOne(ctx, squirrel.Eq{"school_id": schoolID, "username": username})
}

func (r *CredentialRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Credential, error) {
	sql, args, err := r.sb.Select(
		"id", "identity_id", "school_id", "username", "password_hash", "default_password",
		"password_changed", "is_active", "created_at").
		From("credentials").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get credential query: %w", err)
	}

	var credential models.Credential
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&credential.ID, &credential.IdentityID, &credential.SchoolID, &credential.Username,
		&credential.PasswordHash, &credential.DefaultPassword, &credential.PasswordChanged,
		&credential.IsActive, &credential.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCredentialNotFound
		}
		logger.Error().Err(err).Msg("Error scanning credential row")
		return nil, fmt.Errorf("error retrieving credential: %w", err)
	}

	return &credential, nil
}

// UpdatePassword replaces the stored hash with a user-chosen one, marks the
// credential as changed and clears the plaintext default
func (r *CredentialRepository) UpdatePassword(ctx context.Context, credentialID int64, passwordHash string) error {
	sql, args, err := r.sb.Update("credentials").
		Set("password_hash", passwordHash).
		Set("password_changed", true).
		Set("default_password", nil).
		Where(squirrel.Eq{"id": credentialID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update password query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("credentialID", credentialID).Msg("Error executing update password query")
		return fmt.Errorf("error updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCredentialNotFound
	}

	return nil
}

// ResetPassword stores a freshly generated default password, clearing the
// changed flag so the user is forced through the first-login flow again
func (r *CredentialRepository) ResetPassword(ctx context.Context, credentialID int64, passwordHash, defaultPassword string) error {
	sql, args, err := r.sb.Update("credentials").
		Set("password_hash", passwordHash).
		Set("password_changed", false).
		Set("default_password", defaultPassword).
		Where(squirrel.Eq{"id": credentialID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build reset password query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("credentialID", credentialID).Msg("Error executing reset password query")
		return fmt.Errorf("error resetting password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCredentialNotFound
	}

	return nil
}
