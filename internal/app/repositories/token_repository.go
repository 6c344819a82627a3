package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/dberrors"
	"github.com/mert/schoolhub/internal/pkg/logger"
)

// TokenRepository handles refresh token database operations
type TokenRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateRefreshToken stores a refresh token for an identity
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token string, identityID int64, expiryDate time.Time) error {
	sql, args, err := r.sb.Insert("refresh_tokens").
		Columns("token", "identity_id", "expiry_date").
		Values(token, identityID, expiryDate).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create refresh token query: %w", err)
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "refresh_tokens_token_key") {
			logger.Warn().Int64("identityID", identityID).Msg("Refresh token value collided")
			return apperrors.ErrTokenInvalid
		}
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error executing create refresh token query")
		return fmt.Errorf("error creating refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken resolves a live refresh token to its identity. Unknown and
// revoked tokens read as invalid; an expired one is reported as expired.
func (r *TokenRepository) GetRefreshToken(ctx context.Context, token string) (int64, error) {
	sql, args, err := r.sb.Select("identity_id", "expiry_date", "is_revoked").
		From("refresh_tokens").
		Where(squirrel.Eq{"token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build get refresh token query: %w", err)
	}

	var identityID int64
	var expiryDate time.Time
	var isRevoked bool
	err = r.db.QueryRow(ctx, sql, args...).Scan(&identityID, &expiryDate, &isRevoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrTokenInvalid
		}
		logger.Error().Err(err).Msg("Error scanning refresh token row")
		return 0, fmt.Errorf("error retrieving refresh token: %w", err)
	}

	if isRevoked {
		return 0, apperrors.ErrTokenInvalid
	}
	if expiryDate.Before(time.Now()) {
		return 0, apperrors.ErrTokenExpired
	}

	return identityID, nil
}

// RevokeRefreshToken marks a single refresh token as spent
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	sql, args, err := r.sb.Update("refresh_tokens").
		Set("is_revoked", true).
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build revoke refresh token query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing revoke refresh token query")
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTokenInvalid
	}

	return nil
}

// RevokeIdentityTokens revokes every active refresh token of an identity.
// Having none is not an error.
func (r *TokenRepository) RevokeIdentityTokens(ctx context.Context, identityID int64) error {
	sql, args, err := r.sb.Update("refresh_tokens").
		Set("is_revoked", true).
		Where(squirrel.Eq{"identity_id": identityID, "is_revoked": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build revoke identity tokens query: %w", err)
	}

	if _, err = r.db.Exec(ctx, sql, args...); err != nil {
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error executing revoke identity tokens query")
		return fmt.Errorf("error revoking identity tokens: %w", err)
	}

	return nil
}
