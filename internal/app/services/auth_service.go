package services

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/app/models/dto"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/auth"
	"github.com/mert/schoolhub/internal/pkg/credentials"
	"github.com/rs/zerolog"
)

// AuthService handles login, token refresh and password lifecycle for
// provisioned credentials
type AuthService struct {
	schoolStore     SchoolStore
	identityStore   IdentityStore
	credentialStore CredentialStore
	tokenStore      TokenStore
	jwtService      *auth.JWTService
	passwordPrefix  string
	logger          zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	schoolStore SchoolStore,
	identityStore IdentityStore,
	credentialStore CredentialStore,
	tokenStore TokenStore,
	jwtService *auth.JWTService,
	passwordPrefix string,
	logger zerolog.Logger,
) *AuthService {
	if passwordPrefix == "" {
		passwordPrefix = "School"
	}
	return &AuthService{
		schoolStore:     schoolStore,
		identityStore:   identityStore,
		credentialStore: credentialStore,
		tokenStore:      tokenStore,
		jwtService:      jwtService,
		passwordPrefix:  passwordPrefix,
		logger:          logger,
	}
}

// Login authenticates a credential within a school and issues a token pair.
// Lookup failures and bad passwords both map to ErrInvalidCredentials so the
// response does not leak which part was wrong.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	school, err := s.schoolStore.GetSchoolByCode(ctx, req.SchoolCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrSchoolNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	credential, err := s.credentialStore.GetByUsername(ctx, school.ID, req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrCredentialNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(credential.PasswordHash, req.Password) {
		s.logger.Warn().Int64("schoolID", school.ID).Str("username", req.Username).Msg("Login failed: wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	if !credential.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	identity, err := s.identityStore.GetIdentityByID(ctx, credential.IdentityID)
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	s.logger.Info().Int64("identityID", identity.ID).Int64("schoolID", school.ID).Msg("Login succeeded")

	return s.issueTokens(ctx, identity, credential)
}

// Refresh redeems a refresh token for a fresh token pair. Tokens are single
// use: the presented one is revoked before the replacement is issued.
func (s *AuthService) Refresh(ctx context.Context, req dto.RefreshTokenRequest) (*dto.LoginResponse, error) {
	identityID, err := s.tokenStore.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.identityStore.GetIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	credential, err := s.credentialStore.GetByIdentityID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if !credential.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	if err := s.tokenStore.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("identityID", identity.ID).Msg("Token pair refreshed")

	return s.issueTokens(ctx, identity, credential)
}

// issueTokens generates a token pair and records the refresh token so it can
// be redeemed later
func (s *AuthService) issueTokens(ctx context.Context, identity *models.Identity, credential *models.Credential) (*dto.LoginResponse, error) {
	accessToken, refreshToken, expiresIn, err := s.jwtService.GenerateTokenPair(identity, credential.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token pair: %w", err)
	}

	if err := s.tokenStore.CreateRefreshToken(ctx, refreshToken, identity.ID, s.jwtService.GetRefreshTokenExpiry()); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &dto.LoginResponse{
		AccessToken:            accessToken,
		RefreshToken:           refreshToken,
		ExpiresIn:              expiresIn,
		PasswordChangeRequired: !credential.PasswordChanged,
	}, nil
}

// ChangePassword replaces the caller's password after verifying the current
// one. Marks the credential changed and clears the stored default.
func (s *AuthService) ChangePassword(ctx context.Context, identityID int64, req dto.ChangePasswordRequest) error {
	credential, err := s.credentialStore.GetByIdentityID(ctx, identityID)
	if err != nil {
		return err
	}

	if !auth.CheckPassword(credential.PasswordHash, req.CurrentPassword) {
		return apperrors.ErrInvalidCredentials
	}

	if err := validatePasswordStrength(req.NewPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.credentialStore.UpdatePassword(ctx, credential.ID, hash); err != nil {
		return err
	}

	s.logger.Info().Int64("identityID", identityID).Msg("Password changed")
	return nil
}

// ResetPassword is the administrative recovery path: it issues a fresh
// generated default for the identity and returns the plaintext so it can be
// handed to the user. The credential drops back into the first-login flow and
// outstanding refresh tokens stop working. Only identities of the caller's
// own school are reachable; a foreign one reads as not found.
func (s *AuthService) ResetPassword(ctx context.Context, schoolID, identityID int64) (string, error) {
	identity, err := s.identityStore.GetIdentityByID(ctx, identityID)
	if err != nil {
		return "", err
	}
	if identity.SchoolID != schoolID {
		return "", apperrors.ErrIdentityNotFound
	}

	credential, err := s.credentialStore.GetByIdentityID(ctx, identity.ID)
	if err != nil {
		return "", err
	}

	password, err := credentials.DefaultPassword(s.passwordPrefix)
	if err != nil {
		return "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.credentialStore.ResetPassword(ctx, credential.ID, hash, password); err != nil {
		return "", err
	}

	if err := s.tokenStore.RevokeIdentityTokens(ctx, identity.ID); err != nil {
		s.logger.Warn().Err(err).Int64("identityID", identity.ID).
			Msg("Password was reset but revoking refresh tokens failed")
	}

	s.logger.Info().Int64("identityID", identityID).Msg("Password reset to a generated default")
	return password, nil
}

// validatePasswordStrength requires at least 8 characters with one letter and
// one digit
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters long")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apperrors.NewValidationError("password must contain at least one letter and one digit")
	}

	return nil
}
