package seed

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	appModels "github.com/mert/schoolhub/internal/app/models"
	appRepos "github.com/mert/schoolhub/internal/app/repositories"
	"github.com/mert/schoolhub/internal/config"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/auth"
	"github.com/mert/schoolhub/internal/pkg/credentials"
)

const (
	defaultSchoolName = "Greenfield High School"
	defaultSchoolCode = "GHS"
	adminEmail        = "admin@schoolhub.local"
	adminUsername     = "admin"
)

// CreateDefaultSchool makes sure one school and its admin account exist so a
// fresh deployment can log in and start uploading rosters. Bootstrapping the
// first tenant is deliberately a fixture concern, outside the import
// pipeline. Idempotent across restarts.
func CreateDefaultSchool(ctx context.Context, dbPool *pgxpool.Pool, cfg *config.Config, lgr zerolog.Logger) error {
	schoolRepo := appRepos.NewSchoolRepository(dbPool)
	identityRepo := appRepos.NewIdentityRepository(dbPool)
	credentialRepo := appRepos.NewCredentialRepository(dbPool)

	lgr.Info().Msg("Checking/Creating default school and admin account...")

	school := &appModels.School{Name: defaultSchoolName, Code: defaultSchoolCode, IsActive: true}
	schoolID, err := schoolRepo.CreateSchool(ctx, school)
	if errors.Is(err, apperrors.ErrResourceAlreadyExists) {
		existing, getErr := schoolRepo.GetSchoolByCode(ctx, defaultSchoolCode)
		if getErr != nil {
			lgr.Error().Err(getErr).Msg("Error looking up existing default school")
			return getErr
		}
		schoolID = existing.ID
	} else if err != nil {
		lgr.Error().Err(err).Msg("Error creating default school")
		return err
	}

	if _, err := identityRepo.FindByEmail(ctx, schoolID, adminEmail); err == nil {
		lgr.Info().Msg("Admin account already exists, skipping creation")
		return nil
	} else if !errors.Is(err, apperrors.ErrIdentityNotFound) {
		lgr.Error().Err(err).Msg("Error checking for existing admin account")
		return err
	}

	lgr.Info().Msg("Creating default admin account...")

	identity := &appModels.Identity{
		SchoolID:  schoolID,
		FirstName: "System",
		LastName:  "Administrator",
		Email:     adminEmail,
		Role:      appModels.RoleAdmin,
		IsActive:  true,
	}
	if err := identityRepo.CreateIdentity(ctx, identity); err != nil {
		lgr.Error().Err(err).Msg("Error creating admin identity")
		return err
	}

	password, err := credentials.DefaultPassword(cfg.Import.PasswordPrefix)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		lgr.Error().Err(err).Msg("Error hashing admin password")
		return err
	}

	credential := &appModels.Credential{
		IdentityID:      identity.ID,
		SchoolID:        schoolID,
		Username:        adminUsername,
		PasswordHash:    hash,
		DefaultPassword: &password,
		PasswordChanged: false,
		IsActive:        true,
	}
	if err := credentialRepo.CreateCredential(ctx, credential); err != nil {
		lgr.Error().Err(err).Msg("Error creating admin credential")
		return err
	}

	// The generated password is logged once so the operator can pick it up;
	// it must be changed on first login.
	lgr.Info().
		Int64("schoolID", schoolID).
		Str("username", adminUsername).
		Str("defaultPassword", password).
		Msg("Default admin account created")

	return nil
}
