package services

import (
	"context"
	"errors"

	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/app/models/dto"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// IdentityService serves identity profiles: the identity row joined with its
// credential username and the role record the import pipeline wrote
type IdentityService struct {
	identityStore   IdentityStore
	credentialStore CredentialStore
	roleStore       RoleRecordStore
	logger          zerolog.Logger
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(
	identityStore IdentityStore,
	credentialStore CredentialStore,
	roleStore RoleRecordStore,
	logger zerolog.Logger,
) *IdentityService {
	return &IdentityService{
		identityStore:   identityStore,
		credentialStore: credentialStore,
		roleStore:       roleStore,
		logger:          logger,
	}
}

// GetProfile returns the full profile of an identity within the caller's
// school. A foreign identity reads as not found.
func (s *IdentityService) GetProfile(ctx context.Context, schoolID, identityID int64) (*dto.IdentityProfileResponse, error) {
	identity, err := s.identityStore.GetIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.SchoolID != schoolID {
		return nil, apperrors.ErrIdentityNotFound
	}

	profile := &dto.IdentityProfileResponse{Identity: *identity}

	credential, err := s.credentialStore.GetByIdentityID(ctx, identity.ID)
	if err == nil {
		profile.Username = credential.Username
		profile.PasswordChanged = credential.PasswordChanged
	} else if !errors.Is(err, apperrors.ErrCredentialNotFound) {
		return nil, err
	}

	// A missing role record is normal for an identity whose row failed
	// between the credential and role-record writes; the re-import heals it.
	switch identity.Role {
	case models.RoleStudent:
		student, err := s.roleStore.GetStudentByIdentityID(ctx, identity.ID)
		if err != nil && !errors.Is(err, apperrors.ErrResourceNotFound) {
			return nil, err
		}
		profile.Student = student
	case models.RoleTeacher:
		teacher, err := s.roleStore.GetTeacherByIdentityID(ctx, identity.ID)
		if err != nil && !errors.Is(err, apperrors.ErrResourceNotFound) {
			return nil, err
		}
		profile.Teacher = teacher
	case models.RoleStaff:
		staff, err := s.roleStore.GetStaffByIdentityID(ctx, identity.ID)
		if err != nil && !errors.Is(err, apperrors.ErrResourceNotFound) {
			return nil, err
		}
		profile.Staff = staff
	}

	return profile, nil
}
