package services

import (
	"context"
	"time"

	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/pkg/roster"
)

// Store interfaces abstract the persistence layer so services can be tested
// against fakes. The concrete implementations live in the repositories
// package.

// SchoolStore provides school (tenant) lookups
type SchoolStore interface {
	GetSchoolByCode(ctx context.Context, code string) (*models.School, error)
	GetSchoolByID(ctx context.Context, id int64) (*models.School, error)
}

// IdentityStore provides identity lookups and writes
type IdentityStore interface {
	FindByEmail(ctx context.Context, schoolID int64, email string) (*models.Identity, error)
	GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error)
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	UpdateIdentity(ctx context.Context, identity *models.Identity) error
}

// CredentialStore provides credential lookups and writes. UsernameExists is
// also the backing query of the username allocator.
type CredentialStore interface {
	UsernameExists(ctx context.Context, schoolID int64, username string) (bool, error)
	CreateCredential(ctx context.Context, credential *models.Credential) error
	GetByIdentityID(ctx context.Context, identityID int64) (*models.Credential, error)
	GetByUsername(ctx context.Context, schoolID int64, username string) (*models.Credential, error)
	UpdatePassword(ctx context.Context, credentialID int64, passwordHash string) error
	ResetPassword(ctx context.Context, credentialID int64, passwordHash, defaultPassword string) error
}

// RoleRecordStore reads and upserts role-specific child records by identity
type RoleRecordStore interface {
	Upsert(ctx context.Context, identityID int64, candidate roster.Candidate) error
	GetStudentByIdentityID(ctx context.Context, identityID int64) (*models.Student, error)
	GetTeacherByIdentityID(ctx context.Context, identityID int64) (*models.Teacher, error)
	GetStaffByIdentityID(ctx context.Context, identityID int64) (*models.Staff, error)
}

// TokenStore persists refresh tokens so they can be redeemed once and revoked
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, token string, identityID int64, expiryDate time.Time) error
	GetRefreshToken(ctx context.Context, token string) (int64, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeIdentityTokens(ctx context.Context, identityID int64) error
}

// UploadAuditStore persists batch audit records
type UploadAuditStore interface {
	CreateUploadAudit(ctx context.Context, audit *models.UploadAudit) (int64, error)
	FinalizeUploadAudit(ctx context.Context, auditID int64, status models.UploadStatus,
		totalRecords, successCount, failureCount int, errorLog []string) error
	GetUploadAuditByID(ctx context.Context, schoolID, auditID int64) (*models.UploadAudit, error)
	ListUploadAudits(ctx context.Context, schoolID int64, limit int) ([]*models.UploadAudit, error)
}
