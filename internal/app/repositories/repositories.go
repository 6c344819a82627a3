package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	SchoolRepository      *SchoolRepository
	IdentityRepository    *IdentityRepository
	CredentialRepository  *CredentialRepository
	RoleRecordRepository  *RoleRecordRepository
	TokenRepository       *TokenRepository
	UploadAuditRepository *UploadAuditRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		SchoolRepository:      NewSchoolRepository(db),
		IdentityRepository:    NewIdentityRepository(db),
		CredentialRepository:  NewCredentialRepository(db),
		RoleRecordRepository:  NewRoleRecordRepository(db),
		TokenRepository:       NewTokenRepository(db),
		UploadAuditRepository: NewUploadAuditRepository(db),
	}
}
