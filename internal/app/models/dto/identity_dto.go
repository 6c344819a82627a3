package dto

import "github.com/mert/schoolhub/internal/app/models"

// IdentityProfileResponse joins an identity with its credential username and
// the role record matching its role. Username is empty when no credential has
// been provisioned yet; the role record pointer is nil when the record is
// missing.
type IdentityProfileResponse struct {
	Identity        models.Identity `json:"identity"`
	Username        string          `json:"username,omitempty"`
	PasswordChanged bool            `json:"passwordChanged"`
	Student         *models.Student `json:"student,omitempty"`
	Teacher         *models.Teacher `json:"teacher,omitempty"`
	Staff           *models.Staff   `json:"staff,omitempty"`
}
