package models

import "time"

// Identity defines the school-scoped person record based on the 'identities'
// table. Email is the natural key for reconciliation within a school: a
// re-import of a known email updates this row instead of creating a new one.
type Identity struct {
	ID        int64     `json:"id" db:"id"`
	SchoolID  int64     `json:"schoolId" db:"school_id"`
	FirstName string    `json:"firstName" db:"first_name"`
	LastName  string    `json:"lastName" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Role      RoleType  `json:"role" db:"role"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Credential defines the login record based on the 'credentials' table,
// 1:1 with an identity. Username is unique per school. DefaultPassword holds
// the generated plaintext so an administrator can hand it out; it is cleared
// the moment the user sets their own password.
type Credential struct {
	ID              int64     `json:"id" db:"id"`
	IdentityID      int64     `json:"identityId" db:"identity_id"`
	SchoolID        int64     `json:"schoolId" db:"school_id"`
	Username        string    `json:"username" db:"username"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	DefaultPassword *string   `json:"defaultPassword,omitempty" db:"default_password"`
	PasswordChanged bool      `json:"passwordChanged" db:"password_changed"`
	IsActive        bool      `json:"isActive" db:"is_active"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
