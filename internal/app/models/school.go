package models

import "time"

// School defines the tenant model based on the 'schools' table. Every
// uniqueness constraint in the roster tables is scoped to a school.
type School struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"` // Short unique handle, used at login
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
