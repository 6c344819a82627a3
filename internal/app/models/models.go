package models

// RoleType defines the role attached to an identity
type RoleType string

const (
	RoleAdmin   RoleType = "ADMIN"
	RoleStudent RoleType = "STUDENT"
	RoleTeacher RoleType = "TEACHER"
	RoleStaff   RoleType = "STAFF"
)

// ImportType is the kind of roster being imported. The values double as the
// persisted upload_type column, so they stay lowercase plural.
type ImportType string

const (
	ImportStudents ImportType = "students"
	ImportTeachers ImportType = "teachers"
	ImportStaff    ImportType = "staff"
)

// Valid reports whether the import type is one of the known kinds
func (t ImportType) Valid() bool {
	switch t {
	case ImportStudents, ImportTeachers, ImportStaff:
		return true
	}
	return false
}

// Role returns the identity role provisioned by this import type
func (t ImportType) Role() RoleType {
	switch t {
	case ImportStudents:
		return RoleStudent
	case ImportTeachers:
		return RoleTeacher
	case ImportStaff:
		return RoleStaff
	}
	return ""
}

// UploadStatus is the lifecycle state of an upload audit record
type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)
