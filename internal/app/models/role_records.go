package models

import "time"

// Student defines the student role record based on the 'students' table,
// 1:1 with an identity
type Student struct {
	ID            int64      `json:"id" db:"id"`
	IdentityID    int64      `json:"identityId" db:"identity_id"`
	StudentNumber *string    `json:"studentNumber,omitempty" db:"student_number"`
	DateOfBirth   *time.Time `json:"dateOfBirth,omitempty" db:"date_of_birth"`
	AdmissionDate *time.Time `json:"admissionDate,omitempty" db:"admission_date"`
	ParentName    *string    `json:"parentName,omitempty" db:"parent_name"`
	ParentPhone   *string    `json:"parentPhone,omitempty" db:"parent_phone"`
	ParentEmail   *string    `json:"parentEmail,omitempty" db:"parent_email"`
	MedicalInfo   *string    `json:"medicalInfo,omitempty" db:"medical_info"`
	Identity      *Identity  `json:"identity,omitempty"` // Relation, no db tag
}

// Teacher defines the teacher role record based on the 'teachers' table
type Teacher struct {
	ID             int64      `json:"id" db:"id"`
	IdentityID     int64      `json:"identityId" db:"identity_id"`
	EmployeeNumber *string    `json:"employeeNumber,omitempty" db:"employee_number"`
	Qualification  *string    `json:"qualification,omitempty" db:"qualification"`
	HireDate       *time.Time `json:"hireDate,omitempty" db:"hire_date"`
	Identity       *Identity  `json:"identity,omitempty"` // Relation, no db tag
}

// Staff defines the non-teaching staff role record based on the 'staff' table
type Staff struct {
	ID             int64      `json:"id" db:"id"`
	IdentityID     int64      `json:"identityId" db:"identity_id"`
	EmployeeNumber *string    `json:"employeeNumber,omitempty" db:"employee_number"`
	Position       *string    `json:"position,omitempty" db:"position"`
	HireDate       *time.Time `json:"hireDate,omitempty" db:"hire_date"`
	Salary         *float64   `json:"salary,omitempty" db:"salary"`
	Identity       *Identity  `json:"identity,omitempty"` // Relation, no db tag
}
