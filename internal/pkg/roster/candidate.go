package roster

import (
	"time"

	"github.com/mert/schoolhub/internal/app/models"
)

// Person holds the identity fields every roster row must carry
type Person struct {
	FirstName string
	LastName  string
	Email     string
}

// Candidate is a row that passed validation, as a closed union over the three
// roster kinds. Raw rows never travel past the validator boundary; everything
// downstream works with one of the concrete candidate types.
type Candidate interface {
	Person() Person
	ImportType() models.ImportType
}

// StudentCandidate is a validated student row
type StudentCandidate struct {
	Common        Person
	StudentNumber *string
	DateOfBirth   *time.Time
	AdmissionDate *time.Time
	ParentName    *string
	ParentPhone   *string
	ParentEmail   *string
	MedicalInfo   *string
}

func (c StudentCandidate) Person() Person                { return c.Common }
func (c StudentCandidate) ImportType() models.ImportType { return models.ImportStudents }

// TeacherCandidate is a validated teacher row
type TeacherCandidate struct {
	Common         Person
	EmployeeNumber *string
	Qualification  *string
	HireDate       *time.Time
}

func (c TeacherCandidate) Person() Person                { return c.Common }
func (c TeacherCandidate) ImportType() models.ImportType { return models.ImportTeachers }

// StaffCandidate is a validated staff row
type StaffCandidate struct {
	Common         Person
	EmployeeNumber *string
	Position       *string
	HireDate       *time.Time
	Salary         *float64
}

func (c StaffCandidate) Person() Person                { return c.Common }
func (c StaffCandidate) ImportType() models.ImportType { return models.ImportStaff }
