package roster

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mert/schoolhub/internal/app/models"
)

var validate = validator.New()

// dateLayout is the accepted calendar date format for *_date columns
const dateLayout = "2006-01-02"

// ValidationError describes why a single row was rejected. It never affects
// any other row of the batch.
type ValidationError struct {
	RowNumber int
	Field     string
	Reason    string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func newValidationError(row Row, field, reason string) *ValidationError {
	return &ValidationError{RowNumber: row.RowNumber, Field: field, Reason: reason}
}

// ValidateRow checks one raw row against the schema of the given import type
// and produces a typed candidate. The first failing field wins; a row yields
// at most one validation error.
func ValidateRow(row Row, importType models.ImportType) (Candidate, *ValidationError) {
	person, verr := validatePerson(row)
	if verr != nil {
		return nil, verr
	}

	switch importType {
	case models.ImportStudents:
		return validateStudent(row, person)
	case models.ImportTeachers:
		return validateTeacher(row, person)
	case models.ImportStaff:
		return validateStaff(row, person)
	default:
		return nil, newValidationError(row, "import_type", fmt.Sprintf("unknown import type %q", importType))
	}
}

func validatePerson(row Row) (Person, *ValidationError) {
	firstName := row.Field("first_name")
	if firstName == "" {
		return Person{}, newValidationError(row, "first_name", "is required")
	}

	lastName := row.Field("last_name")
	if lastName == "" {
		return Person{}, newValidationError(row, "last_name", "is required")
	}

	email := row.Field("email")
	if email == "" {
		return Person{}, newValidationError(row, "email", "is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return Person{}, newValidationError(row, "email", fmt.Sprintf("%q is not a valid email address", email))
	}

	return Person{FirstName: firstName, LastName: lastName, Email: email}, nil
}

func validateStudent(row Row, person Person) (Candidate, *ValidationError) {
	candidate := StudentCandidate{Common: person}
	candidate.StudentNumber = optionalString(row, "student_id")
	candidate.ParentName = optionalString(row, "parent_name")
	candidate.ParentPhone = optionalString(row, "parent_phone")
	candidate.MedicalInfo = optionalString(row, "medical_info")

	var verr *ValidationError
	if candidate.DateOfBirth, verr = optionalDate(row, "date_of_birth"); verr != nil {
		return nil, verr
	}
	if candidate.AdmissionDate, verr = optionalDate(row, "admission_date"); verr != nil {
		return nil, verr
	}

	if parentEmail := row.Field("parent_email"); parentEmail != "" {
		if err := validate.Var(parentEmail, "email"); err != nil {
			return nil, newValidationError(row, "parent_email", fmt.Sprintf("%q is not a valid email address", parentEmail))
		}
		candidate.ParentEmail = &parentEmail
	}

	return candidate, nil
}

func validateTeacher(row Row, person Person) (Candidate, *ValidationError) {
	candidate := TeacherCandidate{Common: person}
	candidate.EmployeeNumber = optionalString(row, "employee_id")
	candidate.Qualification = optionalString(row, "qualification")

	var verr *ValidationError
	if candidate.HireDate, verr = optionalDate(row, "hire_date"); verr != nil {
		return nil, verr
	}

	return candidate, nil
}

func validateStaff(row Row, person Person) (Candidate, *ValidationError) {
	candidate := StaffCandidate{Common: person}
	candidate.EmployeeNumber = optionalString(row, "employee_id")
	candidate.Position = optionalString(row, "position")

	var verr *ValidationError
	if candidate.HireDate, verr = optionalDate(row, "hire_date"); verr != nil {
		return nil, verr
	}

	if salary := row.Field("salary"); salary != "" {
		value, err := strconv.ParseFloat(salary, 64)
		if err != nil {
			return nil, newValidationError(row, "salary", fmt.Sprintf("%q is not a number", salary))
		}
		candidate.Salary = &value
	}

	return candidate, nil
}

func optionalString(row Row, field string) *string {
	value := row.Field(field)
	if value == "" {
		return nil
	}
	return &value
}

func optionalDate(row Row, field string) (*time.Time, *ValidationError) {
	value := row.Field(field)
	if value == "" {
		return nil, nil
	}

	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, newValidationError(row, field, fmt.Sprintf("%q is not a valid date (expected %s)", value, dateLayout))
	}
	return &parsed, nil
}
