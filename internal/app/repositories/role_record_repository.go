package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/logger"
	"github.com/mert/schoolhub/internal/pkg/roster"
)

// RoleRecordRepository upserts the role-specific child records (students,
// teachers, staff) keyed by identity. Upserting keeps re-imports of the same
// person idempotent: running the same file twice overwrites the role fields
// instead of duplicating rows.
type RoleRecordRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewRoleRecordRepository creates a new RoleRecordRepository
func NewRoleRecordRepository(db *pgxpool.Pool) *RoleRecordRepository {
	return &RoleRecordRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert writes the role record matching the candidate's type for the given
// identity, creating it if absent and overwriting the role fields otherwise
func (r *RoleRecordRepository) Upsert(ctx context.Context, identityID int64, candidate roster.Candidate) error {
	switch c := candidate.(type) {
	case roster.StudentCandidate:
		return r.upsertStudent(ctx, identityID, c)
	case roster.TeacherCandidate:
		return r.upsertTeacher(ctx, identityID, c)
	case roster.StaffCandidate:
		return r.upsertStaff(ctx, identityID, c)
	default:
		return fmt.Errorf("unknown candidate type %T", candidate)
	}
}

func (r *RoleRecordRepository) upsertStudent(ctx context.Context, identityID int64, c roster.StudentCandidate) error {
	sql, args, err := r.sb.Insert("students").
		Columns("identity_id", "student_number", "date_of_birth", "admission_date",
			"parent_name", "parent_phone", "parent_email", "medical_info").
		Values(identityID, c.StudentNumber, c.DateOfBirth, c.AdmissionDate,
			c.ParentName, c.ParentPhone, c.ParentEmail, c.MedicalInfo).
		Suffix(`ON CONFLICT (identity_id) DO UPDATE SET
			student_number = EXCLUDED.student_number,
			date_of_birth = EXCLUDED.date_of_birth,
			admission_date = EXCLUDED.admission_date,
			parent_name = EXCLUDED.parent_name,
			parent_phone = EXCLUDED.parent_phone,
			parent_email = EXCLUDED.parent_email,
			medical_info = EXCLUDED.medical_info`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert student query: %w", err)
	}

	if _, err = r.db.Exec(ctx, sql, args...); err != nil {
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error executing upsert student query")
		return fmt.Errorf("error upserting student record: %w", err)
	}
	return nil
}

func (r *RoleRecordRepository) upsertTeacher(ctx context.Context, identityID int64, c roster.TeacherCandidate) error {
	sql, args, err := r.sb.Insert("teachers").
		Columns("identity_id", "employee_number", "qualification", "hire_date").
		Values(identityID, c.EmployeeNumber, c.Qualification, c.HireDate).
		Suffix(`ON CONFLICT (identity_id) DO UPDATE SET
			employee_number = EXCLUDED.employee_number,
			qualification = EXCLUDED.qualification,
			hire_date = EXCLUDED.hire_date`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert teacher query: %w", err)
	}

	if _, err = r.db.Exec(ctx, sql, args...); err != nil {
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error executing upsert teacher query")
		return fmt.Errorf("error upserting teacher record: %w", err)
	}
	return nil
}

// GetStudentByIdentityID retrieves the student record of an identity
func (r *RoleRecordRepository) GetStudentByIdentityID(ctx context.Context, identityID int64) (*models.Student, error) {
	sql, args, err := r.sb.Select("id", "identity_id", "student_number", "date_of_birth", "admission_date",
		"parent_name", "parent_phone", "parent_email", "medical_info").
		From("students").
		Where(squirrel.Eq{"identity_id": identityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	var student models.Student
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&student.ID, &student.IdentityID, &student.StudentNumber, &student.DateOfBirth,
		&student.AdmissionDate, &student.ParentName, &student.ParentPhone,
		&student.ParentEmail, &student.MedicalInfo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrResourceNotFound
		}
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error scanning student row")
		return nil, fmt.Errorf("error retrieving student record: %w", err)
	}

	return &student, nil
}

// GetTeacherByIdentityID retrieves the teacher record of an identity
func (r *RoleRecordRepository) GetTeacherByIdentityID(ctx context.Context, identityID int64) (*models.Teacher, error) {
	sql, args, err := r.sb.Select("id", "identity_id", "employee_number", "qualification", "hire_date").
		From("teachers").
		Where(squirrel.Eq{"identity_id": identityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get teacher query: %w", err)
	}

	var teacher models.Teacher
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&teacher.ID, &teacher.IdentityID, &teacher.EmployeeNumber, &teacher.Qualification, &teacher.HireDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrResourceNotFound
		}
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error scanning teacher row")
		return nil, fmt.Errorf("error retrieving teacher record: %w", err)
	}

	return &teacher, nil
}

// GetStaffByIdentityID retrieves the staff record of an identity
func (r *RoleRecordRepository) GetStaffByIdentityID(ctx context.Context, identityID int64) (*models.Staff, error) {
	sql, args, err := r.sb.Select("id", "identity_id", "employee_number", "position", "hire_date", "salary").
		From("staff").
		Where(squirrel.Eq{"identity_id": identityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get staff query: %w", err)
	}

	var staff models.Staff
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&staff.ID, &staff.IdentityID, &staff.EmployeeNumber, &staff.Position, &staff.HireDate, &staff.Salary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrResourceNotFound
		}
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error scanning staff row")
		return nil, fmt.Errorf("error retrieving staff record: %w", err)
	}

	return &staff, nil
}

func (r *RoleRecordRepository) upsertStaff(ctx context.Context, identityID int64, c roster.StaffCandidate) error {
	sql, args, err := r.sb.Insert("staff").
		Columns("identity_id", "employee_number", "position", "hire_date", "salary").
		Values(identityID, c.EmployeeNumber, c.Position, c.HireDate, c.Salary).
		Suffix(`ON CONFLICT (identity_id) DO UPDATE SET
			employee_number = EXCLUDED.employee_number,
			position = EXCLUDED.position,
			hire_date = EXCLUDED.hire_date,
			salary = EXCLUDED.salary`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert staff query: %w", err)
	}

	if _, err = r.db.Exec(ctx, sql, args...); err != nil {
		logger.Error().Err(err).Int64("identityID", identityID).Msg("Error executing upsert staff query")
		return fmt.Errorf("error upserting staff record: %w", err)
	}
	return nil
}
