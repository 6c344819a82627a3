package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/app/models/dto"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/auth"
	"github.com/mert/schoolhub/internal/pkg/credentials"
	"github.com/mert/schoolhub/internal/pkg/roster"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxAllocateAttempts bounds the username allocation retry loop when another
// process wins the same handle between allocation and insert
const maxAllocateAttempts = 3

// Define custom error types for the import service
var (
	ErrInvalidImportType = errors.New("invalid import type")
)

// ImportConfig tunes one orchestrator instance
type ImportConfig struct {
	// Workers bounds the per-batch worker pool
	Workers int
	// MaxStoredErrors caps the persisted audit error log; the in-memory
	// BatchReport always carries every row error
	MaxStoredErrors int
	// PasswordPrefix prefixes generated default passwords
	PasswordPrefix string
}

// RowOutcome is the per-row result of a batch, correlated to the source file
// by RowNumber
type RowOutcome struct {
	RowNumber  int
	Success    bool
	IdentityID int64
	Message    string
}

// stepError tags a row failure with the pipeline sub-step it happened in, so
// operators can tell a validation reject from a half-written row
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func failedStep(step string, err error) *stepError {
	return &stepError{step: step, err: err}
}

// ImportService drives the roster import pipeline: parse, validate,
// reconcile identities, provision credentials, upsert role records, and
// audit the batch. Row side effects are not transactional; every write is
// upsert-shaped so re-running a file heals rows that failed halfway.
type ImportService struct {
	identityStore   IdentityStore
	credentialStore CredentialStore
	roleStore       RoleRecordStore
	auditStore      UploadAuditStore
	allocator       *credentials.Allocator
	cfg             ImportConfig
	logger          zerolog.Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	identityStore IdentityStore,
	credentialStore CredentialStore,
	roleStore RoleRecordStore,
	auditStore UploadAuditStore,
	cfg ImportConfig,
	logger zerolog.Logger,
) *ImportService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxStoredErrors <= 0 {
		cfg.MaxStoredErrors = 200
	}
	if cfg.PasswordPrefix == "" {
		cfg.PasswordPrefix = "School"
	}

	return &ImportService{
		identityStore:   identityStore,
		credentialStore: credentialStore,
		roleStore:       roleStore,
		auditStore:      auditStore,
		allocator:       credentials.NewAllocator(credentialStore),
		cfg:             cfg,
		logger:          logger,
	}
}

// RunImportBatch runs one batch over one roster file. Row-level problems
// never surface as an error: they are folded into the returned BatchReport.
// The returned error is non-nil only for the batch-fatal cases (unreadable
// file, no data rows, or the audit row itself cannot be created).
func (s *ImportService) RunImportBatch(ctx context.Context, schoolID int64, importType models.ImportType,
	fileName string, data []byte) (*dto.BatchReport, error) {

	if !importType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImportType, importType)
	}

	// The audit row is written before parsing so a crash mid-batch still
	// leaves a discoverable record in processing state.
	audit := &models.UploadAudit{
		SchoolID:   schoolID,
		UploadType: importType,
		FileName:   fileName,
	}
	auditID, err := s.auditStore.CreateUploadAudit(ctx, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload audit: %w", err)
	}

	s.logger.Info().Int64("schoolID", schoolID).Str("importType", string(importType)).
		Str("fileName", fileName).Int64("uploadID", auditID).Msg("Import batch started")

	rows, err := roster.Parse(fileName, data)
	if err != nil {
		s.finalizeAudit(ctx, auditID, models.UploadFailed, 0, 0, 0, []string{err.Error()})
		report := &dto.BatchReport{
			UploadID: auditID,
			Status:   models.UploadFailed,
			Errors:   []dto.RowError{{RowNumber: 0, Message: err.Error()}},
		}
		return report, err
	}

	outcomes := make([]*RowOutcome, len(rows))
	group := new(errgroup.Group)
	group.SetLimit(s.cfg.Workers)

	dispatched := 0
	for i := range rows {
		// On cancellation stop handing out new rows; in-flight rows finish
		// and are recorded.
		if ctx.Err() != nil {
			break
		}
		i := i
		group.Go(func() error {
			outcome := s.processRow(ctx, schoolID, importType, rows[i])
			outcomes[i] = &outcome
			return nil
		})
		dispatched++
	}
	_ = group.Wait()

	report := s.buildReport(auditID, len(rows), outcomes)

	if dispatched < len(rows) {
		// Partial batch: the audit stays in processing state so the gap is
		// visible; the report covers exactly the rows attempted.
		report.Status = models.UploadProcessing
		s.logger.Warn().Int64("uploadID", auditID).Int("dispatched", dispatched).
			Int("totalRows", len(rows)).Msg("Import batch cancelled before all rows were dispatched")
		return report, nil
	}

	report.Status = models.UploadCompleted
	s.finalizeAudit(ctx, auditID, models.UploadCompleted, report.TotalRows,
		report.SuccessCount, report.FailureCount, s.auditErrorLog(report.Errors))

	s.logger.Info().Int64("uploadID", auditID).Int("totalRows", report.TotalRows).
		Int("success", report.SuccessCount).Int("failed", report.FailureCount).Msg("Import batch completed")

	return report, nil
}

// GetUpload returns one upload audit scoped to a school
func (s *ImportService) GetUpload(ctx context.Context, schoolID, uploadID int64) (*models.UploadAudit, error) {
	return s.auditStore.GetUploadAuditByID(ctx, schoolID, uploadID)
}

// ListUploads returns the upload audits of a school, newest first
func (s *ImportService) ListUploads(ctx context.Context, schoolID int64, limit int) ([]*models.UploadAudit, error) {
	return s.auditStore.ListUploadAudits(ctx, schoolID, limit)
}

// processRow runs a single row through validate → reconcile → credential →
// role record. Any failure is caught here and reported as the row's outcome;
// it never aborts the batch.
func (s *ImportService) processRow(ctx context.Context, schoolID int64, importType models.ImportType, row roster.Row) RowOutcome {
	outcome := RowOutcome{RowNumber: row.RowNumber}

	candidate, verr := roster.ValidateRow(row, importType)
	if verr != nil {
		outcome.Message = failedStep("validate", verr).Error()
		return outcome
	}

	identity, isNew, err := s.reconcileIdentity(ctx, schoolID, importType, candidate)
	if err != nil {
		outcome.Message = failedStep("identity", err).Error()
		return outcome
	}
	outcome.IdentityID = identity.ID

	if err := s.ensureCredential(ctx, identity, isNew); err != nil {
		outcome.Message = failedStep("credential", err).Error()
		return outcome
	}

	if err := s.roleStore.Upsert(ctx, identity.ID, candidate); err != nil {
		outcome.Message = failedStep("role record", err).Error()
		return outcome
	}

	outcome.Success = true
	return outcome
}

// reconcileIdentity matches the candidate to an existing identity by
// (school, email) and updates it, or creates a fresh one
func (s *ImportService) reconcileIdentity(ctx context.Context, schoolID int64, importType models.ImportType,
	candidate roster.Candidate) (*models.Identity, bool, error) {

	person := candidate.Person()

	identity, err := s.identityStore.FindByEmail(ctx, schoolID, person.Email)
	if err == nil {
		return s.refreshIdentity(ctx, identity, person, importType)
	}
	if !errors.Is(err, apperrors.ErrIdentityNotFound) {
		return nil, false, err
	}

	identity = &models.Identity{
		SchoolID:  schoolID,
		FirstName: person.FirstName,
		LastName:  person.LastName,
		Email:     person.Email,
		Role:      importType.Role(),
		IsActive:  true,
	}
	err = s.identityStore.CreateIdentity(ctx, identity)
	if err == nil {
		return identity, true, nil
	}
	if !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
		return nil, false, err
	}

	// Another row carrying the same email won the insert between our lookup
	// and create; reconcile against the winner's row.
	identity, err = s.identityStore.FindByEmail(ctx, schoolID, person.Email)
	if err != nil {
		return nil, false, err
	}
	return s.refreshIdentity(ctx, identity, person, importType)
}

func (s *ImportService) refreshIdentity(ctx context.Context, identity *models.Identity, person roster.Person,
	importType models.ImportType) (*models.Identity, bool, error) {

	identity.FirstName = person.FirstName
	identity.LastName = person.LastName
	identity.Role = importType.Role()
	identity.IsActive = true
	if err := s.identityStore.UpdateIdentity(ctx, identity); err != nil {
		return nil, false, err
	}
	return identity, false, nil
}

// ensureCredential provisions a credential for new identities, and for
// existing ones only when none is on record (healing a row that previously
// failed between the identity and credential writes). Existing credentials
// are never regenerated by an import.
func (s *ImportService) ensureCredential(ctx context.Context, identity *models.Identity, isNew bool) error {
	if !isNew {
		_, err := s.credentialStore.GetByIdentityID(ctx, identity.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrCredentialNotFound) {
			return err
		}
	}

	return s.provisionCredential(ctx, identity)
}

func (s *ImportService) provisionCredential(ctx context.Context, identity *models.Identity) error {
	base := credentials.BaseUsername(identity.FirstName, identity.LastName)

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		username, err := s.allocator.Allocate(ctx, identity.SchoolID, base)
		if err != nil {
			return err
		}

		password, err := credentials.DefaultPassword(s.cfg.PasswordPrefix)
		if err != nil {
			s.allocator.Release(identity.SchoolID, username)
			return err
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			s.allocator.Release(identity.SchoolID, username)
			return fmt.Errorf("failed to hash default password: %w", err)
		}

		credential := &models.Credential{
			IdentityID:      identity.ID,
			SchoolID:        identity.SchoolID,
			Username:        username,
			PasswordHash:    hash,
			DefaultPassword: &password,
			PasswordChanged: false,
			IsActive:        true,
		}

		err = s.credentialStore.CreateCredential(ctx, credential)
		s.allocator.Release(identity.SchoolID, username)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperrors.ErrUsernameTaken) {
			// Another process won the handle between our check and insert
			continue
		}
		if errors.Is(err, apperrors.ErrResourceAlreadyExists) {
			// A concurrent row reconciled to the same identity and provisioned
			// its credential first
			return nil
		}
		return err
	}

	return fmt.Errorf("could not allocate a unique username from %q after %d attempts", base, maxAllocateAttempts)
}

// buildReport folds the outcome slice into the caller-facing report.
// Outcomes are indexed by source position, so after dropping un-started rows
// the error list is sorted back to ascending row number.
func (s *ImportService) buildReport(auditID int64, totalRows int, outcomes []*RowOutcome) *dto.BatchReport {
	report := &dto.BatchReport{
		UploadID:  auditID,
		TotalRows: totalRows,
		Errors:    []dto.RowError{},
	}

	attempted := make([]RowOutcome, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome != nil {
			attempted = append(attempted, *outcome)
		}
	}
	sort.Slice(attempted, func(i, j int) bool { return attempted[i].RowNumber < attempted[j].RowNumber })

	for _, outcome := range attempted {
		if outcome.Success {
			report.SuccessCount++
			continue
		}
		report.FailureCount++
		report.Errors = append(report.Errors, dto.RowError{
			RowNumber: outcome.RowNumber,
			Message:   outcome.Message,
		})
	}

	return report
}

// auditErrorLog renders row errors for persistence, capped so one pathological
// file cannot bloat the audit table
func (s *ImportService) auditErrorLog(rowErrors []dto.RowError) []string {
	log := make([]string, 0, len(rowErrors))
	for _, rowErr := range rowErrors {
		if len(log) >= s.cfg.MaxStoredErrors {
			log = append(log, fmt.Sprintf("... %d more errors truncated", len(rowErrors)-s.cfg.MaxStoredErrors))
			break
		}
		log = append(log, fmt.Sprintf("row %d: %s", rowErr.RowNumber, rowErr.Message))
	}
	return log
}

// finalizeAudit closes the audit row. A failed audit write is logged and
// swallowed: the in-memory report is already correct and must reach the
// caller regardless.
func (s *ImportService) finalizeAudit(ctx context.Context, auditID int64, status models.UploadStatus,
	totalRecords, successCount, failureCount int, errorLog []string) {

	err := s.auditStore.FinalizeUploadAudit(ctx, auditID, status, totalRecords, successCount, failureCount, errorLog)
	if err != nil {
		s.logger.Error().Err(err).Int64("uploadID", auditID).Msg("Failed to finalize upload audit")
	}
}
