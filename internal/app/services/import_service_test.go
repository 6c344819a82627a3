package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/roster"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeIdentityStore struct {
	mu         sync.Mutex
	nextID     int64
	identities map[string]*models.Identity // keyed by schoolID|email
	failCreate map[string]error            // email -> error
	updates    int
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		identities: make(map[string]*models.Identity),
		failCreate: make(map[string]error),
	}
}

func identityKey(schoolID int64, email string) string {
	return fmt.Sprintf("%d|%s", schoolID, email)
}

func (s *fakeIdentityStore) FindByEmail(_ context.Context, schoolID int64, email string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity, ok := s.identities[identityKey(schoolID, email)]; ok {
		copied := *identity
		return &copied, nil
	}
	return nil, apperrors.ErrIdentityNotFound
}

func (s *fakeIdentityStore) GetIdentityByID(_ context.Context, id int64) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.identities {
		if identity.ID == id {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, apperrors.ErrIdentityNotFound
}

func (s *fakeIdentityStore) CreateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failCreate[identity.Email]; ok {
		return err
	}
	if _, ok := s.identities[identityKey(identity.SchoolID, identity.Email)]; ok {
		return apperrors.ErrEmailAlreadyExists
	}
	s.nextID++
	identity.ID = s.nextID
	copied := *identity
	s.identities[identityKey(identity.SchoolID, identity.Email)] = &copied
	return nil
}

func (s *fakeIdentityStore) UpdateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identityKey(identity.SchoolID, identity.Email)
	if _, ok := s.identities[key]; !ok {
		return apperrors.ErrIdentityNotFound
	}
	copied := *identity
	s.identities[key] = &copied
	s.updates++
	return nil
}

func (s *fakeIdentityStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

type fakeCredentialStore struct {
	mu             sync.Mutex
	nextID         int64
	byIdentity     map[int64]*models.Credential
	usernames      map[string]bool // schoolID|username
	takenOnce      map[string]int  // username -> remaining synthetic conflicts
	createAttempts int
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		byIdentity: make(map[int64]*models.Credential),
		usernames:  make(map[string]bool),
		takenOnce:  make(map[string]int),
	}
}

func usernameKey(schoolID int64, username string) string {
	return fmt.Sprintf("%d|%s", schoolID, username)
}

func (s *fakeCredentialStore) UsernameExists(_ context.Context, schoolID int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usernames[usernameKey(schoolID, username)], nil
}

func (s *fakeCredentialStore) CreateCredential(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createAttempts++
	if s.takenOnce[credential.Username] > 0 {
		s.takenOnce[credential.Username]--
		return apperrors.ErrUsernameTaken
	}
	key := usernameKey(credential.SchoolID, credential.Username)
	if s.usernames[key] {
		return apperrors.ErrUsernameTaken
	}
	if _, ok := s.byIdentity[credential.IdentityID]; ok {
		return apperrors.ErrResourceAlreadyExists
	}
	s.nextID++
	credential.ID = s.nextID
	copied := *credential
	s.byIdentity[credential.IdentityID] = &copied
	s.usernames[key] = true
	return nil
}

func (s *fakeCredentialStore) GetByIdentityID(_ context.Context, identityID int64) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credential, ok := s.byIdentity[identityID]; ok {
		copied := *credential
		return &copied, nil
	}
	return nil, apperrors.ErrCredentialNotFound
}

func (s *fakeCredentialStore) GetByUsername(_ context.Context, schoolID int64, username string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, credential := range s.byIdentity {
		if credential.SchoolID == schoolID && credential.Username == username {
			copied := *credential
			return &copied, nil
		}
	}
	return nil, apperrors.ErrCredentialNotFound
}

func (s *fakeCredentialStore) UpdatePassword(_ context.Context, credentialID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, credential := range s.byIdentity {
		if credential.ID == credentialID {
			credential.PasswordHash = passwordHash
			credential.PasswordChanged = true
			credential.DefaultPassword = nil
			return nil
		}
	}
	return apperrors.ErrCredentialNotFound
}

func (s *fakeCredentialStore) ResetPassword(_ context.Context, credentialID int64, passwordHash, defaultPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, credential := range s.byIdentity {
		if credential.ID == credentialID {
			credential.PasswordHash = passwordHash
			credential.PasswordChanged = false
			credential.DefaultPassword = &defaultPassword
			return nil
		}
	}
	return apperrors.ErrCredentialNotFound
}

func (s *fakeCredentialStore) get(identityID int64) *models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credential, ok := s.byIdentity[identityID]; ok {
		copied := *credential
		return &copied
	}
	return nil
}

func (s *fakeCredentialStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byIdentity)
}

type fakeRoleStore struct {
	mu       sync.Mutex
	upserts  map[int64]roster.Candidate
	failFor  map[int64]error
	students map[int64]*models.Student
	teachers map[int64]*models.Teacher
	staff    map[int64]*models.Staff
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		upserts:  make(map[int64]roster.Candidate),
		failFor:  make(map[int64]error),
		students: make(map[int64]*models.Student),
		teachers: make(map[int64]*models.Teacher),
		staff:    make(map[int64]*models.Staff),
	}
}

func (s *fakeRoleStore) Upsert(_ context.Context, identityID int64, candidate roster.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[identityID]; ok {
		return err
	}
	s.upserts[identityID] = candidate
	return nil
}

func (s *fakeRoleStore) GetStudentByIdentityID(_ context.Context, identityID int64) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if student, ok := s.students[identityID]; ok {
		return student, nil
	}
	return nil, apperrors.ErrResourceNotFound
}

func (s *fakeRoleStore) GetTeacherByIdentityID(_ context.Context, identityID int64) (*models.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if teacher, ok := s.teachers[identityID]; ok {
		return teacher, nil
	}
	return nil, apperrors.ErrResourceNotFound
}

func (s *fakeRoleStore) GetStaffByIdentityID(_ context.Context, identityID int64) (*models.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if staff, ok := s.staff[identityID]; ok {
		return staff, nil
	}
	return nil, apperrors.ErrResourceNotFound
}

func (s *fakeRoleStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

type fakeAuditStore struct {
	mu            sync.Mutex
	nextID        int64
	created       []*models.UploadAudit
	failCreate    error
	finalizeCalls int
	finalStatus   models.UploadStatus
	finalTotals   [3]int // total, success, failed
	finalErrorLog []string
}

func newFakeAuditStore() *fakeAuditStore { return &fakeAuditStore{} }

func (s *fakeAuditStore) CreateUploadAudit(_ context.Context, audit *models.UploadAudit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return 0, s.failCreate
	}
	s.nextID++
	audit.ID = s.nextID
	audit.Status = models.UploadProcessing
	copied := *audit
	s.created = append(s.created, &copied)
	return audit.ID, nil
}

func (s *fakeAuditStore) FinalizeUploadAudit(_ context.Context, auditID int64, status models.UploadStatus,
	totalRecords, successCount, failureCount int, errorLog []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	s.finalStatus = status
	s.finalTotals = [3]int{totalRecords, successCount, failureCount}
	s.finalErrorLog = errorLog
	return nil
}

func (s *fakeAuditStore) GetUploadAuditByID(_ context.Context, schoolID, auditID int64) (*models.UploadAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, audit := range s.created {
		if audit.ID == auditID && audit.SchoolID == schoolID {
			copied := *audit
			return &copied, nil
		}
	}
	return nil, apperrors.ErrUploadNotFound
}

func (s *fakeAuditStore) ListUploadAudits(_ context.Context, schoolID int64, _ int) ([]*models.UploadAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var audits []*models.UploadAudit
	for _, audit := range s.created {
		if audit.SchoolID == schoolID {
			copied := *audit
			audits = append(audits, &copied)
		}
	}
	return audits, nil
}

// --- helpers ---

type importFixture struct {
	service     *ImportService
	identities  *fakeIdentityStore
	credentials *fakeCredentialStore
	roles       *fakeRoleStore
	audits      *fakeAuditStore
}

func newImportFixture(cfg ImportConfig) *importFixture {
	f := &importFixture{
		identities:  newFakeIdentityStore(),
		credentials: newFakeCredentialStore(),
		roles:       newFakeRoleStore(),
		audits:      newFakeAuditStore(),
	}
	f.service = NewImportService(f.identities, f.credentials, f.roles, f.audits, cfg, zerolog.Nop())
	return f
}

func studentCSV(rows ...string) []byte {
	return []byte("first_name,last_name,email\n" + strings.Join(rows, "\n") + "\n")
}

const testSchoolID = int64(1)

// --- tests ---

func TestRunImportBatchProvisionsNewStudents(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	data := studentCSV(
		"Jane,Doe,jane@example.com",
		"John,Smith,john@example.com",
	)

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)

	assert.Equal(t, models.UploadCompleted, report.Status)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.Empty(t, report.Errors)

	assert.Equal(t, 2, f.identities.count())
	assert.Equal(t, 2, f.credentials.count())
	assert.Equal(t, 2, f.roles.count())

	identity, err := f.identities.FindByEmail(context.Background(), testSchoolID, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, identity.Role)

	credential := f.credentials.get(identity.ID)
	require.NotNil(t, credential)
	assert.Equal(t, "jane.doe", credential.Username)
	assert.False(t, credential.PasswordChanged)
	require.NotNil(t, credential.DefaultPassword)
	assert.Regexp(t, `^School\d{4}$`, *credential.DefaultPassword)
	assert.NotEmpty(t, credential.PasswordHash)
	assert.NotEqual(t, *credential.DefaultPassword, credential.PasswordHash)

	assert.Equal(t, 1, f.audits.finalizeCalls)
	assert.Equal(t, models.UploadCompleted, f.audits.finalStatus)
	assert.Equal(t, [3]int{2, 2, 0}, f.audits.finalTotals)
}

func TestRunImportBatchRowFailureDoesNotAbortBatch(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	data := studentCSV(
		"Jane,Doe,jane@example.com",
		"Bad,Row,not-an-email",
		"John,Smith,john@example.com",
	)

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)

	assert.Equal(t, models.UploadCompleted, report.Status)
	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].RowNumber)
	assert.Contains(t, report.Errors[0].Message, "validate:")
	assert.Contains(t, report.Errors[0].Message, "email")

	assert.Equal(t, 2, f.identities.count())
}

func TestRunImportBatchDuplicateNamesGetDistinctUsernames(t *testing.T) {
	f := newImportFixture(ImportConfig{Workers: 4})
	data := studentCSV(
		"Jane,Doe,jane1@example.com",
		"Jane,Doe,jane2@example.com",
	)

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SuccessCount)

	first, err := f.identities.FindByEmail(context.Background(), testSchoolID, "jane1@example.com")
	require.NoError(t, err)
	second, err := f.identities.FindByEmail(context.Background(), testSchoolID, "jane2@example.com")
	require.NoError(t, err)

	usernames := map[string]bool{
		f.credentials.get(first.ID).Username:  true,
		f.credentials.get(second.ID).Username: true,
	}
	assert.True(t, usernames["jane.doe"])
	assert.True(t, usernames["jane.doe.2"])
}

// gatedIdentityStore holds the results of the first two FindByEmail calls
// until both have looked up, so two rows sharing an email both miss the
// lookup before either gets to insert
type gatedIdentityStore struct {
	*fakeIdentityStore
	gateMu  sync.Mutex
	arrived int
	release chan struct{}
}

func (s *gatedIdentityStore) FindByEmail(ctx context.Context, schoolID int64, email string) (*models.Identity, error) {
	identity, err := s.fakeIdentityStore.FindByEmail(ctx, schoolID, email)

	s.gateMu.Lock()
	s.arrived++
	arrived := s.arrived
	if arrived == 2 {
		close(s.release)
	}
	s.gateMu.Unlock()
	if arrived <= 2 {
		<-s.release
	}
	return identity, err
}

func TestRunImportBatchDuplicateEmailsRaceToOneIdentity(t *testing.T) {
	// Two rows with the same email run on separate workers; the row that
	// loses the insert must fall back to the update path instead of failing
	identities := &gatedIdentityStore{
		fakeIdentityStore: newFakeIdentityStore(),
		release:           make(chan struct{}),
	}
	credentials := newFakeCredentialStore()
	roles := newFakeRoleStore()
	audits := newFakeAuditStore()
	service := NewImportService(identities, credentials, roles, audits, ImportConfig{Workers: 2}, zerolog.Nop())

	report, err := service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com", "Jane,Doe,jane@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.Empty(t, report.Errors)

	// Both rows reconcile to the same identity with a single credential
	assert.Equal(t, 1, identities.count())
	assert.Equal(t, 1, credentials.count())
}

func TestRunImportBatchReimportIsIdempotent(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	data := studentCSV("Jane,Doe,jane@example.com")
	ctx := context.Background()

	_, err := f.service.RunImportBatch(ctx, testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)

	identity, err := f.identities.FindByEmail(ctx, testSchoolID, "jane@example.com")
	require.NoError(t, err)
	before := f.credentials.get(identity.ID)
	require.NotNil(t, before)

	report, err := f.service.RunImportBatch(ctx, testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)

	// One identity, one credential, and the credential was not regenerated
	assert.Equal(t, 1, f.identities.count())
	assert.Equal(t, 1, f.credentials.count())
	after := f.credentials.get(identity.ID)
	assert.Equal(t, before.Username, after.Username)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, 1, f.identities.updates)
}

func TestRunImportBatchUpdatesExistingIdentityFields(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	ctx := context.Background()

	seeded := &models.Identity{
		SchoolID:  testSchoolID,
		FirstName: "Janet",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Role:      models.RoleStaff,
		IsActive:  false,
	}
	require.NoError(t, f.identities.CreateIdentity(ctx, seeded))

	_, err := f.service.RunImportBatch(ctx, testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com"))
	require.NoError(t, err)

	identity, err := f.identities.FindByEmail(ctx, testSchoolID, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, identity.ID)
	assert.Equal(t, "Jane", identity.FirstName)
	assert.Equal(t, models.RoleStudent, identity.Role)
	assert.True(t, identity.IsActive)
}

func TestRunImportBatchHealsMissingCredential(t *testing.T) {
	// Identity exists from a run that died between the identity and
	// credential writes; re-running the file provisions the credential
	f := newImportFixture(ImportConfig{})
	ctx := context.Background()

	seeded := &models.Identity{
		SchoolID: testSchoolID, FirstName: "Jane", LastName: "Doe",
		Email: "jane@example.com", Role: models.RoleStudent, IsActive: true,
	}
	require.NoError(t, f.identities.CreateIdentity(ctx, seeded))

	report, err := f.service.RunImportBatch(ctx, testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)

	credential := f.credentials.get(seeded.ID)
	require.NotNil(t, credential)
	assert.Equal(t, "jane.doe", credential.Username)
}

func TestRunImportBatchUnsupportedFormatFailsBatch(t *testing.T) {
	f := newImportFixture(ImportConfig{})

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents,
		"roster.txt", []byte("first_name,last_name,email\nJane,Doe,jane@example.com\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))

	require.NotNil(t, report)
	assert.Equal(t, models.UploadFailed, report.Status)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 0, report.Errors[0].RowNumber)

	assert.Equal(t, 1, f.audits.finalizeCalls)
	assert.Equal(t, models.UploadFailed, f.audits.finalStatus)
	assert.Equal(t, 0, f.identities.count())
}

func TestRunImportBatchEmptyFileFailsBatch(t *testing.T) {
	f := newImportFixture(ImportConfig{})

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents,
		"roster.csv", []byte("first_name,last_name,email\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyFile))
	assert.Equal(t, models.UploadFailed, report.Status)
	assert.Equal(t, models.UploadFailed, f.audits.finalStatus)
}

func TestRunImportBatchRejectsUnknownImportType(t *testing.T) {
	f := newImportFixture(ImportConfig{})

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportType("parents"),
		"roster.csv", studentCSV("Jane,Doe,jane@example.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidImportType))
	assert.Nil(t, report)
	assert.Empty(t, f.audits.created)
}

func TestRunImportBatchErrorsSortedByRowNumber(t *testing.T) {
	f := newImportFixture(ImportConfig{Workers: 4})
	data := studentCSV(
		"Bad1,Row,invalid1",
		"Jane,Doe,jane@example.com",
		"Bad2,Row,invalid2",
		"John,Smith,john@example.com",
		"Bad3,Row,invalid3",
	)

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)

	require.Len(t, report.Errors, 3)
	assert.Equal(t, 1, report.Errors[0].RowNumber)
	assert.Equal(t, 3, report.Errors[1].RowNumber)
	assert.Equal(t, 5, report.Errors[2].RowNumber)
}

func TestRunImportBatchCancelledContextLeavesAuditProcessing(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.service.RunImportBatch(ctx, testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com", "John,Smith,john@example.com"))
	require.NoError(t, err)

	assert.Equal(t, models.UploadProcessing, report.Status)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Empty(t, report.Errors)

	// The audit row is never finalized, leaving the gap visible
	assert.Equal(t, 0, f.audits.finalizeCalls)
	require.Len(t, f.audits.created, 1)
	assert.Equal(t, models.UploadProcessing, f.audits.created[0].Status)
}

func TestRunImportBatchIdentityFailureIsRowScoped(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	f.identities.failCreate["jane@example.com"] = errors.New("connection reset")

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com", "John,Smith,john@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Errors[0].RowNumber)
	assert.Contains(t, report.Errors[0].Message, "identity:")

	// No credential for the failed row
	assert.Equal(t, 1, f.credentials.count())
}

func TestRunImportBatchRetriesOnUsernameRace(t *testing.T) {
	// Simulates another process grabbing the username between the allocator
	// check and the insert; the unique-violation retry wins the second time
	f := newImportFixture(ImportConfig{})
	f.credentials.takenOnce["jane.doe"] = 1

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.GreaterOrEqual(t, f.credentials.createAttempts, 2)
}

func TestRunImportBatchCapsPersistedErrorLog(t *testing.T) {
	f := newImportFixture(ImportConfig{MaxStoredErrors: 2})
	data := studentCSV(
		"Bad1,Row,invalid1",
		"Bad2,Row,invalid2",
		"Bad3,Row,invalid3",
		"Bad4,Row,invalid4",
	)

	report, err := f.service.RunImportBatch(context.Background(), testSchoolID, models.ImportStudents, "roster.csv", data)
	require.NoError(t, err)

	// The in-memory report always carries every row error
	assert.Len(t, report.Errors, 4)

	// The persisted log is capped plus one truncation marker
	require.Len(t, f.audits.finalErrorLog, 3)
	assert.Contains(t, f.audits.finalErrorLog[0], "row 1:")
	assert.Contains(t, f.audits.finalErrorLog[2], "truncated")
}

func TestRunImportBatchRoleRecordFailureReported(t *testing.T) {
	f := newImportFixture(ImportConfig{})
	ctx := context.Background()

	// The only identity created will get ID 1
	f.roles.failFor[1] = errors.New("deadlock detected")

	report, err := f.service.RunImportBatch(ctx, testSchoolID, models.ImportStudents, "roster.csv",
		studentCSV("Jane,Doe,jane@example.com"))
	require.NoError(t, err)

	assert.Equal(t, 0, report.SuccessCount)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Message, "role record:")

	// Identity and credential writes stick; the re-run heals the row
	assert.Equal(t, 1, f.identities.count())
	assert.Equal(t, 1, f.credentials.count())
}
