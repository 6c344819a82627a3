package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mert/schoolhub/internal/app/models"
	"github.com/mert/schoolhub/internal/app/models/dto"
	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/mert/schoolhub/internal/pkg/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchoolStore struct {
	schools map[string]*models.School
}

func newFakeSchoolStore() *fakeSchoolStore {
	return &fakeSchoolStore{schools: make(map[string]*models.School)}
}

func (s *fakeSchoolStore) GetSchoolByCode(_ context.Context, code string) (*models.School, error) {
	if school, ok := s.schools[code]; ok {
		return school, nil
	}
	return nil, apperrors.ErrSchoolNotFound
}

func (s *fakeSchoolStore) GetSchoolByID(_ context.Context, id int64) (*models.School, error) {
	for _, school := range s.schools {
		if school.ID == id {
			return school, nil
		}
	}
	return nil, apperrors.ErrSchoolNotFound
}

type fakeRefreshToken struct {
	identityID int64
	expiryDate time.Time
	revoked    bool
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*fakeRefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*fakeRefreshToken)}
}

func (s *fakeTokenStore) CreateRefreshToken(_ context.Context, token string, identityID int64, expiryDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = &fakeRefreshToken{identityID: identityID, expiryDate: expiryDate}
	return nil
}

func (s *fakeTokenStore) GetRefreshToken(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok || stored.revoked {
		return 0, apperrors.ErrTokenInvalid
	}
	if stored.expiryDate.Before(time.Now()) {
		return 0, apperrors.ErrTokenExpired
	}
	return stored.identityID, nil
}

func (s *fakeTokenStore) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok {
		return apperrors.ErrTokenInvalid
	}
	stored.revoked = true
	return nil
}

func (s *fakeTokenStore) RevokeIdentityTokens(_ context.Context, identityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.tokens {
		if stored.identityID == identityID {
			stored.revoked = true
		}
	}
	return nil
}

func (s *fakeTokenStore) activeCount(identityID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, stored := range s.tokens {
		if stored.identityID == identityID && !stored.revoked {
			count++
		}
	}
	return count
}

type authFixture struct {
	service     *AuthService
	schools     *fakeSchoolStore
	identities  *fakeIdentityStore
	credentials *fakeCredentialStore
	tokens      *fakeTokenStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	f := &authFixture{
		schools:     newFakeSchoolStore(),
		identities:  newFakeIdentityStore(),
		credentials: newFakeCredentialStore(),
		tokens:      newFakeTokenStore(),
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "schoolhub.test",
	})

	f.service = NewAuthService(f.schools, f.identities, f.credentials, f.tokens, jwtService, "School", zerolog.Nop())
	return f
}

// seedAccount creates a school, identity and credential with the given
// plaintext password
func (f *authFixture) seedAccount(t *testing.T, password string, passwordChanged bool) *models.Credential {
	t.Helper()

	f.schools.schools["GHS"] = &models.School{ID: 1, Name: "Greenfield High", Code: "GHS", IsActive: true}

	identity := &models.Identity{
		SchoolID: 1, FirstName: "Jane", LastName: "Doe",
		Email: "jane@example.com", Role: models.RoleStudent, IsActive: true,
	}
	require.NoError(t, f.identities.CreateIdentity(context.Background(), identity))

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	credential := &models.Credential{
		IdentityID: identity.ID, SchoolID: 1, Username: "jane.doe",
		PasswordHash: hash, PasswordChanged: passwordChanged, IsActive: true,
	}
	require.NoError(t, f.credentials.CreateCredential(context.Background(), credential))
	return credential
}

func TestLoginSucceedsWithDefaultPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	resp, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "School0042",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.True(t, resp.PasswordChangeRequired)
}

func TestLoginPasswordChangeNotRequiredAfterChange(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "MyOwnPass1", true)

	resp, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "MyOwnPass1",
	})
	require.NoError(t, err)
	assert.False(t, resp.PasswordChangeRequired)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	_, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "wrong",
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestLoginUnknownSchoolDoesNotLeak(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	_, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "NOPE", Username: "jane.doe", Password: "School0042",
	})
	// Same error as a bad password, so probing for school codes tells nothing
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestLoginUnknownUsername(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	_, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "nobody", Password: "School0042",
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestLoginInactiveIdentityRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	identity, err := f.identities.FindByEmail(context.Background(), 1, "jane@example.com")
	require.NoError(t, err)
	identity.IsActive = false
	require.NoError(t, f.identities.UpdateIdentity(context.Background(), identity))

	_, err = f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "School0042",
	})
	assert.True(t, errors.Is(err, apperrors.ErrAccountDisabled))
}

func TestChangePasswordFlipsFlagAndClearsDefault(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "School0042", false)

	err := f.service.ChangePassword(context.Background(), credential.IdentityID, dto.ChangePasswordRequest{
		CurrentPassword: "School0042",
		NewPassword:     "MyOwnPass1",
	})
	require.NoError(t, err)

	updated := f.credentials.get(credential.IdentityID)
	assert.True(t, updated.PasswordChanged)
	assert.Nil(t, updated.DefaultPassword)
	assert.True(t, auth.CheckPassword(updated.PasswordHash, "MyOwnPass1"))

	resp, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "MyOwnPass1",
	})
	require.NoError(t, err)
	assert.False(t, resp.PasswordChangeRequired)
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "School0042", false)

	err := f.service.ChangePassword(context.Background(), credential.IdentityID, dto.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "MyOwnPass1",
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestChangePasswordEnforcesStrength(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "School0042", false)

	tests := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1"},
		{"no digit", "OnlyLetters"},
		{"no letter", "12345678"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.ChangePassword(context.Background(), credential.IdentityID, dto.ChangePasswordRequest{
				CurrentPassword: "School0042",
				NewPassword:     tt.password,
			})
			assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
		})
	}
}

func TestResetPasswordIssuesFreshDefault(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "MyOwnPass1", true)

	password, err := f.service.ResetPassword(context.Background(), 1, credential.IdentityID)
	require.NoError(t, err)
	assert.Regexp(t, `^School\d{4}$`, password)

	updated := f.credentials.get(credential.IdentityID)
	assert.False(t, updated.PasswordChanged)
	require.NotNil(t, updated.DefaultPassword)
	assert.Equal(t, password, *updated.DefaultPassword)
	assert.True(t, auth.CheckPassword(updated.PasswordHash, password))

	// The old password no longer works
	_, err = f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "MyOwnPass1",
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestResetPasswordUnknownIdentity(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.ResetPassword(context.Background(), 1, 999)
	assert.True(t, errors.Is(err, apperrors.ErrIdentityNotFound))
}

func TestResetPasswordScopedToCallerSchool(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "MyOwnPass1", true)

	// An admin of another school cannot reach this identity
	_, err := f.service.ResetPassword(context.Background(), 2, credential.IdentityID)
	assert.True(t, errors.Is(err, apperrors.ErrIdentityNotFound))

	// The credential is untouched and the password still works
	untouched := f.credentials.get(credential.IdentityID)
	assert.True(t, untouched.PasswordChanged)
	assert.True(t, auth.CheckPassword(untouched.PasswordHash, "MyOwnPass1"))
}

func TestResetPasswordRevokesRefreshTokens(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "School0042", false)

	resp, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "School0042",
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.tokens.activeCount(credential.IdentityID))

	_, err = f.service.ResetPassword(context.Background(), 1, credential.IdentityID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.tokens.activeCount(credential.IdentityID))
	_, err = f.service.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	login, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "School0042",
	})
	require.NoError(t, err)

	refreshed, err := f.service.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, refreshed.PasswordChangeRequired)

	// The presented token is single use
	_, err = f.service.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestRefreshUnknownTokenRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	_, err := f.service.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: "nope"})
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestRefreshExpiredTokenRejected(t *testing.T) {
	f := newAuthFixture(t)
	credential := f.seedAccount(t, "School0042", false)

	require.NoError(t, f.tokens.CreateRefreshToken(context.Background(), "stale", credential.IdentityID,
		time.Now().Add(-time.Minute)))

	_, err := f.service.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: "stale"})
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
}

func TestRefreshInactiveIdentityRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "School0042", false)

	login, err := f.service.Login(context.Background(), dto.LoginRequest{
		SchoolCode: "GHS", Username: "jane.doe", Password: "School0042",
	})
	require.NoError(t, err)

	identity, err := f.identities.FindByEmail(context.Background(), 1, "jane@example.com")
	require.NoError(t, err)
	identity.IsActive = false
	require.NoError(t, f.identities.UpdateIdentity(context.Background(), identity))

	_, err = f.service.Refresh(context.Background(), dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.True(t, errors.Is(err, apperrors.ErrAccountDisabled))
}
