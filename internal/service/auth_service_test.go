package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]*models.User
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{users: map[string]*models.User{}}
}

func (m *mockAuthRepo) find(match func(*models.User) bool) (*models.User, error) {
	for _, user := range m.users {
		if match(user) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockAuthRepo) FindByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.RefreshToken != nil && *u.RefreshToken == token })
}

func (m *mockAuthRepo) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (m *mockAuthRepo) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if _, err := m.FindByEmail(ctx, user.Email); err == nil {
		return repository.ErrEmailTaken
	}
	user.ID = uuid.NewString()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockAuthRepo) SetRefreshToken(ctx context.Context, userID string, token *string) error {
	m.users[userID].RefreshToken = token
	return nil
}

func (m *mockAuthRepo) SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error {
	m.users[userID].ResetToken = &token
	m.users[userID].ResetTokenExpiry = &expiry
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	user := m.users[userID]
	user.PasswordHash = passwordHash
	user.ResetToken = nil
	user.ResetTokenExpiry = nil
	return nil
}

func newTestAuthService(repo *mockAuthRepo, expose bool) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "test",
		SignupKey:          "letmein",
		ExposeResetToken:   expose,
	})
}

func signup(name, email, role, key string) dto.SignupRequest {
	return dto.SignupRequest{Name: name, Email: email, Password: "secret1", Role: role, SignupKey: key}
}

func TestAuthServiceSignupFirstUserMustBeAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, false)
	ctx := context.Background()

	_, err := svc.Signup(ctx, signup("Sam", "sam@school.test", "Student", "letmein"), nil)
	requireAppError(t, err, appErrors.ErrInvalidInput, "role")

	admin, err := svc.Signup(ctx, signup("Ada", "Ada@School.test", "Admin", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "ada@school.test", admin.Email)
	assert.NotEqual(t, "secret1", repo.users[admin.ID].PasswordHash)
}

func TestAuthServiceSignupRules(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, false)
	ctx := context.Background()

	admin, err := svc.Signup(ctx, signup("Ada", "ada@school.test", "Admin", ""), nil)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, signup("Sam", "sam@school.test", "Student", "wrong"), nil)
	requireAppError(t, err, appErrors.ErrUnauthorized, "signupKey")

	_, err = svc.Signup(ctx, signup("Sam", "sam@school.test", "Student", "letmein"), nil)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, signup("Sam Again", "sam@school.test", "Teacher", "letmein"), nil)
	requireAppError(t, err, appErrors.ErrConflict, "email")

	_, err = svc.Signup(ctx, signup("Eve", "eve@school.test", "Admin", "letmein"), nil)
	requireAppError(t, err, appErrors.ErrForbidden, "")

	_, err = svc.Signup(ctx, signup("Bob", "bob@school.test", "Admin", ""), &models.JWTClaims{UserID: admin.ID, Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, dto.SignupRequest{Name: "X", Email: "x@school.test", Password: "1234", Role: "Student"}, nil)
	requireAppError(t, err, appErrors.ErrInvalidInput, "password")
}

func TestAuthServiceLoginAndRefreshRotation(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, false)
	ctx := context.Background()

	_, err := svc.Signup(ctx, signup("Ada", "ada@school.test", "Admin", ""), nil)
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "ada@school.test", Password: "wrong"})
	requireAppError(t, err, appErrors.ErrInvalidCredentials, "")

	pair, err := svc.Login(ctx, dto.LoginRequest{Email: "ada@school.test", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.Equal(t, "Ada", pair.User.Name)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.User.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.ValidateToken(pair.RefreshToken)
	requireAppError(t, err, appErrors.ErrUnauthorized, "")

	rotated, err := svc.Refresh(ctx, dto.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, dto.RefreshRequest{RefreshToken: pair.RefreshToken})
	requireAppError(t, err, appErrors.ErrUnauthorized, "")

	_, err = svc.Refresh(ctx, dto.RefreshRequest{RefreshToken: rotated.AccessToken})
	requireAppError(t, err, appErrors.ErrUnauthorized, "")
}

func TestAuthServicePasswordReset(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, true)
	ctx := context.Background()

	user, err := svc.Signup(ctx, signup("Ada", "ada@school.test", "Admin", ""), nil)
	require.NoError(t, err)

	_, err = svc.RequestPasswordReset(ctx, dto.RequestResetRequest{Email: "nobody@school.test"})
	requireAppError(t, err, appErrors.ErrNotFound, "user")

	resp, err := svc.RequestPasswordReset(ctx, dto.RequestResetRequest{Email: "ada@school.test"})
	require.NoError(t, err)
	require.Len(t, resp.ResetToken, 20)
	require.NotNil(t, resp.ExpiresAt)

	err = svc.ResetPassword(ctx, dto.ResetPasswordRequest{Token: resp.ResetToken, NewPassword: "abc"})
	requireAppError(t, err, appErrors.ErrInvalidInput, "newPassword")

	require.NoError(t, svc.ResetPassword(ctx, dto.ResetPasswordRequest{Token: resp.ResetToken, NewPassword: "brand-new"}))
	stored := repo.users[user.ID]
	assert.Nil(t, stored.ResetToken)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("brand-new")))

	err = svc.ResetPassword(ctx, dto.ResetPasswordRequest{Token: resp.ResetToken, NewPassword: "again-new"})
	requireAppError(t, err, appErrors.ErrInvalidInput, "token")
}

func TestAuthServiceResetTokenExpiresAndIsHidden(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, false)
	ctx := context.Background()

	user, err := svc.Signup(ctx, signup("Ada", "ada@school.test", "Admin", ""), nil)
	require.NoError(t, err)

	resp, err := svc.RequestPasswordReset(ctx, dto.RequestResetRequest{Email: "ada@school.test"})
	require.NoError(t, err)
	assert.Empty(t, resp.ResetToken)
	assert.Nil(t, resp.ExpiresAt)

	token := *repo.users[user.ID].ResetToken
	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	err = svc.ResetPassword(ctx, dto.ResetPasswordRequest{Token: token, NewPassword: "brand-new"})
	requireAppError(t, err, appErrors.ErrInvalidInput, "token")
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, false)
	ctx := context.Background()

	user, err := svc.Signup(ctx, signup("Ada", "ada@school.test", "Admin", ""), nil)
	require.NoError(t, err)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)

	_, err = svc.Me(ctx, uuid.NewString())
	requireAppError(t, err, appErrors.ErrNotFound, "user")
}
