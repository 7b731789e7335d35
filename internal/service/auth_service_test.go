package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edu-sharks/lms-api/internal/models"
	"github.com/edu-sharks/lms-api/pkg/config"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
)

type mockRecorder struct {
	entries []*models.ActivityLog
}

func (m *mockRecorder) Insert(ctx context.Context, entry *models.ActivityLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockRecorder) lastAction() string {
	if len(m.entries) == 0 {
		return ""
	}
	return m.entries[len(m.entries)-1].Action
}

type mockUserRepo struct {
	users         map[string]*models.User
	createOK      bool
	refreshTokens map[string]*models.RefreshToken
	lastLoginSet  bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:         map[string]*models.User{},
		createOK:      true,
		refreshTokens: map[string]*models.RefreshToken{},
	}
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) (bool, error) {
	if !m.createOK {
		return false, nil
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	m.users[user.Username] = user
	return true, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = "rt-" + token.Token[:8]
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, rt := range m.refreshTokens {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
		Issuer:            "test",
	}
}

func TestRegisterAssignsStudentRole(t *testing.T) {
	repo := newMockUserRepo()
	rec := &mockRecorder{}
	svc := NewAuthService(repo, rec, testJWTConfig(), validator.New(), zap.NewNop())

	info, err := svc.Register(context.Background(), models.RegisterRequest{Username: "shark01", Password: "secret1", FullName: "Shark One"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, models.ActivityActionRegister, rec.lastAction())
	// stored hash must verify against the original password
	stored := repo.users["shark01"]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegisterUsernameTaken(t *testing.T) {
	repo := newMockUserRepo()
	repo.createOK = false
	svc := NewAuthService(repo, &mockRecorder{}, testJWTConfig(), validator.New(), zap.NewNop())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "shark01", Password: "secret1", FullName: "Shark One"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUsernameTaken.Code, appErr.Code)
}

func TestLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["shark01"] = &models.User{ID: "u1", Username: "shark01", PasswordHash: string(hash), FullName: "Shark One", Role: models.RoleStudent}
	rec := &mockRecorder{}
	svc := NewAuthService(repo, rec, testJWTConfig(), validator.New(), zap.NewNop())

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "shark01", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginSet)
	assert.Equal(t, models.ActivityActionLogin, rec.lastAction())

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginUnknownUserAndWrongPasswordLookAlike(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["shark01"] = &models.User{ID: "u1", Username: "shark01", PasswordHash: string(hash)}
	rec := &mockRecorder{}
	svc := NewAuthService(repo, rec, testJWTConfig(), validator.New(), zap.NewNop())

	_, errUnknown := svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "whatever"})
	_, errWrongPw := svc.Login(context.Background(), models.LoginRequest{Username: "shark01", Password: "wrong"})

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	assert.Equal(t, appErrors.FromError(errUnknown).Message, appErrors.FromError(errWrongPw).Message)
	assert.Equal(t, models.ActivityActionLoginFailed, rec.lastAction())
	assert.Len(t, rec.entries, 2)
}

func TestRefreshTokenRotates(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["shark01"] = &models.User{ID: "u1", Username: "shark01", PasswordHash: string(hash)}
	svc := NewAuthService(repo, &mockRecorder{}, testJWTConfig(), validator.New(), zap.NewNop())

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "shark01", Password: "secret1"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	// a rotated token cannot be used again
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["shark01"] = &models.User{ID: "u1", Username: "shark01", PasswordHash: string(hash)}
	rec := &mockRecorder{}
	svc := NewAuthService(repo, rec, testJWTConfig(), validator.New(), zap.NewNop())

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "shark01", Password: "secret1"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), &models.JWTClaims{UserID: "u1", Username: "shark01"}, "", "")
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
	assert.Equal(t, models.ActivityActionLogout, rec.lastAction())
}

func TestSeedAdminSkipsWithoutCredentials(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, nil, testJWTConfig(), validator.New(), zap.NewNop())

	err := svc.SeedAdmin(context.Background(), config.AdminConfig{})
	require.NoError(t, err)
	assert.Empty(t, repo.users)
}

func TestSeedAdminCreatesAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, nil, testJWTConfig(), validator.New(), zap.NewNop())

	err := svc.SeedAdmin(context.Background(), config.AdminConfig{Username: "root", Password: "topsecret", FullName: "Admin"})
	require.NoError(t, err)
	require.Contains(t, repo.users, "root")
	assert.Equal(t, models.RoleAdmin, repo.users["root"].Role)
}
