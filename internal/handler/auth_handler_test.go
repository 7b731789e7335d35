package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edu-sharks/lms-api/internal/middleware"
	"github.com/edu-sharks/lms-api/internal/models"
	"github.com/edu-sharks/lms-api/internal/service"
	"github.com/edu-sharks/lms-api/pkg/config"
)

type stubUserRepo struct {
	users    map[string]*models.User
	createOK bool
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[string]*models.User{}, createOK: true}
}

func (s *stubUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) (bool, error) {
	if !s.createOK {
		return false, nil
	}
	user.ID = "u1"
	s.users[user.Username] = user
	return true, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *stubUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return nil
}

func (s *stubUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

func (s *stubUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func newAuthTestHandler(repo *stubUserRepo) *AuthHandler {
	cfg := config.JWTConfig{Secret: "secret", Expiration: time.Hour, RefreshExpiration: 24 * time.Hour, Issuer: "test"}
	svc := service.NewAuthService(repo, nil, cfg, validator.New(), zap.NewNop())
	return NewAuthHandler(svc, service.NewMetricsService())
}

func TestRegisterCreated(t *testing.T) {
	h := newAuthTestHandler(newStubUserRepo())
	payload, _ := json.Marshal(map[string]string{"username": "shark01", "password": "secret1", "full_name": "Shark One"})

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/auth/register", h.Register)
	}, http.MethodPost, "/auth/register", payload)

	assert.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.RoleStudent, envelope.Data.Role)
}

func TestRegisterUsernameTakenConflict(t *testing.T) {
	repo := newStubUserRepo()
	repo.createOK = false
	h := newAuthTestHandler(repo)
	payload, _ := json.Marshal(map[string]string{"username": "shark01", "password": "secret1", "full_name": "Shark One"})

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/auth/register", h.Register)
	}, http.MethodPost, "/auth/register", payload)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterShortPasswordRejected(t *testing.T) {
	h := newAuthTestHandler(newStubUserRepo())
	payload, _ := json.Marshal(map[string]string{"username": "shark01", "password": "abc", "full_name": "Shark One"})

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/auth/register", h.Register)
	}, http.MethodPost, "/auth/register", payload)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newAuthTestHandler(newStubUserRepo())
	payload, _ := json.Marshal(map[string]string{"username": "ghost", "password": "whatever"})

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/auth/login", h.Login)
	}, http.MethodPost, "/auth/login", payload)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
}

func TestJWTMiddlewareProtectsMe(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo := newStubUserRepo()
	repo.users["shark01"] = &models.User{ID: "u1", Username: "shark01", PasswordHash: string(hash), Role: models.RoleStudent}

	cfg := config.JWTConfig{Secret: "secret", Expiration: time.Hour, RefreshExpiration: 24 * time.Hour, Issuer: "test"}
	svc := service.NewAuthService(repo, nil, cfg, validator.New(), zap.NewNop())
	h := NewAuthHandler(svc, service.NewMetricsService())

	// without a token the route is blocked
	w := performRequest(t, func(r *gin.Engine) {
		r.GET("/auth/me", middleware.JWT(svc), h.Me)
	}, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
