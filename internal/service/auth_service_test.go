package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	created *models.User
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	_, ok := m.users[username]
	return ok, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	if user.ID == "" {
		user.ID = "user-new"
	}
	m.users[user.Username] = user
	m.created = user
	return nil
}

func newAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "courseattend",
	})
}

func TestAuthServiceRegister(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Ama Mensah",
		Email:    "ama@example.edu",
		Username: "ama_m",
		Role:     "student",
		Password: "sekret123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, "ama_m", info.Username)
	require.NotNil(t, repo.created)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created.PasswordHash), []byte("sekret123")))
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newAuthService(&mockUserRepo{})

	cases := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"single word fullname", models.RegisterRequest{FullName: "Ama", Email: "a@b.edu", Username: "ama_m", Role: "student", Password: "sekret123"}},
		{"bad username", models.RegisterRequest{FullName: "Ama Mensah", Email: "a@b.edu", Username: "a!", Role: "student", Password: "sekret123"}},
		{"unknown role", models.RegisterRequest{FullName: "Ama Mensah", Email: "a@b.edu", Username: "ama_m", Role: "admin", Password: "sekret123"}},
		{"short password", models.RegisterRequest{FullName: "Ama Mensah", Email: "a@b.edu", Username: "ama_m", Role: "student", Password: "abc1"}},
		{"password without digit", models.RegisterRequest{FullName: "Ama Mensah", Email: "a@b.edu", Username: "ama_m", Role: "student", Password: "passwords"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceRegisterConflict(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"ama_m": {ID: "user-1", Username: "ama_m"},
	}}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Ama Mensah",
		Email:    "ama@example.edu",
		Username: "ama_m",
		Role:     "student",
		Password: "sekret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{users: map[string]*models.User{
		"ama_m": {
			ID:           "user-1",
			Username:     "ama_m",
			FullName:     "Ama Mensah",
			Email:        "ama@example.edu",
			Role:         models.RoleStudent,
			PasswordHash: string(hash),
		},
	}}
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "ama_m", Password: "sekret123", Role: "student"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "user-1", resp.User.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	caller := claims.Caller()
	assert.Equal(t, "Ama Mensah", caller.FullName)
}

func TestAuthServiceLoginRoleMismatch(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{users: map[string]*models.User{
		"ama_m": {ID: "user-1", Username: "ama_m", Role: models.RoleStudent, PasswordHash: string(hash)},
	}}
	svc := newAuthService(repo)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ama_m", Password: "sekret123", Role: "lecturer"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginBadPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{users: map[string]*models.User{
		"ama_m": {ID: "user-1", Username: "ama_m", Role: models.RoleStudent, PasswordHash: string(hash)},
	}}
	svc := newAuthService(repo)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ama_m", Password: "wrong1234", Role: "student"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&mockUserRepo{})
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
