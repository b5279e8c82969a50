package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
)

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: " Test@Example.com ", Password: "password123",
		FirstName: "John", LastName: "Doe",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "test@example.com", resp.User.Email)
	assert.Equal(t, model.RoleCustomer, resp.User.Role)
	assert.Equal(t, model.UserStatusActive, resp.User.Status)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	repo.put(&model.User{Email: "test@example.com"})

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "TEST@example.com", Password: "password123",
		FirstName: "John", LastName: "Doe",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_Login(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	u := repo.put(&model.User{Email: "test@example.com", Password: hashed(t, "password123"), Role: model.RoleCustomer})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "test@example.com", Password: "password123",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User.LastLogin)
	assert.NotNil(t, repo.byID[u.ID].LastLogin)

	token, err := jwt.Parse(resp.Token, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, u.ID.String(), claims["sub"])
	assert.Equal(t, model.RoleCustomer, claims["role"])
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	repo.put(&model.User{Email: "test@example.com", Password: hashed(t, "password123")})

	_, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "test@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), "test-secret", time.Hour)
	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_Disabled(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	repo.put(&model.User{
		Email: "test@example.com", Password: hashed(t, "password123"),
		Status: model.UserStatusDisabled,
	})

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "test@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrAccountDisabled)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthService_AdminLogin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	repo.put(&model.User{Email: "buyer@example.com", Password: hashed(t, "pw"), Role: model.RoleCustomer})
	repo.put(&model.User{Email: "admin@example.com", Password: hashed(t, "pw"), Role: model.RoleAdmin})

	_, err := svc.AdminLogin(context.Background(), dto.LoginRequest{Email: "buyer@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := svc.AdminLogin(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, resp.User.Role)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Admin@Example.com", "secret", "Site", "Admin")
	require.NoError(t, err)
	assert.True(t, created)

	admin, _ := repo.GetByEmail(ctx, "admin@example.com")
	require.NotNil(t, admin)
	assert.True(t, admin.IsAdmin())

	created, err = svc.EnsureAdmin(ctx, "admin@example.com", "other", "Site", "Admin")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.byID, 1)
}

func TestToUserResponse_OmitsPassword(t *testing.T) {
	resp := ToUserResponse(&model.User{ID: uuid.New(), Email: "a@b.c", Password: "hash"})
	assert.Equal(t, "a@b.c", resp.Email)
}
