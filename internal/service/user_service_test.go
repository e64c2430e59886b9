package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/token"
)

func newUserTestService(t *testing.T) (UserService, *token.JWTManager) {
	t.Helper()
	db := newTestDB(t)
	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	return NewUserService(db, repository.NewUserRepository(), jwtManager), jwtManager
}

func TestRegisterAndLogin(t *testing.T) {
	svc, jwtManager := newUserTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	// 密码以哈希存储
	assert.NotEqual(t, "password123", user.Password)

	accessToken, refreshToken, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)

	claims, err := jwtManager.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newUserTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other-password")
	assert.Equal(t, ErrUserExists, err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newUserTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	assert.Equal(t, ErrInvalidCredentials, err)

	_, _, err = svc.Login(ctx, "nobody", "password123")
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc, _ := newUserTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	_, refreshToken, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(ctx, refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	_, _, err = svc.RefreshToken(ctx, "not-a-token")
	assert.Equal(t, ErrInvalidCredentials, err)
}
