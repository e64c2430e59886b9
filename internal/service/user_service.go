package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
	"wellmind-go/pkg/hash"
	"wellmind-go/pkg/token"
)

// 用户服务的业务错误。
var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserService 定义了用户注册、登录与档案读取的接口。
type UserService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken, newRefreshToken string, err error)
	GetProfile(ctx context.Context, userID uint) (*model.User, error)
}

type userService struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(db *gorm.DB, userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		db:         db,
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 注册新用户，密码以 bcrypt 哈希存储。
func (s *userService) Register(ctx context.Context, username, password string) (*model.User, error) {
	db := s.db.WithContext(ctx)

	if _, err := s.userRepo.FindByUsername(db, username); err == nil {
		return nil, ErrUserExists
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username: username,
		Password: hashed,
	}
	if err := s.userRepo.Create(db, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login 校验凭证并签发访问/刷新令牌。
func (s *userService) Login(ctx context.Context, username, password string) (string, string, error) {
	db := s.db.WithContext(ctx)

	user, err := s.userRepo.FindByUsername(db, username)
	if err == gorm.ErrRecordNotFound {
		return "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to find user: %w", err)
	}

	if !hash.CheckPassword(password, user.Password) {
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// RefreshToken 校验刷新令牌并重新签发一对令牌。
func (s *userService) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}

	// 确认用户仍然存在
	user, err := s.userRepo.FindByID(s.db.WithContext(ctx), claims.UserID)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return accessToken, newRefreshToken, nil
}

// GetProfile 返回用户档案。
func (s *userService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
