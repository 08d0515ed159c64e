package service

import (
	"context"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cj_dropship_v1/internal/middleware"
	"cj_dropship_v1/internal/model"
	"cj_dropship_v1/internal/repository"
)

// ==================== UserService ====================

// LoginResult 登录结果
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserService 后台用户认证
type UserService interface {
	// Login 校验用户名密码并签发 JWT
	Login(ctx context.Context, username, password string) (*LoginResult, error)

	// EnsureAdmin 系统无任何用户时创建初始管理员
	EnsureAdmin(ctx context.Context, username, password string) error
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

// Login 登录
func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, &ValidationError{Message: "用户名和密码不能为空"}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 不暴露用户是否存在
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := middleware.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// EnsureAdmin 初始化管理员账号
func (s *userService) EnsureAdmin(ctx context.Context, username, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &model.SysUser{
		Username: username,
		Password: string(hash),
		Role:     "admin",
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}
	log.Printf("[User] 已创建初始管理员账号 %s", username)
	return nil
}
