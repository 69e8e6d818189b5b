package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/headachelog/internal/db"
)

const minPasswordLength = 6

type credentials struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=6,max=72"`
}

// AuthService 管理远端账号的注册与登录。
type AuthService struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewAuthService 构造 AuthService。
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb, validate: validator.New()}
}

// SignUp 创建账号并返回对应身份。
func (s *AuthService) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = db.NormalizeEmail(email)
	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return Identity{}, credentialError(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	var taken int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if taken > 0 {
		return Identity{}, ErrEmailTaken
	}

	user := db.User{Email: email, Password: string(hashed)}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return Identity{UserID: user.ID, Email: user.Email}, nil
}

// SignIn 校验邮箱与密码。邮箱不存在与密码错误返回同一个错误。
func (s *AuthService) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = db.NormalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: user.ID, Email: user.Email}, nil
}

// Lookup 按邮箱查找身份，命令行导入导出使用。
func (s *AuthService) Lookup(ctx context.Context, email string) (Identity, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", db.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, fmt.Errorf("user %w", ErrNotFound)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return Identity{UserID: user.ID, Email: user.Email}, nil
}

func credentialError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch {
		case fe.Field() == "Email" && fe.Tag() == "required":
			return fmt.Errorf("%w: email is required", ErrValidation)
		case fe.Field() == "Email":
			return fmt.Errorf("%w: email is not valid", ErrValidation)
		case fe.Tag() == "max":
			return fmt.Errorf("%w: password is too long", ErrValidation)
		default:
			return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
		}
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
