package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"store_manager/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLen = 6

// validate 与 gin binding 使用同一套校验规则。
var validate = validator.New()

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("session not found or expired")
	ErrInvalidSignUp      = errors.New("invalid sign-up data")
)

// Service 负责注册、登录、登出以及会话解析。
type Service struct {
	db       *gorm.DB
	sessions SessionStore
	ttl      time.Duration
}

func NewService(db *gorm.DB, sessions SessionStore, ttl time.Duration) *Service {
	return &Service{db: db, sessions: sessions, ttl: ttl}
}

// SignUp 创建账号并直接登录。
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	email = normalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return Session{}, fmt.Errorf("%w: email", ErrInvalidSignUp)
	}
	if err := validate.Var(password, fmt.Sprintf("required,min=%d", minPasswordLen)); err != nil {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignUp, minPasswordLen)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return Session{}, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return Session{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.open(ctx, u)
}

// SignIn 校验密码并签发新会话。
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.open(ctx, &u)
}

// SignOut 删除会话，重复调用无副作用。
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Current 根据 token 解析当前身份。
func (s *Service) Current(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	sess, found, err := s.sessions.Get(ctx, token)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *Service) open(ctx context.Context, u *model.User) (Session, error) {
	sess := Session{
		Token: uuid.New().String(),
		Owner: Owner{
			ID:          u.ID,
			Email:       u.Email,
			DisplayName: u.FullName,
		},
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.sessions.Put(ctx, sess, s.ttl); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
