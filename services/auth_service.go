package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 5

var (
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
	expiryH   int
}

func NewAuthService(db *gorm.DB, cfg config.JWTConfig) *AuthService {
	return &AuthService{
		db:        db,
		jwtSecret: []byte(cfg.Secret),
		expiryH:   cfg.ExpiryHours,
	}
}

func (s *AuthService) HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *AuthService) CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateToken(user models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expiryH) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type UserInput struct {
	Email    *string
	Name     *string
	Password *string
}

// Register creates an active user with role "user".
func (s *AuthService) Register(ctx context.Context, in UserInput) (models.User, error) {
	verr := &ValidationError{}
	if in.Email == nil {
		verr.add("email", "This field is required.")
	}
	if in.Password == nil {
		verr.add("password", "This field is required.")
	}
	if !verr.empty() {
		return models.User{}, verr
	}

	user := models.User{Role: "user", IsActive: true}
	if err := s.applyUser(ctx, &user, in); err != nil {
		return models.User{}, err
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, newValidationError("email", "user with this email already exists.")
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the credentials of an active user and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive || !s.CheckPassword(user.Password, password) {
		return "", models.User{}, ErrInvalidCredentials
	}
	token, err := s.GenerateToken(user)
	if err != nil {
		return "", models.User{}, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, notFoundOr(err)
	}
	return user, nil
}

// UpdateUser applies the non-nil fields of in. A new password is re-hashed.
func (s *AuthService) UpdateUser(ctx context.Context, id uint, in UserInput) (models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if err := s.applyUser(ctx, &user, in); err != nil {
		return models.User{}, err
	}
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, newValidationError("email", "user with this email already exists.")
		}
		return models.User{}, fmt.Errorf("update user %d: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) applyUser(ctx context.Context, user *models.User, in UserInput) error {
	verr := &ValidationError{}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			verr.add("email", "Enter a valid email address.")
		} else {
			var count int64
			err := s.db.WithContext(ctx).Model(&models.User{}).
				Where("email = ? AND id <> ?", email, user.ID).
				Count(&count).Error
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if count > 0 {
				verr.add("email", "user with this email already exists.")
			}
			user.Email = email
		}
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			verr.add("password", fmt.Sprintf("Ensure this field has at least %d characters.", minPasswordLength))
		} else {
			hash, err := s.HashPassword(*in.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user.Password = hash
		}
	}
	if !verr.empty() {
		return verr
	}
	return nil
}

// normalizeEmail lower-cases the domain part only.
func normalizeEmail(raw string) string {
	email := strings.TrimSpace(raw)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}
