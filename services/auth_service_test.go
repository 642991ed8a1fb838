package services

import (
	"context"
	"errors"
	"testing"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/models"
	"traffic-telemetry-api/testutil"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, config.JWTConfig{
		Secret:      "test-secret-key",
		ExpiryHours: 24,
	})
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestAuthService()

	hash, err := svc.HashPassword("mypassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == "mypassword123" {
		t.Fatalf("hash = %q, want a bcrypt hash", hash)
	}

	if !svc.CheckPassword(hash, "mypassword123") {
		t.Error("CheckPassword should return true for correct password")
	}
	if svc.CheckPassword(hash, "wrongpassword") {
		t.Error("CheckPassword should return false for wrong password")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.GenerateToken(models.User{ID: 42, Email: "ops@traffic.test", Role: "admin"})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "ops@traffic.test" {
		t.Errorf("Email = %q, want %q", claims.Email, "ops@traffic.test")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want %q", claims.Role, "admin")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("ExpiresAt and IssuedAt should be set")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	other := NewAuthService(nil, config.JWTConfig{Secret: "secret-2", ExpiryHours: 24})
	foreign, _ := other.GenerateToken(models.User{ID: 1, Email: "a@b.c", Role: "user"})

	expired := NewAuthService(nil, config.JWTConfig{Secret: "test-secret-key", ExpiryHours: -1})
	stale, _ := expired.GenerateToken(models.User{ID: 1, Email: "a@b.c", Role: "user"})

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid.token.string"},
		{"wrong secret", foreign},
		{"expired", stale},
	}
	svc := newTestAuthService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAuthService(db, config.JWTConfig{Secret: "s", ExpiryHours: 1})
	ctx := context.Background()

	user, err := svc.Register(ctx, UserInput{
		Email:    ptr("Driver@Example.COM"),
		Name:     ptr("Driver"),
		Password: ptr("testpass123"),
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if user.Email != "Driver@example.com" {
		t.Errorf("Email = %q, want domain lower-cased", user.Email)
	}
	if user.Password == "testpass123" {
		t.Error("password stored in plain text")
	}

	token, logged, err := svc.Login(ctx, "Driver@example.com", "testpass123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if token == "" || logged.ID != user.ID {
		t.Errorf("Login() = (%q, %d), want token for user %d", token, logged.ID, user.ID)
	}

	if _, _, err := svc.Login(ctx, "Driver@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "testpass123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAuthService(db, config.JWTConfig{Secret: "s", ExpiryHours: 1})
	ctx := context.Background()

	if _, err := svc.Register(ctx, UserInput{Email: ptr("a@b.com"), Password: ptr("pw")}); err == nil {
		t.Error("expected error for short password")
	}
	if _, err := svc.Register(ctx, UserInput{Email: ptr("not-an-email"), Password: ptr("longenough")}); err == nil {
		t.Error("expected error for invalid email")
	}
	if _, err := svc.Register(ctx, UserInput{Email: ptr("a@b.com"), Password: ptr("longenough")}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	_, err := svc.Register(ctx, UserInput{Email: ptr("a@b.com"), Password: ptr("longenough")})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["email"] == "" {
		t.Errorf("duplicate Register() error = %v, want email validation error", err)
	}
}

func TestUpdateUserRehashesPassword(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewAuthService(db, config.JWTConfig{Secret: "s", ExpiryHours: 1})
	ctx := context.Background()

	user, err := svc.Register(ctx, UserInput{Email: ptr("me@b.com"), Password: ptr("original")})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	updated, err := svc.UpdateUser(ctx, user.ID, UserInput{Name: ptr("New Name"), Password: ptr("replaced")})
	if err != nil {
		t.Fatalf("UpdateUser() error: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("Name = %q, want %q", updated.Name, "New Name")
	}
	if _, _, err := svc.Login(ctx, "me@b.com", "replaced"); err != nil {
		t.Errorf("Login with new password error = %v", err)
	}
}
