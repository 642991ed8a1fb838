package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"traffic-telemetry-api/models"

	"gorm.io/gorm"
)

var ErrInvalidAPIKey = errors.New("invalid api key")

type APIKeyService struct {
	db *gorm.DB
}

func NewAPIKeyService(db *gorm.DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// Create issues a new key. The plain key is returned once and never stored.
func (s *APIKeyService) Create(ctx context.Context, name string) (models.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.APIKey{}, "", newValidationError("name", "This field may not be blank.")
	}

	prefix, secret, err := newKeyParts()
	if err != nil {
		return models.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	plain := prefix + "." + secret

	key := models.APIKey{Name: name, Prefix: prefix, KeyHash: hashKey(plain)}
	if err := s.db.WithContext(ctx).Create(&key).Error; err != nil {
		return models.APIKey{}, "", fmt.Errorf("store api key: %w", err)
	}
	return key, plain, nil
}

// Validate returns the active key matching plain, or ErrInvalidAPIKey.
func (s *APIKeyService) Validate(ctx context.Context, plain string) (models.APIKey, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return models.APIKey{}, ErrInvalidAPIKey
	}
	var key models.APIKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ? AND revoked = ?", hashKey(plain), false).
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.APIKey{}, ErrInvalidAPIKey
	}
	if err != nil {
		return models.APIKey{}, fmt.Errorf("lookup api key: %w", err)
	}
	return key, nil
}

func (s *APIKeyService) Revoke(ctx context.Context, prefix string) error {
	res := s.db.WithContext(ctx).Model(&models.APIKey{}).Where("prefix = ?", prefix).Update("revoked", true)
	if res.Error != nil {
		return fmt.Errorf("revoke api key %s: %w", prefix, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func newKeyParts() (string, string, error) {
	raw := make([]byte, 38)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	return enc[:8], enc[8:], nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:])
}
