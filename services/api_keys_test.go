package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"traffic-telemetry-api/testutil"
)

func TestAPIKeyLifecycle(t *testing.T) {
	svc := NewAPIKeyService(testutil.OpenDB(t))
	ctx := context.Background()

	key, plain, err := svc.Create(ctx, "gate-sensors")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !strings.HasPrefix(plain, key.Prefix+".") {
		t.Errorf("plain key %q should start with prefix %q", plain, key.Prefix)
	}
	if key.KeyHash == plain || strings.Contains(key.KeyHash, plain) {
		t.Error("plain key must not be stored")
	}

	got, err := svc.Validate(ctx, plain)
	if err != nil || got.ID != key.ID {
		t.Fatalf("Validate() = (%d, %v), want key %d", got.ID, err, key.ID)
	}
	if _, err := svc.Validate(ctx, plain+"x"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Validate(tampered) error = %v, want ErrInvalidAPIKey", err)
	}
	if _, err := svc.Validate(ctx, ""); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Validate(empty) error = %v, want ErrInvalidAPIKey", err)
	}

	if err := svc.Revoke(ctx, key.Prefix); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}
	if _, err := svc.Validate(ctx, plain); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Validate(revoked) error = %v, want ErrInvalidAPIKey", err)
	}
	if err := svc.Revoke(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Revoke(missing) error = %v, want ErrNotFound", err)
	}
}
