package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSensorCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	generated := env.sensor(t, "North gate")
	if generated.UUID == uuid.Nil {
		t.Error("expected a generated uuid")
	}

	fixed := uuid.MustParse("2b1f8c2e-6a53-4d39-9d64-5e0c8f0a1b77")
	s, err := env.sensors.Create(ctx, SensorInput{UUID: &fixed, Name: ptr("South gate")})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if s.UUID != fixed {
		t.Errorf("UUID = %v, want %v", s.UUID, fixed)
	}

	_, err = env.sensors.Create(ctx, SensorInput{UUID: &fixed, Name: ptr("Copy")})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["uuid"] == "" {
		t.Errorf("duplicate uuid error = %v, want uuid validation error", err)
	}

	if _, err := env.sensors.Create(ctx, SensorInput{Name: ptr("   ")}); !errors.As(err, &verr) {
		t.Errorf("blank name error = %v, want validation error", err)
	}

	found, err := env.sensors.GetByUUID(ctx, fixed)
	if err != nil || found.ID != s.ID {
		t.Errorf("GetByUUID() = (%d, %v), want sensor %d", found.ID, err, s.ID)
	}
	if _, err := env.sensors.GetByUUID(ctx, uuid.New()); !errors.Is(err, ErrSensorNotRecognized) {
		t.Errorf("GetByUUID(unknown) error = %v, want ErrSensorNotRecognized", err)
	}
}

func TestSensorUUIDIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.sensor(t, "Camera 1")

	other := uuid.New()
	if _, err := env.sensors.Update(ctx, s.ID, SensorInput{UUID: &other}); err == nil {
		t.Error("expected error when changing uuid")
	}

	same := s.UUID
	renamed, err := env.sensors.Update(ctx, s.ID, SensorInput{UUID: &same, Name: ptr("Camera 1b")})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if renamed.Name != "Camera 1b" || renamed.UUID != s.UUID {
		t.Errorf("Update() = %+v", renamed)
	}
}

func TestSensorDeleteRefusedWhileReferenced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	road := env.road(t, "Watched")
	s := env.sensor(t, "Busy camera")
	idle := env.sensor(t, "Idle camera")

	if _, err := env.plateReads.Ingest(ctx, []PlateReadInput{plateInput(s, "AB-12-CD", road.Road.ID, env.clock)}); err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if err := env.sensors.Delete(ctx, s.ID); !errors.Is(err, ErrSensorInUse) {
		t.Errorf("Delete(referenced) error = %v, want ErrSensorInUse", err)
	}
	if _, err := env.sensors.Get(ctx, s.ID); err != nil {
		t.Errorf("referenced sensor should survive, Get() error = %v", err)
	}

	if err := env.sensors.Delete(ctx, idle.ID); err != nil {
		t.Errorf("Delete(idle) error = %v", err)
	}
	if err := env.sensors.Delete(ctx, idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
