package services

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded, err := env.thresholds.EnsureDefault(ctx)
	if err != nil || !seeded {
		t.Fatalf("EnsureDefault() = (%v, %v), want (true, nil)", seeded, err)
	}
	seeded, err = env.thresholds.EnsureDefault(ctx)
	if err != nil || seeded {
		t.Fatalf("second EnsureDefault() = (%v, %v), want (false, nil)", seeded, err)
	}

	current, err := env.thresholds.Current(ctx)
	if err != nil || current == nil {
		t.Fatalf("Current() = (%v, %v)", current, err)
	}
	if !current.MinValue.Equal(DefaultMinThreshold) || !current.MaxValue.Equal(DefaultMaxThreshold) {
		t.Errorf("Current() = (%v, %v), want (20, 50)", current.MinValue, current.MaxValue)
	}
}

func TestCurrentUsesFirstRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if current, err := env.thresholds.Current(ctx); err != nil || current != nil {
		t.Fatalf("Current() on empty table = (%v, %v), want (nil, nil)", current, err)
	}

	env.setThreshold(t, "20", "50")
	if err := env.db.Exec("INSERT INTO classifications (min_value, max_value) VALUES (1, 2)").Error; err != nil {
		t.Fatalf("insert second row: %v", err)
	}

	list, err := env.thresholds.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 || !list[0].MinValue.Equal(dec("20")) {
		t.Errorf("List() = %v, want only the first row", list)
	}
}

func TestThresholdUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.thresholds.EnsureDefault(ctx); err != nil {
		t.Fatalf("EnsureDefault() error: %v", err)
	}
	current, _ := env.thresholds.Current(ctx)

	t.Run("partial", func(t *testing.T) {
		got, err := env.thresholds.Update(ctx, current.ID, ThresholdPatch{MaxValue: ptr(dec("60"))})
		if err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if !got.MinValue.Equal(dec("20")) || !got.MaxValue.Equal(dec("60")) {
			t.Errorf("Update() = (%v, %v), want (20, 60)", got.MinValue, got.MaxValue)
		}
	})

	t.Run("min above max", func(t *testing.T) {
		_, err := env.thresholds.Update(ctx, current.ID, ThresholdPatch{MinValue: ptr(dec("70"))})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Fields["non_field_errors"] == "" {
			t.Errorf("Update() error = %v, want non_field_errors", err)
		}
	})

	t.Run("equal bounds allowed", func(t *testing.T) {
		if _, err := env.thresholds.Update(ctx, current.ID, ThresholdPatch{MinValue: ptr(dec("30")), MaxValue: ptr(dec("30"))}); err != nil {
			t.Errorf("Update() error = %v", err)
		}
	})

	t.Run("missing row", func(t *testing.T) {
		if _, err := env.thresholds.Update(ctx, 9999, ThresholdPatch{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}
