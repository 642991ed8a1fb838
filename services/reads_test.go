package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"traffic-telemetry-api/models"
)

func TestReadCreateAssignsServerTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	road := env.road(t, "Timed")

	r := env.read(t, road.Road.ID, "42.5")
	if !r.ReadAt.Equal(env.clock) {
		t.Errorf("ReadAt = %v, want %v", r.ReadAt, env.clock)
	}

	stored, err := env.reads.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !stored.ReadValue.Equal(dec("42.5")) {
		t.Errorf("ReadValue = %v, want 42.5", stored.ReadValue)
	}

	v := dec("50")
	updated, err := env.reads.Update(ctx, r.ID, ReadInput{ReadValue: &v})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if !updated.ReadAt.Equal(r.ReadAt) {
		t.Errorf("Update changed ReadAt from %v to %v", r.ReadAt, updated.ReadAt)
	}
}

func TestReadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	road := env.road(t, "Validated")
	roadID := road.Road.ID
	missing := uint(9999)

	tests := []struct {
		name  string
		in    ReadInput
		field string
	}{
		{"missing road", ReadInput{ReadValue: ptr(dec("10"))}, "road"},
		{"missing value", ReadInput{RoadID: &roadID}, "read_value"},
		{"unknown road", ReadInput{RoadID: &missing, ReadValue: ptr(dec("10"))}, "road"},
		{"too many decimals", ReadInput{RoadID: &roadID, ReadValue: ptr(dec("10.123"))}, "read_value"},
		{"too many digits", ReadInput{RoadID: &roadID, ReadValue: ptr(dec("1000"))}, "read_value"},
		{"negative", ReadInput{RoadID: &roadID, ReadValue: ptr(dec("-1"))}, "read_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.reads.Create(ctx, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create() error = %v, want *ValidationError", err)
			}
			if verr.Fields[tt.field] == "" {
				t.Errorf("Fields = %v, want message for %q", verr.Fields, tt.field)
			}
		})
	}
}

func TestReadListOrderAndFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.road(t, "A")
	b := env.road(t, "B")

	first := env.read(t, a.Road.ID, "10")
	env.read(t, b.Road.ID, "20")
	third := env.read(t, a.Road.ID, "30")

	all, hasMore, err := env.reads.List(ctx, ReadFilter{}, TimePage{Limit: 50})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 || hasMore {
		t.Fatalf("List() = %d reads (hasMore %v), want 3", len(all), hasMore)
	}
	if all[0].ID != third.ID {
		t.Errorf("List()[0] = %d, want newest read %d", all[0].ID, third.ID)
	}

	onlyA, _, err := env.reads.List(ctx, ReadFilter{RoadID: &a.Road.ID}, TimePage{Limit: 50})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(onlyA) != 2 {
		t.Errorf("List(road A) = %d reads, want 2", len(onlyA))
	}

	before := third.ReadAt
	page, _, err := env.reads.List(ctx, ReadFilter{RoadID: &a.Road.ID}, TimePage{Limit: 50, Before: &before})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("List(before) = %v, want only read %d", page, first.ID)
	}
}

func TestLatestReadTieBreaksOnID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setThreshold(t, "20", "50")
	road := env.road(t, "Tied")

	same := env.clock.Add(time.Minute)
	env.reads.now = func() time.Time { return same }
	env.read(t, road.Road.ID, "10")
	last := env.read(t, road.Road.ID, "60")

	latest, err := env.roads.LatestRead(ctx, road.Road.ID)
	if err != nil {
		t.Fatalf("LatestRead() error: %v", err)
	}
	if latest == nil || latest.ID != last.ID {
		t.Errorf("LatestRead() = %v, want read %d", latest, last.ID)
	}
}

func TestReadDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	road := env.road(t, "Short lived")
	r := env.read(t, road.Road.ID, "10")

	if err := env.reads.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := env.reads.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := env.reads.Delete(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestReadListPagesThroughTiedReadAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	road := env.road(t, "Tied")

	at := env.clock
	for _, v := range []string{"10", "20", "30"} {
		r := models.Read{RoadID: road.Road.ID, ReadValue: dec(v), ReadAt: at}
		if err := env.db.Create(&r).Error; err != nil {
			t.Fatalf("create read: %v", err)
		}
	}

	var got []uint
	page := TimePage{Limit: 1}
	for i := 0; i < 5; i++ {
		rows, hasMore, err := env.reads.List(ctx, ReadFilter{}, page)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		for _, r := range rows {
			got = append(got, r.ID)
		}
		if !hasMore {
			break
		}
		last := rows[len(rows)-1]
		page = TimePage{Limit: 1, Before: &last.ReadAt, BeforeID: last.ID}
	}
	if len(got) != 3 {
		t.Fatalf("paged %d reads, want 3: %v", len(got), got)
	}
	if got[0] <= got[1] || got[1] <= got[2] {
		t.Errorf("ids = %v, want descending", got)
	}
}
