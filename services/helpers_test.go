package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"traffic-telemetry-api/models"
	"traffic-telemetry-api/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	thresholds *ThresholdService
	roads      *RoadService
	reads      *ReadService
	sensors    *SensorService
	cars       *CarService
	plateReads *PlateReadService
	clock      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	env := &testEnv{
		db:         db,
		thresholds: NewThresholdService(db),
		clock:      time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	env.roads = NewRoadService(db, env.thresholds)
	env.reads = NewReadService(db, env.roads)
	env.reads.now = env.tick
	env.sensors = NewSensorService(db)
	env.cars = NewCarService(db)
	env.cars.now = func() time.Time { return env.clock }
	env.plateReads = NewPlateReadService(db, env.sensors, env.roads)
	return env
}

// tick advances the shared clock by one second on every call.
func (e *testEnv) tick() time.Time {
	e.clock = e.clock.Add(time.Second)
	return e.clock
}

func (e *testEnv) setThreshold(t *testing.T, low, high string) {
	t.Helper()
	if _, err := e.thresholds.Set(context.Background(), dec(low), dec(high)); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
}

func (e *testEnv) road(t *testing.T, name string) RoadView {
	t.Helper()
	seg := models.NewLineString([2]float64{-8.61, 41.14}, [2]float64{-8.60, 41.15})
	v, err := e.roads.Create(context.Background(), RoadInput{Name: &name, Segment: &seg})
	if err != nil {
		t.Fatalf("create road %q: %v", name, err)
	}
	return v
}

func (e *testEnv) read(t *testing.T, roadID uint, value string) models.Read {
	t.Helper()
	v := dec(value)
	r, err := e.reads.Create(context.Background(), ReadInput{RoadID: &roadID, ReadValue: &v})
	if err != nil {
		t.Fatalf("create read %s on road %d: %v", value, roadID, err)
	}
	return r
}

func (e *testEnv) sensor(t *testing.T, name string) models.Sensor {
	t.Helper()
	s, err := e.sensors.Create(context.Background(), SensorInput{Name: &name})
	if err != nil {
		t.Fatalf("create sensor %q: %v", name, err)
	}
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func plateInput(sensor models.Sensor, plate string, roadID uint, ts time.Time) PlateReadInput {
	return PlateReadInput{
		SensorUUID:   ptr(sensor.UUID.String()),
		LicensePlate: ptr(plate),
		RoadSegment:  ptr(fmt.Sprint(roadID)),
		Timestamp:    ptr(ts.Format(time.RFC3339)),
	}
}
