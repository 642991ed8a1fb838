package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"traffic-telemetry-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlateReadInput is one ALPR record as received. Nil means the field was absent.
type PlateReadInput struct {
	SensorUUID   *string
	LicensePlate *string
	RoadSegment  *string
	Timestamp    *string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

type PlateReadService struct {
	db      *gorm.DB
	sensors *SensorService
	roads   *RoadService
}

func NewPlateReadService(db *gorm.DB, sensors *SensorService, roads *RoadService) *PlateReadService {
	return &PlateReadService{db: db, sensors: sensors, roads: roads}
}

type resolvedPlateRead struct {
	sensor models.Sensor
	plate  string
	roadID uint
	readAt time.Time
}

// Ingest validates every record and then stores all of them in one transaction.
// When any record is invalid nothing is stored and a *BatchValidationError is
// returned with one entry per input record.
func (s *PlateReadService) Ingest(ctx context.Context, inputs []PlateReadInput) ([]models.PlateRead, error) {
	if len(inputs) == 0 {
		return []models.PlateRead{}, nil
	}

	resolved := make([]resolvedPlateRead, len(inputs))
	batchErr := &BatchValidationError{Items: make([]*ValidationError, len(inputs))}
	failed := false
	for i, in := range inputs {
		r, verr, err := s.resolve(ctx, in)
		if err != nil {
			return nil, err
		}
		if verr != nil {
			batchErr.Items[i] = verr
			failed = true
			continue
		}
		resolved[i] = r
	}
	if failed {
		return nil, batchErr
	}

	out := make([]models.PlateRead, 0, len(resolved))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range resolved {
			car, err := GetOrCreate(tx, r.plate)
			if err != nil {
				return err
			}
			pr := models.PlateRead{
				RoadSegmentID: r.roadID,
				CarID:         car.ID,
				SensorID:      r.sensor.ID,
				ReadAt:        r.readAt,
			}
			if err := tx.Create(&pr).Error; err != nil {
				return fmt.Errorf("create plate read: %w", err)
			}
			sensor := r.sensor
			pr.Sensor = &sensor
			pr.Car = &car
			out = append(out, pr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PlateReadService) resolve(ctx context.Context, in PlateReadInput) (resolvedPlateRead, *ValidationError, error) {
	var r resolvedPlateRead
	verr := &ValidationError{}

	var sensorID uuid.UUID
	switch {
	case in.SensorUUID == nil:
		verr.add("sensor__uuid", "This field is required.")
	default:
		id, err := uuid.Parse(strings.TrimSpace(*in.SensorUUID))
		if err != nil {
			verr.add("sensor__uuid", "Must be a valid UUID.")
		} else {
			sensorID = id
		}
	}

	if in.LicensePlate == nil {
		verr.add("car__license_plate", "This field is required.")
	} else if plate, perr := validatePlate(*in.LicensePlate); perr != nil {
		verr.add("car__license_plate", perr.Fields["license_plate"])
	} else {
		r.plate = plate
	}

	if in.RoadSegment == nil {
		verr.add("road_segment", "This field is required.")
	} else {
		raw := strings.TrimSpace(*in.RoadSegment)
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			verr.add("road_segment", fmt.Sprintf("Incorrect type. Expected pk value, received %q.", raw))
		} else {
			exists, err := s.roads.Exists(ctx, uint(id))
			if err != nil {
				return r, nil, err
			}
			if !exists {
				verr.add("road_segment", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
			} else {
				r.roadID = uint(id)
			}
		}
	}

	if in.Timestamp == nil {
		verr.add("timestamp", "This field is required.")
	} else if ts, ok := parseTimestamp(*in.Timestamp); !ok {
		verr.add("timestamp", "Datetime has wrong format. Use ISO 8601.")
	} else {
		r.readAt = ts
	}

	if sensorID != uuid.Nil {
		sensor, err := s.sensors.GetByUUID(ctx, sensorID)
		switch {
		case errors.Is(err, ErrSensorNotRecognized):
			verr.add("non_field_errors", "Sensor not recognized")
			verr.Err = ErrSensorNotRecognized
		case err != nil:
			return r, nil, err
		default:
			r.sensor = sensor
		}
	}

	if !verr.empty() {
		return r, verr, nil
	}
	return r, nil, nil
}

// parseTimestamp accepts ISO 8601 date-times. Values without an offset are UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func (s *PlateReadService) List(ctx context.Context, page TimePage) ([]models.PlateRead, bool, error) {
	q := s.db.WithContext(ctx).
		Preload("Sensor").
		Preload("Car").
		Preload("RoadSegment").
		Order("read_at DESC").
		Order("id DESC").
		Limit(page.Limit + 1)
	q = page.scope(q)
	var rows []models.PlateRead
	if err := q.Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("list plate reads: %w", err)
	}
	hasMore := len(rows) > page.Limit
	if hasMore {
		rows = rows[:page.Limit]
	}
	return rows, hasMore, nil
}

func (s *PlateReadService) Get(ctx context.Context, id uint) (models.PlateRead, error) {
	var pr models.PlateRead
	if err := s.db.WithContext(ctx).Preload("Sensor").Preload("Car").Preload("RoadSegment").First(&pr, id).Error; err != nil {
		return models.PlateRead{}, notFoundOr(err)
	}
	return pr, nil
}

func (s *PlateReadService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.PlateRead{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete plate read %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
