package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"traffic-telemetry-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SensorInput struct {
	UUID *uuid.UUID
	Name *string
}

type SensorService struct {
	db *gorm.DB
}

func NewSensorService(db *gorm.DB) *SensorService {
	return &SensorService{db: db}
}

func (s *SensorService) List(ctx context.Context, page IDPage) ([]models.Sensor, bool, error) {
	q := s.db.WithContext(ctx).Order("id DESC").Limit(page.Limit + 1)
	if page.BeforeID > 0 {
		q = q.Where("id < ?", page.BeforeID)
	}
	var rows []models.Sensor
	if err := q.Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("list sensors: %w", err)
	}
	hasMore := len(rows) > page.Limit
	if hasMore {
		rows = rows[:page.Limit]
	}
	return rows, hasMore, nil
}

func (s *SensorService) Get(ctx context.Context, id uint) (models.Sensor, error) {
	var sensor models.Sensor
	if err := s.db.WithContext(ctx).First(&sensor, id).Error; err != nil {
		return models.Sensor{}, notFoundOr(err)
	}
	return sensor, nil
}

// GetByUUID returns ErrSensorNotRecognized for unknown sensors.
func (s *SensorService) GetByUUID(ctx context.Context, id uuid.UUID) (models.Sensor, error) {
	var sensor models.Sensor
	err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&sensor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Sensor{}, ErrSensorNotRecognized
	}
	if err != nil {
		return models.Sensor{}, fmt.Errorf("lookup sensor %s: %w", id, err)
	}
	return sensor, nil
}

// Create registers a sensor. A random uuid is assigned when none is given.
func (s *SensorService) Create(ctx context.Context, in SensorInput) (models.Sensor, error) {
	if in.Name == nil {
		return models.Sensor{}, newValidationError("name", "This field is required.")
	}
	name, verr := validateSensorName(*in.Name)
	if verr != nil {
		return models.Sensor{}, verr
	}

	sensor := models.Sensor{UUID: uuid.New(), Name: name}
	if in.UUID != nil {
		if *in.UUID == uuid.Nil {
			return models.Sensor{}, newValidationError("uuid", "Must be a valid UUID.")
		}
		sensor.UUID = *in.UUID
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Sensor{}).Where("uuid = ?", sensor.UUID).Count(&count).Error; err != nil {
		return models.Sensor{}, fmt.Errorf("check sensor uuid: %w", err)
	}
	if count > 0 {
		return models.Sensor{}, newValidationError("uuid", "sensor with this uuid already exists.")
	}

	if err := s.db.WithContext(ctx).Create(&sensor).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Sensor{}, newValidationError("uuid", "sensor with this uuid already exists.")
		}
		return models.Sensor{}, fmt.Errorf("create sensor: %w", err)
	}
	return sensor, nil
}

// Update renames a sensor. The uuid is the sensor's identity and cannot change.
func (s *SensorService) Update(ctx context.Context, id uint, in SensorInput) (models.Sensor, error) {
	sensor, err := s.Get(ctx, id)
	if err != nil {
		return models.Sensor{}, err
	}
	if in.UUID != nil && *in.UUID != sensor.UUID {
		return models.Sensor{}, newValidationError("uuid", "This field is immutable.")
	}
	if in.Name != nil {
		name, verr := validateSensorName(*in.Name)
		if verr != nil {
			return models.Sensor{}, verr
		}
		sensor.Name = name
	}
	if err := s.db.WithContext(ctx).Save(&sensor).Error; err != nil {
		return models.Sensor{}, fmt.Errorf("update sensor %d: %w", id, err)
	}
	return sensor, nil
}

// Delete refuses to remove a sensor that plate reads still point to.
func (s *SensorService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.PlateRead{}).Where("sensor_id = ?", id).Count(&refs).Error; err != nil {
			return fmt.Errorf("count plate reads of sensor %d: %w", id, err)
		}
		if refs > 0 {
			return ErrSensorInUse
		}
		res := tx.Delete(&models.Sensor{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete sensor %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func validateSensorName(raw string) (string, *ValidationError) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", newValidationError("name", "This field may not be blank.")
	}
	if len(name) > 100 {
		return "", newValidationError("name", "Ensure this field has no more than 100 characters.")
	}
	return name, nil
}
