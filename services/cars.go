package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"traffic-telemetry-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecentWindow bounds the recent-passes lookup.
const RecentWindow = 24 * time.Hour

type CarInput struct {
	LicensePlate *string
}

type CarService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCarService(db *gorm.DB) *CarService {
	return &CarService{db: db, now: time.Now}
}

func (s *CarService) List(ctx context.Context, page IDPage) ([]models.Car, bool, error) {
	q := s.db.WithContext(ctx).Order("id DESC").Limit(page.Limit + 1)
	if page.BeforeID > 0 {
		q = q.Where("id < ?", page.BeforeID)
	}
	var rows []models.Car
	if err := q.Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("list cars: %w", err)
	}
	hasMore := len(rows) > page.Limit
	if hasMore {
		rows = rows[:page.Limit]
	}
	return rows, hasMore, nil
}

func (s *CarService) Get(ctx context.Context, id uint) (models.Car, error) {
	var car models.Car
	if err := s.db.WithContext(ctx).First(&car, id).Error; err != nil {
		return models.Car{}, notFoundOr(err)
	}
	return car, nil
}

func (s *CarService) Create(ctx context.Context, in CarInput) (models.Car, error) {
	if in.LicensePlate == nil {
		return models.Car{}, newValidationError("license_plate", "This field is required.")
	}
	plate, verr := validatePlate(*in.LicensePlate)
	if verr != nil {
		return models.Car{}, verr
	}
	if err := s.ensurePlateFree(ctx, plate, 0); err != nil {
		return models.Car{}, err
	}
	car := models.Car{LicensePlate: plate}
	if err := s.db.WithContext(ctx).Create(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Car{}, plateTaken()
		}
		return models.Car{}, fmt.Errorf("create car: %w", err)
	}
	return car, nil
}

func (s *CarService) Update(ctx context.Context, id uint, in CarInput) (models.Car, error) {
	car, err := s.Get(ctx, id)
	if err != nil {
		return models.Car{}, err
	}
	if in.LicensePlate == nil {
		return car, nil
	}
	plate, verr := validatePlate(*in.LicensePlate)
	if verr != nil {
		return models.Car{}, verr
	}
	if err := s.ensurePlateFree(ctx, plate, car.ID); err != nil {
		return models.Car{}, err
	}
	car.LicensePlate = plate
	if err := s.db.WithContext(ctx).Save(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Car{}, plateTaken()
		}
		return models.Car{}, fmt.Errorf("update car %d: %w", id, err)
	}
	return car, nil
}

// Delete removes a car and every plate read of it.
func (s *CarService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("car_id = ?", id).Delete(&models.PlateRead{}).Error; err != nil {
			return fmt.Errorf("delete plate reads of car %d: %w", id, err)
		}
		res := tx.Delete(&models.Car{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete car %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetOrCreate returns the car with the given plate, inserting it if absent. It is
// safe under concurrent callers: the insert is a no-op on conflict and the row is
// read back afterwards.
func GetOrCreate(tx *gorm.DB, plate string) (models.Car, error) {
	car := models.Car{LicensePlate: plate}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_plate"}},
		DoNothing: true,
	}).Create(&car).Error
	if err != nil {
		return models.Car{}, fmt.Errorf("insert car %q: %w", plate, err)
	}

	var stored models.Car
	if err := tx.Where("license_plate = ?", plate).First(&stored).Error; err != nil {
		return models.Car{}, fmt.Errorf("read car %q: %w", plate, err)
	}
	return stored, nil
}

// RecentPasses lists the plate reads of a car within RecentWindow, newest first.
func (s *CarService) RecentPasses(ctx context.Context, plate string) ([]models.PlateRead, error) {
	var car models.Car
	err := s.db.WithContext(ctx).Where("license_plate = ?", plate).First(&car).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCarNotRecognized
	}
	if err != nil {
		return nil, fmt.Errorf("lookup car %q: %w", plate, err)
	}

	since := s.now().UTC().Add(-RecentWindow)
	reads := make([]models.PlateRead, 0)
	err = s.db.WithContext(ctx).
		Preload("Sensor").
		Preload("Car").
		Preload("RoadSegment").
		Where("car_id = ? AND read_at >= ?", car.ID, since).
		Order("read_at DESC").
		Order("id DESC").
		Find(&reads).Error
	if err != nil {
		return nil, fmt.Errorf("recent passes of %q: %w", plate, err)
	}
	return reads, nil
}

func (s *CarService) ensurePlateFree(ctx context.Context, plate string, exceptID uint) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Car{}).
		Where("license_plate = ? AND id <> ?", plate, exceptID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check plate: %w", err)
	}
	if count > 0 {
		return plateTaken()
	}
	return nil
}

func plateTaken() *ValidationError {
	return newValidationError("license_plate", "car with this license plate already exists.")
}

func validatePlate(raw string) (string, *ValidationError) {
	plate := strings.TrimSpace(raw)
	if plate == "" {
		return "", newValidationError("license_plate", "This field may not be blank.")
	}
	if len(plate) > models.MaxPlateLength {
		return "", newValidationError("license_plate",
			fmt.Sprintf("Ensure this field has no more than %d characters.", models.MaxPlateLength))
	}
	return plate, nil
}
