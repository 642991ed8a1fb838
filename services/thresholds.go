package services

import (
	"context"
	"errors"
	"fmt"

	"traffic-telemetry-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	DefaultMinThreshold = decimal.NewFromInt(20)
	DefaultMaxThreshold = decimal.NewFromInt(50)

	decimalLimit = decimal.NewFromInt(1000)
)

// validateSpeedValue enforces numeric(5,2).
func validateSpeedValue(field string, v decimal.Decimal, verr *ValidationError) {
	if !v.Equal(v.Round(2)) {
		verr.add(field, "Ensure that there are no more than 2 decimal places.")
		return
	}
	if v.Abs().GreaterThanOrEqual(decimalLimit) {
		verr.add(field, "Ensure that there are no more than 5 digits in total.")
	}
}

type ThresholdService struct {
	db *gorm.DB
}

func NewThresholdService(db *gorm.DB) *ThresholdService {
	return &ThresholdService{db: db}
}

// Current returns the active threshold row, or nil when none is configured.
func (s *ThresholdService) Current(ctx context.Context) (*models.Threshold, error) {
	var t models.Threshold
	err := s.db.WithContext(ctx).Order("id ASC").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load threshold: %w", err)
	}
	return &t, nil
}

// List exposes the active row only; older rows are never consulted.
func (s *ThresholdService) List(ctx context.Context) ([]models.Threshold, error) {
	t, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return []models.Threshold{}, nil
	}
	return []models.Threshold{*t}, nil
}

func (s *ThresholdService) Get(ctx context.Context, id uint) (models.Threshold, error) {
	var t models.Threshold
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return models.Threshold{}, notFoundOr(err)
	}
	return t, nil
}

type ThresholdPatch struct {
	MinValue *decimal.Decimal
	MaxValue *decimal.Decimal
}

// Update applies a full or partial change. Concurrent updates are last-write-wins.
func (s *ThresholdService) Update(ctx context.Context, id uint, patch ThresholdPatch) (models.Threshold, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return models.Threshold{}, err
	}
	if patch.MinValue != nil {
		t.MinValue = *patch.MinValue
	}
	if patch.MaxValue != nil {
		t.MaxValue = *patch.MaxValue
	}
	if err := validateThreshold(t); err != nil {
		return models.Threshold{}, err
	}
	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return models.Threshold{}, fmt.Errorf("save threshold: %w", err)
	}
	return t, nil
}

// Set replaces the active thresholds, creating the row if the table is empty.
func (s *ThresholdService) Set(ctx context.Context, minValue, maxValue decimal.Decimal) (models.Threshold, error) {
	t := models.Threshold{MinValue: minValue, MaxValue: maxValue}
	if err := validateThreshold(t); err != nil {
		return models.Threshold{}, err
	}
	current, err := s.Current(ctx)
	if err != nil {
		return models.Threshold{}, err
	}
	if current != nil {
		t.ID = current.ID
	}
	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return models.Threshold{}, fmt.Errorf("save threshold: %w", err)
	}
	return t, nil
}

// EnsureDefault seeds the (20, 50) row when the table is empty.
func (s *ThresholdService) EnsureDefault(ctx context.Context) (bool, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return false, err
	}
	if current != nil {
		return false, nil
	}
	t := models.Threshold{MinValue: DefaultMinThreshold, MaxValue: DefaultMaxThreshold}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return false, fmt.Errorf("seed threshold: %w", err)
	}
	return true, nil
}

func validateThreshold(t models.Threshold) error {
	verr := &ValidationError{}
	validateSpeedValue("min_value", t.MinValue, verr)
	validateSpeedValue("max_value", t.MaxValue, verr)
	if verr.empty() && t.MinValue.GreaterThan(t.MaxValue) {
		verr.add("non_field_errors", "min_value must be less than or equal to max_value.")
	}
	if !verr.empty() {
		return verr
	}
	return nil
}
