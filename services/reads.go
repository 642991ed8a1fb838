package services

import (
	"context"
	"fmt"
	"time"

	"traffic-telemetry-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TimePage selects rows after the (Before, BeforeID) position in read_at DESC, id DESC
// order. A zero BeforeID falls back to read_at < Before.
type TimePage struct {
	Limit    int
	Before   *time.Time
	BeforeID uint
}

func (p TimePage) scope(q *gorm.DB) *gorm.DB {
	if p.Before == nil {
		return q
	}
	at := p.Before.UTC()
	if p.BeforeID == 0 {
		return q.Where("read_at < ?", at)
	}
	return q.Where("(read_at < ? OR (read_at = ? AND id < ?))", at, at, p.BeforeID)
}

type ReadFilter struct {
	RoadID *uint
}

type ReadInput struct {
	RoadID    *uint
	ReadValue *decimal.Decimal
}

type ReadService struct {
	db    *gorm.DB
	roads *RoadService
	now   func() time.Time
}

func NewReadService(db *gorm.DB, roads *RoadService) *ReadService {
	return &ReadService{db: db, roads: roads, now: time.Now}
}

func (s *ReadService) List(ctx context.Context, filter ReadFilter, page TimePage) ([]models.Read, bool, error) {
	q := page.scope(s.db.WithContext(ctx).Order("read_at DESC").Order("id DESC").Limit(page.Limit + 1))
	if filter.RoadID != nil {
		q = q.Where("road_id = ?", *filter.RoadID)
	}

	var rows []models.Read
	if err := q.Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("list reads: %w", err)
	}
	hasMore := len(rows) > page.Limit
	if hasMore {
		rows = rows[:page.Limit]
	}
	return rows, hasMore, nil
}

func (s *ReadService) Get(ctx context.Context, id uint) (models.Read, error) {
	var r models.Read
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return models.Read{}, notFoundOr(err)
	}
	return r, nil
}

// Create stores a new read stamped with the current server time.
func (s *ReadService) Create(ctx context.Context, in ReadInput) (models.Read, error) {
	verr := &ValidationError{}
	if in.RoadID == nil {
		verr.add("road", "This field is required.")
	}
	if in.ReadValue == nil {
		verr.add("read_value", "This field is required.")
	}
	if !verr.empty() {
		return models.Read{}, verr
	}

	r := models.Read{}
	if err := s.apply(ctx, &r, in); err != nil {
		return models.Read{}, err
	}
	r.ReadAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return models.Read{}, fmt.Errorf("create read: %w", err)
	}
	return r, nil
}

// Update changes the road or the value of a read; read_at is never modified.
func (s *ReadService) Update(ctx context.Context, id uint, in ReadInput) (models.Read, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return models.Read{}, err
	}
	if err := s.apply(ctx, &r, in); err != nil {
		return models.Read{}, err
	}
	if err := s.db.WithContext(ctx).Save(&r).Error; err != nil {
		return models.Read{}, fmt.Errorf("update read %d: %w", id, err)
	}
	return r, nil
}

func (s *ReadService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Read{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete read %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ReadService) apply(ctx context.Context, r *models.Read, in ReadInput) error {
	verr := &ValidationError{}
	if in.RoadID != nil {
		ok, err := s.roads.Exists(ctx, *in.RoadID)
		if err != nil {
			return err
		}
		if !ok {
			verr.add("road", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.RoadID))
		} else {
			r.RoadID = *in.RoadID
		}
	}
	if in.ReadValue != nil {
		validateSpeedValue("read_value", *in.ReadValue, verr)
		if in.ReadValue.IsNegative() {
			verr.add("read_value", "Ensure this value is greater than or equal to 0.")
		}
		if verr.Fields["read_value"] == "" {
			r.ReadValue = *in.ReadValue
		}
	}
	if !verr.empty() {
		return verr
	}
	return nil
}
