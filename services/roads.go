package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"traffic-telemetry-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// roadScanBatch is how many candidate roads the intensity filter loads per query.
const roadScanBatch = 200

// RoadView is a road plus the fields derived from its reads at request time.
type RoadView struct {
	Road       models.Road
	TotalReads int64
	Intensity  *Intensity
}

type RoadFilter struct {
	Intensity string
}

// IDPage selects rows with id < BeforeID (when set), newest first.
type IDPage struct {
	Limit    int
	BeforeID uint
}

type RoadInput struct {
	Name    *string
	Segment *models.LineString
	Length  *float64
}

type RoadService struct {
	db         *gorm.DB
	thresholds *ThresholdService
}

func NewRoadService(db *gorm.DB, thresholds *ThresholdService) *RoadService {
	return &RoadService{db: db, thresholds: thresholds}
}

// List returns roads ordered by id descending. A non-empty intensity filter keeps only
// roads whose latest read falls in that bucket; an unknown bucket or a missing
// threshold row yields no roads.
func (s *RoadService) List(ctx context.Context, filter RoadFilter, page IDPage) ([]RoadView, bool, error) {
	threshold, err := s.thresholds.Current(ctx)
	if err != nil {
		return nil, false, err
	}

	if strings.TrimSpace(filter.Intensity) != "" {
		bucket, ok := ParseIntensity(filter.Intensity)
		if !ok || threshold == nil {
			return []RoadView{}, false, nil
		}
		return s.listByIntensity(ctx, bucket, threshold, page)
	}

	q := s.db.WithContext(ctx).Order("id DESC").Limit(page.Limit + 1)
	if page.BeforeID > 0 {
		q = q.Where("id < ?", page.BeforeID)
	}
	var roads []models.Road
	if err := q.Find(&roads).Error; err != nil {
		return nil, false, fmt.Errorf("list roads: %w", err)
	}

	hasMore := len(roads) > page.Limit
	if hasMore {
		roads = roads[:page.Limit]
	}

	views := make([]RoadView, 0, len(roads))
	for _, road := range roads {
		v, err := s.annotate(ctx, road, threshold)
		if err != nil {
			return nil, false, err
		}
		views = append(views, v)
	}
	return views, hasMore, nil
}

func (s *RoadService) listByIntensity(ctx context.Context, bucket Intensity, threshold *models.Threshold, page IDPage) ([]RoadView, bool, error) {
	views := make([]RoadView, 0)
	cursor := page.BeforeID
	for {
		q := s.db.WithContext(ctx).Order("id DESC").Limit(roadScanBatch)
		if cursor > 0 {
			q = q.Where("id < ?", cursor)
		}
		var batch []models.Road
		if err := q.Find(&batch).Error; err != nil {
			return nil, false, fmt.Errorf("list roads: %w", err)
		}
		if len(batch) == 0 {
			return views, false, nil
		}

		for _, road := range batch {
			latest, err := s.LatestRead(ctx, road.ID)
			if err != nil {
				return nil, false, err
			}
			if latest == nil {
				continue
			}
			if Classify(latest.ReadValue, threshold.MinValue, threshold.MaxValue) != bucket {
				continue
			}
			if len(views) == page.Limit {
				return views, true, nil
			}
			v, err := s.annotateWith(ctx, road, latest, threshold)
			if err != nil {
				return nil, false, err
			}
			views = append(views, v)
		}
		cursor = batch[len(batch)-1].ID
	}
}

func (s *RoadService) Get(ctx context.Context, id uint) (RoadView, error) {
	road, err := s.find(ctx, id)
	if err != nil {
		return RoadView{}, err
	}
	threshold, err := s.thresholds.Current(ctx)
	if err != nil {
		return RoadView{}, err
	}
	return s.annotate(ctx, road, threshold)
}

// Exists reports whether a road with the given id is stored.
func (s *RoadService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Road{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check road: %w", err)
	}
	return count > 0, nil
}

// LatestRead returns the most recent read of a road, or nil when it has none.
func (s *RoadService) LatestRead(ctx context.Context, roadID uint) (*models.Read, error) {
	var r models.Read
	err := s.db.WithContext(ctx).
		Where("road_id = ?", roadID).
		Order("read_at DESC").
		Order("id DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest read for road %d: %w", roadID, err)
	}
	return &r, nil
}

func (s *RoadService) Create(ctx context.Context, in RoadInput) (RoadView, error) {
	verr := &ValidationError{}
	if in.Name == nil {
		verr.add("name", "This field is required.")
	}
	if in.Segment == nil {
		verr.add("segment", "This field is required.")
	}
	if !verr.empty() {
		return RoadView{}, verr
	}

	road := models.Road{}
	if err := s.apply(&road, in); err != nil {
		return RoadView{}, err
	}
	if err := s.save(ctx, &road); err != nil {
		return RoadView{}, err
	}
	return s.Get(ctx, road.ID)
}

// Update applies the non-nil fields of in.
func (s *RoadService) Update(ctx context.Context, id uint, in RoadInput) (RoadView, error) {
	road, err := s.find(ctx, id)
	if err != nil {
		return RoadView{}, err
	}
	if err := s.apply(&road, in); err != nil {
		return RoadView{}, err
	}
	if err := s.save(ctx, &road); err != nil {
		return RoadView{}, err
	}
	return s.Get(ctx, road.ID)
}

// Delete removes a road together with its reads and plate reads.
func (s *RoadService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("road_segment_id = ?", id).Delete(&models.PlateRead{}).Error; err != nil {
			return fmt.Errorf("delete plate reads of road %d: %w", id, err)
		}
		if err := tx.Where("road_id = ?", id).Delete(&models.Read{}).Error; err != nil {
			return fmt.Errorf("delete reads of road %d: %w", id, err)
		}
		res := tx.Delete(&models.Road{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete road %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *RoadService) find(ctx context.Context, id uint) (models.Road, error) {
	var road models.Road
	if err := s.db.WithContext(ctx).First(&road, id).Error; err != nil {
		return models.Road{}, notFoundOr(err)
	}
	return road, nil
}

func (s *RoadService) apply(road *models.Road, in RoadInput) error {
	verr := &ValidationError{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		switch {
		case name == "":
			verr.add("name", "This field may not be blank.")
		case len(name) > 255:
			verr.add("name", "Ensure this field has no more than 255 characters.")
		default:
			road.Name = name
		}
	}
	if in.Segment != nil {
		seg := *in.Segment
		if err := validateSegment(seg); err != nil {
			verr.add("segment", err.Error())
		} else {
			seg.Type = "LineString"
			road.Segment = datatypes.NewJSONType(seg)
		}
	}
	if in.Length != nil {
		if *in.Length < 0 {
			verr.add("length", "Ensure this value is greater than or equal to 0.")
		} else {
			road.Length = *in.Length
		}
	} else if in.Segment != nil && verr.empty() {
		road.Length = SegmentLength(road.Segment.Data())
	}
	if !verr.empty() {
		return verr
	}
	return nil
}

func (s *RoadService) save(ctx context.Context, road *models.Road) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Road{}).
		Where("name = ? AND segment_hash = ? AND id <> ?", road.Name, road.Segment.Data().Hash(), road.ID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check road uniqueness: %w", err)
	}
	if count > 0 {
		return ErrDuplicateRoad
	}

	if err := s.db.WithContext(ctx).Save(road).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRoad
		}
		return fmt.Errorf("save road: %w", err)
	}
	return nil
}

func (s *RoadService) annotate(ctx context.Context, road models.Road, threshold *models.Threshold) (RoadView, error) {
	latest, err := s.LatestRead(ctx, road.ID)
	if err != nil {
		return RoadView{}, err
	}
	return s.annotateWith(ctx, road, latest, threshold)
}

func (s *RoadService) annotateWith(ctx context.Context, road models.Road, latest *models.Read, threshold *models.Threshold) (RoadView, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Read{}).Where("road_id = ?", road.ID).Count(&count).Error; err != nil {
		return RoadView{}, fmt.Errorf("count reads for road %d: %w", road.ID, err)
	}
	v := RoadView{Road: road, TotalReads: count}
	if latest != nil {
		if bucket, ok := ClassifyWith(latest.ReadValue, threshold); ok {
			v.Intensity = &bucket
		}
	}
	return v, nil
}
