package services

import (
	"context"
	"fmt"
	"time"

	"traffic-telemetry-api/models"

	"github.com/shopspring/decimal"
)

type RoadIntensity struct {
	RoadID    uint            `json:"road"`
	Name      string          `json:"name"`
	Speed     decimal.Decimal `json:"speed"`
	ReadAt    time.Time       `json:"read_at"`
	Intensity Intensity       `json:"intensity"`
}

// Snapshot is the intensity of every road with at least one read, taken at one instant.
type Snapshot struct {
	At     time.Time         `json:"at"`
	Roads  []RoadIntensity   `json:"roads"`
	Counts map[Intensity]int `json:"counts"`
}

// Snapshot classifies the latest read of every road under the current threshold.
// It returns an empty snapshot when no threshold is configured.
func (s *RoadService) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		At:     time.Now().UTC(),
		Roads:  []RoadIntensity{},
		Counts: map[Intensity]int{IntensityLow: 0, IntensityMedium: 0, IntensityHigh: 0},
	}

	threshold, err := s.thresholds.Current(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if threshold == nil {
		return snap, nil
	}

	var cursor uint
	for {
		q := s.db.WithContext(ctx).Order("id ASC").Limit(roadScanBatch)
		if cursor > 0 {
			q = q.Where("id > ?", cursor)
		}
		var batch []models.Road
		if err := q.Find(&batch).Error; err != nil {
			return Snapshot{}, fmt.Errorf("load roads: %w", err)
		}
		if len(batch) == 0 {
			return snap, nil
		}
		for _, road := range batch {
			latest, err := s.LatestRead(ctx, road.ID)
			if err != nil {
				return Snapshot{}, err
			}
			if latest == nil {
				continue
			}
			bucket := Classify(latest.ReadValue, threshold.MinValue, threshold.MaxValue)
			snap.Roads = append(snap.Roads, RoadIntensity{
				RoadID:    road.ID,
				Name:      road.Name,
				Speed:     latest.ReadValue,
				ReadAt:    latest.ReadAt,
				Intensity: bucket,
			})
			snap.Counts[bucket]++
		}
		cursor = batch[len(batch)-1].ID
	}
}
