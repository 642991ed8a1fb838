package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"traffic-telemetry-api/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RoadStats summarises the speed reads of one road.
type RoadStats struct {
	RoadID uint    `json:"road"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P85    float64 `json:"p85"`
}

// Stats computes read statistics for a road. A road without reads yields a zero
// summary with Count 0.
func (s *RoadService) Stats(ctx context.Context, roadID uint) (RoadStats, error) {
	if _, err := s.find(ctx, roadID); err != nil {
		return RoadStats{}, err
	}

	var reads []models.Read
	if err := s.db.WithContext(ctx).Select("read_value").Where("road_id = ?", roadID).Find(&reads).Error; err != nil {
		return RoadStats{}, fmt.Errorf("load reads for road %d: %w", roadID, err)
	}

	values := make([]float64, len(reads))
	for i, r := range reads {
		values[i] = r.ReadValue.InexactFloat64()
	}
	return summarize(roadID, values), nil
}

func summarize(roadID uint, values []float64) RoadStats {
	out := RoadStats{RoadID: roadID, Count: len(values)}
	if len(values) == 0 {
		return out
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	out.Mean = round2(stat.Mean(sorted, nil))
	if len(sorted) > 1 {
		out.StdDev = round2(stat.StdDev(sorted, nil))
	}
	out.Min = floats.Min(sorted)
	out.Max = floats.Max(sorted)
	n := len(sorted)
	out.Median = round2((sorted[(n-1)/2] + sorted[n/2]) / 2)
	out.P85 = stat.Quantile(0.85, stat.Empirical, sorted, nil)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
