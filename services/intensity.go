package services

import (
	"strings"

	"traffic-telemetry-api/models"

	"github.com/shopspring/decimal"
)

type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

var intensityAliases = map[string]Intensity{
	"low":    IntensityLow,
	"baixa":  IntensityLow,
	"lt":     IntensityLow,
	"medium": IntensityMedium,
	"media":  IntensityMedium,
	"mid":    IntensityMedium,
	"high":   IntensityHigh,
	"alta":   IntensityHigh,
	"gt":     IntensityHigh,
}

// ParseIntensity resolves a bucket name. Unknown names report false.
func ParseIntensity(name string) (Intensity, bool) {
	b, ok := intensityAliases[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// Classify buckets a speed into half-open intervals [-inf, low), [low, high), [high, +inf).
func Classify(speed, low, high decimal.Decimal) Intensity {
	switch {
	case speed.LessThan(low):
		return IntensityLow
	case speed.LessThan(high):
		return IntensityMedium
	default:
		return IntensityHigh
	}
}

// ClassifyWith reports false when no threshold row is configured.
func ClassifyWith(speed decimal.Decimal, t *models.Threshold) (Intensity, bool) {
	if t == nil {
		return "", false
	}
	return Classify(speed, t.MinValue, t.MaxValue), true
}
