package services

import (
	"testing"

	"traffic-telemetry-api/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		speed string
		want  Intensity
	}{
		{"below low", "15", IntensityLow},
		{"just below low", "19.99", IntensityLow},
		{"equal to low", "20", IntensityMedium},
		{"between", "30", IntensityMedium},
		{"just below high", "49.99", IntensityMedium},
		{"equal to high", "50", IntensityHigh},
		{"above high", "80.5", IntensityHigh},
		{"zero", "0", IntensityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(dec(tt.speed), dec("20"), dec("50"))
			if got != tt.want {
				t.Errorf("Classify(%s) = %v, want %v", tt.speed, got, tt.want)
			}
		})
	}
}

func TestClassifyDegenerateThreshold(t *testing.T) {
	// low == high leaves no medium bucket
	if got := Classify(dec("30"), dec("30"), dec("30")); got != IntensityHigh {
		t.Errorf("got %v, want %v", got, IntensityHigh)
	}
	if got := Classify(dec("29.99"), dec("30"), dec("30")); got != IntensityLow {
		t.Errorf("got %v, want %v", got, IntensityLow)
	}
}

func TestClassifyWithoutThreshold(t *testing.T) {
	if _, ok := ClassifyWith(dec("30"), nil); ok {
		t.Error("ClassifyWith(nil threshold) should report false")
	}
	got, ok := ClassifyWith(dec("30"), &models.Threshold{MinValue: dec("20"), MaxValue: dec("50")})
	if !ok || got != IntensityMedium {
		t.Errorf("ClassifyWith() = (%v, %v), want (medium, true)", got, ok)
	}
}

func TestParseIntensity(t *testing.T) {
	tests := []struct {
		in     string
		want   Intensity
		wantOK bool
	}{
		{"low", IntensityLow, true},
		{"baixa", IntensityLow, true},
		{"lt", IntensityLow, true},
		{"medium", IntensityMedium, true},
		{"media", IntensityMedium, true},
		{"mid", IntensityMedium, true},
		{"high", IntensityHigh, true},
		{"alta", IntensityHigh, true},
		{"GT", IntensityHigh, true},
		{" Alta ", IntensityHigh, true},
		{"extreme", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseIntensity(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseIntensity(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
