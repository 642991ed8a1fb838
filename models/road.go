package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LineString is an ordered list of [x, y] coordinate pairs (longitude, latitude).
type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

func NewLineString(coords ...[2]float64) LineString {
	return LineString{Type: "LineString", Coordinates: coords}
}

// Hash is a stable digest of the coordinates, used to enforce (name, segment) uniqueness.
func (l LineString) Hash() string {
	data, _ := json.Marshal(l.Coordinates)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type Road struct {
	ID          uint                           `gorm:"column:id;primaryKey" json:"id"`
	Name        string                         `gorm:"column:name;size:255;not null;uniqueIndex:idx_roads_name_segment" json:"name"`
	Segment     datatypes.JSONType[LineString] `gorm:"column:segment;not null" json:"segment"`
	SegmentHash string                         `gorm:"column:segment_hash;size:64;not null;uniqueIndex:idx_roads_name_segment" json:"-"`
	Length      float64                        `gorm:"column:length;not null" json:"length"`
	CreatedAt   time.Time                      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time                      `gorm:"column:updated_at" json:"updated_at"`
}

func (Road) TableName() string { return "roads" }

func (r *Road) BeforeSave(*gorm.DB) error {
	r.SegmentHash = r.Segment.Data().Hash()
	return nil
}
