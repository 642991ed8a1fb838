package models

import "time"

// PlateRead is an ALPR event: a car seen by a sensor on a road segment.
type PlateRead struct {
	ID            uint      `gorm:"column:id;primaryKey"`
	RoadSegmentID uint      `gorm:"column:road_segment_id;not null;index"`
	RoadSegment   *Road     `gorm:"foreignKey:RoadSegmentID;constraint:OnDelete:CASCADE"`
	CarID         uint      `gorm:"column:car_id;not null;index:idx_plate_reads_car_read_at,priority:1"`
	Car           *Car      `gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
	SensorID      uint      `gorm:"column:sensor_id;not null;index"`
	Sensor        *Sensor   `gorm:"foreignKey:SensorID;constraint:OnDelete:RESTRICT"`
	ReadAt        time.Time `gorm:"column:read_at;not null;index:idx_plate_reads_car_read_at,priority:2"`
}

func (PlateRead) TableName() string { return "plate_reads" }
