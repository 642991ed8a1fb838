package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Read is a single speed observation on a road. ReadAt is assigned by the server.
type Read struct {
	ID        uint            `gorm:"column:id;primaryKey" json:"id"`
	RoadID    uint            `gorm:"column:road_id;not null;index:idx_reads_road_read_at,priority:1" json:"road"`
	Road      *Road           `gorm:"foreignKey:RoadID;constraint:OnDelete:CASCADE" json:"-"`
	ReadValue decimal.Decimal `gorm:"column:read_value;type:numeric(5,2);not null" json:"read_value"`
	ReadAt    time.Time       `gorm:"column:read_at;not null;index:idx_reads_road_read_at,priority:2" json:"read_at"`
}

func (Read) TableName() string { return "velocity_reads" }
