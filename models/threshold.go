package models

import "github.com/shopspring/decimal"

// Threshold holds the speed boundaries of the intensity buckets.
type Threshold struct {
	ID       uint            `gorm:"column:id;primaryKey" json:"id"`
	MinValue decimal.Decimal `gorm:"column:min_value;type:numeric(5,2);not null" json:"min_value"`
	MaxValue decimal.Decimal `gorm:"column:max_value;type:numeric(5,2);not null" json:"max_value"`
}

func (Threshold) TableName() string { return "classifications" }
