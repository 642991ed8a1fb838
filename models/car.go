package models

import "time"

const MaxPlateLength = 15

type Car struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	LicensePlate string    `gorm:"column:license_plate;size:15;uniqueIndex;not null" json:"license_plate"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Car) TableName() string { return "cars" }
