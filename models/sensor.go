package models

import "github.com/google/uuid"

type Sensor struct {
	ID   uint      `gorm:"column:id;primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null" json:"uuid"`
	Name string    `gorm:"column:name;size:100;not null" json:"name"`
}

func (Sensor) TableName() string { return "sensors" }
