package models

import "time"

// APIKey is a service credential. Only the sha256 of the key is stored.
type APIKey struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;size:100;not null" json:"name"`
	Prefix    string    `gorm:"column:prefix;size:8;not null" json:"prefix"`
	KeyHash   string    `gorm:"column:key_hash;size:64;uniqueIndex;not null" json:"-"`
	Revoked   bool      `gorm:"column:revoked;not null;default:false" json:"revoked"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// All lists every table model in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{}, &APIKey{}, &Threshold{}, &Road{}, &Read{}, &Sensor{}, &Car{}, &PlateRead{},
	}
}
