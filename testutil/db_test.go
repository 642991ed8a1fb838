package testutil

import (
	"errors"
	"testing"

	"traffic-telemetry-api/models"

	"gorm.io/gorm"
)

func TestOpenDBTranslatesConstraintErrors(t *testing.T) {
	db := OpenDB(t)

	if err := db.Create(&models.Car{LicensePlate: "DUP-1"}).Error; err != nil {
		t.Fatalf("create car: %v", err)
	}

	t.Run("unique", func(t *testing.T) {
		err := db.Create(&models.Car{LicensePlate: "DUP-1"}).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			t.Errorf("duplicate insert error = %v, want gorm.ErrDuplicatedKey", err)
		}
	})

	t.Run("foreign key", func(t *testing.T) {
		err := db.Create(&models.PlateRead{RoadSegmentID: 999, CarID: 999, SensorID: 999}).Error
		if !errors.Is(err, gorm.ErrForeignKeyViolated) {
			t.Errorf("dangling insert error = %v, want gorm.ErrForeignKeyViolated", err)
		}
	})
}
