// Package testutil provides an in-process SQLite database with the application schema.
package testutil

import (
	"errors"
	"path/filepath"
	"testing"

	"traffic-telemetry-api/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"
)

// SQLite extended result codes, see https://www.sqlite.org/rescode.html.
const (
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// dialector maps modernc errors onto gorm's sentinels. The stock translator decodes
// codes through JSON, which sees none of modernc's unexported fields.
type dialector struct {
	sqlite.Dialector
}

func (d dialector) Translate(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return gorm.ErrDuplicatedKey
		case sqliteConstraintForeignKey:
			return gorm.ErrForeignKeyViolated
		}
	}
	return d.Dialector.Translate(err)
}

// OpenDB returns a gorm handle on a fresh SQLite file under t.TempDir. Errors are
// translated the same way as on Postgres.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "traffic_test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(dialector{sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}}, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}
