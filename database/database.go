package database

import (
	"context"
	"fmt"
	"time"

	"traffic-telemetry-api/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB bundles the pgx pool with the gorm handle built on top of it.
type DB struct {
	Pool *pgxpool.Pool
	Gorm *gorm.DB
}

// Open connects to Postgres, retrying the first ping while the database starts up.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("db pool init failed: %w", err)
	}

	var lastErr error
	for i := 0; i < 10; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = pool.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			break
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if lastErr != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed after 10 attempts: %w", lastErr)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: stdlib.OpenDBFromPool(pool),
	}), &gorm.Config{TranslateError: true})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("gorm open failed: %w", err)
	}

	return &DB{Pool: pool, Gorm: gdb}, nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

func (d *DB) Close() {
	if sqlDB, err := d.Gorm.DB(); err == nil {
		_ = sqlDB.Close()
	}
	d.Pool.Close()
}
