package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"booking-backend/config"
	"booking-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Resource{},
		&model.Allocation{},
		&model.Reservation{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.Driver != "sqlite" {
		applyPostgresDDL(db)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// applyPostgresDDL adds the range indexes and check constraints that
// AutoMigrate cannot express. Availability and overlap queries scan by
// resource and time range. The ALTER TABLE is not idempotent, so failures
// are logged per statement instead of aborting startup.
func applyPostgresDDL(db *gorm.DB) {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		`CREATE INDEX IF NOT EXISTS idx_allocation_range ON allocations USING GIST (resource, tstzrange(start, "end", '[]'));`,

		`CREATE INDEX IF NOT EXISTS idx_reservation_range ON reservations USING GIST (target, tstzrange(start, "end", '[]'));`,

		`ALTER TABLE allocations ADD CONSTRAINT allocations_range_valid CHECK (start < "end");`,
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			log.Printf("Warning: DDL failed on %q: %v. Continuing without it.", ddl, err)
		}
	}
}
