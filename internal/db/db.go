package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmgops/rmg-console/internal/config"
	"github.com/rmgops/rmg-console/internal/model"
)

// New opens the database. A postgres DSN gets the raw migration list; any
// other DSN is treated as a sqlite path (dev and tests) and auto-migrated.
func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dialector, isPostgres := dialectorFor(cfg.DB.DSN)

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.DB.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("parse DB_CONN_MAX_LIFETIME: %w", err)
		}
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	if isPostgres {
		if err := runMigrations(database); err != nil {
			return nil, err
		}
	} else {
		if err := AutoMigrate(database); err != nil {
			return nil, err
		}
	}

	log.Info().Bool("postgres", isPostgres).Msg("database ready")
	return database, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn), true
	}
	return sqlite.Open(dsn), false
}

// AutoMigrate creates the schema from the models. Used for sqlite only;
// postgres schemas come from the migration statement list.
func AutoMigrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&model.Customer{},
		&model.Project{},
		&model.PurchaseOrder{},
		&model.FinancialLine{},
		&model.FundingAllocation{},
		&model.RevenueMonth{},
		&model.Milestone{},
	)
}
