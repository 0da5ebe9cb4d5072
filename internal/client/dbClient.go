package client

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-checkout/internal/model"
)

// InitDBClient opens the database named by databaseURL and migrates the schema.
// Supported schemes: sqlite:// (or file:), postgres://, mysql://.
func InitDBClient(databaseURL string) (*gorm.DB, error) {
	dialector, sqliteDB, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if sqliteDB {
		// sqlite serializes writers; a single connection keeps in-memory databases shared
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://")), true, nil
	case strings.HasPrefix(databaseURL, "file:"):
		return sqlite.Open(databaseURL), true, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), false, nil
	case strings.HasPrefix(databaseURL, "mysql://"):
		// go-sql-driver expects user:pass@tcp(host)/db without a scheme
		return mysql.Open(strings.TrimPrefix(databaseURL, "mysql://")), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}
