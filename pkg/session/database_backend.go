package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/skillbridgeai/skillbridge/internal/dburl"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = dburl.ErrUnsupportedDialect

	errEmptyDatabaseURL = errors.New("session_backend.empty_database_url")
)

// DatabaseBackend persists session keys with GORM so a CLI session survives
// process restarts.
type DatabaseBackend struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (backend *DatabaseBackend) Driver() string {
	return backend.driverLabel
}

type sessionValueRecord struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value;not null"`
}

func (sessionValueRecord) TableName() string {
	return "session_values"
}

// NewDatabaseBackend constructs a GORM-backed KeyValue from a database URL
// (sqlite:// or postgres://).
func NewDatabaseBackend(ctx context.Context, databaseURL string) (*DatabaseBackend, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("session_backend.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("session_backend.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&sessionValueRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("session_backend.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseBackend{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Get returns the stored value for key.
func (backend *DatabaseBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var record sessionValueRecord
	result := backend.db.WithContext(ctx).Where("key = ?", key).Take(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("session_backend.get: %w", result.Error)
	}
	return record.Value, true, nil
}

// Set upserts a single value.
func (backend *DatabaseBackend) Set(ctx context.Context, key string, value string) error {
	record := sessionValueRecord{Key: key, Value: value}
	result := backend.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("session_backend.set: %w", result.Error)
	}
	return nil
}

// SetMany upserts all supplied values inside one transaction.
func (backend *DatabaseBackend) SetMany(ctx context.Context, values map[string]string) error {
	transactionErr := backend.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		for key, value := range values {
			record := sessionValueRecord{Key: key, Value: value}
			result := transaction.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&record)
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if transactionErr != nil {
		return fmt.Errorf("session_backend.set_many: %w", transactionErr)
	}
	return nil
}

// Delete removes all supplied keys inside one transaction.
func (backend *DatabaseBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	result := backend.db.WithContext(ctx).Where("key IN ?", keys).Delete(&sessionValueRecord{})
	if result.Error != nil {
		return fmt.Errorf("session_backend.delete: %w", result.Error)
	}
	return nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	dialector, driverLabel, err := dburl.ResolveDialector(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("session_backend.resolve: %w", err)
	}
	return dialector, driverLabel, nil
}
