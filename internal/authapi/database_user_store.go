package authapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skillbridgeai/skillbridge/internal/dburl"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = dburl.ErrUnsupportedDialect

	errEmptyDatabaseURL = errors.New("user_store.empty_database_url")
)

// DatabaseUserStore persists application users using GORM.
type DatabaseUserStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseUserStore) Driver() string {
	return store.driverLabel
}

type userRow struct {
	ID       string `gorm:"column:id;primaryKey"`
	Email    string `gorm:"column:email;uniqueIndex;not null"`
	Name     string `gorm:"column:name;not null;default:''"`
	Picture  string `gorm:"column:picture;not null;default:''"`
	GoogleID string `gorm:"column:google_id;index;not null;default:''"`
	Role     string `gorm:"column:role;not null"`
	Status   string `gorm:"column:status;not null"`
}

func (userRow) TableName() string {
	return "users"
}

// NewDatabaseUserStore constructs a GORM-backed store from a database URL
// (sqlite:// or postgres://).
func NewDatabaseUserStore(ctx context.Context, databaseURL string) (*DatabaseUserStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("user_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("user_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRow{}); migrateErr != nil {
		return nil, fmt.Errorf("user_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseUserStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// UpsertUser inserts or updates a user keyed by email.
func (store *DatabaseUserStore) UpsertUser(ctx context.Context, record UserRecord) (UserRecord, error) {
	emailKey := strings.ToLower(record.Email)

	var existing userRow
	lookupErr := store.db.WithContext(ctx).Where("email = ?", emailKey).Take(&existing).Error
	if lookupErr == nil {
		existing.Name = record.Name
		existing.Picture = record.Picture
		existing.GoogleID = record.GoogleID
		if updateErr := store.db.WithContext(ctx).Save(&existing).Error; updateErr != nil {
			return UserRecord{}, fmt.Errorf("user_store.upsert.%s: %w", store.driverLabel, updateErr)
		}
		return rowToRecord(existing), nil
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return UserRecord{}, fmt.Errorf("user_store.upsert.%s: %w", store.driverLabel, lookupErr)
	}

	row := userRow{
		ID:       uuid.NewString(),
		Email:    emailKey,
		Name:     record.Name,
		Picture:  record.Picture,
		GoogleID: record.GoogleID,
		Role:     record.Role,
		Status:   record.Status,
	}
	if insertErr := store.db.WithContext(ctx).Create(&row).Error; insertErr != nil {
		return UserRecord{}, fmt.Errorf("user_store.upsert.%s: %w", store.driverLabel, insertErr)
	}
	return rowToRecord(row), nil
}

// GetUserByEmail returns a user by email.
func (store *DatabaseUserStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	var row userRow
	err := store.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserRecord{}, fmt.Errorf("user_store.get.%s: %w", store.driverLabel, ErrUserNotFound)
		}
		return UserRecord{}, fmt.Errorf("user_store.get.%s: %w", store.driverLabel, err)
	}
	return rowToRecord(row), nil
}

func rowToRecord(row userRow) UserRecord {
	return UserRecord{
		ID:       row.ID,
		Email:    row.Email,
		Name:     row.Name,
		Picture:  row.Picture,
		GoogleID: row.GoogleID,
		Role:     row.Role,
		Status:   row.Status,
	}
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	dialector, driverLabel, err := dburl.ResolveDialector(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("user_store.resolve: %w", err)
	}
	return dialector, driverLabel, nil
}
