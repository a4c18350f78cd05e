// Package dburl maps database URLs (sqlite:// or postgres://) to GORM
// dialectors for the stores that share the same URL convention.
package dburl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("database_url.unsupported_dialect")
	// ErrNoScheme indicates the URL carried no recognizable scheme.
	ErrNoScheme = errors.New("database_url.no_scheme")
	// ErrSQLiteEmptyPath indicates a sqlite URL without a file path.
	ErrSQLiteEmptyPath = errors.New("database_url.sqlite.empty_path")
	// ErrSQLiteInvalidURL indicates a sqlite URL that could not be interpreted.
	ErrSQLiteInvalidURL = errors.New("database_url.sqlite.invalid_url")
)

// ResolveDialector returns the GORM dialector and driver label for a
// database URL.
func ResolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, parseErr := url.Parse(databaseURL)
	if parseErr != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("database_url.resolve: %w", ErrNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := BuildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("database_url.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("database_url.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

// BuildSQLiteDSN converts a parsed sqlite URL into the DSN the driver
// expects, preserving opaque forms like sqlite:file.db and query options.
func BuildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", ErrSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", ErrSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
