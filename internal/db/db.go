// Package db opens the SQL database used for users and, with the sql backend, for tools.
package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLiteDSN is used when no DSN is configured.
// A file in the working directory keeps data across restarts.
const DefaultSQLiteDSN = "toolregistry.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// NewDBConnection opens a gorm connection for the given DSN.
// postgres:// and postgresql:// DSNs use Postgres, anything else is treated as a SQLite path.
func NewDBConnection(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	if isPostgres(dsn) {
		conn, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
		}
		return conn, nil
	}

	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	conn, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer, so all access goes through one connection.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
