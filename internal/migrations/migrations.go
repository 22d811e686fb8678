// Package migrations keeps the SQL schema in sync with the gorm models.
package migrations

import (
	"fmt"

	"github.com/toolmeta/toolregistry/internal/model"
	"gorm.io/gorm"
)

// Migrate creates or updates all tables the registry needs.
// The tools tables are created even when tools live in another backend, so that switching
// backends never requires a separate migration step.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Tool{},
		&model.ToolFormat{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}
