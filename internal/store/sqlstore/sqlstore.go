// Package sqlstore implements registry.Store on top of gorm.
// Records live in the tools table and the format index in tool_formats; both are written in
// one database transaction.
package sqlstore

import (
	"context"
	"errors"

	"github.com/toolmeta/toolregistry/internal/model"
	"github.com/toolmeta/toolregistry/internal/registry"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

// New returns a store using an already migrated database, see migrations.Migrate.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Put(ctx context.Context, record *registry.ToolRecord, expectedRevision int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Tool
		exists := true
		if err := tx.Where("tool_id = ?", record.ToolID).Take(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			exists = false
		}
		if err := registry.CheckRevision(record.ToolID, exists, existing.Revision, expectedRevision); err != nil {
			return err
		}

		row := model.NewTool(record)
		row.Revision = expectedRevision + 1

		if !exists {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		} else {
			// the revision predicate makes the write conditional, a concurrent writer that
			// committed first leaves nothing to update here
			res := tx.Model(&model.Tool{}).
				Where("tool_id = ? AND revision = ?", record.ToolID, expectedRevision).
				Updates(map[string]any{
					"name":                row.Name,
					"version":             row.Version,
					"description":         row.Description,
					"location":            row.Location,
					"supported_formats":   row.SupportedFormats,
					"invocation_contract": row.InvocationContract,
					"revision":            row.Revision,
					"updated_at":          row.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return conflict(record.ToolID)
			}
		}

		retract, add := registry.IndexDelta(existing.SupportedFormats, record.SupportedFormats)
		if len(retract) > 0 {
			if err := tx.Where("tool_id = ? AND format IN ?", record.ToolID, retract).
				Delete(&model.ToolFormat{}).Error; err != nil {
				return err
			}
		}
		if len(add) > 0 {
			rows := model.FormatRows(record.ToolID, add)
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify(err, "failed to write tool %s", record.ToolID)
	}
	record.Revision = expectedRevision + 1
	return nil
}

func (s *Store) Get(ctx context.Context, toolID string) (*registry.ToolRecord, error) {
	var row model.Tool
	if err := s.db.WithContext(ctx).Where("tool_id = ?", toolID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
		}
		return nil, classify(err, "failed to read tool %s", toolID)
	}
	return row.Record(), nil
}

func (s *Store) Delete(ctx context.Context, toolID string, expectedRevision int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("tool_id = ? AND revision = ?", toolID, expectedRevision).Delete(&model.Tool{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Tool{}).Where("tool_id = ?", toolID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
			}
			return conflict(toolID)
		}
		return tx.Where("tool_id = ?", toolID).Delete(&model.ToolFormat{}).Error
	})
	if err != nil {
		return classify(err, "failed to delete tool %s", toolID)
	}
	return nil
}

func (s *Store) ListByFormat(ctx context.Context, format string) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&model.ToolFormat{}).
		Where("format = ?", format).
		Order("tool_id").
		Pluck("tool_id", &ids).Error
	if err != nil {
		return nil, classify(err, "failed to read format index")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *Store) List(ctx context.Context) ([]*registry.ToolRecord, error) {
	var rows []model.Tool
	if err := s.db.WithContext(ctx).Order("tool_id").Find(&rows).Error; err != nil {
		return nil, classify(err, "failed to list tools")
	}
	recs := make([]*registry.ToolRecord, len(rows))
	for i := range rows {
		recs[i] = rows[i].Record()
	}
	return recs, nil
}

// Close is a no-op. The connection pool is shared with the user service and is closed by its owner.
func (s *Store) Close() error {
	return nil
}

func conflict(toolID string) error {
	return registry.NewError(registry.KindConflict, "tool %s was modified concurrently, retry the operation", toolID)
}

// classify maps a database failure onto a registry error kind.
func classify(err error, format string, args ...any) error {
	var rerr *registry.Error
	if errors.As(err, &rerr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return registry.NewError(registry.KindConflict, "tool already exists")
	}
	return registry.StoreUnavailable(err, format, args...)
}
