package model

import (
	"encoding/json"
	"time"

	"github.com/toolmeta/toolregistry/internal/registry"
	"gorm.io/datatypes"
)

// Tool is the database row of a tool registered in the registry.
// Timestamps are owned by the registry, not by gorm.
type Tool struct {
	ToolID string `gorm:"primaryKey;type:varchar(64)"`

	Name    string `gorm:"not null;index"`
	Version string `gorm:"type:varchar(128);not null"`
	OwnerID string `gorm:"type:varchar(255);not null;index"`

	Description string
	Location    string

	// SupportedFormats is the authoritative format set.
	// The tool_formats rows are derived from it inside every write transaction.
	SupportedFormats datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`

	InvocationContract datatypes.JSON `gorm:"type:jsonb;not null"`

	Revision int64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;not null"`
}

// ToolFormat is a single format index entry.
type ToolFormat struct {
	Format string `gorm:"primaryKey;type:varchar(255)"`
	ToolID string `gorm:"primaryKey;type:varchar(64);index"`
}

// NewTool converts a registry record into its database row.
func NewTool(rec *registry.ToolRecord) *Tool {
	return &Tool{
		ToolID:             rec.ToolID,
		Name:               rec.Name,
		Version:            rec.Version,
		OwnerID:            rec.OwnerID,
		Description:        rec.Description,
		Location:           rec.Location,
		SupportedFormats:   datatypes.JSONSlice[string](rec.SupportedFormats),
		InvocationContract: datatypes.JSON(rec.InvocationContract),
		Revision:           rec.Revision,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

// Record converts the row back into a registry record.
func (t *Tool) Record() *registry.ToolRecord {
	formats := make([]string, len(t.SupportedFormats))
	copy(formats, t.SupportedFormats)
	return &registry.ToolRecord{
		ToolID:             t.ToolID,
		Name:               t.Name,
		Version:            t.Version,
		OwnerID:            t.OwnerID,
		Description:        t.Description,
		Location:           t.Location,
		SupportedFormats:   formats,
		InvocationContract: json.RawMessage(t.InvocationContract),
		Revision:           t.Revision,
		CreatedAt:          t.CreatedAt.UTC(),
		UpdatedAt:          t.UpdatedAt.UTC(),
	}
}

// FormatRows builds the index rows for the given formats of a tool.
func FormatRows(toolID string, formats []string) []ToolFormat {
	rows := make([]ToolFormat, len(formats))
	for i, f := range formats {
		rows[i] = ToolFormat{Format: f, ToolID: toolID}
	}
	return rows
}
