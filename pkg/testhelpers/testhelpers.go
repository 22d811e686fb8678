// Package testhelpers provides common setup and assertion helpers for tests across the repository.
package testhelpers

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolmeta/toolregistry/internal/migrations"
	"github.com/toolmeta/toolregistry/internal/model"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/store/memstore"
	"github.com/toolmeta/toolregistry/pkg/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestSetup holds a migrated database for a single test.
type TestSetup struct {
	DB      *gorm.DB
	cleanup func()
}

// Cleanup closes the database.
func (s *TestSetup) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// CreateTestDB opens a fresh, migrated in-memory SQLite database.
// It is pinned to a single connection since every new connection would see an empty database.
// The caller is responsible for closing it.
func CreateTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migrations.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SetupTestDB creates an empty, migrated database for the test.
func SetupTestDB(t *testing.T) *TestSetup {
	t.Helper()
	db, err := CreateTestDB()
	require.NoError(t, err)
	return &TestSetup{
		DB: db,
		cleanup: func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}
}

// SetupUserTest creates a database containing a single regular user named "testuser".
func SetupUserTest(t *testing.T) (*TestSetup, *model.User) {
	t.Helper()
	setup := SetupTestDB(t)
	user := &model.User{
		Username:    "testuser",
		Role:        types.UserRoleUser,
		AccessToken: "testuser-access-token",
	}
	require.NoError(t, setup.DB.Create(user).Error)
	return setup, user
}

// RegistrySetup is an in-memory registry with a deterministic clock and id sequence.
type RegistrySetup struct {
	Registry *registry.Registry
	Store    *memstore.Store
}

// SetupRegistryTest builds a registry over an in-memory store.
// Every clock read advances time by one second and tool ids are "tool-001", "tool-002" and so on.
func SetupRegistryTest(t *testing.T) *RegistrySetup {
	t.Helper()
	store := memstore.New()

	var (
		mu  sync.Mutex
		now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		seq int
	)
	reg, err := registry.New(&registry.Config{
		Store: store,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("tool-%03d", seq)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &RegistrySetup{Registry: reg, Store: store}
}

// ToolDocument returns a valid metadata document declaring the given formats.
func ToolDocument(name string, formats ...string) registry.Document {
	list := make([]any, len(formats))
	for i, f := range formats {
		list[i] = f
	}
	return registry.Document{
		registry.FieldName:             name,
		registry.FieldVersion:          "1.0.0",
		registry.FieldSupportedFormats: list,
		registry.FieldInvocationContract: map[string]any{
			"entrypoint": name,
			"inputs":     []any{"path"},
		},
	}
}

// AssertEqual fails the test if expected and actual differ.
func AssertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	assert.Equal(t, expected, actual)
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	assert.Error(t, err)
}

// AssertNoError stops the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err)
}

// AssertNotNil stops the test if v is nil.
func AssertNotNil(t *testing.T, v any) {
	t.Helper()
	require.NotNil(t, v)
}

// AssertTrue fails the test with msg if cond is false.
func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	assert.True(t, cond, msg)
}

// CommandAnnotationTest is a single expected cobra command annotation.
type CommandAnnotationTest struct {
	Key      string
	Expected string
}

// TestCommandAnnotations checks a command's annotations against the expected values.
func TestCommandAnnotations(t *testing.T, annotations map[string]string, tests []CommandAnnotationTest) {
	t.Helper()
	for _, tt := range tests {
		got, ok := annotations[tt.Key]
		if !assert.Truef(t, ok, "annotation %q is missing", tt.Key) {
			continue
		}
		assert.Equalf(t, tt.Expected, got, "annotation %q", tt.Key)
	}
}

