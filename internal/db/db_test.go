package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPostgres(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"postgres://user:pw@localhost:5432/db", true},
		{"postgresql://localhost/db", true},
		{"toolregistry.db", false},
		{"", false},
		{"file:test.db?cache=shared", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, isPostgres(tc.dsn), tc.dsn)
	}
}

func TestNewDBConnectionSQLite(t *testing.T) {
	conn, err := NewDBConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	var one int
	require.NoError(t, conn.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
}
