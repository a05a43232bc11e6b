package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/storage"
	"github.com/OCAP2/featurex/internal/storage/influx"
	"github.com/OCAP2/featurex/internal/storage/memory"
	"github.com/OCAP2/featurex/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/featurex/internal/storage/sqlite"
	"github.com/OCAP2/featurex/internal/storage/websocket"
)

var (
	_ storage.Backend = (*memory.Backend)(nil)
	_ storage.Backend = (*sqlitestorage.Backend)(nil)
	_ storage.Backend = (*postgres.Backend)(nil)
	_ storage.Backend = (*influx.Backend)(nil)
	_ storage.Backend = (*websocket.Backend)(nil)

	_ storage.Checker = (*memory.Backend)(nil)
	_ storage.Checker = (*sqlitestorage.Backend)(nil)
	_ storage.Checker = (*postgres.Backend)(nil)

	_ storage.Aborter = (*memory.Backend)(nil)
	_ storage.Aborter = (*sqlitestorage.Backend)(nil)
	_ storage.Aborter = (*postgres.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want any
	}{
		{"default", config.StorageConfig{Memory: config.MemoryConfig{OutputDir: dir}}, &memory.Backend{}},
		{"memory", config.StorageConfig{Type: storage.TypeMemory}, &memory.Backend{}},
		{"sqlite", config.StorageConfig{Type: storage.TypeSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "f.db")}}, &sqlitestorage.Backend{}},
		{"influx", config.StorageConfig{Type: storage.TypeInflux}, &influx.Backend{}},
		{"websocket", config.StorageConfig{Type: storage.TypeWebSocket}, &websocket.Backend{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(tt.cfg, nil, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNewBackend_UnknownType(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "parquet"}, nil, nil)
	assert.ErrorContains(t, err, "unknown storage type: parquet")
}
