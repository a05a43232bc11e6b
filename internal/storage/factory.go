package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/storage/influx"
	"github.com/OCAP2/featurex/internal/storage/memory"
	"github.com/OCAP2/featurex/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/featurex/internal/storage/sqlite"
	"github.com/OCAP2/featurex/internal/storage/websocket"
)

// Storage types accepted in storage.type.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeInflux    = "influx"
	TypeWebSocket = "websocket"
)

// NewBackend creates a storage backend based on configuration. runConfig is
// stored alongside the rows by the SQL backends.
func NewBackend(cfg config.StorageConfig, log *slog.Logger, runConfig []byte) (Backend, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	case TypeSQLite:
		return sqlitestorage.New(cfg.SQLite, log, runConfig)
	case TypePostgres:
		return postgres.New(cfg.DB, log, runConfig)
	case TypeInflux:
		return influx.New(cfg.Influx, log), nil
	case TypeWebSocket:
		return websocket.New(websocket.Config{URL: cfg.WebSocket.URL, Secret: cfg.WebSocket.Secret}, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
