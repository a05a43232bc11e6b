// Package postgres stores features in PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/database"
	gormstorage "github.com/OCAP2/featurex/internal/storage/gorm"
)

// Backend is the GORM backend over a PostgreSQL connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
}

// New connects to the database described by cfg.
func New(cfg config.DBConfig, log *slog.Logger, runConfig []byte) (*Backend, error) {
	db, err := database.GetPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: log,
			Config: runConfig,
		}),
		cfg: cfg,
	}, nil
}

// Close finishes the run and closes the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}
