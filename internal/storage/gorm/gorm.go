// Package gormstorage implements the feature sink shared by the SQL backends.
// Rows are queued and inserted in batches inside a transaction.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OCAP2/featurex/internal/database"
	"github.com/OCAP2/featurex/internal/model"
	"github.com/OCAP2/featurex/internal/model/convert"
	"github.com/OCAP2/featurex/internal/queue"
	"github.com/OCAP2/featurex/pkg/core"
)

// DefaultBatchSize is the number of rows inserted per transaction.
const DefaultBatchSize = 1000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB        *gorm.DB
	Logger    *slog.Logger
	BatchSize int
	// Config is stored with the run, typically the feature configuration.
	Config []byte
}

// Backend implements the feature sink on top of GORM.
type Backend struct {
	deps   Dependencies
	runID  uuid.UUID
	rows   *queue.Queue[model.FeatureRow]
	labels []string
	key    convert.RowKey

	replay  *model.Replay
	ordinal int
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:  deps,
		runID: uuid.New(),
	}
}

// RunID identifies the run rows are stored under.
func (b *Backend) RunID() uuid.UUID {
	return b.runID
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and registers the run.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("no database connection")
	}
	b.rows = queue.New[model.FeatureRow](b.deps.BatchSize)

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}

	cfg := b.deps.Config
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}
	run := model.Run{ID: b.runID, StartedAt: time.Now().UTC(), Config: datatypes.JSON(cfg)}
	if err := b.deps.DB.Create(&run).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	b.deps.Logger.Info("Database setup complete", "run", b.runID)
	return nil
}

// Close marks the run finished.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	if b.replay != nil {
		if err := b.flush(); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	if err := b.deps.DB.Model(&model.Run{}).Where("id = ?", b.runID).Update("finished_at", now).Error; err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// StartReplay inserts the replay and, for the first replay of the run, the
// feature columns.
func (b *Backend) StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error {
	if b.replay != nil {
		return fmt.Errorf("replay %s still open", b.replay.Source)
	}
	db := b.deps.DB

	if b.labels == nil {
		cols, err := convert.CoreToFeatureColumns(b.runID, descriptors)
		if err != nil {
			return err
		}
		if len(cols) > 0 {
			if err := db.Create(&cols).Error; err != nil {
				return fmt.Errorf("failed to insert feature columns: %w", err)
			}
		}
		b.labels = core.Labels(descriptors)
		b.key = convert.NewRowKey(b.labels)
	} else if len(descriptors) != len(b.labels) {
		return fmt.Errorf("feature columns of %s differ from the first replay of the run", info.Source)
	}

	replay := convert.CoreToReplay(b.runID, info)
	if err := db.Create(&replay).Error; err != nil {
		return fmt.Errorf("failed to insert replay: %w", err)
	}
	b.replay = &replay
	b.ordinal = 0
	return nil
}

// RecordRow converts and queues a row, writing a batch once the queue is full.
func (b *Backend) RecordRow(row core.Row) error {
	if b.replay == nil {
		return errors.New("no replay started")
	}
	if len(row) != len(b.labels) {
		return fmt.Errorf("row has %d values, expected %d", len(row), len(b.labels))
	}
	gormObj, err := convert.CoreToFeatureRow(b.replay.ID, b.key, row, b.ordinal)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	b.ordinal++

	if b.rows.Push(gormObj) >= b.deps.BatchSize {
		return b.writeBatch(b.rows.PopN(b.deps.BatchSize))
	}
	return nil
}

// EndReplay writes the queued rows and marks the replay completed.
func (b *Backend) EndReplay() error {
	if b.replay == nil {
		return errors.New("no replay started")
	}
	if err := b.flush(); err != nil {
		return err
	}
	replay := b.replay
	b.replay = nil

	if err := b.deps.DB.Model(replay).Updates(map[string]any{"row_count": b.ordinal, "completed": true}).Error; err != nil {
		return fmt.Errorf("failed to complete replay: %w", err)
	}
	b.deps.Logger.Debug("Replay stored", "replay", replay.Source, "rows", b.ordinal)
	return nil
}

// AbortReplay drops the queued rows of the open replay. The replay row stays
// incomplete, so Exists keeps reporting it missing.
func (b *Backend) AbortReplay() error {
	if b.replay == nil {
		return errors.New("no replay started")
	}
	dropped := b.rows.Drain()
	b.deps.Logger.Warn("Replay aborted", "replay", b.replay.Source, "rows", b.ordinal, "discarded", len(dropped))
	b.replay = nil
	return nil
}

// Exists reports whether a completed replay with this source is stored.
func (b *Backend) Exists(source string) bool {
	if b.deps.DB == nil {
		return false
	}
	var count int64
	err := b.deps.DB.Model(&model.Replay{}).
		Where("source = ? AND completed = ?", source, true).
		Count(&count).Error
	return err == nil && count > 0
}

func (b *Backend) flush() error {
	for b.rows.Len() > 0 {
		if err := b.writeBatch(b.rows.PopN(b.deps.BatchSize)); err != nil {
			return err
		}
	}
	return nil
}

// writeBatch writes items to the database in a transaction. Failed items
// are put back on the queue.
func (b *Backend) writeBatch(items []model.FeatureRow) error {
	if len(items) == 0 {
		return nil
	}
	tx := b.deps.DB.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		b.rows.Push(items...)
		return fmt.Errorf("failed to insert %d feature rows: %w", len(items), err)
	}
	if err := tx.Commit().Error; err != nil {
		b.rows.Push(items...)
		return fmt.Errorf("failed to commit feature rows: %w", err)
	}
	return nil
}
