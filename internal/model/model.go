package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Replay{},
	&FeatureColumn{},
	&FeatureRow{},
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one invocation of the extractor over a set of replays
type Run struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	StartedAt  time.Time       `json:"startedAt" gorm:"index:idx_run_started_at"`
	FinishedAt *time.Time      `json:"finishedAt"`
	Config     datatypes.JSON  `json:"config"`
	Replays    []Replay        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Columns    []FeatureColumn `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
}

func (*Run) TableName() string {
	return "runs"
}

// FeatureColumn is the descriptor of one output column of a run
type FeatureColumn struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	RunID     uuid.UUID      `json:"runId" gorm:"type:uuid;uniqueIndex:idx_column_run_position"`
	Position  int            `json:"position" gorm:"uniqueIndex:idx_column_run_position"`
	Name      string         `json:"name" gorm:"size:255"`
	Type      string         `json:"type" gorm:"size:32"`
	Values    datatypes.JSON `json:"values"`
	Partition string         `json:"partition" gorm:"size:32"`
}

func (*FeatureColumn) TableName() string {
	return "feature_columns"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Replay is one replay processed during a run
type Replay struct {
	gorm.Model
	RunID       uuid.UUID    `json:"runId" gorm:"type:uuid;index:idx_replay_run_id"`
	Source      string       `json:"source" gorm:"size:512;index:idx_replay_source"`
	MapName     string       `json:"mapName" gorm:"size:127"`
	Players     int          `json:"players"`
	MaxDistance float64      `json:"maxDistance"`
	StartTime   time.Time    `json:"startTime"`
	RowCount    int          `json:"rowCount"`
	Completed   bool         `json:"completed"`
	FeatureRows []FeatureRow `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:ReplayID;"`
}

func (*Replay) TableName() string {
	return "replays"
}

// FeatureRow is one combined feature row. Values is a JSON array aligned
// with the run's feature columns; undefined numerics are null.
type FeatureRow struct {
	ID       uint           `json:"id" gorm:"primarykey"`
	ReplayID uint           `json:"replayId" gorm:"index:idx_row_replay_step"`
	Episode  int            `json:"episode" gorm:"index:idx_row_replay_step"`
	Timestep int            `json:"timestep" gorm:"index:idx_row_replay_step"`
	Values   datatypes.JSON `json:"values"`
}

func (*FeatureRow) TableName() string {
	return "feature_rows"
}
