// Package convert provides functions to convert core feature types to GORM models
package convert

import (
	"fmt"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/OCAP2/featurex/internal/model"
	"github.com/OCAP2/featurex/pkg/core"
)

// toJSON marshals v for a JSON column, falling back to "[]" for empty input.
func toJSON(v []any) (datatypes.JSON, error) {
	if len(v) == 0 {
		return datatypes.JSON("[]"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// CoreToReplay converts replay information to a GORM model.Replay.
func CoreToReplay(runID uuid.UUID, info core.ReplayInfo) model.Replay {
	return model.Replay{
		RunID:       runID,
		Source:      info.Source,
		MapName:     info.MapName,
		Players:     info.Players,
		MaxDistance: info.MaxStraightLineDistance(),
		StartTime:   info.StartTime,
	}
}

// CoreToFeatureColumns converts the descriptors of a run to GORM columns,
// numbered in output order.
func CoreToFeatureColumns(runID uuid.UUID, descriptors []core.FeatureDescriptor) ([]model.FeatureColumn, error) {
	cols := make([]model.FeatureColumn, len(descriptors))
	for i, d := range descriptors {
		values, err := toJSON(d.Values)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", d.Name, err)
		}
		cols[i] = model.FeatureColumn{
			RunID:     runID,
			Position:  i,
			Name:      d.Name,
			Type:      d.Type.String(),
			Values:    values,
			Partition: string(d.Partition),
		}
	}
	return cols, nil
}

// RowKey locates the Episode and Timestep columns of a row layout. A
// negative index means the column is not part of the layout.
type RowKey struct {
	Episode  int
	Timestep int
}

// NewRowKey finds the meta columns among labels.
func NewRowKey(labels []string) RowKey {
	return RowKey{
		Episode:  slices.Index(labels, core.EpisodeColumn),
		Timestep: slices.Index(labels, core.TimestepColumn),
	}
}

func (k RowKey) get(row core.Row, i, fallback int) int {
	if i < 0 || i >= len(row) {
		return fallback
	}
	if v, ok := row[i].(int); ok {
		return v
	}
	return fallback
}

// CoreToFeatureRow converts one feature row to a GORM model.FeatureRow. When
// the layout has no Timestep column, ordinal is used instead.
func CoreToFeatureRow(replayID uint, key RowKey, row core.Row, ordinal int) (model.FeatureRow, error) {
	values, err := toJSON(row.Portable())
	if err != nil {
		return model.FeatureRow{}, err
	}
	return model.FeatureRow{
		ReplayID: replayID,
		Episode:  key.get(row, key.Episode, 0),
		Timestep: key.get(row, key.Timestep, ordinal),
		Values:   values,
	}, nil
}
