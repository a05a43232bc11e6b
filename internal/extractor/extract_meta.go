package extractor

import (
	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/pkg/core"
)

// meta emits the episode, timestep and source file of every row.
type meta struct {
	columns
	stateless
	source string
}

func newMeta(env Env, _ config.ExtractorSpec) (Extractor, error) {
	m := &meta{source: env.Replay.Source}
	m.add(
		core.FeatureDescriptor{Name: core.EpisodeColumn, Type: core.Integer, Partition: core.PartitionMeta},
		core.FeatureDescriptor{Name: core.TimestepColumn, Type: core.Integer, Partition: core.PartitionMeta},
		core.FeatureDescriptor{Name: core.FileColumn, Type: core.String, Partition: core.PartitionMeta},
	)
	return m, nil
}

func (m *meta) Extract(episode, step int, _ *core.Observation) ([]any, error) {
	return []any{episode, step, m.source}, nil
}
