// Package pipeline runs the configured extractors over a replay stream and
// assembles one feature row per (episode, timestep).
package pipeline

import (
	"fmt"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/extractor"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

// Pipeline holds the extractors of both perspectives. Its columns are the
// friendly extractors' columns followed by the enemy extractors' columns,
// fixed at construction.
type Pipeline struct {
	cfg         *config.FeatureConfig
	extractors  map[core.Side][]extractor.Extractor
	descriptors map[core.Side][]core.FeatureDescriptor
}

// New builds every extractor declared in cfg. No pipeline is returned when
// any declaration is invalid.
func New(cfg *config.FeatureConfig, info core.ReplayInfo) (*Pipeline, error) {
	env := extractor.Env{
		Config: cfg,
		Groups: groups.FromConfig(cfg),
		Replay: info,
	}
	p := &Pipeline{
		cfg:         cfg,
		extractors:  make(map[core.Side][]extractor.Extractor, 2),
		descriptors: make(map[core.Side][]core.FeatureDescriptor, 2),
	}
	specs := map[core.Side][]config.ExtractorSpec{
		core.SideFriendly: cfg.Pipeline.Friendly,
		core.SideEnemy:    cfg.Pipeline.Enemy,
	}
	seen := make(map[string]string)
	for _, side := range core.Sides {
		for i, spec := range specs[side] {
			if want, ok := extractor.Kind(spec.Kind()).Side(); ok && want != side {
				return nil, config.Errorf(fmt.Sprintf("pipeline.%s[%d]", sideKey(side), i),
					"%s extractors belong to the %s pipeline", spec.Kind(), sideKey(want))
			}
			ex, err := extractor.New(env, spec)
			if err != nil {
				return nil, fmt.Errorf("pipeline.%s[%d]: %w", sideKey(side), i, err)
			}
			for _, label := range ex.Labels() {
				if prev, dup := seen[label]; dup {
					return nil, config.Errorf(fmt.Sprintf("pipeline.%s[%d]", sideKey(side), i),
						"duplicate feature label %q, already produced by %s", label, prev)
				}
				seen[label] = fmt.Sprintf("pipeline.%s[%d]", sideKey(side), i)
			}
			p.extractors[side] = append(p.extractors[side], ex)
			p.descriptors[side] = append(p.descriptors[side], ex.Descriptors()...)
		}
	}
	return p, nil
}

func sideKey(side core.Side) string {
	if side == core.SideEnemy {
		return "enemy"
	}
	return "friendly"
}

// Side returns the side whose extractors process steps observed by perspective.
func (p *Pipeline) Side(perspective int) core.Side {
	if perspective == p.cfg.FriendlyID {
		return core.SideFriendly
	}
	return core.SideEnemy
}

// HasSide reports whether any extractor is declared for side.
func (p *Pipeline) HasSide(side core.Side) bool {
	return len(p.extractors[side]) > 0
}

// SampleInterval returns the configured step sampling interval.
func (p *Pipeline) SampleInterval() int {
	return p.cfg.SampleInterval
}

// Descriptors returns the descriptors of every column, friendly first.
func (p *Pipeline) Descriptors() []core.FeatureDescriptor {
	out := make([]core.FeatureDescriptor, 0, p.Width(core.SideFriendly)+p.Width(core.SideEnemy))
	for _, side := range core.Sides {
		out = append(out, p.descriptors[side]...)
	}
	return out
}

// Labels returns the names of every column, friendly first.
func (p *Pipeline) Labels() []string {
	return core.Labels(p.Descriptors())
}

// Width returns the number of columns produced by side.
func (p *Pipeline) Width(side core.Side) int {
	return len(p.descriptors[side])
}

// Reset clears the per-episode state of side's extractors.
func (p *Pipeline) Reset(side core.Side, initial *core.Observation) {
	for _, ex := range p.extractors[side] {
		ex.Reset(initial)
	}
}

// Extract runs side's extractors on one observation and concatenates their
// values.
func (p *Pipeline) Extract(side core.Side, episode, step int, obs *core.Observation) (core.Row, error) {
	row := make(core.Row, 0, p.Width(side))
	for _, ex := range p.extractors[side] {
		values, err := ex.Extract(episode, step, obs)
		if err != nil {
			return nil, err
		}
		if len(values) != len(ex.Labels()) {
			return nil, fmt.Errorf("extractor returned %d values for %d labels", len(values), len(ex.Labels()))
		}
		row = append(row, values...)
	}
	return row, nil
}

// sentinels returns an undefined row for side.
func (p *Pipeline) sentinels(side core.Side) core.Row {
	row := make(core.Row, len(p.descriptors[side]))
	for i, d := range p.descriptors[side] {
		row[i] = core.UndefinedValue(d.Type)
	}
	return row
}
