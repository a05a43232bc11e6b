package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

const testFeatureConfig = `{
	"groups": {
		"Marines": ["Terran.Marine"],
		"Zerglings": ["Zerg.Zergling"],
		"Rocks": ["Neutral.Rock"]
	},
	"unit_types": ["Terran.Medivac"],
	"unit_costs": {
		"Terran.Marine": [50, 0],
		"Zerg.Zergling": [25, 5]
	},
	"max_friendly_units": {"Terran.Marine": 10},
	"max_enemy_units": {"Zerg.Zergling": 20}
}`

func testEnv(t *testing.T) Env {
	t.Helper()
	cfg, err := config.ParseFeatureConfig([]byte(testFeatureConfig))
	require.NoError(t, err)
	return Env{
		Config: cfg,
		Groups: groups.FromConfig(cfg),
		Replay: core.ReplayInfo{Source: "test.SC2Replay", Players: 2, MaxDistance: 100},
	}
}

func build(t *testing.T, kind Kind, params map[string]any) Extractor {
	t.Helper()
	ex, err := New(testEnv(t), spec(kind, params))
	require.NoError(t, err)
	require.Len(t, ex.Descriptors(), len(ex.Labels()))
	return ex
}

func spec(kind Kind, params map[string]any) config.ExtractorSpec {
	s := config.ExtractorSpec{"kind": string(kind)}
	for k, v := range params {
		s[k] = v
	}
	return s
}

func marine(tag uint64, x, y float64) core.Unit {
	return core.Unit{Tag: tag, Type: "Terran.Marine", Alliance: core.AllianceSelf, Owner: 1,
		Position: core.Position2D{X: x, Y: y}, Health: 45, HealthMax: 45}
}

func zergling(tag uint64, x, y float64) core.Unit {
	return core.Unit{Tag: tag, Type: "Zerg.Zergling", Alliance: core.AllianceEnemy, Owner: 2,
		Position: core.Position2D{X: x, Y: y}, Health: 35, HealthMax: 35}
}

func rock(tag uint64, x, y float64) core.Unit {
	return core.Unit{Tag: tag, Type: "Neutral.Rock", Alliance: core.AllianceNeutral,
		Position: core.Position2D{X: x, Y: y}, Health: 2000, HealthMax: 2000}
}

func observe(units ...core.Unit) *core.Observation {
	return &core.Observation{Units: units}
}

// extract runs one step and returns the row keyed by label.
func extract(t *testing.T, ex Extractor, step int, obs *core.Observation) map[string]any {
	t.Helper()
	values, err := ex.Extract(0, step, obs)
	require.NoError(t, err)
	labels := ex.Labels()
	require.Len(t, values, len(labels))
	row := make(map[string]any, len(labels))
	for i, l := range labels {
		row[l] = values[i]
	}
	return row
}

func elevated(u core.Unit, h float64) core.Unit {
	u.Elevation = &h
	return u
}
