package extractor

import (
	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type distanceParams struct {
	Toggles      `mapstructure:",squash"`
	filterParams `mapstructure:",squash"`
	Melee        float64 `mapstructure:"melee_range_ratio"`
	Close        float64 `mapstructure:"close_range_ratio"`
	Far          float64 `mapstructure:"far_range_ratio"`
}

// distance measures the closest approach of every friendly/enemy group pair.
type distance struct {
	columns
	stateless
	toggles  Toggles
	pairs    []groupPair
	brackets []bracket
	maxDist  float64
}

// groupPair is one friendly group matched against one enemy group.
type groupPair struct {
	friendly groups.Group
	enemy    groups.Group
}

func (p groupPair) suffix() string { return p.friendly.Name + "_" + p.enemy.Name }

func pairs(filters groupFilters) []groupPair {
	out := make([]groupPair, 0, len(filters.Friendly)*len(filters.Enemy))
	for _, fg := range filters.Friendly {
		for _, eg := range filters.Enemy {
			out = append(out, groupPair{friendly: fg, enemy: eg})
		}
	}
	return out
}

func newDistance(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindDistance)
	var p distanceParams
	var required []string
	if spec["categorical"] != false {
		required = []string{"melee_range_ratio", "close_range_ratio", "far_range_ratio"}
	}
	if err := decodeParams(field, spec, &p, required...); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, field, true)
	if err != nil {
		return nil, err
	}
	ex := &distance{
		toggles: p.Toggles,
		pairs:   pairs(filters),
		brackets: []bracket{
			{"melee", p.Melee},
			{"close", p.Close},
			{"far", p.Far},
		},
		maxDist: env.MaxDistance(),
	}
	if p.categorical() {
		if err := checkBrackets(field, ex.brackets); err != nil {
			return nil, err
		}
		for _, pr := range ex.pairs {
			ex.add(categoricalColumn("DistanceCat_"+pr.suffix(), core.PartitionBehavior, bracketLabels(ex.brackets)...))
		}
	}
	if p.numeric() {
		for _, pr := range ex.pairs {
			ex.add(realColumn("Distance_"+pr.suffix(), core.PartitionBehavior, 0, 1))
		}
	}
	return ex, nil
}

func (ex *distance) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	cats := make([]any, len(ex.pairs))
	nums := make([]any, len(ex.pairs))
	for i, pr := range ex.pairs {
		d, _ := geo.MinDistance(
			positions(members(obs, friendlyForce, pr.friendly)),
			positions(members(obs, enemyForce, pr.enemy)),
		)
		r := normalize(d, ex.maxDist)
		cats[i] = classifyBrackets(r, ex.brackets)
		nums[i] = r
	}
	return ex.toggles.row(cats, nums), nil
}
