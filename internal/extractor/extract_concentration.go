package extractor

import (
	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type concentrationParams struct {
	Toggles      `mapstructure:",squash"`
	filterParams `mapstructure:",squash"`
	Compact      float64 `mapstructure:"compact_ratio"`
	Spread       float64 `mapstructure:"spread_ratio"`
	Scattered    float64 `mapstructure:"scattered_ratio"`
}

// concentration measures how spread out the units of each group are.
type concentration struct {
	columns
	stateless
	toggles  Toggles
	filters  groupFilters
	brackets []bracket
	maxDist  float64
}

func newConcentration(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindConcentration)
	var p concentrationParams
	var required []string
	if spec["categorical"] != false {
		required = []string{"compact_ratio", "spread_ratio", "scattered_ratio"}
	}
	if err := decodeParams(field, spec, &p, required...); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, field, false)
	if err != nil {
		return nil, err
	}
	ex := &concentration{
		toggles: p.Toggles,
		filters: filters,
		brackets: []bracket{
			{"compact", p.Compact},
			{"spread", p.Spread},
			{"scattered", p.Scattered},
		},
		maxDist: env.MaxDistance(),
	}
	if p.categorical() {
		if err := checkBrackets(field, ex.brackets); err != nil {
			return nil, err
		}
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(categoricalColumn("Concentration_Cat"+string(f.side())+"_"+g.Name, core.PartitionBehavior,
				bracketLabels(ex.brackets)...))
		})
	}
	if p.numeric() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(realColumn("Concentration_"+string(f.side())+"_"+g.Name, core.PartitionBehavior, 0, 1))
		})
	}
	return ex, nil
}

func (ex *concentration) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	var cats, nums []any
	eachGroup(ex.filters, func(f force, g groups.Group) {
		d, _ := geo.MeanPairwiseDistance(positions(members(obs, f, g)))
		r := normalize(d, ex.maxDist)
		cats = append(cats, classifyBrackets(r, ex.brackets))
		nums = append(nums, r)
	})
	return ex.toggles.row(cats, nums), nil
}
