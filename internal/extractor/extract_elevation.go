package extractor

import (
	"math"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type elevationParams struct {
	Toggles      `mapstructure:",squash"`
	filterParams `mapstructure:",squash"`
	Low          float64 `mapstructure:"low_elevation"`
	Medium       float64 `mapstructure:"medium_elevation"`
	High         float64 `mapstructure:"high_elevation"`
}

// elevation reports the mean terrain height of each group. The top bracket
// is open-ended.
type elevation struct {
	columns
	stateless
	toggles  Toggles
	filters  groupFilters
	brackets []bracket
}

func newElevation(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindElevation)
	var p elevationParams
	if err := decodeParams(field, spec, &p, "low_elevation", "medium_elevation", "high_elevation"); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, field, false)
	if err != nil {
		return nil, err
	}
	if err := checkBrackets(field, []bracket{{"low", p.Low}, {"medium", p.Medium}, {"high", p.High}}); err != nil {
		return nil, err
	}
	ex := &elevation{
		toggles: p.Toggles,
		filters: filters,
		brackets: []bracket{
			{"low", p.Low},
			{"medium", p.Medium},
			{"high", math.Inf(1)},
		},
	}
	if p.categorical() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(categoricalColumn("ElevationCat_"+string(f.side())+"_"+g.Name, core.PartitionEnvironment,
				bracketLabels(ex.brackets)...))
		})
	}
	if p.numeric() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(realColumn("Elevation_"+string(f.side())+"_"+g.Name, core.PartitionEnvironment, 0, p.High))
		})
	}
	return ex, nil
}

func (ex *elevation) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	var cats, nums []any
	for _, f := range forces {
		for _, g := range ex.filters.of(f) {
			heights, err := factorValues(members(obs, f, g), elevationOf)
			if err != nil {
				return nil, err
			}
			m := mean(heights)
			cats = append(cats, classifyBrackets(m, ex.brackets))
			nums = append(nums, m)
		}
	}
	return ex.toggles.row(cats, nums), nil
}
