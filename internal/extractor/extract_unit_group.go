package extractor

import (
	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type unitGroupParams struct {
	Toggles      `mapstructure:",squash"`
	filterParams `mapstructure:",squash"`
}

// unitGroup reports the presence and count of each filtered group.
type unitGroup struct {
	columns
	stateless
	toggles Toggles
	filters groupFilters
}

func newUnitGroup(env Env, spec config.ExtractorSpec) (Extractor, error) {
	var p unitGroupParams
	if err := decodeParams(string(KindUnitGroup), spec, &p); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, string(KindUnitGroup), false)
	if err != nil {
		return nil, err
	}
	ex := &unitGroup{toggles: p.Toggles, filters: filters}
	if p.categorical() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(boolColumn("Present_"+string(f.side())+"_"+g.Name, core.PartitionBehavior))
		})
	}
	if p.numeric() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(intColumn("Number_"+string(f.side())+"_"+g.Name, core.PartitionBehavior,
				0, maxUnits(env.Config, f, g)))
		})
	}
	return ex, nil
}

func (ex *unitGroup) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	var present, counts []any
	eachGroup(ex.filters, func(f force, g groups.Group) {
		n := len(members(obs, f, g))
		present = append(present, n > 0)
		counts = append(counts, n)
	})
	return ex.toggles.row(present, counts), nil
}

// eachGroup visits the friendly groups, then the enemy groups.
func eachGroup(filters groupFilters, fn func(f force, g groups.Group)) {
	for _, f := range forces {
		for _, g := range filters.of(f) {
			fn(f, g)
		}
	}
}
