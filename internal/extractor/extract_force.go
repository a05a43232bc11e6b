package extractor

import (
	"fmt"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type forceFactorParams struct {
	Toggles `mapstructure:",squash"`
	Factors []config.ForceFactorSpec `mapstructure:"factors"`
}

// forceFactorRule is one resolved ForceFactorSpec.
type forceFactorRule struct {
	spec    config.ForceFactorSpec
	factor  factorFunc
	agg     aggregator
	filters groupFilters
	top     float64
}

// forceFactor aggregates unit factors per group and maps them onto levels.
type forceFactor struct {
	columns
	stateless
	toggles Toggles
	rules   []forceFactorRule
}

func newForceFactor(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindForceFactor)
	var p forceFactorParams
	if err := decodeParams(field, spec, &p, "factors"); err != nil {
		return nil, err
	}
	ex := &forceFactor{toggles: p.Toggles}
	for _, s := range p.Factors {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		ruleField := fmt.Sprintf("%s.%s", field, s.Name)
		factor, err := lookupFactor(ruleField, s.Factor, env.Config.UnitCosts)
		if err != nil {
			return nil, err
		}
		agg, err := lookupAggregator(ruleField, s.Op)
		if err != nil {
			return nil, err
		}
		filters, err := filterParams{FriendlyFilter: s.FriendlyFilter, EnemyFilter: s.EnemyFilter}.resolve(env, ruleField, false)
		if err != nil {
			return nil, err
		}
		ex.rules = append(ex.rules, forceFactorRule{
			spec:    s,
			factor:  factor,
			agg:     agg,
			filters: filters,
			top:     s.Levels[len(s.Levels)-1].Threshold,
		})
	}
	if p.categorical() {
		for _, r := range ex.rules {
			labels := make([]string, len(r.spec.Levels))
			for i, lvl := range r.spec.Levels {
				labels[i] = lvl.Label
			}
			eachGroup(r.filters, func(f force, g groups.Group) {
				ex.add(categoricalColumn(r.spec.Name+"Cat_"+string(f.side())+"_"+g.Name, core.PartitionBehavior, labels...))
			})
		}
	}
	if p.numeric() {
		for _, r := range ex.rules {
			eachGroup(r.filters, func(f force, g groups.Group) {
				ex.add(realColumn(r.spec.Name+"_"+string(f.side())+"_"+g.Name, core.PartitionBehavior, 0, 1))
			})
		}
	}
	return ex, nil
}

func (ex *forceFactor) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	var cats, nums []any
	for _, r := range ex.rules {
		for _, f := range forces {
			for _, g := range r.filters.of(f) {
				values, err := factorValues(members(obs, f, g), r.factor)
				if err != nil {
					return nil, err
				}
				aggregate := r.agg(values)
				cats = append(cats, classifyLevels(aggregate, r.spec.Levels))
				nums = append(nums, normalize(aggregate, r.top))
			}
		}
	}
	return ex.toggles.row(cats, nums), nil
}
