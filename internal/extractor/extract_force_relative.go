package extractor

import (
	"fmt"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/pkg/core"
)

type forceRelativeParams struct {
	Toggles `mapstructure:",squash"`
	Factors []config.ForceRelativeFactorSpec `mapstructure:"factors"`
}

type forceRelativeRule struct {
	spec   config.ForceRelativeFactorSpec
	factor factorFunc
	pairs  []groupPair
}

// forceRelative compares the summed factor of a friendly group against an
// enemy group.
type forceRelative struct {
	columns
	stateless
	toggles Toggles
	rules   []forceRelativeRule
}

func newForceRelativeFactor(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindForceRelativeFactor)
	var p forceRelativeParams
	if err := decodeParams(field, spec, &p, "factors"); err != nil {
		return nil, err
	}
	ex := &forceRelative{toggles: p.Toggles}
	for _, s := range p.Factors {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		ruleField := fmt.Sprintf("%s.%s", field, s.Name)
		factor, err := lookupFactor(ruleField, s.Factor, env.Config.UnitCosts)
		if err != nil {
			return nil, err
		}
		filters, err := filterParams{FriendlyFilter: s.FriendlyFilter, EnemyFilter: s.EnemyFilter}.resolve(env, ruleField, true)
		if err != nil {
			return nil, err
		}
		ex.rules = append(ex.rules, forceRelativeRule{spec: s, factor: factor, pairs: pairs(filters)})
	}
	if p.categorical() {
		for _, r := range ex.rules {
			for _, pr := range r.pairs {
				ex.add(categoricalColumn("Relative"+r.spec.Name+"Cat_"+pr.suffix(), core.PartitionBehavior,
					r.spec.Advantage, r.spec.Disadvantage, r.spec.Balanced))
			}
		}
	}
	if p.numeric() {
		for _, r := range ex.rules {
			for _, pr := range r.pairs {
				ex.add(realColumn("Relative"+r.spec.Name+"_"+pr.suffix(), core.PartitionBehavior, -1, 1))
			}
		}
	}
	return ex, nil
}

func (ex *forceRelative) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	var cats, nums []any
	for _, r := range ex.rules {
		for _, pr := range r.pairs {
			friendly, err := factorValues(members(obs, friendlyForce, pr.friendly), r.factor)
			if err != nil {
				return nil, err
			}
			enemy, err := factorValues(members(obs, enemyForce, pr.enemy), r.factor)
			if err != nil {
				return nil, err
			}
			sf, se := sum(friendly), sum(enemy)
			cats = append(cats, relativeLabel(sf, se, r.spec))
			nums = append(nums, relativeBalance(sf, se))
		}
	}
	return ex.toggles.row(cats, nums), nil
}

// relativeLabel classifies the friendly/enemy ratio against spec.Ratio.
func relativeLabel(friendly, enemy float64, spec config.ForceRelativeFactorSpec) string {
	if enemy == 0 {
		if friendly > 0 {
			return spec.Advantage
		}
		return spec.Balanced
	}
	ratio := friendly / enemy
	switch {
	case ratio < spec.Ratio:
		return spec.Disadvantage
	case ratio > 1/spec.Ratio:
		return spec.Advantage
	default:
		return spec.Balanced
	}
}

// relativeBalance is (friendly - enemy) / (friendly + enemy), 0 when both are 0.
func relativeBalance(friendly, enemy float64) float64 {
	if friendly+enemy == 0 {
		return 0
	}
	return (friendly - enemy) / (friendly + enemy)
}
