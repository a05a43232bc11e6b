package extractor

import (
	"fmt"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type ordersParams struct {
	Toggles `mapstructure:",squash"`
	Orders  []config.OrderSpec `mapstructure:"orders"`
}

type orderRule struct {
	name      string
	abilities map[int]struct{}
	groups    []groups.Group
}

// orders counts the observing player's units executing one of a set of raw
// abilities. The same extractor serves both perspectives; only the side in
// the column names differs.
type orders struct {
	columns
	stateless
	toggles Toggles
	rules   []orderRule
}

func newFriendlyOrders(env Env, spec config.ExtractorSpec) (Extractor, error) {
	return newOrders(env, spec, KindFriendlyOrders, friendlyForce)
}

func newEnemyOrders(env Env, spec config.ExtractorSpec) (Extractor, error) {
	return newOrders(env, spec, KindEnemyOrders, enemyForce)
}

func newOrders(env Env, spec config.ExtractorSpec, kind Kind, f force) (Extractor, error) {
	field := string(kind)
	var p ordersParams
	if err := decodeParams(field, spec, &p, "orders"); err != nil {
		return nil, err
	}
	ex := &orders{toggles: p.Toggles}
	for _, s := range p.Orders {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		gs, err := env.Groups.Filter(fmt.Sprintf("%s.%s.unit_group_filter", field, s.Name), s.UnitGroupFilter)
		if err != nil {
			return nil, err
		}
		rule := orderRule{name: s.Name, abilities: make(map[int]struct{}, len(s.RawAbilities)), groups: gs}
		for _, a := range s.RawAbilities {
			rule.abilities[a] = struct{}{}
		}
		ex.rules = append(ex.rules, rule)
	}
	side := string(f.side())
	if p.categorical() {
		for _, r := range ex.rules {
			for _, g := range r.groups {
				ex.add(boolColumn(r.name+"_"+side+"_"+g.Name, core.PartitionBehavior))
			}
		}
	}
	if p.numeric() {
		for _, r := range ex.rules {
			for _, g := range r.groups {
				ex.add(intColumn("Number"+r.name+"_"+side+"_"+g.Name, core.PartitionBehavior,
					0, maxUnits(env.Config, f, g)))
			}
		}
	}
	return ex, nil
}

func (ex *orders) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	var cats, nums []any
	for _, r := range ex.rules {
		for _, g := range r.groups {
			n := 0
			for _, u := range ownMembers(obs, g) {
				if _, ok := r.abilities[u.OrderID]; ok {
					n++
				}
			}
			cats = append(cats, n > 0)
			nums = append(nums, n)
		}
	}
	return ex.toggles.row(cats, nums), nil
}
