package extractor

import (
	"math"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type underAttackParams struct {
	Toggles      `mapstructure:",squash"`
	filterParams `mapstructure:",squash"`
}

// underAttack reports the change in summed health of every group since the
// previously extracted step. Shields are not counted.
type underAttack struct {
	columns
	toggles Toggles
	filters groupFilters

	// previous holds the last health sum of every group, in column order.
	// It is nil until the first step of an episode is extracted.
	previous []float64
}

func newUnderAttack(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindUnderAttack)
	var p underAttackParams
	if err := decodeParams(field, spec, &p); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, field, false)
	if err != nil {
		return nil, err
	}
	ex := &underAttack{toggles: p.Toggles, filters: filters}
	if p.categorical() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(boolColumn("UnderAttack_"+string(f.side())+"_"+g.Name, core.PartitionBehavior))
		})
	}
	if p.numeric() {
		eachGroup(filters, func(f force, g groups.Group) {
			ex.add(realColumn("HealthDiff_"+string(f.side())+"_"+g.Name, core.PartitionBehavior,
				-math.MaxFloat64, math.MaxFloat64))
		})
	}
	return ex, nil
}

func (ex *underAttack) healthSums(obs *core.Observation) []float64 {
	var sums []float64
	eachGroup(ex.filters, func(f force, g groups.Group) {
		total := 0.0
		for _, u := range members(obs, f, g) {
			total += u.Health
		}
		sums = append(sums, total)
	})
	return sums
}

// Reset drops the baseline. The next extracted step becomes the baseline
// and reports no change.
func (ex *underAttack) Reset(*core.Observation) {
	ex.previous = nil
}

func (ex *underAttack) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	current := ex.healthSums(obs)
	if ex.previous == nil {
		ex.previous = current
	}
	cats := make([]any, len(current))
	nums := make([]any, len(current))
	for i, h := range current {
		diff := h - ex.previous[i]
		cats[i] = diff < 0
		nums[i] = diff
	}
	ex.previous = current
	return ex.toggles.row(cats, nums), nil
}
