package extractor

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type betweenParams struct {
	Toggles       `mapstructure:",squash"`
	filterParams  `mapstructure:",squash"`
	BarrierFilter []string `mapstructure:"barrier_filter"`
	UnitsRatio    float64  `mapstructure:"between_units_ratio"`
	AngleLimit    float64  `mapstructure:"barrier_angle_threshold"`
}

type barrierTriple struct {
	barrier groups.Group
	groupPair
}

func (t barrierTriple) suffix() string { return t.barrier.Name + "_" + t.groupPair.suffix() }

// between measures the fraction of friendly/enemy unit pairs whose line of
// sight passes a barrier unit.
type between struct {
	columns
	stateless
	toggles    Toggles
	triples    []barrierTriple
	ratio      float64
	angleLimit float64
}

func newBetween(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindBetween)
	required := []string{"barrier_filter", "barrier_angle_threshold"}
	if spec["categorical"] != false {
		required = append(required, "between_units_ratio")
	}
	var p betweenParams
	if err := decodeParams(field, spec, &p, required...); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, field, true)
	if err != nil {
		return nil, err
	}
	if len(p.BarrierFilter) == 0 {
		return nil, config.Errorf(field, "barrier_filter must not be empty")
	}
	barriers, err := env.Groups.Filter(field+".barrier_filter", p.BarrierFilter)
	if err != nil {
		return nil, err
	}
	if p.AngleLimit <= 0 || p.AngleLimit > math.Pi {
		return nil, config.Errorf(field, "barrier_angle_threshold must be in (0, pi], got %v", p.AngleLimit)
	}
	ex := &between{toggles: p.Toggles, ratio: p.UnitsRatio, angleLimit: p.AngleLimit}
	for _, bg := range barriers {
		for _, pr := range pairs(filters) {
			ex.triples = append(ex.triples, barrierTriple{barrier: bg, groupPair: pr})
		}
	}
	if p.categorical() {
		for _, t := range ex.triples {
			ex.add(boolColumn("IsBetween_"+t.suffix(), core.PartitionBehavior))
		}
	}
	if p.numeric() {
		for _, t := range ex.triples {
			ex.add(realColumn("Between_"+t.suffix(), core.PartitionBehavior, 0, 1))
		}
	}
	return ex, nil
}

// barrierUnits returns the positions of units of g not owned by the
// observing player, except those at the position of an enemy unit.
func barrierUnits(obs *core.Observation, g groups.Group, enemies []geom.XY) []geom.XY {
	occupied := make(map[geom.XY]struct{}, len(enemies))
	for _, e := range enemies {
		occupied[e] = struct{}{}
	}
	var out []geom.XY
	for i := range obs.Units {
		u := &obs.Units[i]
		if u.Alliance == core.AllianceSelf || !g.Contains(u.Type) {
			continue
		}
		p := geo.XY(u.Position)
		if _, ok := occupied[p]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// occludedFraction is the share of friendly/enemy pairs with at least one
// barrier between them, NaN when any set is empty.
func occludedFraction(friendly, enemy, barriers []geom.XY, angleLimit float64) float64 {
	if len(friendly) == 0 || len(enemy) == 0 || len(barriers) == 0 {
		return math.NaN()
	}
	occluded := 0
	for _, f := range friendly {
		for _, e := range enemy {
			for _, b := range barriers {
				if geo.IsBetween(b, f, e, angleLimit) {
					occluded++
					break
				}
			}
		}
	}
	return float64(occluded) / float64(len(friendly)*len(enemy))
}

func (ex *between) Extract(_, _ int, obs *core.Observation) ([]any, error) {
	cats := make([]any, len(ex.triples))
	nums := make([]any, len(ex.triples))
	for i, t := range ex.triples {
		friendly := positions(members(obs, friendlyForce, t.friendly))
		enemy := positions(members(obs, enemyForce, t.enemy))
		frac := occludedFraction(friendly, enemy, barrierUnits(obs, t.barrier, enemy), ex.angleLimit)
		cats[i] = boolOrUndefined(frac, frac >= ex.ratio)
		nums[i] = frac
	}
	return ex.toggles.row(cats, nums), nil
}
