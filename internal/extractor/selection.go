package extractor

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

// force is one of the two opposing sides as seen from the observing player.
type force int

const (
	friendlyForce force = iota
	enemyForce
)

var forces = []force{friendlyForce, enemyForce}

func (f force) side() core.Side {
	if f == enemyForce {
		return core.SideEnemy
	}
	return core.SideFriendly
}

func (f force) opponent() force {
	if f == enemyForce {
		return friendlyForce
	}
	return enemyForce
}

// owns reports whether u belongs to the force.
func (f force) owns(u *core.Unit) bool {
	if f == enemyForce {
		return u.Alliance == core.AllianceEnemy
	}
	return u.Alliance == core.AllianceSelf
}

// members returns the units of obs owned by f whose type is in g.
func members(obs *core.Observation, f force, g groups.Group) []*core.Unit {
	var out []*core.Unit
	for i := range obs.Units {
		u := &obs.Units[i]
		if f.owns(u) && g.Contains(u.Type) {
			out = append(out, u)
		}
	}
	return out
}

// ownMembers returns the observing player's units of group g regardless of
// which side the columns are labelled for.
func ownMembers(obs *core.Observation, g groups.Group) []*core.Unit {
	return members(obs, friendlyForce, g)
}

func positions(units []*core.Unit) []geom.XY {
	out := make([]geom.XY, len(units))
	for i, u := range units {
		out[i] = geo.XY(u.Position)
	}
	return out
}

// groupFilters holds the resolved friendly and enemy filters of a declaration.
type groupFilters struct {
	Friendly []groups.Group
	Enemy    []groups.Group
}

func (gf groupFilters) of(f force) []groups.Group {
	if f == enemyForce {
		return gf.Enemy
	}
	return gf.Friendly
}

// filterParams are the group filter keys shared by most extractors.
type filterParams struct {
	FriendlyFilter []string `mapstructure:"friendly_filter"`
	EnemyFilter    []string `mapstructure:"enemy_filter"`
}

// resolve looks up both filters. With both set, neither may be empty; with
// both unset, at least one must be non-empty.
func (p filterParams) resolve(env Env, field string, both bool) (groupFilters, error) {
	if both && (len(p.FriendlyFilter) == 0 || len(p.EnemyFilter) == 0) {
		return groupFilters{}, config.Errorf(field, "friendly_filter and enemy_filter must not be empty")
	}
	if len(p.FriendlyFilter) == 0 && len(p.EnemyFilter) == 0 {
		return groupFilters{}, config.Errorf(field, "at least one of friendly_filter or enemy_filter is required")
	}
	friendly, err := env.Groups.Filter(field+".friendly_filter", p.FriendlyFilter)
	if err != nil {
		return groupFilters{}, err
	}
	enemy, err := env.Groups.Filter(field+".enemy_filter", p.EnemyFilter)
	if err != nil {
		return groupFilters{}, err
	}
	return groupFilters{Friendly: friendly, Enemy: enemy}, nil
}

// maxUnits returns the configured upper bound on the units of g on side f.
func maxUnits(cfg *config.FeatureConfig, f force, g groups.Group) int {
	limits := cfg.MaxFriendlyUnits
	if f == enemyForce {
		limits = cfg.MaxEnemyUnits
	}
	total := 0
	for _, t := range g.Members {
		total += limits[t]
	}
	return total
}
