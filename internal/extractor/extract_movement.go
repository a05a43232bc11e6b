package extractor

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

type movementParams struct {
	Toggles           `mapstructure:",squash"`
	filterParams      `mapstructure:",squash"`
	VelocityThreshold float64   `mapstructure:"velocity_threshold"`
	MaxVelocity       float64   `mapstructure:"max_velocity"`
	AdvanceAngle      []float64 `mapstructure:"advance_angle_thresh"`
	RetreatAngle      []float64 `mapstructure:"retreat_angle_thresh"`
}

// angleRange is an inclusive range of angles in radians.
type angleRange struct{ lo, hi float64 }

func (r angleRange) contains(a float64) bool { return a >= r.lo && a <= r.hi }

func parseAngleRange(field, key string, v []float64) (angleRange, error) {
	if len(v) != 2 {
		return angleRange{}, config.Errorf(field, "%s must be [low, high], got %d values", key, len(v))
	}
	if v[0] > v[1] || v[0] < 0 || v[1] > math.Pi {
		return angleRange{}, config.Errorf(field, "%s must be an ascending range within [0, pi], got %v", key, v)
	}
	return angleRange{lo: v[0], hi: v[1]}, nil
}

// track is the last seen position of every unit of one group.
type track struct {
	positions map[uint64]geom.XY
	step      int
}

type trackKey struct {
	force force
	group string
}

// movement classifies whether each force advances on or retreats from the
// opposing group. Only units present in consecutive steps move the centroid.
type movement struct {
	columns
	toggles     Toggles
	pairs       []groupPair
	threshold   float64
	maxVelocity float64
	advance     angleRange
	retreat     angleRange

	tracks map[trackKey]*track
}

func newMovement(env Env, spec config.ExtractorSpec) (Extractor, error) {
	field := string(KindMovement)
	var required []string
	if spec["categorical"] != false {
		required = append(required, "velocity_threshold", "advance_angle_thresh", "retreat_angle_thresh")
	}
	if spec["numeric"] != false {
		required = append(required, "max_velocity")
	}
	var p movementParams
	if err := decodeParams(field, spec, &p, required...); err != nil {
		return nil, err
	}
	filters, err := p.resolve(env, field, true)
	if err != nil {
		return nil, err
	}
	ex := &movement{
		toggles:     p.Toggles,
		pairs:       pairs(filters),
		threshold:   p.VelocityThreshold,
		maxVelocity: p.MaxVelocity,
		tracks:      make(map[trackKey]*track),
	}
	if p.categorical() {
		if ex.advance, err = parseAngleRange(field, "advance_angle_thresh", p.AdvanceAngle); err != nil {
			return nil, err
		}
		if ex.retreat, err = parseAngleRange(field, "retreat_angle_thresh", p.RetreatAngle); err != nil {
			return nil, err
		}
		for _, pr := range ex.pairs {
			for _, prefix := range movementPrefixes(pr) {
				ex.add(
					boolColumn("Advancing_"+prefix, core.PartitionBehavior),
					boolColumn("Retreating_"+prefix, core.PartitionBehavior),
				)
			}
		}
	}
	if p.numeric() {
		if p.MaxVelocity <= 0 {
			return nil, config.Errorf(field, "max_velocity must be positive, got %v", p.MaxVelocity)
		}
		for _, pr := range ex.pairs {
			for _, prefix := range movementPrefixes(pr) {
				ex.add(
					realColumn("Velocity_"+prefix, core.PartitionBehavior, 0, 1),
					realColumn("Angle_"+prefix, core.PartitionBehavior, 0, math.Pi),
				)
			}
		}
	}
	return ex, nil
}

// movementPrefixes names the friendly then the enemy direction of a pair.
func movementPrefixes(pr groupPair) [2]string {
	return [2]string{
		string(core.SideFriendly) + "_" + pr.friendly.Name + "_" + pr.enemy.Name,
		string(core.SideEnemy) + "_" + pr.enemy.Name + "_" + pr.friendly.Name,
	}
}

// Reset forgets every tracked position.
func (ex *movement) Reset(*core.Observation) {
	ex.tracks = make(map[trackKey]*track)
}

func tagPositions(units []*core.Unit) map[uint64]geom.XY {
	out := make(map[uint64]geom.XY, len(units))
	for _, u := range units {
		out[u.Tag] = geo.XY(u.Position)
	}
	return out
}

// motion is the velocity and approach angle of one group relative to an
// opposing group. Both are NaN when no unit was seen in the previous step or
// the opposing group is empty. A group that did not move, or that stands on
// the opponent's centroid, is at a right angle to it.
func (ex *movement) motion(prev *track, current map[uint64]geom.XY, opponent []geom.XY, step int) (velocity, angle float64) {
	if prev == nil || len(opponent) == 0 {
		return math.NaN(), math.NaN()
	}
	var before, after []geom.XY
	for tag, pos := range current {
		if old, ok := prev.positions[tag]; ok {
			before = append(before, old)
			after = append(after, pos)
		}
	}
	from, ok := geo.Centroid(before)
	if !ok {
		return math.NaN(), math.NaN()
	}
	to, _ := geo.Centroid(after)
	target, _ := geo.Centroid(opponent)

	dt := float64(step - prev.step)
	if dt <= 0 {
		dt = 1
	}
	displacement := to.Sub(from)
	angle = geo.Angle(displacement, target.Sub(from))
	if math.IsNaN(angle) {
		angle = math.Pi / 2
	}
	return displacement.Length() / dt, angle
}

func (ex *movement) Extract(_, step int, obs *core.Observation) ([]any, error) {
	current := make(map[trackKey]map[uint64]geom.XY)
	opponents := make(map[trackKey][]geom.XY)
	see := func(f force, g groups.Group) trackKey {
		key := trackKey{force: f, group: g.Name}
		if _, ok := current[key]; !ok {
			units := members(obs, f, g)
			current[key] = tagPositions(units)
			opponents[key] = positions(units)
		}
		return key
	}

	var cats, nums []any
	for _, pr := range ex.pairs {
		fk, ek := see(friendlyForce, pr.friendly), see(enemyForce, pr.enemy)
		for _, dir := range [2][2]trackKey{{fk, ek}, {ek, fk}} {
			own, opp := dir[0], dir[1]
			velocity, angle := ex.motion(ex.tracks[own], current[own], opponents[opp], step)
			advancing, retreating := false, false
			if velocity >= ex.threshold {
				advancing = ex.advance.contains(angle)
				retreating = ex.retreat.contains(angle)
			}
			cats = append(cats, boolOrUndefined(velocity, advancing), boolOrUndefined(velocity, retreating))
			nums = append(nums, normalize(velocity, ex.maxVelocity), angle)
		}
	}

	for key, pos := range current {
		ex.tracks[key] = &track{positions: pos, step: step}
	}
	return ex.toggles.row(cats, nums), nil
}
