// Package extractor implements the feature extractors run by the pipeline.
//
// Every extractor fixes its labels and descriptors at construction. Extract
// reads one observation and returns one value per label; Reset clears the
// differential state kept between timesteps of an episode.
package extractor

import (
	"fmt"
	"sort"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/groups"
	"github.com/OCAP2/featurex/pkg/core"
)

// Extractor computes an ordered set of features from observations.
type Extractor interface {
	Labels() []string
	Descriptors() []core.FeatureDescriptor
	Extract(episode, step int, obs *core.Observation) ([]any, error)
	Reset(initial *core.Observation)
}

// Kind names an extractor implementation in configuration.
type Kind string

const (
	KindMeta                Kind = "meta"
	KindUnitGroup           Kind = "unit_group"
	KindDistance            Kind = "distance"
	KindConcentration       Kind = "concentration"
	KindForceFactor         Kind = "force_factor"
	KindForceRelativeFactor Kind = "force_relative_factor"
	KindUnderAttack         Kind = "under_attack"
	KindElevation           Kind = "elevation"
	KindMovement            Kind = "movement"
	KindBetween             Kind = "between"
	KindFriendlyOrders      Kind = "friendly_orders"
	KindEnemyOrders         Kind = "enemy_orders"
)

// Side returns the perspective a kind must be declared under. ok is false
// for kinds that serve either side.
func (k Kind) Side() (side core.Side, ok bool) {
	switch k {
	case KindFriendlyOrders:
		return core.SideFriendly, true
	case KindEnemyOrders:
		return core.SideEnemy, true
	}
	return "", false
}

// Env is the shared, read-only context extractors are built from.
type Env struct {
	Config *config.FeatureConfig
	Groups *groups.Resolver
	Replay core.ReplayInfo
}

// MaxDistance returns the normalisation constant for distances.
func (e Env) MaxDistance() float64 {
	return e.Replay.MaxStraightLineDistance()
}

// Constructor builds an extractor from its declaration.
type Constructor func(env Env, spec config.ExtractorSpec) (Extractor, error)

// registry is the closed set of extractor kinds.
var registry = map[Kind]Constructor{
	KindMeta:                newMeta,
	KindUnitGroup:           newUnitGroup,
	KindDistance:            newDistance,
	KindConcentration:       newConcentration,
	KindForceFactor:         newForceFactor,
	KindForceRelativeFactor: newForceRelativeFactor,
	KindUnderAttack:         newUnderAttack,
	KindElevation:           newElevation,
	KindMovement:            newMovement,
	KindBetween:             newBetween,
	KindFriendlyOrders:      newFriendlyOrders,
	KindEnemyOrders:         newEnemyOrders,
}

// Kinds returns every registered kind, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New builds the extractor declared by spec.
func New(env Env, spec config.ExtractorSpec) (Extractor, error) {
	kind := Kind(spec.Kind())
	ctor, ok := registry[kind]
	if !ok {
		return nil, config.Errorf("kind", "unknown extractor kind %q", kind)
	}
	ex, err := ctor(env, spec)
	if err != nil {
		return nil, err
	}
	if len(ex.Labels()) == 0 {
		return nil, config.Errorf(string(kind), "extractor produces no features")
	}
	return ex, nil
}

// Toggles selects the categorical and numeric feature blocks of an extractor.
// Both default to enabled.
type Toggles struct {
	Categorical *bool `mapstructure:"categorical"`
	Numeric     *bool `mapstructure:"numeric"`
}

func (t Toggles) categorical() bool { return t.Categorical == nil || *t.Categorical }
func (t Toggles) numeric() bool     { return t.Numeric == nil || *t.Numeric }
func (t Toggles) enabled() bool     { return t.categorical() || t.numeric() }

// row joins the enabled blocks of one extraction, categorical first.
func (t Toggles) row(categorical, numeric []any) []any {
	out := make([]any, 0, len(categorical)+len(numeric))
	if t.categorical() {
		out = append(out, categorical...)
	}
	if t.numeric() {
		out = append(out, numeric...)
	}
	return out
}

// decodeParams decodes an extractor declaration and rejects declarations
// with every feature block disabled.
func decodeParams(field string, spec config.ExtractorSpec, out interface{ enabled() bool }, required ...string) error {
	if err := config.DecodeParams(field, spec, out, required...); err != nil {
		return err
	}
	if !out.enabled() {
		return config.Errorf(field, "categorical and numeric features are both disabled")
	}
	return nil
}

// MissingAttributeError is returned when a unit lacks an attribute an
// enabled extractor needs.
type MissingAttributeError struct {
	Attribute string
	Tag       uint64
	UnitType  string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("unit %d (%s) has no %s attribute", e.Tag, e.UnitType, e.Attribute)
}

// columns holds an extractor's descriptors and implements the label half of
// the Extractor interface.
type columns struct {
	descriptors []core.FeatureDescriptor
}

func (c *columns) add(d ...core.FeatureDescriptor) {
	c.descriptors = append(c.descriptors, d...)
}

// Labels returns the column names in output order.
func (c *columns) Labels() []string {
	return core.Labels(c.descriptors)
}

// Descriptors returns a copy of the column descriptors.
func (c *columns) Descriptors() []core.FeatureDescriptor {
	out := make([]core.FeatureDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// stateless provides the no-op Reset of extractors without memory.
type stateless struct{}

func (stateless) Reset(*core.Observation) {}

func boolColumn(name string, p core.Partition) core.FeatureDescriptor {
	return core.FeatureDescriptor{Name: name, Type: core.Boolean, Partition: p}
}

func categoricalColumn(name string, p core.Partition, labels ...string) core.FeatureDescriptor {
	values := make([]any, 0, len(labels)+1)
	for _, l := range labels {
		values = append(values, l)
	}
	values = append(values, core.Undefined)
	return core.FeatureDescriptor{Name: name, Type: core.Categorical, Values: values, Partition: p}
}

func realColumn(name string, p core.Partition, lo, hi float64) core.FeatureDescriptor {
	return core.FeatureDescriptor{Name: name, Type: core.Real, Values: []any{lo, hi}, Partition: p}
}

func intColumn(name string, p core.Partition, lo, hi int) core.FeatureDescriptor {
	return core.FeatureDescriptor{Name: name, Type: core.Integer, Values: []any{lo, hi}, Partition: p}
}
