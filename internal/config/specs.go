package config

import "reflect"

// SpecType is the discriminator of a factor or order specification.
type SpecType string

const (
	SpecForceFactor         SpecType = "force_factor"
	SpecForceRelativeFactor SpecType = "force_relative_factor"
	SpecOrder               SpecType = "order"
)

// Level is a named threshold mapping an aggregate onto a category.
type Level struct {
	Label     string  `mapstructure:"name"`
	Threshold float64 `mapstructure:"value"`
}

// ForceFactorSpec configures the aggregation of one unit factor per group.
type ForceFactorSpec struct {
	Type           SpecType `mapstructure:"type"`
	Name           string   `mapstructure:"name"`
	Factor         string   `mapstructure:"factor"`
	Op             string   `mapstructure:"op"`
	FriendlyFilter []string `mapstructure:"friendly_filter"`
	EnemyFilter    []string `mapstructure:"enemy_filter"`
	Levels         []Level  `mapstructure:"levels"`
}

// ForceRelativeFactorSpec configures the comparison of a factor between forces.
// Empty labels default to "advantage", "disadvantage" and "balanced".
type ForceRelativeFactorSpec struct {
	Type           SpecType `mapstructure:"type"`
	Name           string   `mapstructure:"name"`
	Factor         string   `mapstructure:"factor"`
	FriendlyFilter []string `mapstructure:"friendly_filter"`
	EnemyFilter    []string `mapstructure:"enemy_filter"`
	Ratio          float64  `mapstructure:"ratio"`
	Advantage      string   `mapstructure:"advantage"`
	Disadvantage   string   `mapstructure:"disadvantage"`
	Balanced       string   `mapstructure:"balanced"`
}

// OrderSpec configures the detection of units executing a set of abilities.
type OrderSpec struct {
	Type            SpecType `mapstructure:"type"`
	Name            string   `mapstructure:"name"`
	RawAbilities    []int    `mapstructure:"raw_abilities"`
	UnitGroupFilter []string `mapstructure:"unit_group_filter"`
}

// specShapes is the closed set of decodable specifications, keyed by the Go
// type the decoder is filling.
var specShapes = map[reflect.Type]SpecType{
	reflect.TypeOf(ForceFactorSpec{}):         SpecForceFactor,
	reflect.TypeOf(ForceRelativeFactorSpec{}): SpecForceRelativeFactor,
	reflect.TypeOf(OrderSpec{}):               SpecOrder,
}

var knownSpecTypes = map[SpecType]bool{
	SpecForceFactor:         true,
	SpecForceRelativeFactor: true,
	SpecOrder:               true,
}

// specDiscriminatorHook checks the "type" field of every map decoded into one
// of the specification structs.
func specDiscriminatorHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	want, ok := specShapes[to]
	if !ok {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, Errorf(string(want), "expected an object, got %T", data)
	}
	disc, _ := m["type"].(string)
	switch {
	case disc == "":
		return nil, Errorf(string(want), "missing discriminator field \"type\"")
	case !knownSpecTypes[SpecType(disc)]:
		return nil, Errorf(string(want), "unrecognized specification type %q", disc)
	case SpecType(disc) != want:
		return nil, Errorf(string(want), "specification of type %q where %q is expected", disc, want)
	}
	return data, nil
}

// Validate checks names, filters and level ordering.
func (s *ForceFactorSpec) Validate() error {
	field := "force_factor." + s.Name
	if s.Name == "" {
		return Errorf("force_factor", "missing required field \"name\"")
	}
	if s.Factor == "" {
		return Errorf(field, "missing required field \"factor\"")
	}
	if s.Op == "" {
		return Errorf(field, "missing required field \"op\"")
	}
	if len(s.FriendlyFilter) == 0 && len(s.EnemyFilter) == 0 {
		return Errorf(field, "at least one of friendly_filter or enemy_filter is required")
	}
	if len(s.Levels) == 0 {
		return Errorf(field, "levels must not be empty")
	}
	for i, lvl := range s.Levels {
		if lvl.Label == "" {
			return Errorf(field, "level %d has no name", i)
		}
		if i > 0 && lvl.Threshold <= s.Levels[i-1].Threshold {
			return Errorf(field, "level thresholds must be strictly ascending (%s=%v after %s=%v)",
				lvl.Label, lvl.Threshold, s.Levels[i-1].Label, s.Levels[i-1].Threshold)
		}
	}
	return nil
}

// Validate checks names, filters and the ratio range, and fills default labels.
func (s *ForceRelativeFactorSpec) Validate() error {
	field := "force_relative_factor." + s.Name
	if s.Name == "" {
		return Errorf("force_relative_factor", "missing required field \"name\"")
	}
	if s.Factor == "" {
		return Errorf(field, "missing required field \"factor\"")
	}
	if len(s.FriendlyFilter) == 0 || len(s.EnemyFilter) == 0 {
		return Errorf(field, "friendly_filter and enemy_filter are required")
	}
	if s.Ratio <= 0 || s.Ratio >= 1 {
		return Errorf(field, "ratio must be in (0, 1), got %v", s.Ratio)
	}
	if s.Advantage == "" {
		s.Advantage = "advantage"
	}
	if s.Disadvantage == "" {
		s.Disadvantage = "disadvantage"
	}
	if s.Balanced == "" {
		s.Balanced = "balanced"
	}
	return nil
}

// Validate checks the order name, filter and ability set.
func (s *OrderSpec) Validate() error {
	if s.Name == "" {
		return Errorf("order", "missing required field \"name\"")
	}
	if len(s.UnitGroupFilter) == 0 {
		return Errorf("order."+s.Name, "unit_group_filter must not be empty")
	}
	if len(s.RawAbilities) == 0 {
		return Errorf("order."+s.Name, "raw_abilities must not be empty")
	}
	return nil
}

