package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/go-viper/mapstructure/v2"
)

// UnitCost is the resource cost of producing one unit of a type.
type UnitCost struct {
	Minerals float64
	Gas      float64
}

// Total returns minerals plus gas.
func (c UnitCost) Total() float64 {
	return c.Minerals + c.Gas
}

// ExtractorSpec is one extractor declaration of the pipeline. Its "kind"
// selects the implementation; every other key is a parameter of that kind.
type ExtractorSpec map[string]any

// Kind returns the declared extractor kind, or "" when absent.
func (s ExtractorSpec) Kind() string {
	kind, _ := s["kind"].(string)
	return kind
}

// PipelineConfig lists the extractors run for each perspective, in column order.
type PipelineConfig struct {
	Friendly []ExtractorSpec
	Enemy    []ExtractorSpec
}

// FeatureConfig is the resolved extraction configuration. It is immutable
// once parsed and may be shared by concurrently running pipelines.
//
// Defaults: SampleInterval 1, FriendlyID 1, empty maps, and a pipeline made of
// the meta extractor only.
type FeatureConfig struct {
	SampleInterval   int                 `mapstructure:"sample_int"`
	FriendlyID       int                 `mapstructure:"friendly_id"`
	MaxFriendlyUnits map[string]int      `mapstructure:"max_friendly_units"`
	MaxEnemyUnits    map[string]int      `mapstructure:"max_enemy_units"`
	Groups           map[string][]string `mapstructure:"groups"`
	UnitTypes        []string            `mapstructure:"unit_types"`
	UnitCosts        map[string]UnitCost `mapstructure:"-"`
	Pipeline         PipelineConfig      `mapstructure:"-"`

	raw map[string]any
}

// KnownUnitTypes returns every unit-type identifier the configuration
// mentions, sorted.
func (c *FeatureConfig) KnownUnitTypes() []string {
	seen := make(map[string]struct{})
	for _, t := range c.UnitTypes {
		seen[t] = struct{}{}
	}
	for t := range c.UnitCosts {
		seen[t] = struct{}{}
	}
	for _, members := range c.Groups {
		for _, t := range members {
			seen[t] = struct{}{}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// LoadFeatureConfig reads and validates a feature configuration file. Keys
// keep their case, since group names become part of column labels.
func LoadFeatureConfig(path string) (*FeatureConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading feature config: %w", err)
	}
	return ParseFeatureConfig(data)
}

// ParseFeatureConfig decodes a JSON feature configuration.
func ParseFeatureConfig(data []byte) (*FeatureConfig, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return FromMap(raw)
}

// FromMap builds a FeatureConfig from already decoded JSON.
func FromMap(raw map[string]any) (*FeatureConfig, error) {
	cfg := &FeatureConfig{raw: raw}
	if err := decode("", raw, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	costs, err := decodeUnitCosts(raw["unit_costs"])
	if err != nil {
		return nil, err
	}
	cfg.UnitCosts = costs

	if cfg.Pipeline, err = decodePipeline(raw["pipeline"]); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as it was read, indented, to path.
func (c *FeatureConfig) Save(path string) error {
	data, err := json.MarshalIndent(c.raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feature config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *FeatureConfig) applyDefaults() {
	if c.SampleInterval == 0 {
		c.SampleInterval = 1
	}
	if c.FriendlyID == 0 {
		c.FriendlyID = 1
	}
	if c.MaxFriendlyUnits == nil {
		c.MaxFriendlyUnits = map[string]int{}
	}
	if c.MaxEnemyUnits == nil {
		c.MaxEnemyUnits = map[string]int{}
	}
	if c.Groups == nil {
		c.Groups = map[string][]string{}
	}
}

func (c *FeatureConfig) validate() error {
	if c.SampleInterval < 1 {
		return Errorf("sample_int", "must be at least 1, got %d", c.SampleInterval)
	}
	for name, members := range c.Groups {
		if len(members) == 0 {
			return Errorf("groups."+name, "group has no unit types")
		}
		for _, m := range members {
			if m == "" {
				return Errorf("groups."+name, "empty unit type")
			}
		}
	}
	return nil
}

func decodeUnitCosts(raw any) (map[string]UnitCost, error) {
	costs := map[string]UnitCost{}
	if raw == nil {
		return costs, nil
	}
	var pairs map[string][]float64
	if err := decode("unit_costs", raw, &pairs); err != nil {
		return nil, err
	}
	for unitType, pair := range pairs {
		if len(pair) != 2 {
			return nil, Errorf("unit_costs."+unitType, "expected [minerals, gas], got %d values", len(pair))
		}
		costs[unitType] = UnitCost{Minerals: pair[0], Gas: pair[1]}
	}
	return costs, nil
}

func decodePipeline(raw any) (PipelineConfig, error) {
	if raw == nil {
		return PipelineConfig{Friendly: []ExtractorSpec{{"kind": "meta"}}}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return PipelineConfig{}, Errorf("pipeline", "expected an object with friendly/enemy lists")
	}
	friendly, err := decodeExtractorList("pipeline.friendly", m["friendly"])
	if err != nil {
		return PipelineConfig{}, err
	}
	enemy, err := decodeExtractorList("pipeline.enemy", m["enemy"])
	if err != nil {
		return PipelineConfig{}, err
	}
	return PipelineConfig{Friendly: friendly, Enemy: enemy}, nil
}

// decodeExtractorList accepts objects carrying a "kind" and plain strings as
// shorthand for {"kind": "<string>"}.
func decodeExtractorList(field string, raw any) ([]ExtractorSpec, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, Errorf(field, "expected a list of extractor declarations")
	}
	specs := make([]ExtractorSpec, 0, len(items))
	for i, item := range items {
		itemField := fmt.Sprintf("%s[%d]", field, i)
		switch v := item.(type) {
		case string:
			specs = append(specs, ExtractorSpec{"kind": v})
		case map[string]any:
			spec := ExtractorSpec(v)
			if spec.Kind() == "" {
				return nil, Errorf(itemField, "missing extractor kind")
			}
			specs = append(specs, spec)
		default:
			return nil, Errorf(itemField, "expected a string or an object, got %T", item)
		}
	}
	return specs, nil
}

// DecodeParams decodes an extractor declaration into out after checking that
// every required key is present. Unknown keys are ignored.
func DecodeParams(field string, spec ExtractorSpec, out any, required ...string) error {
	for _, key := range required {
		if _, ok := spec[key]; !ok {
			return Errorf(field, "missing required field %q", key)
		}
	}
	return decode(field, map[string]any(spec), out)
}

func decode(field string, input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			specDiscriminatorHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return cfgErr
		}
		if field == "" {
			return &ConfigurationError{Reason: err.Error()}
		}
		return Errorf(field, "%v", err)
	}
	return nil
}
