// pkg/core/feature.go
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Undefined is the categorical value assigned to features that cannot be computed.
const Undefined = "Undefined"

// Meta column names.
const (
	EpisodeColumn  = "Episode"
	TimestepColumn = "Timestep"
	FileColumn     = "File"
)

// FeatureType is the declared type of a feature column.
type FeatureType int

const (
	Boolean FeatureType = iota + 1 // true/false + Undefined
	BooleanPositive
	Categorical
	String
	Integer
	Real
)

var featureTypeNames = map[FeatureType]string{
	Boolean:         "Boolean",
	BooleanPositive: "BooleanPositive",
	Categorical:     "Categorical",
	String:          "String",
	Integer:         "Integer",
	Real:            "Real",
}

func (t FeatureType) String() string {
	if name, ok := featureTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FeatureType(%d)", int(t))
}

// MarshalJSON writes the type name.
func (t FeatureType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON reads a type name.
func (t *FeatureType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for k, v := range featureTypeNames {
		if v == name {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown feature type %q", name)
}

// IsNumeric reports whether values of this type are numbers.
func (t FeatureType) IsNumeric() bool {
	return t == Integer || t == Real
}

// Partition groups descriptor columns in the descriptor artifact.
type Partition string

const (
	PartitionMeta        Partition = "meta"
	PartitionEnvironment Partition = "environment"
	PartitionBehavior    Partition = "behavior"
)

// FeatureDescriptor describes one output column. Values holds the category
// labels of categorical features or the [min, max] range of numeric ones.
type FeatureDescriptor struct {
	Name      string      `json:"name"`
	Type      FeatureType `json:"type"`
	Values    []any       `json:"values,omitempty"`
	Partition Partition   `json:"partition"`
}

// Labels returns the names of the given descriptors.
func Labels(descriptors []FeatureDescriptor) []string {
	labels := make([]string, len(descriptors))
	for i, d := range descriptors {
		labels[i] = d.Name
	}
	return labels
}

// UndefinedValue returns the sentinel for a column of the given type.
func UndefinedValue(t FeatureType) any {
	if t.IsNumeric() {
		return math.NaN()
	}
	return Undefined
}

// Row is one feature row, aligned with the pipeline labels.
type Row []any

// Portable returns a copy of the row with NaN replaced by nil so it can be
// JSON encoded.
func (r Row) Portable() []any {
	out := make([]any, len(r))
	for i, v := range r {
		if f, ok := v.(float64); ok && math.IsNaN(f) {
			continue
		}
		out[i] = v
	}
	return out
}

// FormatValue renders a feature value for delimited text output. NaN and nil
// become the empty string.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
