package extractor

import (
	"math"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/pkg/core"
)

// bracket is a category whose values lie below ceiling.
type bracket struct {
	label   string
	ceiling float64
}

// classifyBrackets returns the first bracket whose ceiling exceeds v, or
// Undefined when none does or v is NaN.
func classifyBrackets(v float64, brackets []bracket) string {
	if math.IsNaN(v) {
		return core.Undefined
	}
	for _, b := range brackets {
		if v < b.ceiling {
			return b.label
		}
	}
	return core.Undefined
}

func bracketLabels(brackets []bracket) []string {
	out := make([]string, len(brackets))
	for i, b := range brackets {
		out[i] = b.label
	}
	return out
}

// checkBrackets requires strictly ascending ceilings.
func checkBrackets(field string, brackets []bracket) error {
	for i := 1; i < len(brackets); i++ {
		if brackets[i].ceiling <= brackets[i-1].ceiling {
			return config.Errorf(field, "thresholds must be strictly ascending (%s=%v after %s=%v)",
				brackets[i].label, brackets[i].ceiling, brackets[i-1].label, brackets[i-1].ceiling)
		}
	}
	return nil
}

// classifyLevels returns the label of the highest level whose threshold is
// at most v. Values below every level get the first label. Levels are
// ascending.
func classifyLevels(v float64, levels []config.Level) string {
	if math.IsNaN(v) || len(levels) == 0 {
		return core.Undefined
	}
	label := levels[0].Label
	for _, lvl := range levels {
		if lvl.Threshold <= v {
			label = lvl.Label
		}
	}
	return label
}

// normalize divides v by limit and clips the result to [0, 1]. A
// non-positive limit yields NaN.
func normalize(v, limit float64) float64 {
	if math.IsNaN(v) || limit <= 0 {
		return math.NaN()
	}
	return geo.Clip01(v / limit)
}

// category returns label, or Undefined when the numeric value is NaN.
func category(v float64, label string) string {
	if math.IsNaN(v) {
		return core.Undefined
	}
	return label
}

// boolOrUndefined returns b, or Undefined when v is NaN.
func boolOrUndefined(v float64, b bool) any {
	if math.IsNaN(v) {
		return core.Undefined
	}
	return b
}
