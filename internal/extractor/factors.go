package extractor

import (
	"math"
	"sort"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/pkg/core"
)

// factorFunc reads one numeric factor of a unit.
type factorFunc func(u *core.Unit) (float64, error)

func attr(get func(u *core.Unit) float64) factorFunc {
	return func(u *core.Unit) (float64, error) { return get(u), nil }
}

var unitFactors = map[string]factorFunc{
	"health":       attr(func(u *core.Unit) float64 { return u.Health }),
	"health_max":   attr(func(u *core.Unit) float64 { return u.HealthMax }),
	"health_ratio": attr(func(u *core.Unit) float64 { return u.HealthRatio() }),
	"shield":       attr(func(u *core.Unit) float64 { return u.Shield }),
	"shield_max":   attr(func(u *core.Unit) float64 { return u.ShieldMax }),
	"energy":       attr(func(u *core.Unit) float64 { return u.Energy }),
	"energy_max":   attr(func(u *core.Unit) float64 { return u.EnergyMax }),
	"elevation":    elevationOf,
}

func elevationOf(u *core.Unit) (float64, error) {
	if u.Elevation == nil {
		return 0, &MissingAttributeError{Attribute: "elevation", Tag: u.Tag, UnitType: u.Type}
	}
	return *u.Elevation, nil
}

// lookupFactor resolves a factor name to its accessor. The cost factors read
// the unit-cost table; unit types without a cost entry cost nothing.
func lookupFactor(field, name string, costs map[string]config.UnitCost) (factorFunc, error) {
	if f, ok := unitFactors[name]; ok {
		return f, nil
	}
	var pick func(c config.UnitCost) float64
	switch name {
	case "total_cost":
		pick = config.UnitCost.Total
	case "mineral_cost":
		pick = func(c config.UnitCost) float64 { return c.Minerals }
	case "gas_cost":
		pick = func(c config.UnitCost) float64 { return c.Gas }
	default:
		return nil, config.Errorf(field, "unknown factor %q", name)
	}
	return func(u *core.Unit) (float64, error) {
		return pick(costs[u.Type]), nil
	}, nil
}

func factorValues(units []*core.Unit, f factorFunc) ([]float64, error) {
	out := make([]float64, 0, len(units))
	for _, u := range units {
		v, err := f(u)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// aggregator folds factor values. Every aggregator but sum returns NaN for no
// values.
type aggregator func(values []float64) float64

var aggregators = map[string]aggregator{
	"sum":    sum,
	"mean":   mean,
	"min":    minimum,
	"max":    maximum,
	"median": median,
	"std":    stddev,
}

func lookupAggregator(field, op string) (aggregator, error) {
	agg, ok := aggregators[op]
	if !ok {
		return nil, config.Errorf(field, "unknown aggregation operator %q", op)
	}
	return agg, nil
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return sum(values) / float64(len(values))
}

func minimum(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maximum(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	m := mean(values)
	if math.IsNaN(m) {
		return m
	}
	acc := 0.0
	for _, v := range values {
		acc += (v - m) * (v - m)
	}
	return math.Sqrt(acc / float64(len(values)))
}
