package parser

import (
	"fmt"

	"github.com/OCAP2/featurex/internal/geo"
	"github.com/OCAP2/featurex/pkg/core"
	"github.com/OCAP2/featurex/pkg/streaming"
)

// ParseStep converts a step payload into a core step, projecting positions
// recorded in srid to planar coordinates.
func ParseStep(payload streaming.StepPayload, srid int) (core.Step, error) {
	step := core.Step{
		Perspective: payload.Perspective,
		Episode:     payload.Episode,
		Index:       payload.Step,
		Observation: core.Observation{Units: make([]core.Unit, 0, len(payload.Units))},
	}
	for _, raw := range payload.Units {
		unit, err := ParseUnit(raw, srid)
		if err != nil {
			return step, err
		}
		step.Observation.Units = append(step.Observation.Units, unit)
	}
	return step, nil
}

// ParseUnit converts one unit payload.
func ParseUnit(raw streaming.UnitPayload, srid int) (core.Unit, error) {
	unit := core.Unit{
		Tag:       raw.Tag,
		Type:      raw.UnitType,
		Alliance:  core.Alliance(raw.Alliance),
		Owner:     raw.Owner,
		Health:    raw.Health,
		HealthMax: raw.HealthMax,
		Shield:    raw.Shield,
		ShieldMax: raw.ShieldMax,
		Energy:    raw.Energy,
		EnergyMax: raw.EnergyMax,
		OnScreen:  raw.OnScreen,
		OrderID:   raw.OrderID,
	}
	if unit.Alliance < core.AllianceSelf || unit.Alliance > core.AllianceEnemy {
		return unit, fmt.Errorf("unit %d: invalid alliance %d", raw.Tag, raw.Alliance)
	}

	pos, elev, err := geo.ParsePosition(raw.Pos)
	if err != nil {
		return unit, fmt.Errorf("unit %d: error parsing position %q: %w", raw.Tag, raw.Pos, err)
	}
	if unit.Position, err = geo.Project(srid, pos); err != nil {
		return unit, fmt.Errorf("unit %d: %w", raw.Tag, err)
	}
	unit.Elevation = elev
	return unit, nil
}
