// pkg/core/unit.go
package core

import "math"

// Alliance is the relation of a unit's owner to the observing player.
type Alliance int

const (
	AllianceSelf    Alliance = 1
	AllianceAlly    Alliance = 2
	AllianceNeutral Alliance = 3
	AllianceEnemy   Alliance = 4
)

// String returns the lower-case alliance name.
func (a Alliance) String() string {
	switch a {
	case AllianceSelf:
		return "self"
	case AllianceAlly:
		return "ally"
	case AllianceNeutral:
		return "neutral"
	case AllianceEnemy:
		return "enemy"
	default:
		return "unknown"
	}
}

// Position2D is a planar map position.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Unit is one game unit at one timestep. Units are produced fresh for every
// observation and are never modified by extractors.
type Unit struct {
	Tag       uint64     `json:"tag"`
	Type      string     `json:"unitType"`
	Alliance  Alliance   `json:"alliance"`
	Owner     int        `json:"owner"`
	Position  Position2D `json:"position"`
	Health    float64    `json:"health"`
	HealthMax float64    `json:"healthMax"`
	Shield    float64    `json:"shield"`
	ShieldMax float64    `json:"shieldMax"`
	Energy    float64    `json:"energy"`
	EnergyMax float64    `json:"energyMax"`
	// Elevation is nil when the environment interface does not provide terrain height.
	Elevation *float64 `json:"elevation,omitempty"`
	OnScreen  bool     `json:"onScreen"`
	// OrderID is the raw ability currently executed, 0 when idle.
	OrderID int `json:"orderId"`
}

// HealthRatio returns health over max health, 0 when max health is unknown.
func (u *Unit) HealthRatio() float64 {
	if u.HealthMax <= 0 {
		return 0
	}
	return u.Health / u.HealthMax
}

// Observation holds every unit visible at one timestep.
type Observation struct {
	Units []Unit `json:"units"`
}

// Diagonal returns the straight-line length across a width x height map.
func Diagonal(width, height float64) float64 {
	return math.Hypot(width, height)
}
