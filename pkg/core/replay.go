// pkg/core/replay.go
package core

import "time"

// Side selects which perspective's extractor list processes a step.
type Side string

const (
	SideFriendly Side = "Friendly"
	SideEnemy    Side = "Enemy"
)

// Sides lists both sides in column order.
var Sides = []Side{SideFriendly, SideEnemy}

// ReplayInfo describes a recorded replay and the environment it was played in.
type ReplayInfo struct {
	Source    string  `json:"source"`
	Players   int     `json:"players"`
	MapName   string  `json:"mapName,omitempty"`
	MapWidth  float64 `json:"mapWidth"`
	MapHeight float64 `json:"mapHeight"`
	// MaxDistance is the longest straight line inside the environment bounds.
	// When zero it is derived from the map size.
	MaxDistance float64   `json:"maxDistance"`
	SRID        int       `json:"srid,omitempty"`
	StartTime   time.Time `json:"startTime"`
}

// MaxStraightLineDistance returns MaxDistance, falling back to the map diagonal.
func (r ReplayInfo) MaxStraightLineDistance() float64 {
	if r.MaxDistance > 0 {
		return r.MaxDistance
	}
	return Diagonal(r.MapWidth, r.MapHeight)
}

// Step is one observation of the stream, seen from one player's perspective.
type Step struct {
	Perspective int         `json:"perspective"`
	Episode     int         `json:"episode"`
	Index       int         `json:"step"`
	Observation Observation `json:"observation"`
}
