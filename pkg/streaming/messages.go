package streaming

import (
	"encoding/json"

	"github.com/OCAP2/featurex/pkg/core"
)

// Message types of the replay input stream.
const (
	TypeReplay = "replay"
	TypeStep   = "step"
)

// Message types of the feature output stream.
const (
	TypeStartReplay = "start_replay"
	TypeFeatureRow  = "feature_row"
	TypeEndReplay   = "end_replay"
	TypeAck         = "ack"
)

// Envelope wraps every message, one per line in replay files and one per
// frame on the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// UnitPayload is one unit of a step. Pos is "x,y" or "x,y,elevation" in the
// replay's SRID.
type UnitPayload struct {
	Tag       uint64  `json:"tag"`
	UnitType  string  `json:"unitType"`
	Alliance  int     `json:"alliance"`
	Owner     int     `json:"owner"`
	Pos       string  `json:"pos"`
	Health    float64 `json:"health"`
	HealthMax float64 `json:"healthMax"`
	Shield    float64 `json:"shield"`
	ShieldMax float64 `json:"shieldMax"`
	Energy    float64 `json:"energy"`
	EnergyMax float64 `json:"energyMax"`
	OnScreen  bool    `json:"onScreen"`
	OrderID   int     `json:"orderId"`
}

// StepPayload is one observation of one perspective.
type StepPayload struct {
	Perspective int           `json:"perspective"`
	Episode     int           `json:"episode"`
	Step        int           `json:"step"`
	Units       []UnitPayload `json:"units"`
}

// StartReplayPayload announces the columns of the rows that follow.
type StartReplayPayload struct {
	Replay      core.ReplayInfo          `json:"replay"`
	Descriptors []core.FeatureDescriptor `json:"descriptors"`
}

// FeatureRowPayload is one feature row. Undefined numeric values are null.
type FeatureRowPayload struct {
	Source string `json:"source"`
	Values []any  `json:"values"`
}

// EndReplayPayload closes a replay.
type EndReplayPayload struct {
	Source string `json:"source"`
	Rows   int    `json:"rows"`
}
