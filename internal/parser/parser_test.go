package parser

import (
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/featurex/pkg/core"
	"github.com/OCAP2/featurex/pkg/streaming"
)

const sampleReplay = `{"type":"replay","payload":{"source":"Simple64.SC2Replay","players":2,"mapWidth":64,"mapHeight":64}}
{"type":"step","payload":{"perspective":1,"episode":0,"step":0,"units":[
	{"tag":4295229441,"unitType":"Terran.Marine","alliance":1,"owner":1,"pos":"12.5,30,4","health":45,"healthMax":45,"orderId":23},
	{"tag":4295491585,"unitType":"Zerg.Zergling","alliance":4,"owner":2,"pos":"40,30","health":35,"healthMax":35}
]}}
{"type":"comment","payload":{"text":"ignored"}}
{"type":"step","payload":{"perspective":2,"episode":0,"step":0,"units":[]}}
`

func TestParser(t *testing.T) {
	p, err := NewParser(strings.NewReader(sampleReplay), slog.Default())
	require.NoError(t, err)

	info := p.Info()
	assert.Equal(t, "Simple64.SC2Replay", info.Source)
	assert.Equal(t, 2, info.Players)
	assert.InDelta(t, 90.51, info.MaxStraightLineDistance(), 0.01)

	step, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, step.Perspective)
	require.Len(t, step.Observation.Units, 2)

	marine := step.Observation.Units[0]
	assert.Equal(t, uint64(4295229441), marine.Tag)
	assert.Equal(t, core.AllianceSelf, marine.Alliance)
	assert.Equal(t, core.Position2D{X: 12.5, Y: 30}, marine.Position)
	require.NotNil(t, marine.Elevation)
	assert.Equal(t, 4.0, *marine.Elevation)
	assert.Equal(t, 23, marine.OrderID)

	assert.Nil(t, step.Observation.Units[1].Elevation)

	step, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, step.Perspective)
	assert.Empty(t, step.Observation.Units)

	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, p.Close())
}

func TestNewParser_NoHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"step first", `{"type":"step","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(strings.NewReader(tt.input), nil)
			assert.True(t, errors.Is(err, ErrNoReplayHeader))
		})
	}

	_, err := NewParser(strings.NewReader(`{not json`), nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoReplayHeader))
}

func TestParser_BadUnit(t *testing.T) {
	input := `{"type":"replay","payload":{"source":"x"}}
{"type":"step","payload":{"units":[{"tag":7,"alliance":1,"pos":"12"}]}}
{"type":"step","payload":{"units":[{"tag":8,"alliance":9,"pos":"1,2"}]}}
`
	p, err := NewParser(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Info().Players)

	_, err = p.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
	assert.Contains(t, err.Error(), "unit 7")

	_, err = p.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid alliance")
}

func TestParseUnit_Projection(t *testing.T) {
	unit, err := ParseUnit(streaming.UnitPayload{Tag: 1, Alliance: 1, Pos: "0,0"}, 4326)
	require.NoError(t, err)
	assert.InDelta(t, 0, unit.Position.X, 1e-6)
	assert.InDelta(t, 0, unit.Position.Y, 1e-6)

	unit, err = ParseUnit(streaming.UnitPayload{Tag: 1, Alliance: 1, Pos: "1,0"}, 4326)
	require.NoError(t, err)
	assert.InDelta(t, 111319.49, unit.Position.X, 0.1)

	_, err = ParseUnit(streaming.UnitPayload{Tag: 1, Alliance: 1, Pos: "1,0"}, 31467)
	assert.Error(t, err)
}

func TestOpen_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(`{"type":"replay","payload":{"players":1}}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	p, err := Open(path, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, path, p.Info().Source)
	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)

	_, err = Open(filepath.Join(t.TempDir(), "missing.jsonl"), nil)
	assert.Error(t, err)
}
