package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureType_JSON(t *testing.T) {
	data, err := json.Marshal(FeatureDescriptor{Name: "Distance_A_B", Type: Real, Values: []any{0.0, 1.0}, Partition: PartitionBehavior})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Distance_A_B","type":"Real","values":[0,1],"partition":"behavior"}`, string(data))

	var d FeatureDescriptor
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, Real, d.Type)

	var bad FeatureType
	assert.Error(t, json.Unmarshal([]byte(`"Complex"`), &bad))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"melee", "melee"},
		{true, "true"},
		{3, "3"},
		{0.25, "0.25"},
		{math.NaN(), ""},
		{-50.0, "-50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestRow_Portable(t *testing.T) {
	row := Row{1, math.NaN(), "Undefined", 0.5}
	out := row.Portable()
	assert.Equal(t, []any{1, nil, "Undefined", 0.5}, out)
	assert.True(t, math.IsNaN(row[1].(float64)), "original row untouched")

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestUndefinedValue(t *testing.T) {
	assert.Equal(t, Undefined, UndefinedValue(Boolean))
	assert.Equal(t, Undefined, UndefinedValue(Categorical))
	assert.True(t, math.IsNaN(UndefinedValue(Real).(float64)))
	assert.True(t, math.IsNaN(UndefinedValue(Integer).(float64)))
}

func TestReplayInfo_MaxStraightLineDistance(t *testing.T) {
	assert.Equal(t, 10.0, ReplayInfo{MaxDistance: 10, MapWidth: 3, MapHeight: 4}.MaxStraightLineDistance())
	assert.Equal(t, 5.0, ReplayInfo{MapWidth: 3, MapHeight: 4}.MaxStraightLineDistance())
}
