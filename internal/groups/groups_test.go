package groups

import (
	"errors"
	"testing"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Filter(t *testing.T) {
	r := New(map[string][]string{
		"Bio":  {"Terran.Marine", "Terran.Marauder", "Terran.Marine"},
		"Tank": {"Terran.SiegeTank"},
	}, []string{"Zerg.Zergling"})

	tests := []struct {
		name    string
		filter  []string
		members [][]string
		wantErr bool
	}{
		{"named groups", []string{"Tank", "Bio"}, [][]string{{"Terran.SiegeTank"}, {"Terran.Marauder", "Terran.Marine"}}, false},
		{"bare catalog type", []string{"Zerg.Zergling"}, [][]string{{"Zerg.Zergling"}}, false},
		{"bare group member", []string{"Terran.Marine"}, [][]string{{"Terran.Marine"}}, false},
		{"unknown", []string{"Bio", "Protoss.Zealot"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := r.Filter("distance.friendly_filter", tt.filter)
			if tt.wantErr {
				var cfgErr *config.ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "distance.friendly_filter", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			require.Len(t, groups, len(tt.members))
			for i, g := range groups {
				assert.Equal(t, tt.filter[i], g.Name)
				assert.Equal(t, tt.members[i], g.Members)
			}
		})
	}
}

func TestGroup_Contains(t *testing.T) {
	r := New(map[string][]string{"Bio": {"Terran.Marine", "Terran.Marauder"}}, nil)
	g, ok := r.Get("Bio")
	require.True(t, ok)

	assert.True(t, g.Contains("Terran.Marine"))
	assert.True(t, g.Contains("Terran.Marauder"))
	assert.False(t, g.Contains("Terran.SCV"))
}

func TestResolver_OrderIndependent(t *testing.T) {
	a := New(map[string][]string{"G": {"A", "B", "C"}}, nil)
	b := New(map[string][]string{"G": {"C", "A", "B", "A"}}, nil)

	ga, _ := a.Get("G")
	gb, _ := b.Get("G")
	assert.Equal(t, ga.Members, gb.Members)
	for _, unitType := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, ga.Contains(unitType), gb.Contains(unitType))
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.ParseFeatureConfig([]byte(`{
		"groups": {"Bio": ["Terran.Marine"]},
		"unit_costs": {"Terran.Medivac": [100, 100]}
	}`))
	require.NoError(t, err)

	r := FromConfig(cfg)
	_, ok := r.Get("Terran.Medivac")
	assert.True(t, ok, "unit cost keys are valid unit types")
	assert.Equal(t, []string{"Bio"}, r.Names())
}
