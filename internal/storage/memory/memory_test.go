package memory

import (
	"compress/gzip"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/pkg/core"
)

func testDescriptors() []core.FeatureDescriptor {
	return []core.FeatureDescriptor{
		{Name: core.EpisodeColumn, Type: core.Integer, Partition: core.PartitionMeta},
		{Name: core.TimestepColumn, Type: core.Integer, Partition: core.PartitionMeta},
		{Name: core.FileColumn, Type: core.String, Partition: core.PartitionMeta},
		{Name: "Distance_Marines_Zerglings", Type: core.Real, Values: []any{0.0, 1.0}, Partition: core.PartitionBehavior},
	}
}

func newTestBackend(t *testing.T, compress, merge bool) *Backend {
	t.Helper()
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: compress, MergeDataset: merge})
	require.NoError(t, b.Init())
	return b
}

func recordReplay(t *testing.T, b *Backend, source string, rows ...core.Row) {
	t.Helper()
	require.NoError(t, b.StartReplay(core.ReplayInfo{Source: source}, testDescriptors()))
	for _, row := range rows {
		require.NoError(t, b.RecordRow(row))
	}
	require.NoError(t, b.EndReplay())
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	_, err := os.Stat(path)
	require.NoError(t, err)
	header, rows, err := readCSV(path)
	require.NoError(t, err)
	return append([][]string{header}, rows...)
}

func TestBackend_WritesReplayCSV(t *testing.T) {
	b := newTestBackend(t, false, false)

	recordReplay(t, b, "replays/game one.SC2Replay",
		core.Row{0, 0, "game one.SC2Replay", 0.25},
		core.Row{0, 1, "game one.SC2Replay", math.NaN()},
	)

	path := b.OutputPath("replays/game one.SC2Replay")
	assert.Equal(t, "game_one.csv", filepath.Base(path))
	assert.Equal(t, [][]string{
		{"Episode", "Timestep", "File", "Distance_Marines_Zerglings"},
		{"0", "0", "game one.SC2Replay", "0.25"},
		{"0", "1", "game one.SC2Replay", ""},
	}, readAll(t, path))
	assert.Equal(t, []string{path}, b.Written())
	assert.True(t, b.Exists("replays/game one.SC2Replay"))
	assert.False(t, b.Exists("other.SC2Replay"))
}

func TestBackend_WritesDescriptors(t *testing.T) {
	b := newTestBackend(t, false, false)
	recordReplay(t, b, "a.SC2Replay", core.Row{0, 0, "a", 0.5})

	data, err := os.ReadFile(filepath.Join(b.cfg.OutputDir, DescriptorsFile))
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 4)
	assert.Equal(t, "Distance_Marines_Zerglings", got[3]["name"])
	assert.Equal(t, "Real", got[3]["type"])
	assert.Equal(t, "behavior", got[3]["partition"])
}

func TestBackend_CompressedOutput(t *testing.T) {
	b := newTestBackend(t, true, false)
	recordReplay(t, b, "a.json.gz", core.Row{1, 2, "a", 0.5})

	path := b.OutputPath("a.json.gz")
	assert.Equal(t, "a.csv.gz", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	records, err := csv.NewReader(gz).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "a", "0.5"}, records[1])
}

func TestBackend_MergesOnClose(t *testing.T) {
	b := newTestBackend(t, false, true)

	recordReplay(t, b, "b.SC2Replay",
		core.Row{0, 1, "b.SC2Replay", 0.1},
		core.Row{0, 0, "b.SC2Replay", 0.2},
	)
	recordReplay(t, b, "a.SC2Replay",
		core.Row{1, 0, "a.SC2Replay", 0.3},
		core.Row{0, 10, "a.SC2Replay", 0.4},
		core.Row{0, 2, "a.SC2Replay", 0.5},
	)
	require.NoError(t, b.Close())

	got := readAll(t, b.DatasetPath())
	assert.Equal(t, [][]string{
		{"Episode", "Timestep", "File", "Distance_Marines_Zerglings"},
		{"0", "2", "a.SC2Replay", "0.5"},
		{"0", "10", "a.SC2Replay", "0.4"},
		{"1", "0", "a.SC2Replay", "0.3"},
		{"0", "0", "b.SC2Replay", "0.2"},
		{"0", "1", "b.SC2Replay", "0.1"},
	}, got)
}

func TestBackend_CloseWithoutReplays(t *testing.T) {
	b := newTestBackend(t, false, true)
	require.NoError(t, b.Close())

	_, err := os.Stat(b.DatasetPath())
	assert.True(t, os.IsNotExist(err))
}

func TestBackend_LifecycleErrors(t *testing.T) {
	b := newTestBackend(t, false, false)

	assert.Error(t, b.RecordRow(core.Row{0, 0, "a", 0.1}), "row before start")
	assert.Error(t, b.EndReplay(), "end before start")

	require.NoError(t, b.StartReplay(core.ReplayInfo{Source: "a"}, testDescriptors()))
	assert.Error(t, b.StartReplay(core.ReplayInfo{Source: "b"}, testDescriptors()), "nested start")
	assert.Error(t, b.RecordRow(core.Row{0, 0}), "short row")
	require.NoError(t, b.EndReplay())

	other := testDescriptors()[:3]
	assert.Error(t, b.StartReplay(core.ReplayInfo{Source: "c"}, other), "columns changed")
}

func TestBackend_AbortReplay(t *testing.T) {
	b := newTestBackend(t, false, false)
	assert.Error(t, b.AbortReplay())

	require.NoError(t, b.StartReplay(core.ReplayInfo{Source: "half.SC2Replay"}, testDescriptors()))
	require.NoError(t, b.RecordRow(core.Row{0, 0, "half.SC2Replay", 0.1}))
	require.NoError(t, b.AbortReplay())
	assert.False(t, b.Exists("half.SC2Replay"))
	assert.Empty(t, b.Written())

	recordReplay(t, b, "next.SC2Replay", core.Row{0, 0, "next.SC2Replay", 0.2})
	assert.True(t, b.Exists("next.SC2Replay"))
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	header := []string{"Episode", "Timestep", "File", "X"}
	write := func(name string, rows ...[]string) string {
		path := filepath.Join(dir, name)
		records := make([]core.Row, 0, len(rows))
		for _, r := range rows {
			row := make(core.Row, len(r))
			for i, v := range r {
				row[i] = v
			}
			records = append(records, row)
		}
		require.NoError(t, writeCSV(path, header, records))
		return path
	}

	a := write("a.csv", []string{"0", "1", "a", "x"})
	b := write("b.csv.gz", []string{"0", "0", "a", "y"})
	outPath := filepath.Join(dir, "merged.csv")

	t.Run("sorted across files", func(t *testing.T) {
		n, err := Merge([]string{a, b}, outPath, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, [][]string{header, {"0", "0", "a", "y"}, {"0", "1", "a", "x"}}, readAll(t, outPath))
	})

	t.Run("compressed output gets gz suffix", func(t *testing.T) {
		_, err := Merge([]string{a}, filepath.Join(dir, "merged2.csv"), true)
		require.NoError(t, err)
		assert.Len(t, readAll(t, filepath.Join(dir, "merged2.csv.gz")), 2)
	})

	t.Run("header mismatch", func(t *testing.T) {
		other := filepath.Join(dir, "other.csv")
		require.NoError(t, writeCSV(other, []string{"Episode"}, nil))
		_, err := Merge([]string{a, other}, outPath, false)
		assert.ErrorContains(t, err, "header differs")
	})

	t.Run("no inputs", func(t *testing.T) {
		_, err := Merge(nil, outPath, false)
		assert.Error(t, err)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := Merge([]string{filepath.Join(dir, "absent.csv")}, outPath, false)
		assert.Error(t, err)
	})
}

func TestReplayName(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"game.SC2Replay", "game"},
		{"dir/game.json.gz", "game"},
		{"dir/my game.json", "my_game"},
		{"noext", "noext"},
		{"", "replay"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, replayName(tt.source))
		})
	}
}
