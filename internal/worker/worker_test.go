package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/dispatcher"
	"github.com/OCAP2/featurex/internal/logging"
	"github.com/OCAP2/featurex/internal/storage/memory"
	"github.com/OCAP2/featurex/pkg/core"
)

const featureConfig = `{
	"groups": {"Marines": ["Terran.Marine"]},
	"pipeline": {"friendly": ["meta", {"kind": "unit_group", "friendly_filter": ["Marines"]}]}
}`

func writeReplay(t *testing.T, dir, source string, steps int) string {
	t.Helper()
	var sb strings.Builder
	fmt.Fprintf(&sb, `{"type":"replay","payload":{"source":%q,"players":1,"mapWidth":64,"mapHeight":64}}`+"\n", source)
	for i := 0; i < steps; i++ {
		fmt.Fprintf(&sb, `{"type":"step","payload":{"perspective":1,"episode":0,"step":%d,"units":[`+
			`{"tag":1,"unitType":"Terran.Marine","alliance":1,"owner":1,"pos":"10,10","health":45,"healthMax":45}]}}`+"\n", i)
	}
	path := filepath.Join(dir, source+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func newTestManager(t *testing.T, failFast bool) (*Manager, *memory.Backend) {
	t.Helper()
	cfg, err := config.ParseFeatureConfig([]byte(featureConfig))
	require.NoError(t, err)

	backend := memory.New(config.MemoryConfig{OutputDir: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, backend.Init())

	m, err := NewManager(Dependencies{Features: cfg, Parallel: 2, FailFast: failFast}, backend)
	require.NoError(t, err)
	return m, backend
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	m, backend := newTestManager(t, false)

	paths := []string{
		writeReplay(t, dir, "a.SC2Replay", 3),
		filepath.Join(dir, "missing.jsonl"),
		writeReplay(t, dir, "b.SC2Replay", 5),
	}
	summary, err := m.Process(context.Background(), paths, false)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 8, summary.Rows)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, "a.SC2Replay", summary.Results[0].Source)
	assert.Error(t, summary.Results[1].Err)
	assert.Equal(t, 5, summary.Results[2].Stats.Rows)

	assert.FileExists(t, backend.OutputPath("a.SC2Replay"))
	assert.FileExists(t, backend.OutputPath("b.SC2Replay"))
	assert.Len(t, backend.Written(), 2)
}

func TestProcess_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	m, backend := newTestManager(t, false)
	path := writeReplay(t, dir, "a.SC2Replay", 2)

	_, err := m.Process(context.Background(), []string{path}, false)
	require.NoError(t, err)

	summary, err := m.Process(context.Background(), []string{path}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.True(t, summary.Results[0].Skipped)
	assert.Len(t, backend.Written(), 1)

	summary, err = m.Process(context.Background(), []string{path}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Len(t, backend.Written(), 1, "rewritten files are listed once")
}

func TestProcess_FailFast(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, true)

	_, err := m.Process(context.Background(), []string{filepath.Join(dir, "missing.jsonl")}, false)
	assert.Error(t, err)
}

func TestProcess_Cancelled(t *testing.T) {
	dir := t.TempDir()
	m, backend := newTestManager(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := m.Process(ctx, []string{writeReplay(t, dir, "a.SC2Replay", 2)}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.ErrorIs(t, summary.Results[0].Err, context.Canceled)
	assert.Empty(t, backend.Written())
}

func TestBufferSink(t *testing.T) {
	var buf bufferSink
	assert.Error(t, buf.RecordRow(core.Row{1}))
	assert.Error(t, buf.flush(&bufferSink{}), "incomplete replays are not flushed")

	require.NoError(t, buf.StartReplay(core.ReplayInfo{Source: "a"}, nil))
	assert.Error(t, buf.StartReplay(core.ReplayInfo{Source: "b"}, nil))
	require.NoError(t, buf.RecordRow(core.Row{1}))
	require.NoError(t, buf.RecordRow(core.Row{2}))
	require.NoError(t, buf.EndReplay())
	assert.Error(t, buf.RecordRow(core.Row{3}))

	var target bufferSink
	require.NoError(t, buf.flush(&target))
	assert.Equal(t, "a", target.info.Source)
	assert.Equal(t, []core.Row{{1}, {2}}, target.rows)
	assert.True(t, target.ended)
}

// brokenSink rejects every row after the first.
type brokenSink struct {
	bufferSink
	aborted bool
}

func (s *brokenSink) RecordRow(row core.Row) error {
	if len(s.rows) > 0 {
		return errors.New("disk full")
	}
	return s.bufferSink.RecordRow(row)
}

type abortingSink struct{ brokenSink }

func (s *abortingSink) AbortReplay() error {
	s.aborted = true
	return nil
}

func TestBufferSink_FlushFailureClosesReplay(t *testing.T) {
	var buf bufferSink
	require.NoError(t, buf.StartReplay(core.ReplayInfo{Source: "a"}, nil))
	require.NoError(t, buf.RecordRow(core.Row{1}))
	require.NoError(t, buf.RecordRow(core.Row{2}))
	require.NoError(t, buf.EndReplay())

	t.Run("aborts when supported", func(t *testing.T) {
		target := &abortingSink{}
		err := buf.flush(target)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.True(t, target.aborted)
		assert.False(t, target.ended)
	})

	t.Run("ends otherwise", func(t *testing.T) {
		target := &brokenSink{}
		require.Error(t, buf.flush(target))
		assert.True(t, target.ended)
		assert.Equal(t, []core.Row{{1}}, target.rows)
	})
}

func newTestDispatcher(t *testing.T, m *Manager) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.NewSlogLogger(context.Background(), slog.Default()))
	require.NoError(t, err)
	m.RegisterHandlers(d)
	return d
}

func TestRegisterHandlers(t *testing.T) {
	m, _ := newTestManager(t, false)
	d := newTestDispatcher(t, m)

	names := make([]string, 0)
	for _, c := range d.Commands() {
		names = append(names, c.Name)
		assert.NotEmpty(t, c.Summary)
	}
	assert.Equal(t, []string{CommandDescribe, CommandExtract, CommandMerge, CommandValidate}, names)
}

func TestHandleExtract(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, false)
	d := newTestDispatcher(t, m)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, dispatcher.Event{Command: CommandExtract})
	assert.ErrorIs(t, err, ErrNoReplays)

	path := writeReplay(t, dir, "a.SC2Replay", 2)
	res, err := d.Dispatch(ctx, dispatcher.Event{Command: CommandExtract, Args: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(Summary).Processed)

	res, err = d.Dispatch(ctx, dispatcher.Event{Command: CommandExtract, Args: []string{"--force", path}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(Summary).Processed)

	res, err = d.Dispatch(ctx, dispatcher.Event{Command: CommandExtract, Args: []string{path, filepath.Join(dir, "nope")}})
	assert.ErrorIs(t, err, ErrReplaysFailed)
	assert.Equal(t, 1, res.(Summary).Skipped)
}

func TestHandleDescribeAndValidate(t *testing.T) {
	m, _ := newTestManager(t, false)
	d := newTestDispatcher(t, m)
	ctx := context.Background()

	res, err := d.Dispatch(ctx, dispatcher.Event{Command: CommandDescribe})
	require.NoError(t, err)
	var descs []core.FeatureDescriptor
	require.NoError(t, json.Unmarshal([]byte(res.(string)), &descs))
	require.NotEmpty(t, descs)
	assert.Equal(t, core.EpisodeColumn, descs[0].Name)
	assert.Equal(t, core.PartitionMeta, descs[0].Partition)

	res, err = d.Dispatch(ctx, dispatcher.Event{Command: CommandValidate})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("ok: %d columns", len(descs)), res)
}

func TestHandleValidate_ConfigurationError(t *testing.T) {
	cfg, err := config.ParseFeatureConfig([]byte(`{"pipeline": {"friendly": ["teleport"]}}`))
	require.NoError(t, err)
	m, err := NewManager(Dependencies{Features: cfg}, memory.New(config.MemoryConfig{OutputDir: t.TempDir()}))
	require.NoError(t, err)
	d := newTestDispatcher(t, m)

	_, err = d.Dispatch(context.Background(), dispatcher.Event{Command: CommandValidate})
	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestHandleMerge(t *testing.T) {
	dir := t.TempDir()
	m, backend := newTestManager(t, false)
	d := newTestDispatcher(t, m)
	ctx := context.Background()

	_, err := m.Process(ctx, []string{
		writeReplay(t, dir, "b.SC2Replay", 2),
		writeReplay(t, dir, "a.SC2Replay", 3),
	}, false)
	require.NoError(t, err)

	_, err = d.Dispatch(ctx, dispatcher.Event{Command: CommandMerge, Args: []string{"out.csv"}})
	assert.Error(t, err)

	out := filepath.Join(dir, "dataset.csv")
	res, err := d.Dispatch(ctx, dispatcher.Event{Command: CommandMerge, Args: append([]string{out}, backend.Written()...)})
	require.NoError(t, err)
	assert.Equal(t, "merged 5 rows into "+out, res)
	assert.FileExists(t, out)
}
