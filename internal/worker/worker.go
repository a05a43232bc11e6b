// Package worker extracts features from replay files in parallel and hands
// the rows of every replay to the storage backend.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/internal/logging"
	"github.com/OCAP2/featurex/internal/parser"
	"github.com/OCAP2/featurex/internal/pipeline"
	"github.com/OCAP2/featurex/internal/storage"
)

const instrumentationName = "github.com/OCAP2/featurex/internal/worker"

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Features *config.FeatureConfig
	Logger   *slog.Logger
	Parallel int
	FailFast bool
}

// Result is the outcome of one replay file.
type Result struct {
	Path     string
	Source   string
	Stats    pipeline.Stats
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Summary aggregates the results of a Process call, in input order.
type Summary struct {
	Results   []Result
	Processed int
	Skipped   int
	Failed    int
	Rows      int
}

// Manager runs one pipeline per replay on a bounded pool of goroutines.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	// serialises writes to the backend so replays never interleave
	mu sync.Mutex

	active    atomic.Int64
	queued    atomic.Int64
	done      atomic.Int64
	processed metric.Int64Counter
	failed    metric.Int64Counter
	rows      metric.Int64Counter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) (*Manager, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parallel <= 0 {
		deps.Parallel = runtime.NumCPU()
	}
	m := &Manager{deps: deps, backend: backend}

	meter := otel.Meter(instrumentationName)
	var err error
	m.processed, err = meter.Int64Counter(
		"worker.replays.processed",
		metric.WithDescription("Replays extracted and stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	m.failed, err = meter.Int64Counter(
		"worker.replays.failed",
		metric.WithDescription("Replays that could not be extracted or stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	m.rows, err = meter.Int64Counter(
		"worker.rows.emitted",
		metric.WithDescription("Feature rows handed to the storage backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rows counter: %w", err)
	}
	_, err = meter.Int64ObservableGauge(
		"worker.replays.active",
		metric.WithDescription("Replays currently being extracted"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.active.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active gauge: %w", err)
	}
	return m, nil
}

// Process extracts every replay in paths. Replays the backend already holds
// are skipped unless force is set. A failing replay does not stop the others
// unless FailFast is set, in which case the first error is returned.
func (m *Manager) Process(ctx context.Context, paths []string, force bool) (Summary, error) {
	results := make([]Result, len(paths))
	m.queued.Add(int64(len(paths)))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.deps.Parallel)

	for i, path := range paths {
		g.Go(func() error {
			results[i] = m.processOne(gctx, path, force)
			m.queued.Add(-1)
			m.done.Add(1)
			if err := results[i].Err; err != nil && m.deps.FailFast {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	summary := Summary{Results: results}
	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Err != nil:
			summary.Failed++
		default:
			summary.Processed++
			summary.Rows += r.Stats.Rows
		}
	}
	return summary, err
}

// Progress is a snapshot of the replays handled by a Manager.
type Progress struct {
	Queued int64
	Active int64
	Done   int64
}

// Progress returns the current counts. Queued includes active replays.
func (m *Manager) Progress() Progress {
	return Progress{
		Queued: m.queued.Load(),
		Active: m.active.Load(),
		Done:   m.done.Load(),
	}
}

func (m *Manager) processOne(ctx context.Context, path string, force bool) Result {
	res := Result{Path: path}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	start := time.Now()
	m.active.Add(1)
	defer m.active.Add(-1)

	res.Source, res.Stats, res.Skipped, res.Err = m.extract(ctx, path, force)
	res.Duration = time.Since(start)

	log := m.deps.Logger
	lctx := logging.WithReplay(ctx, res.Source)
	switch {
	case res.Skipped:
		log.InfoContext(lctx, "Skipping replay already stored", "path", path)
	case res.Err != nil:
		m.failed.Add(ctx, 1)
		log.ErrorContext(lctx, "Replay failed", "path", path, "error", res.Err)
	default:
		m.processed.Add(ctx, 1)
		m.rows.Add(ctx, int64(res.Stats.Rows))
		log.InfoContext(lctx, "Replay extracted",
			"steps", res.Stats.Steps,
			"sampled", res.Stats.Sampled,
			"rows", res.Stats.Rows,
			"dropped", res.Stats.Dropped,
			"duration", res.Duration)
	}
	return res
}

func (m *Manager) extract(ctx context.Context, path string, force bool) (string, pipeline.Stats, bool, error) {
	p, err := parser.Open(path, m.deps.Logger)
	if err != nil {
		return "", pipeline.Stats{}, false, err
	}
	defer p.Close()

	info := p.Info()
	if !force && m.exists(info.Source) {
		return info.Source, pipeline.Stats{}, true, nil
	}

	pl, err := pipeline.New(m.deps.Features, info)
	if err != nil {
		return info.Source, pipeline.Stats{}, false, err
	}
	var buf bufferSink
	stats, err := pipeline.Run(ctx, pl, p, &buf)
	if err != nil {
		return info.Source, stats, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := buf.flush(m.backend); err != nil {
		return info.Source, stats, false, fmt.Errorf("%s: storing rows: %w", info.Source, err)
	}
	return info.Source, stats, false, nil
}

func (m *Manager) exists(source string) bool {
	c, ok := m.backend.(storage.Checker)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return c.Exists(source)
}
