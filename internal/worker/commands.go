package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/OCAP2/featurex/internal/dispatcher"
	"github.com/OCAP2/featurex/internal/parser"
	"github.com/OCAP2/featurex/internal/pipeline"
	"github.com/OCAP2/featurex/internal/storage/memory"
	"github.com/OCAP2/featurex/pkg/core"
)

// Command names.
const (
	CommandExtract  = "extract"
	CommandDescribe = "describe"
	CommandValidate = "validate"
	CommandMerge    = "merge"
)

var (
	// ErrNoReplays is returned by extract when no file is given.
	ErrNoReplays = errors.New("no replay files provided")
	// ErrReplaysFailed is returned by extract when any replay failed.
	ErrReplaysFailed = errors.New("replays failed")
)

// RegisterHandlers registers the replay commands with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CommandExtract, m.handleExtract,
		dispatcher.Logged(), dispatcher.Summary("extract [--force] <replay files...>"))
	d.Register(CommandDescribe, m.handleDescribe,
		dispatcher.Logged(), dispatcher.Summary("describe [replay file]: print the feature descriptors"))
	d.Register(CommandValidate, m.handleValidate,
		dispatcher.Logged(), dispatcher.Summary("validate: check the feature configuration"))
	d.Register(CommandMerge, handleMerge,
		dispatcher.Logged(), dispatcher.Summary("merge <output> <csv files...>"))
}

func (m *Manager) handleExtract(ctx context.Context, e dispatcher.Event) (any, error) {
	force := false
	paths := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		switch strings.ToLower(arg) {
		case "--force", "-f":
			force = true
		default:
			paths = append(paths, arg)
		}
	}
	if len(paths) == 0 {
		return nil, ErrNoReplays
	}

	summary, err := m.Process(ctx, paths, force)
	if err != nil {
		return summary, err
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d", ErrReplaysFailed, summary.Failed, len(paths))
	}
	return summary, nil
}

// handleDescribe returns the descriptors as indented JSON. With a replay
// argument, numeric ranges are derived from that replay's environment.
func (m *Manager) handleDescribe(_ context.Context, e dispatcher.Event) (any, error) {
	var info core.ReplayInfo
	if len(e.Args) > 0 {
		p, err := parser.Open(e.Args[0], m.deps.Logger)
		if err != nil {
			return nil, err
		}
		info = p.Info()
		p.Close()
	}
	pl, err := pipeline.New(m.deps.Features, info)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(pl.Descriptors(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal descriptors: %w", err)
	}
	return string(data), nil
}

func (m *Manager) handleValidate(_ context.Context, _ dispatcher.Event) (any, error) {
	pl, err := pipeline.New(m.deps.Features, core.ReplayInfo{})
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("ok: %d columns", len(pl.Labels())), nil
}

func handleMerge(_ context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) < 2 {
		return nil, errors.New("usage: merge <output> <csv files...>")
	}
	out := e.Args[0]
	compress := strings.HasSuffix(out, ".gz")
	n, err := memory.Merge(e.Args[1:], out, compress)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("merged %d rows into %s", n, out), nil
}
