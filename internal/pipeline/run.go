package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/OCAP2/featurex/pkg/core"
)

// Stream yields the steps of one replay in order. Next returns io.EOF after
// the last step.
type Stream interface {
	Info() core.ReplayInfo
	Next() (core.Step, error)
}

// Sink receives the rows of a replay once every step has been folded.
type Sink interface {
	StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error
	RecordRow(row core.Row) error
	EndReplay() error
}

// Stats summarises one run.
type Stats struct {
	Steps   int
	Sampled int
	Rows    int
	Dropped int
}

// StepError locates an extraction failure inside a replay.
type StepError struct {
	Source  string
	Side    core.Side
	Episode int
	Step    int
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s episode %d step %d: %v", e.Source, e.Side, e.Episode, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type episodeKey struct {
	perspective int
	episode     int
}

// Run folds stream through p and hands the assembled rows to sink. Steps whose
// index is not a multiple of the sample interval are skipped, and each side is
// reset at the first sampled step of every (perspective, episode). Nothing is
// written to sink when the context is cancelled or an extractor fails.
func Run(ctx context.Context, p *Pipeline, stream Stream, sink Sink) (Stats, error) {
	var stats Stats
	info := stream.Info()
	asm := NewAssembler(p)
	started := make(map[episodeKey]bool)
	interval := p.SampleInterval()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		step, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%s: reading step: %w", info.Source, err)
		}
		stats.Steps++

		side := p.Side(step.Perspective)
		if !p.HasSide(side) {
			continue
		}
		if step.Index%interval != 0 {
			continue
		}
		key := episodeKey{step.Perspective, step.Episode}
		if !started[key] {
			p.Reset(side, &step.Observation)
			started[key] = true
		}
		stats.Sampled++

		values, err := p.Extract(side, step.Episode, step.Index, &step.Observation)
		if err != nil {
			return stats, &StepError{Source: info.Source, Side: side, Episode: step.Episode, Step: step.Index, Err: err}
		}
		asm.Add(side, step.Episode, step.Index, values)
	}

	rows := asm.Rows()
	stats.Dropped = asm.Dropped()
	if err := sink.StartReplay(info, p.Descriptors()); err != nil {
		return stats, fmt.Errorf("%s: starting replay: %w", info.Source, err)
	}
	for _, row := range rows {
		if err := sink.RecordRow(row); err != nil {
			return stats, fmt.Errorf("%s: recording row: %w", info.Source, err)
		}
		stats.Rows++
	}
	if err := sink.EndReplay(); err != nil {
		return stats, fmt.Errorf("%s: ending replay: %w", info.Source, err)
	}
	return stats, nil
}
