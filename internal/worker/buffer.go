package worker

import (
	"errors"

	"github.com/OCAP2/featurex/internal/pipeline"
	"github.com/OCAP2/featurex/internal/storage"
	"github.com/OCAP2/featurex/pkg/core"
)

// bufferSink holds the output of one pipeline run until it can be written
// to the shared backend in one piece.
type bufferSink struct {
	info        core.ReplayInfo
	descriptors []core.FeatureDescriptor
	rows        []core.Row
	started     bool
	ended       bool
}

func (b *bufferSink) StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error {
	if b.started {
		return errors.New("replay already started")
	}
	b.info = info
	b.descriptors = descriptors
	b.started = true
	return nil
}

func (b *bufferSink) RecordRow(row core.Row) error {
	if !b.started || b.ended {
		return errors.New("no replay started")
	}
	b.rows = append(b.rows, row)
	return nil
}

func (b *bufferSink) EndReplay() error {
	if !b.started || b.ended {
		return errors.New("no replay started")
	}
	b.ended = true
	return nil
}

// flush replays the buffered calls on sink. A replay that fails midway is
// closed before returning, so the next replay starts on a clean sink.
func (b *bufferSink) flush(sink pipeline.Sink) error {
	if !b.ended {
		return errors.New("replay not complete")
	}
	if err := sink.StartReplay(b.info, b.descriptors); err != nil {
		return err
	}
	for _, row := range b.rows {
		if err := sink.RecordRow(row); err != nil {
			return errors.Join(err, abort(sink))
		}
	}
	return sink.EndReplay()
}

func abort(sink pipeline.Sink) error {
	if a, ok := sink.(storage.Aborter); ok {
		return a.AbortReplay()
	}
	return sink.EndReplay()
}
