// Package parser decodes replay files: a "replay" header envelope followed
// by one "step" envelope per observation, one JSON document per line.
package parser

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/OCAP2/featurex/pkg/core"
	"github.com/OCAP2/featurex/pkg/streaming"
)

// ErrNoReplayHeader is returned when a stream does not start with a replay
// envelope.
var ErrNoReplayHeader = errors.New("stream does not start with a replay header")

// Parser reads the steps of one replay.
type Parser struct {
	logger *slog.Logger
	dec    *json.Decoder
	closer io.Closer
	info   core.ReplayInfo
	record int
}

// Open opens a replay file. Files ending in ".gz" are decompressed.
func Open(path string, logger *slog.Logger) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	var r io.Reader = bufio.NewReader(f)
	closer := io.Closer(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		r = gz
		closer = multiCloser{gz, f}
	}
	p, err := NewParser(r, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.info.Source == "" {
		p.info.Source = path
	}
	p.closer = closer
	return p, nil
}

// NewParser reads the replay header from r.
func NewParser(r io.Reader, logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{logger: logger, dec: json.NewDecoder(r)}
	env, err := p.envelope()
	if errors.Is(err, io.EOF) || (err == nil && env.Type != streaming.TypeReplay) {
		return nil, ErrNoReplayHeader
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Payload, &p.info); err != nil {
		return nil, fmt.Errorf("error unmarshalling replay header: %w", err)
	}
	if p.info.Players == 0 {
		p.info.Players = 1
	}
	p.logger.Debug("Parsed replay header",
		"source", p.info.Source,
		"players", p.info.Players,
		"srid", p.info.SRID)
	return p, nil
}

// Info returns the replay header.
func (p *Parser) Info() core.ReplayInfo {
	return p.info
}

// Next returns the next step, or io.EOF after the last one. Envelopes of
// other types are skipped.
func (p *Parser) Next() (core.Step, error) {
	for {
		env, err := p.envelope()
		if err != nil {
			return core.Step{}, err
		}
		if env.Type != streaming.TypeStep {
			p.logger.Debug("Skipping envelope", "type", env.Type, "record", p.record)
			continue
		}
		var payload streaming.StepPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return core.Step{}, fmt.Errorf("record %d: error unmarshalling step: %w", p.record, err)
		}
		step, err := ParseStep(payload, p.info.SRID)
		if err != nil {
			return core.Step{}, fmt.Errorf("record %d: %w", p.record, err)
		}
		return step, nil
	}
}

// Close releases the underlying file, if any.
func (p *Parser) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *Parser) envelope() (streaming.Envelope, error) {
	var env streaming.Envelope
	if err := p.dec.Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return env, io.EOF
		}
		return env, fmt.Errorf("record %d: error decoding envelope: %w", p.record+1, err)
	}
	p.record++
	return env, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
