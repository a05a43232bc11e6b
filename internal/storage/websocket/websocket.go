// Package websocket streams feature rows to a remote collector as envelopes
// over a WebSocket connection.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/featurex/pkg/core"
	"github.com/OCAP2/featurex/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams rows over WebSocket. Replay boundaries are acknowledged by
// the server; rows in between are not.
type Backend struct {
	conn   *connection
	cfg    Config
	source string
	rows   int
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartReplay sends the replay and its columns and waits for server ack.
func (b *Backend) StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error {
	if b.source != "" {
		return fmt.Errorf("replay %s still open", b.source)
	}
	data, err := marshalEnvelope(streaming.TypeStartReplay, streaming.StartReplayPayload{Replay: info, Descriptors: descriptors})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	if err := b.conn.sendAndWait(data, streaming.TypeStartReplay, ackTimeout); err != nil {
		return err
	}
	b.source = info.Source
	b.rows = 0
	return nil
}

// RecordRow queues one row for sending.
func (b *Backend) RecordRow(row core.Row) error {
	if b.source == "" {
		return errors.New("no replay started")
	}
	data, err := marshalEnvelope(streaming.TypeFeatureRow, streaming.FeatureRowPayload{Source: b.source, Values: row.Portable()})
	if err != nil {
		return err
	}
	if err := b.conn.send(data); err != nil {
		return err
	}
	b.rows++
	return nil
}

// EndReplay sends end_replay and waits for server ack.
func (b *Backend) EndReplay() error {
	if b.source == "" {
		return errors.New("no replay started")
	}
	data, err := marshalEnvelope(streaming.TypeEndReplay, streaming.EndReplayPayload{Source: b.source, Rows: b.rows})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndReplay, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()
	b.source = ""

	return err
}
