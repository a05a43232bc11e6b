// Package memory implements a file sink that buffers the rows of a replay in
// memory and writes one CSV file per replay.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/pkg/core"
)

// DescriptorsFile is the descriptor artifact written next to the CSV files.
const DescriptorsFile = "feature_descriptors.json"

// DatasetName is the base name of the merged dataset.
const DatasetName = "all-features"

// replayRecord groups a replay with its buffered rows
type replayRecord struct {
	Info core.ReplayInfo
	Rows []core.Row
}

// Backend writes feature rows to CSV files.
type Backend struct {
	cfg config.MemoryConfig

	labels      []string
	descriptors []core.FeatureDescriptor
	current     *replayRecord
	written     []string

	mu sync.Mutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init creates the output directory.
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close merges the files written during this run into the dataset when
// merging is enabled.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cfg.MergeDataset || len(b.written) == 0 {
		return nil
	}
	_, err := Merge(b.written, b.DatasetPath(), b.cfg.CompressOutput)
	return err
}

// StartReplay begins buffering a replay. Every replay of a run must share
// the columns of the first one.
func (b *Backend) StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		return fmt.Errorf("replay %s still open", b.current.Info.Source)
	}
	labels := core.Labels(descriptors)
	if b.labels == nil {
		if err := writeDescriptors(filepath.Join(b.cfg.OutputDir, DescriptorsFile), descriptors); err != nil {
			return err
		}
		b.labels = labels
		b.descriptors = descriptors
	} else if !slices.Equal(b.labels, labels) {
		return fmt.Errorf("feature columns of %s differ from the first replay of the run", info.Source)
	}

	b.current = &replayRecord{Info: info}
	return nil
}

// RecordRow buffers one row of the open replay.
func (b *Backend) RecordRow(row core.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return fmt.Errorf("no replay started")
	}
	if len(row) != len(b.labels) {
		return fmt.Errorf("row has %d values, expected %d", len(row), len(b.labels))
	}
	b.current.Rows = append(b.current.Rows, slices.Clone(row))
	return nil
}

// EndReplay writes the buffered rows of the open replay.
func (b *Backend) EndReplay() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return fmt.Errorf("no replay started")
	}
	record := b.current
	b.current = nil

	path := b.OutputPath(record.Info.Source)
	if err := writeCSV(path, b.labels, record.Rows); err != nil {
		return err
	}
	if !slices.Contains(b.written, path) {
		b.written = append(b.written, path)
	}
	return nil
}

// AbortReplay drops the buffered rows of the open replay.
func (b *Backend) AbortReplay() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return fmt.Errorf("no replay started")
	}
	b.current = nil
	return nil
}

// Exists reports whether the output of the replay is already on disk.
func (b *Backend) Exists(source string) bool {
	_, err := os.Stat(b.OutputPath(source))
	return err == nil
}

// OutputPath returns the CSV path of a replay.
func (b *Backend) OutputPath(source string) string {
	return filepath.Join(b.cfg.OutputDir, replayName(source)+b.extension())
}

// DatasetPath returns the path of the merged dataset.
func (b *Backend) DatasetPath() string {
	return filepath.Join(b.cfg.OutputDir, DatasetName+b.extension())
}

// Written returns the files written so far, in order.
func (b *Backend) Written() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.written)
}

func (b *Backend) extension() string {
	if b.cfg.CompressOutput {
		return ".csv.gz"
	}
	return ".csv"
}
