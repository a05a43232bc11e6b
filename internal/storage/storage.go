// Package storage defines the feature sinks rows are written to.
package storage

import "github.com/OCAP2/featurex/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Replay management. Rows are recorded between StartReplay and
	// EndReplay, in row order, and every value aligns with the descriptors.
	StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error
	RecordRow(row core.Row) error
	EndReplay() error
}

// Checker is an optional interface for backends that can tell whether a
// replay has already been stored, so reruns can skip it.
type Checker interface {
	Exists(source string) bool
}

// Aborter is an optional interface for backends that can discard an open
// replay without storing it as complete.
type Aborter interface {
	AbortReplay() error
}
