// Package monitor reports the progress of a running extraction to the log
// and, optionally, to a status file that is rewritten on every tick.
package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/featurex/internal/worker"
)

// ProgressSource is implemented by worker.Manager.
type ProgressSource interface {
	Progress() worker.Progress
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     ProgressSource
	Logger     *slog.Logger
	StatusPath string
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status renders the progress as status file lines.
func Status(p worker.Progress, elapsed time.Duration) []string {
	return []string{
		fmt.Sprintf("Elapsed: %s", elapsed.Truncate(time.Second)),
		fmt.Sprintf("Queued: %d", p.Queued),
		fmt.Sprintf("Active: %d", p.Active),
		fmt.Sprintf("Done: %d", p.Done),
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		start := time.Now()
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				s.write(statusFile, time.Since(start))
				return
			case <-ticker.C:
				p := s.write(statusFile, time.Since(start))
				logger.Info("Extraction progress", "queued", p.Queued, "active", p.Active, "done", p.Done)
			}
		}
	}()

	return nil
}

func (s *Service) write(statusFile *os.File, elapsed time.Duration) worker.Progress {
	p := s.deps.Source.Progress()
	if statusFile == nil {
		return p
	}
	statusFile.Truncate(0)
	statusFile.Seek(0, 0)
	for _, line := range Status(p, elapsed) {
		statusFile.WriteString(line + "\n")
	}
	return p
}

// Stop stops the status monitor and waits for the final status write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}
