// Package monitor reports process status: the drone summary, recorder
// totals and ticker state, served over HTTP and written to a status file.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/farmassist/dronesim/internal/recorder"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/pkg/core"
)

// StatusFileName is written in Dependencies.OutputDir.
const StatusFileName = "status.json"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Sim       *sim.Simulator
	Runner    *sim.Runner        // optional
	Recorder  *recorder.Recorder // optional
	Clock     clock.Clock
	Logger    *slog.Logger
	OutputDir string
	Interval  time.Duration
}

// Status is one status report.
type Status struct {
	Time         time.Time        `json:"time"`
	Uptime       string           `json:"uptime"`
	Flight       string           `json:"flight,omitempty"`
	Power        core.PowerState  `json:"power"`
	Battery      float64          `json:"battery"`
	Score        int              `json:"score"`
	Field        core.FieldType   `json:"field"`
	SnapshotSeq  uint64           `json:"snapshotSeq"`
	TickerActive bool             `json:"tickerActive"`
	Ticks        uint64           `json:"ticks"`
	Recorder     *recorder.Counts `json:"recorder,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	started time.Time

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:    deps,
		started: deps.Clock.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current status.
func (s *Service) Status() Status {
	now := s.deps.Clock.Now()
	snap := s.deps.Sim.Snapshot()

	st := Status{
		Time:        now,
		Uptime:      now.Sub(s.started).Truncate(time.Second).String(),
		Flight:      snap.FlightID,
		Power:       snap.Power,
		Battery:     snap.Game.BatteryLevel,
		Score:       snap.Game.Score,
		Field:       snap.Game.FieldType,
		SnapshotSeq: snap.Seq,
	}
	if s.deps.Runner != nil {
		st.TickerActive = s.deps.Runner.Active()
		st.Ticks = s.deps.Runner.Ticks()
	}
	if s.deps.Recorder != nil {
		c := s.deps.Recorder.Counts()
		st.Recorder = &c
	}
	return st
}

// WriteStatus writes the current status to the status file.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.deps.OutputDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.deps.OutputDir, StatusFileName), data, 0644)
}

// Start starts the status monitor goroutine. Without an output directory
// there is nothing to write and Start is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning || s.deps.OutputDir == "" {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	ticker := s.deps.Clock.Ticker(s.deps.Interval)
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger.With("component", "monitor")
		logger.Debug("Starting status monitor", "dir", s.deps.OutputDir, "interval", s.deps.Interval)

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
