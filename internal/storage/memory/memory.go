// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/pkg/core"
)

// FlightRecord groups a flight with all its time-series data
type FlightRecord struct {
	Flight        core.Flight
	StartBattery  float64
	Snapshots     []core.Snapshot
	Notifications []core.Notification
}

// Backend stores flights in memory and exports each one to JSON when it ends
type Backend struct {
	cfg config.MemoryConfig

	flights map[string]*FlightRecord
	order   []string

	// notifications raised while no flight was active (rejections while off)
	unattached []core.Notification

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		flights: make(map[string]*FlightRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartFlight begins recording a new flight
func (b *Backend) StartFlight(f *core.Flight) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.flights[f.ID]; !ok {
		b.order = append(b.order, f.ID)
	}
	b.flights[f.ID] = &FlightRecord{
		Flight:        *f,
		StartBattery:  f.Battery,
		Snapshots:     make([]core.Snapshot, 0),
		Notifications: make([]core.Notification, 0),
	}
	return nil
}

// EndFlight finalizes the flight and exports it when an output directory is set
func (b *Backend) EndFlight(f *core.Flight) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.flights[f.ID]
	if !ok {
		return nil
	}
	record.Flight.EndTime = f.EndTime
	record.Flight.Battery = f.Battery

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(record)
}

// RecordSnapshot records a snapshot of an active flight
func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.flights[s.FlightID]; ok {
		record.Snapshots = append(record.Snapshots, *s)
	}
	return nil
}

// RecordNotification records a notification
func (b *Backend) RecordNotification(n *core.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.flights[n.FlightID]; ok {
		record.Notifications = append(record.Notifications, *n)
		return nil
	}
	b.unattached = append(b.unattached, *n)
	return nil
}

// GetFlight returns a copy of the recorded flight
func (b *Backend) GetFlight(id string) (FlightRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.flights[id]
	if !ok {
		return FlightRecord{}, false
	}
	return FlightRecord{
		Flight:        record.Flight,
		StartBattery:  record.StartBattery,
		Snapshots:     append([]core.Snapshot(nil), record.Snapshots...),
		Notifications: append([]core.Notification(nil), record.Notifications...),
	}, true
}

// Flights returns every flight in start order
func (b *Backend) Flights() []core.Flight {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Flight, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.flights[id].Flight)
	}
	return out
}

// Unattached returns notifications recorded outside any flight
func (b *Backend) Unattached() []core.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Notification(nil), b.unattached...)
}

// GetExportedFilePath returns the path of the last exported flight
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
