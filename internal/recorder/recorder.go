// Package recorder forwards simulator changes to a storage backend.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/storage"
	"github.com/farmassist/dronesim/pkg/core"
)

// CmdStore is the internal dispatcher command carrying recorder writes.
// All writes share one queue so a flight's start, states and end reach the
// backend in the order the simulator produced them.
const CmdStore = ":STORE:"

// DefaultQueueSize is used when Dependencies.QueueSize is not positive.
const DefaultQueueSize = 1000

type flightEvent struct {
	flight core.Flight
	ended  bool
}

// Dependencies holds all dependencies for the recorder.
type Dependencies struct {
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
	QueueSize  int
}

// Recorder implements sim.Observer. Observer calls only enqueue; a
// dispatcher worker performs the backend writes. Observer calls run under
// the simulator lock, so only flight boundaries wait for queue space. When
// a stalled backend fills the queue, snapshots and notifications are
// dropped and counted instead of freezing every command.
type Recorder struct {
	deps    Dependencies
	backend storage.Backend
	log     *slog.Logger

	mu     sync.RWMutex
	flight string
	counts Counts
}

// Counts tallies what reached the backend.
type Counts struct {
	Flights       int
	Snapshots     int
	Notifications int
	Failed        int
	Dropped       int
}

// New creates a recorder writing to backend.
func New(deps Dependencies, backend storage.Backend) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = DefaultQueueSize
	}
	return &Recorder{
		deps:    deps,
		backend: backend,
		log:     deps.Logger.With("component", "recorder"),
	}
}

// RegisterHandlers registers the store queue with the dispatcher. The
// queue blocks when full rather than losing flight boundaries.
func (r *Recorder) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdStore, r.handleStore, dispatcher.Buffered(r.deps.QueueSize), dispatcher.Blocking())
}

// CurrentFlight returns the ID of the flight being recorded, or "".
func (r *Recorder) CurrentFlight() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flight
}

// Counts returns the running totals.
func (r *Recorder) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts
}

func (r *Recorder) FlightStarted(f core.Flight) {
	r.mu.Lock()
	r.flight = f.ID
	r.mu.Unlock()
	r.enqueue(flightEvent{flight: f}, true)
}

func (r *Recorder) FlightEnded(f core.Flight) {
	r.mu.Lock()
	if r.flight == f.ID {
		r.flight = ""
	}
	r.mu.Unlock()
	r.enqueue(flightEvent{flight: f, ended: true}, true)
}

// SnapshotTaken queues snapshots that belong to a flight. States between
// flights are only of interest to live viewers.
func (r *Recorder) SnapshotTaken(s core.Snapshot) {
	if s.FlightID == "" {
		return
	}
	r.enqueue(s, false)
}

func (r *Recorder) Notified(n core.Notification) {
	r.enqueue(n, false)
}

func (r *Recorder) enqueue(payload any, wait bool) {
	_, err := r.deps.Dispatcher.Dispatch(dispatcher.Event{Command: CmdStore, Payload: payload, NoWait: !wait})
	switch {
	case err == nil, errors.Is(err, dispatcher.ErrClosed):
	case errors.Is(err, dispatcher.ErrQueueFull):
		r.count(func(c *Counts) { c.Dropped++ })
		r.log.Debug("Recorder queue full, dropping write", "payload", fmt.Sprintf("%T", payload))
	default:
		r.log.Warn("Failed to queue recorder write", "error", err)
	}
}

func (r *Recorder) handleStore(e dispatcher.Event) (any, error) {
	var err error
	switch p := e.Payload.(type) {
	case flightEvent:
		if p.ended {
			err = r.backend.EndFlight(&p.flight)
			if err == nil {
				r.log.Info("Flight recorded", "flight", p.flight.ID, "battery", p.flight.Battery)
				if exp, ok := r.backend.(storage.Exporter); ok {
					if path := exp.GetExportedFilePath(); path != "" {
						r.log.Info("Flight exported", "flight", p.flight.ID, "path", path)
					}
				}
			}
		} else {
			err = r.backend.StartFlight(&p.flight)
			if err == nil {
				r.count(func(c *Counts) { c.Flights++ })
			}
		}
	case core.Snapshot:
		err = r.backend.RecordSnapshot(&p)
		if err == nil {
			r.count(func(c *Counts) { c.Snapshots++ })
		}
	case core.Notification:
		err = r.backend.RecordNotification(&p)
		if err == nil {
			r.count(func(c *Counts) { c.Notifications++ })
		}
	default:
		return nil, fmt.Errorf("unexpected payload %T", e.Payload)
	}

	if err != nil {
		r.count(func(c *Counts) { c.Failed++ })
		return nil, fmt.Errorf("storing %T: %w", e.Payload, err)
	}
	return nil, nil
}

func (r *Recorder) count(fn func(*Counts)) {
	r.mu.Lock()
	fn(&r.counts)
	r.mu.Unlock()
}
