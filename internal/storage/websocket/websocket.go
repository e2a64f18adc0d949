// Package websocket streams flights to a remote collector.
package websocket

import (
	"log/slog"
	"time"

	"github.com/farmassist/dronesim/pkg/core"
	"github.com/farmassist/dronesim/pkg/streaming"
)

// DefaultAckTimeout bounds the wait for flight boundary acks.
const DefaultAckTimeout = 10 * time.Second

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// Backend streams flight data over WebSocket. Flight boundaries wait for
// an ack; snapshots and notifications are fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the collector.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the collector.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were discarded on a full send queue.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartFlight announces the flight and waits for the ack.
func (b *Backend) StartFlight(f *core.Flight) error {
	data, err := streaming.Marshal(streaming.TypeStartFlight, streaming.FlightPayload{Flight: f})
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.activeFlight = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartFlight, b.cfg.AckTimeout)
}

// EndFlight closes the flight and waits for the ack.
func (b *Backend) EndFlight(f *core.Flight) error {
	data, err := streaming.Marshal(streaming.TypeEndFlight, streaming.FlightPayload{Flight: f})
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.activeFlight = nil
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeEndFlight, b.cfg.AckTimeout)
}

func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	return b.sendEnvelope(streaming.TypeSnapshot, s)
}

func (b *Backend) RecordNotification(n *core.Notification) error {
	return b.sendEnvelope(streaming.TypeNotification, n)
}
