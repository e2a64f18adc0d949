// Package influxstorage records flight telemetry as InfluxDB time series.
package influxstorage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/influx"
	"github.com/farmassist/dronesim/pkg/core"
)

const connectTimeout = 5 * time.Second

// Backend writes one point per snapshot, notification and flight boundary.
type Backend struct {
	manager *influx.Manager
}

// New creates an influx backend. backupPath receives gzipped line protocol
// when the server is unreachable.
func New(cfg config.InfluxConfig, backupPath string, log zerolog.Logger) *Backend {
	return &Backend{manager: influx.NewManager(cfg, backupPath, log)}
}

// Manager exposes the underlying connection.
func (b *Backend) Manager() *influx.Manager {
	return b.manager
}

func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return b.manager.Connect(ctx)
}

func (b *Backend) Close() error {
	return b.manager.Close()
}

func (b *Backend) StartFlight(f *core.Flight) error {
	return b.manager.WritePoint(influx.FlightPoint(*f, false))
}

// EndFlight writes the closing point and flushes so a finished flight is
// fully visible.
func (b *Backend) EndFlight(f *core.Flight) error {
	if err := b.manager.WritePoint(influx.FlightPoint(*f, true)); err != nil {
		return err
	}
	return b.manager.Flush()
}

func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	return b.manager.WritePoint(influx.SnapshotPoint(*s))
}

func (b *Backend) RecordNotification(n *core.Notification) error {
	return b.manager.WritePoint(influx.NotificationPoint(*n))
}
