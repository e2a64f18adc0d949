// Package influx writes flight telemetry to InfluxDB, falling back to a
// gzipped line-protocol file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/pkg/core"
)

// Measurement names.
const (
	MeasurementTelemetry    = "drone_telemetry"
	MeasurementNotification = "drone_notification"
	MeasurementFlight       = "drone_flight"
)

// retention for the telemetry bucket
const retentionSeconds = 60 * 60 * 24 * 90

// ErrNotConnected is returned by WritePoint before Connect succeeded.
var ErrNotConnected = errors.New("influxDB client not initialized and backup writer not available")

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	logger     zerolog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
}

// NewManager creates an InfluxDB manager. backupPath receives line protocol
// when the server is unreachable; leave it empty to fail instead.
func NewManager(cfg config.InfluxConfig, backupPath string, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		backupPath: backupPath,
		logger:     log.With().Str("component", "influx").Logger(),
	}
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.client.Close()
		m.client = nil
		if m.backupPath == "" {
			return fmt.Errorf("influxDB unreachable at %s: %v", m.cfg.URL, err)
		}
		m.logger.Info().Str("backupPath", m.backupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info().Str("url", m.cfg.URL).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err = m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}

	return nil
}

// Valid reports whether points go to the server rather than the backup file.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return ErrNotConnected
	}

	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Flush pushes buffered points out.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.Flush()
		return nil
	}
	if m.backupWriter != nil {
		return m.backupWriter.Flush()
	}
	return nil
}

// Close flushes and releases the client or backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.client != nil {
		if m.writer != nil {
			m.writer.Flush()
		}
		m.client.Close()
		m.client = nil
	}
	if m.backupWriter != nil {
		errs = append(errs, m.backupWriter.Close())
		errs = append(errs, m.backupFile.Close())
		m.backupWriter = nil
		m.backupFile = nil
	}
	m.valid = false
	return errors.Join(errs...)
}

// SnapshotPoint converts a snapshot into a telemetry point.
func SnapshotPoint(s core.Snapshot) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementTelemetry).
		AddTag("power", s.Power.String()).
		AddTag("field", string(s.Game.FieldType)).
		AddField("seq", int64(s.Seq)).
		AddField("x", s.Position.X).
		AddField("y", s.Position.Y).
		AddField("altitude", s.Position.Altitude).
		AddField("heading", s.Position.Heading()).
		AddField("battery", s.Game.BatteryLevel).
		AddField("score", s.Game.Score).
		AddField("speed", s.Speed).
		AddField("recording", s.IsRecording).
		SetTime(s.Time)
	if s.FlightID != "" {
		p.AddTag("flight", s.FlightID)
	}
	return p
}

// NotificationPoint converts a notification into an event point.
func NotificationPoint(n core.Notification) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementNotification).
		AddTag("kind", n.Kind).
		AddTag("level", string(n.Level)).
		AddField("seq", int64(n.Seq)).
		AddField("message", n.Message).
		SetTime(n.Time)
	if n.FlightID != "" {
		p.AddTag("flight", n.FlightID)
	}
	if reason, ok := n.Data["reason"].(string); ok {
		p.AddTag("reason", reason)
	}
	return p
}

// FlightPoint marks a flight boundary. ended is false at power-on.
func FlightPoint(f core.Flight, ended bool) *influxdb2_write.Point {
	at := f.StartTime
	if ended {
		at = f.EndTime
	}
	return influxdb2_write.NewPointWithMeasurement(MeasurementFlight).
		AddTag("flight", f.ID).
		AddField("mission", f.Mission).
		AddField("battery", f.Battery).
		AddField("ended", ended).
		SetTime(at)
}
