// Package gormstorage implements the storage.Backend interface on top of a
// GORM connection. Flight rows are written synchronously; snapshots and
// notifications are buffered and inserted in batches by a writer goroutine.
package gormstorage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/model"
	"github.com/farmassist/dronesim/internal/model/convert"
	"github.com/farmassist/dronesim/pkg/core"
)

// Defaults for Dependencies.
const (
	DefaultFlushInterval = time.Second
	DefaultBatchSize     = 500
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Georef        geo.Georef
	Logger        *slog.Logger
	FlushInterval time.Duration
	BatchSize     int
}

type flightTrack struct {
	positions []core.Position
	snapshots uint
	score     int
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
	log  *slog.Logger

	mu            sync.Mutex
	snapshots     []model.Snapshot
	notifications []model.Notification
	tracks        map[string]*flightTrack

	writeMu  sync.Mutex // serializes batch inserts with flight updates
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:   deps,
		log:    deps.Logger.With("component", "gorm"),
		tracks: make(map[string]*flightTrack),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend requires a database")
	}
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	return b.Flush()
}

func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error("batch write failed", "error", err)
			}
		}
	}
}

// StartFlight inserts the flight row.
func (b *Backend) StartFlight(f *core.Flight) error {
	row, err := convert.CoreToFlight(*f, b.deps.Georef)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.tracks[f.ID] = &flightTrack{positions: []core.Position{f.Start}}
	b.mu.Unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("insert flight %s: %w", f.ID, err)
	}
	return nil
}

// EndFlight flushes the flight's buffered rows and closes the flight row
// with its path and totals.
func (b *Backend) EndFlight(f *core.Flight) error {
	if err := b.Flush(); err != nil {
		return err
	}

	b.mu.Lock()
	track := b.tracks[f.ID]
	delete(b.tracks, f.ID)
	b.mu.Unlock()

	updates := map[string]any{
		"end_time":    sql.NullTime{Time: f.EndTime, Valid: !f.EndTime.IsZero()},
		"end_battery": f.Battery,
	}
	if track != nil {
		updates["snapshot_count"] = track.snapshots
		updates["final_score"] = track.score
		if path, err := b.deps.Georef.Track(track.positions); err == nil {
			updates["path"] = path
		}
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.deps.DB.Model(&model.Flight{ID: f.ID}).Updates(updates).Error; err != nil {
		return fmt.Errorf("update flight %s: %w", f.ID, err)
	}
	return nil
}

// RecordSnapshot buffers a snapshot. Snapshots outside a flight are skipped.
func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	if s.FlightID == "" {
		return nil
	}
	row, err := convert.CoreToSnapshot(*s, b.deps.Georef)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, row)
	if t, ok := b.tracks[s.FlightID]; ok {
		t.positions = append(t.positions, s.Position)
		t.snapshots++
		t.score = s.Game.Score
	}
	return nil
}

// RecordNotification buffers a notification.
func (b *Backend) RecordNotification(n *core.Notification) error {
	row, err := convert.CoreToNotification(*n)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.notifications = append(b.notifications, row)
	b.mu.Unlock()
	return nil
}

// Pending returns the number of buffered rows.
func (b *Backend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots) + len(b.notifications)
}

// Flush writes every buffered row. Rows of a failed batch are put back
// and retried on the next flush.
func (b *Backend) Flush() error {
	b.mu.Lock()
	snaps := b.snapshots
	notes := b.notifications
	b.snapshots = nil
	b.notifications = nil
	b.mu.Unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := writeBatch(b.deps.DB, snaps, b.deps.BatchSize); err != nil {
		b.mu.Lock()
		b.snapshots = append(snaps, b.snapshots...)
		b.notifications = append(notes, b.notifications...)
		b.mu.Unlock()
		return fmt.Errorf("insert snapshots: %w", err)
	}
	if err := writeBatch(b.deps.DB, notes, b.deps.BatchSize); err != nil {
		b.mu.Lock()
		b.notifications = append(notes, b.notifications...)
		b.mu.Unlock()
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

// writeBatch inserts rows in one transaction.
func writeBatch[T any](db *gorm.DB, rows []T, size int) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, size).Error
	})
}

// Flights returns every stored flight, newest first.
func (b *Backend) Flights() ([]model.Flight, error) {
	var out []model.Flight
	err := b.deps.DB.Order("start_time desc").Find(&out).Error
	return out, err
}

// Snapshots returns the stored snapshots of a flight in order.
func (b *Backend) Snapshots(flightID string) ([]core.Snapshot, error) {
	var rows []model.Snapshot
	if err := b.deps.DB.Where("flight_id = ?", flightID).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Snapshot, len(rows))
	for i, r := range rows {
		out[i] = convert.SnapshotToCore(r)
	}
	return out, nil
}

// Notifications returns the stored notifications of a flight in order.
func (b *Backend) Notifications(flightID string) ([]core.Notification, error) {
	var rows []model.Notification
	if err := b.deps.DB.Where("flight_id = ?", flightID).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := convert.NotificationToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
