// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmassist/dronesim/internal/database"
	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/model"
	gormstorage "github.com/farmassist/dronesim/internal/storage/gorm"
	"github.com/farmassist/dronesim/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// DumpPath returns the dump file for a session started at start.
func DumpPath(dir string, start time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("dronesim_%s.db", start.Format("20060102_150405")))
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg Config, ref geo.Georef, info model.RecorderInfo, logger *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := database.NewManager(dbLog)
	if err := db.ConnectSqlite(""); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if err := db.Setup(info); err != nil {
		_ = db.Close()
		return nil, err
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:     db.DB,
		Georef: ref,
		Logger: logger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger.With("component", "sqlite"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	return nil
}

// EndFlight closes the flight and dumps right away so a finished flight is
// never only in memory.
func (b *Backend) EndFlight(f *core.Flight) error {
	if err := b.Backend.EndFlight(f); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes the database to DumpPath. It is a no-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.db.DumpMemoryToDisk(b.cfg.DumpPath)
}

// Close stops the dump goroutine, writes a final dump and closes the DB.
func (b *Backend) Close() error {
	close(b.stopChan)
	<-b.done

	err := b.Backend.Close()
	if err == nil {
		err = b.Dump()
	}
	if cerr := b.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Backend.Flush(); err != nil {
				b.log.Error("Error flushing before dump", "error", err)
				continue
			}
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
