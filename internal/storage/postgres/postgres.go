// Package postgres implements the storage.Backend interface on PostgreSQL
// through the shared GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/database"
	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/model"
	gormstorage "github.com/farmassist/dronesim/internal/storage/gorm"
)

// Dependencies holds all dependencies for the postgres backend.
type Dependencies struct {
	Config config.PostgresConfig
	Georef geo.Georef
	Info   model.RecorderInfo
	Logger *slog.Logger
	DBLog  zerolog.Logger
}

// Backend connects on Init and then behaves like the GORM backend.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
	db   *database.Manager
}

// New creates a new postgres storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
		db:   database.NewManager(deps.DBLog),
	}
}

// Init connects, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if err := b.db.ConnectPostgres(b.deps.Config); err != nil {
		return err
	}
	if err := b.db.Setup(b.deps.Info); err != nil {
		_ = b.db.Close()
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     b.db.DB,
		Georef: b.deps.Georef,
		Logger: b.deps.Logger,
	})
	return b.Backend.Init()
}

// Close flushes pending rows and closes the connection.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	err := b.Backend.Close()
	if cerr := b.db.Close(); err == nil {
		err = cerr
	}
	return err
}
