package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/model"
)

// Manager handles database connections and operations.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log.With().Str("component", "database").Logger(),
	}
}

// ConnectPostgres opens and validates a Postgres connection.
func (m *Manager) ConnectPostgres(cfg config.PostgresConfig) error {
	m.Logger.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := m.attach(db); err != nil {
		return err
	}
	m.SqlDB.SetMaxOpenConns(10)

	m.Logger.Info().Msg("Connected to database")
	return nil
}

// ConnectSqlite opens a SQLite database. If path is empty, uses an
// in-memory database meant to be dumped with DumpMemoryToDisk.
func (m *Manager) ConnectSqlite(path string) error {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := m.attach(db); err != nil {
		return err
	}
	if path == "" {
		// every connection to :memory: is a separate database
		m.SqlDB.SetMaxOpenConns(1)
		m.Logger.Info().Msg("Using local SQLite DB in memory with periodic disk dump")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return nil
}

func (m *Manager) attach(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.DB = db
	m.SqlDB = sqlDB
	return nil
}

// Setup migrates tables and records the installation info once.
func (m *Manager) Setup(info model.RecorderInfo) error {
	if m.DB == nil {
		return errors.New("database not connected")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	var count int64
	if err := m.DB.Model(&model.RecorderInfo{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to read recorder_infos: %w", err)
	}
	if count == 0 {
		if err := m.DB.Create(&info).Error; err != nil {
			return fmt.Errorf("failed to create recorder_infos entry: %w", err)
		}
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the database to a file, replacing any previous dump.
func (m *Manager) DumpMemoryToDisk(path string) error {
	if path == "" {
		return errors.New("sqlite file path not set")
	}
	if m.DB == nil {
		return errors.New("database not connected")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	// VACUUM INTO refuses to overwrite
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := m.DB.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped memory DB to disk")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.SqlDB = nil
	m.DB = nil
	return err
}

// GetBackupDBPaths returns paths to all .db files in the given directory, sorted.
func GetBackupDBPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dbPaths []string
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".db" {
			dbPaths = append(dbPaths, filepath.Join(dir, file.Name()))
		}
	}
	sort.Strings(dbPaths)
	return dbPaths, nil
}
