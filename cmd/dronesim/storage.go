package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/model"
	"github.com/farmassist/dronesim/internal/storage"
	influxstorage "github.com/farmassist/dronesim/internal/storage/influx"
	"github.com/farmassist/dronesim/internal/storage/memory"
	pgstorage "github.com/farmassist/dronesim/internal/storage/postgres"
	sqlitestorage "github.com/farmassist/dronesim/internal/storage/sqlite"
	wsstorage "github.com/farmassist/dronesim/internal/storage/websocket"
)

// Storage types accepted in storage.type. Several may be combined with
// commas, e.g. "memory,influx".
const (
	StorageMemory    = "memory"
	StorageSQLite    = "sqlite"
	StoragePostgres  = "postgres"
	StorageWebSocket = "websocket"
	StorageInflux    = "influx"
	StorageNone      = "none"
)

// wsPath is appended to upload.serverUrl when storage.websocket.url is empty.
const wsPath = "/api/v1/flights/ws"

type storageDeps struct {
	Georef       geo.Georef
	Logger       *slog.Logger
	DBLog        zerolog.Logger
	LogsDir      string
	UploadURL    string
	SessionStart time.Time
}

// createStorageBackend builds the backend(s) named in storageCfg.Type. It
// returns nil when recording is disabled.
func createStorageBackend(storageCfg config.StorageConfig, deps storageDeps) (storage.Backend, error) {
	var backends []storage.Backend
	seen := make(map[string]bool)

	for _, typ := range strings.Split(storageCfg.Type, ",") {
		typ = strings.ToLower(strings.TrimSpace(typ))
		if typ == "" || seen[typ] {
			continue
		}
		seen[typ] = true

		b, err := createSingleBackend(typ, storageCfg, deps)
		if err != nil {
			return nil, err
		}
		if b != nil {
			backends = append(backends, b)
		}
	}

	if len(backends) == 0 {
		return nil, nil
	}
	return storage.Multi(backends...), nil
}

func createSingleBackend(typ string, storageCfg config.StorageConfig, deps storageDeps) (storage.Backend, error) {
	info := model.RecorderInfo{
		Version:     CurrentVersion,
		FieldOrigin: fmt.Sprintf("%f,%f", deps.Georef.OriginLon, deps.Georef.OriginLat),
		FieldWidth:  deps.Georef.WidthMeters,
		FieldHeight: deps.Georef.HeightMeters,
	}

	switch typ {
	case StorageMemory:
		deps.Logger.Info("Memory storage backend initialized", "dir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	case StorageSQLite:
		if err := os.MkdirAll(storageCfg.SQLite.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite output dir: %w", err)
		}
		dumpPath := sqlitestorage.DumpPath(storageCfg.SQLite.OutputDir, deps.SessionStart)
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, deps.Georef, info, deps.Logger, deps.DBLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		deps.Logger.Info("SQLite storage backend initialized", "dump", dumpPath)
		return backend, nil

	case StoragePostgres:
		deps.Logger.Info("Postgres storage backend initialized",
			"host", storageCfg.Postgres.Host, "database", storageCfg.Postgres.Database)
		return pgstorage.New(pgstorage.Dependencies{
			Config: storageCfg.Postgres,
			Georef: deps.Georef,
			Info:   info,
			Logger: deps.Logger,
			DBLog:  deps.DBLog,
		}), nil

	case StorageWebSocket:
		cfg := storageCfg.WebSocket
		if cfg.URL == "" {
			cfg.URL = httpToWS(deps.UploadURL) + wsPath
		}
		deps.Logger.Info("WebSocket storage backend initialized", "url", cfg.URL)
		return wsstorage.New(wsstorage.Config{
			URL:        cfg.URL,
			Secret:     cfg.Secret,
			AckTimeout: cfg.AckTimeout,
		}, deps.Logger), nil

	case StorageInflux:
		backup := filepath.Join(deps.LogsDir,
			fmt.Sprintf("influx_backup_%s.lp.gz", deps.SessionStart.Format("20060102_150405")))
		deps.Logger.Info("InfluxDB storage backend initialized",
			"url", storageCfg.Influx.URL, "bucket", storageCfg.Influx.Bucket)
		return influxstorage.New(storageCfg.Influx, backup, deps.DBLog), nil

	case StorageNone:
		deps.Logger.Info("Flight recording disabled")
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", typ)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
