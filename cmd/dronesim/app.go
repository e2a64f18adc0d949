package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/farmassist/dronesim/internal/battery"
	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/handlers"
	"github.com/farmassist/dronesim/internal/logging"
	"github.com/farmassist/dronesim/internal/monitor"
	intOtel "github.com/farmassist/dronesim/internal/otel"
	"github.com/farmassist/dronesim/internal/recorder"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/internal/storage"
	"github.com/farmassist/dronesim/pkg/core"
)

// appOptions tweak how an app is assembled for one command.
type appOptions struct {
	// Console sends logs to stderr instead of the session log file.
	Console bool
	// StorageType overrides storage.type when non-empty.
	StorageType string
	// Origin overrides the field origin, as "lon,lat".
	Origin string
	// Clock drives the simulation; nil means the wall clock.
	Clock clock.Clock
}

// app owns every long-lived component of a session.
type app struct {
	slogManager *logging.SlogManager
	log         *slog.Logger
	dbLog       zerolog.Logger
	otel        *intOtel.Provider
	files       []io.Closer

	clock      clock.Clock
	georef     geo.Georef
	sim        *sim.Simulator
	dispatcher *dispatcher.Dispatcher
	handlers   *handlers.Service
	recorder   *recorder.Recorder
	backend    storage.Backend
	runner     *sim.Runner
	monitor    *monitor.Service
}

func newApp(opts appOptions) (*app, error) {
	a := &app{clock: opts.Clock}
	if a.clock == nil {
		a.clock = clock.New()
	}

	if err := a.setupLogging(opts.Console); err != nil {
		a.close()
		return nil, err
	}

	fieldCfg := config.GetFieldConfig()
	a.georef = geo.Georef{
		OriginLon:    fieldCfg.OriginLon,
		OriginLat:    fieldCfg.OriginLat,
		WidthMeters:  fieldCfg.WidthMeters,
		HeightMeters: fieldCfg.HeightMeters,
	}
	if opts.Origin != "" {
		lon, lat, _, err := geo.ParseLonLat(opts.Origin)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("invalid --origin: %w", err)
		}
		a.georef.OriginLon, a.georef.OriginLat = lon, lat
	}

	simCfg := config.GetSimConfig()
	a.sim = sim.New(simConfig(simCfg), sim.Dependencies{Clock: a.clock, Logger: a.log})

	var err error
	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.dbLog))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	a.dispatcher.SetExpected(core.IsRejection)

	a.handlers = handlers.NewService(handlers.Dependencies{
		Sim:          a.sim,
		Logger:       a.log,
		AltitudeStep: simCfg.AltitudeStep,
	})
	a.handlers.RegisterHandlers(a.dispatcher)

	storageCfg := config.GetStorageConfig()
	if opts.StorageType != "" {
		storageCfg.Type = opts.StorageType
	}
	if err := a.setupStorage(storageCfg); err != nil {
		a.close()
		return nil, err
	}

	a.runner = sim.NewRunner(a.sim, a.clock, a.log)
	a.monitor = monitor.NewService(monitor.Dependencies{
		Sim:       a.sim,
		Runner:    a.runner,
		Recorder:  a.recorder,
		Clock:     a.clock,
		Logger:    a.log,
		OutputDir: config.GetLoggingConfig().Dir,
	})

	return a, nil
}

// setupLogging mirrors every slog record to the session log file (or the
// console), Graylog and OTel, depending on configuration.
func (a *app) setupLogging(console bool) error {
	logCfg := config.GetLoggingConfig()
	a.slogManager = logging.NewSlogManager()

	var out io.Writer = os.Stderr
	if !console {
		if err := os.MkdirAll(logCfg.Dir, 0755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		path := logging.LogFilePath(logCfg.Dir, logging.ServiceName, SessionStartTime)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.files = append(a.files, f)
		out = f
	}
	a.dbLog = logging.NewZerolog(out, logCfg.Level)

	// stdout is reserved for command output
	opts := logging.Options{Level: logCfg.Level, File: out}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		if err := os.MkdirAll(logCfg.Dir, 0755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		otelPath := logging.OTelLogFilePath(logCfg.Dir, logging.ServiceName, SessionStartTime)
		otelFile, err := os.OpenFile(otelPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening otel log file: %w", err)
		}
		a.files = append(a.files, otelFile)

		a.otel, err = intOtel.New(intOtel.FromConfig(otelCfg, otelFile, otelFile))
		if err != nil {
			return fmt.Errorf("initializing otel: %w", err)
		}
		opts.Provider = a.otel.LoggerProvider()
	}

	var gelfErr error
	if logCfg.GraylogEnabled {
		w, err := logging.NewGraylogWriter(logCfg.GraylogAddress)
		if err != nil {
			gelfErr = err
		} else {
			a.files = append(a.files, w)
			opts.Gelf = w
		}
	}

	opts.Context = logging.FlightAttrs(func() string {
		if a.recorder != nil {
			return a.recorder.CurrentFlight()
		}
		return ""
	})

	a.slogManager.Setup(opts)
	a.log = a.slogManager.Logger()

	if gelfErr != nil {
		a.log.Warn("Graylog output disabled", "error", gelfErr)
	}
	return nil
}

func (a *app) setupStorage(storageCfg config.StorageConfig) error {
	backend, err := createStorageBackend(storageCfg, storageDeps{
		Georef:       a.georef,
		Logger:       a.log,
		DBLog:        a.dbLog,
		LogsDir:      config.GetLoggingConfig().Dir,
		UploadURL:    config.GetUploadConfig().ServerURL,
		SessionStart: SessionStartTime,
	})
	if err != nil {
		a.log.Error("Failed to create storage backend", "error", err)
		return err
	}
	if backend == nil {
		return nil
	}
	if err := backend.Init(); err != nil {
		a.log.Error("Failed to initialize storage backend", "error", err)
		return fmt.Errorf("initializing storage: %w", err)
	}
	a.backend = backend

	a.recorder = recorder.New(recorder.Dependencies{
		Dispatcher: a.dispatcher,
		Logger:     a.log,
		QueueSize:  storageCfg.QueueSize,
	}, backend)
	a.recorder.RegisterHandlers(a.dispatcher)
	a.sim.AddObserver(a.recorder)

	a.log.Info("Storage ready", "type", storageCfg.Type)
	return nil
}

// status feeds /api/status.
func (a *app) status() any {
	return a.monitor.Status()
}

// close powers the drone off so an open flight is finalized, drains the
// store queue and releases every resource. It is safe on a partially
// built app.
func (a *app) close() error {
	var errs []error

	if a.monitor != nil && a.monitor.IsRunning() {
		a.monitor.Stop()
		if err := a.monitor.WriteStatus(); err != nil {
			errs = append(errs, fmt.Errorf("writing status: %w", err))
		}
	}
	if a.sim != nil {
		_ = a.sim.PowerOff()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.slogManager != nil {
		if err := a.slogManager.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down otel: %w", err))
		}
	}
	for i := len(a.files) - 1; i >= 0; i-- {
		_ = a.files[i].Close()
	}
	a.files = nil

	return errors.Join(errs...)
}

// simConfig converts the loaded settings into simulator tunables.
func simConfig(c config.SimConfig) sim.Config {
	return sim.Config{
		Start: core.Position{
			X:        c.StartX,
			Y:        c.StartY,
			Altitude: c.StartAltitude,
		},
		Speed:          c.Speed,
		InitialBattery: c.Battery,
		Battery: battery.Config{
			DrainPerTick:  c.DrainPerTick,
			ChargePerTick: c.ChargePerTick,
			LowLevel:      c.LowLevel,
			CriticalLevel: c.CriticalLevel,
		},
		PhotoCost:      c.PhotoCost,
		RecordingCost:  c.RecordingCost,
		PhotoBonus:     c.PhotoBonus,
		Mission:        c.Mission,
		TickInterval:   c.TickInterval,
		HoverAmplitude: c.HoverAmplitude,
		HistorySize:    c.HistorySize,
	}
}
