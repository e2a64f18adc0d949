// Package storage defines the flight recorder backends.
package storage

import (
	"errors"

	"github.com/farmassist/dronesim/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Flight management
	StartFlight(f *core.Flight) error
	EndFlight(f *core.Flight) error

	// State recording
	RecordSnapshot(s *core.Snapshot) error
	RecordNotification(n *core.Notification) error
}

// Exporter is an optional interface for backends that write a file per
// flight.
type Exporter interface {
	GetExportedFilePath() string
}

// multi fans every call out to several backends.
type multi []Backend

// Multi returns a Backend that forwards to every backend in order. Every
// backend is called even when an earlier one fails; the errors are joined.
func Multi(backends ...Backend) Backend {
	if len(backends) == 1 {
		return backends[0]
	}
	return multi(backends)
}

func (m multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Init() error {
	for i, b := range m {
		if err := b.Init(); err != nil {
			// close what already started
			for _, started := range m[:i] {
				_ = started.Close()
			}
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	return m.each(Backend.Close)
}

func (m multi) StartFlight(f *core.Flight) error {
	return m.each(func(b Backend) error { return b.StartFlight(f) })
}

func (m multi) EndFlight(f *core.Flight) error {
	return m.each(func(b Backend) error { return b.EndFlight(f) })
}

func (m multi) RecordSnapshot(s *core.Snapshot) error {
	return m.each(func(b Backend) error { return b.RecordSnapshot(s) })
}

func (m multi) RecordNotification(n *core.Notification) error {
	return m.each(func(b Backend) error { return b.RecordNotification(n) })
}

// GetExportedFilePath returns the export path of the first backend that
// writes files.
func (m multi) GetExportedFilePath() string {
	for _, b := range m {
		if e, ok := b.(Exporter); ok {
			if p := e.GetExportedFilePath(); p != "" {
				return p
			}
		}
	}
	return ""
}
