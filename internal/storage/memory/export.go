// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/farmassist/dronesim/internal/util"
	"github.com/farmassist/dronesim/pkg/core"
)

// ExportVersion is bumped whenever FlightExport changes shape.
const ExportVersion = "1"

// Compression modes for MemoryConfig.Compression.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// FlightExport is the root JSON structure of an exported flight
type FlightExport struct {
	Version         string              `json:"version"`
	FlightID        string              `json:"flightId"`
	Mission         string              `json:"mission"`
	StartTime       time.Time           `json:"startTime"`
	EndTime         time.Time           `json:"endTime"`
	DurationSeconds float64             `json:"durationSeconds"`
	StartBattery    float64             `json:"startBattery"`
	EndBattery      float64             `json:"endBattery"`
	FinalScore      int                 `json:"finalScore"`
	Start           core.Position       `json:"start"`
	Track           [][]float64         `json:"track"` // [x, y, altitude, heading]
	Snapshots       []core.Snapshot     `json:"snapshots"`
	Notifications   []core.Notification `json:"notifications"`
}

// buildExport converts a record into its export form
func buildExport(record *FlightRecord) FlightExport {
	f := record.Flight
	export := FlightExport{
		Version:       ExportVersion,
		FlightID:      f.ID,
		Mission:       f.Mission,
		StartTime:     f.StartTime,
		EndTime:       f.EndTime,
		StartBattery:  record.StartBattery,
		EndBattery:    f.Battery,
		Start:         f.Start,
		Track:         make([][]float64, 0, len(record.Snapshots)),
		Snapshots:     record.Snapshots,
		Notifications: record.Notifications,
	}
	if !f.EndTime.IsZero() {
		export.DurationSeconds = f.EndTime.Sub(f.StartTime).Seconds()
	}

	for _, s := range record.Snapshots {
		export.FinalScore = s.Game.Score
		export.Track = append(export.Track, []float64{
			s.Position.X,
			s.Position.Y,
			s.Position.Altitude,
			s.Position.Heading(),
		})
	}

	return export
}

// exportFileName builds "<mission>_<start>_<flight>.json[.gz|.zst]"
func exportFileName(f core.Flight, compression string) string {
	mission := util.SanitizeFileName(f.Mission)
	if mission == "" {
		mission = "flight"
	}
	id := f.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.json", mission, f.StartTime.Format("20060102_150405"), id)

	switch compression {
	case CompressionGzip:
		return name + ".gz"
	case CompressionZstd:
		return name + ".zst"
	}
	return name
}

// exportJSON writes the flight to a (possibly compressed) JSON file
func (b *Backend) exportJSON(record *FlightRecord) error {
	export := buildExport(record)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, exportFileName(record.Flight, b.cfg.Compression))
	if err := WriteExport(outputPath, b.cfg.Compression, export); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

// WriteExport encodes data to path using the given compression.
func WriteExport(path, compression string, data FlightExport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.WriteCloser
	switch compression {
	case CompressionGzip:
		w = gzip.NewWriter(f)
	case CompressionZstd:
		zw, zerr := zstd.NewWriter(f)
		if zerr != nil {
			return fmt.Errorf("failed to create zstd writer: %w", zerr)
		}
		w = zw
	case "", CompressionNone:
		return json.NewEncoder(f).Encode(data)
	default:
		return fmt.Errorf("unknown compression: %s", compression)
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return w.Close()
}

// ReadExport decodes an exported flight, picking the decompressor from the
// file extension.
func ReadExport(path string) (FlightExport, error) {
	var export FlightExport

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	switch filepath.Ext(path) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export: %w", err)
	}
	return export, nil
}
