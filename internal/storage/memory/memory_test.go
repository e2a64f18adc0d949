// internal/storage/memory/memory_test.go
package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/storage"
	"github.com/farmassist/dronesim/pkg/core"
)

// Verify Backend implements storage.Backend and storage.Exporter
var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testFlight(id string) *core.Flight {
	return &core.Flight{
		ID:        id,
		Mission:   "Explore the farm",
		StartTime: t0,
		Start:     core.Position{X: 50, Y: 50, Altitude: 30},
		Battery:   100,
	}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp"})
	require.NotNil(t, b)
	assert.Empty(t, b.Flights())
	assert.Equal(t, "", b.GetExportedFilePath())
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestRecordFlight(t *testing.T) {
	b := New(config.MemoryConfig{})
	f := testFlight("f1")
	require.NoError(t, b.StartFlight(f))

	require.NoError(t, b.RecordSnapshot(&core.Snapshot{Seq: 1, FlightID: "f1"}))
	require.NoError(t, b.RecordSnapshot(&core.Snapshot{Seq: 2, FlightID: "f1"}))
	require.NoError(t, b.RecordNotification(&core.Notification{Seq: 1, FlightID: "f1", Kind: core.KindPowerOn}))

	f.EndTime = t0.Add(time.Minute)
	f.Battery = 97
	require.NoError(t, b.EndFlight(f))

	rec, ok := b.GetFlight("f1")
	require.True(t, ok)
	assert.Len(t, rec.Snapshots, 2)
	assert.Len(t, rec.Notifications, 1)
	assert.Equal(t, 100.0, rec.StartBattery)
	assert.Equal(t, 97.0, rec.Flight.Battery)
	assert.Equal(t, t0.Add(time.Minute), rec.Flight.EndTime)

	// no output dir, nothing exported
	assert.Equal(t, "", b.GetExportedFilePath())
}

func TestGetFlight_ReturnsCopy(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartFlight(testFlight("f1")))
	require.NoError(t, b.RecordSnapshot(&core.Snapshot{Seq: 1, FlightID: "f1"}))

	rec, _ := b.GetFlight("f1")
	rec.Snapshots[0].Seq = 99

	again, _ := b.GetFlight("f1")
	assert.Equal(t, uint64(1), again.Snapshots[0].Seq)

	_, ok := b.GetFlight("missing")
	assert.False(t, ok)
}

func TestUnattachedNotifications(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.RecordNotification(&core.Notification{Seq: 1, Kind: core.KindRejected}))
	require.NoError(t, b.RecordSnapshot(&core.Snapshot{Seq: 1}))

	assert.Len(t, b.Unattached(), 1)
	assert.Empty(t, b.Flights())
}

func TestFlights_StartOrder(t *testing.T) {
	b := New(config.MemoryConfig{})
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, b.StartFlight(testFlight(id)))
	}

	var ids []string
	for _, f := range b.Flights() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestEndFlight_Unknown(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.NoError(t, b.EndFlight(testFlight("nope")))
	assert.Equal(t, "", b.GetExportedFilePath())
}
