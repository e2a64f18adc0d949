package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/logging"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/internal/storage/memory"
	"github.com/farmassist/dronesim/pkg/core"
)

var _ sim.Observer = (*Recorder)(nil)

func setup(t *testing.T) (*sim.Simulator, *dispatcher.Dispatcher, *Recorder, *memory.Backend) {
	t.Helper()

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)

	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())

	rec := New(Dependencies{Dispatcher: d, QueueSize: 100}, backend)
	rec.RegisterHandlers(d)

	s := sim.New(sim.DefaultConfig(), sim.Dependencies{Clock: clock.NewMock()})
	s.AddObserver(rec)
	return s, d, rec, backend
}

func TestRecorder_RecordsFlight(t *testing.T) {
	s, d, rec, backend := setup(t)

	require.NoError(t, s.PowerOn())
	flightID := rec.CurrentFlight()
	require.NotEmpty(t, flightID)

	require.NoError(t, s.Move(core.DirectionRight))
	require.NoError(t, s.CapturePhoto())
	s.Tick()
	require.NoError(t, s.PowerOff())
	assert.Empty(t, rec.CurrentFlight())

	// drain the queue
	d.Close()

	flights := backend.Flights()
	require.Len(t, flights, 1)
	assert.Equal(t, flightID, flights[0].ID)
	assert.False(t, flights[0].EndTime.IsZero())

	record, ok := backend.GetFlight(flightID)
	require.True(t, ok)
	assert.Equal(t, 100.0, record.StartBattery)
	require.Len(t, record.Snapshots, 5)
	for _, snap := range record.Snapshots {
		assert.Equal(t, flightID, snap.FlightID)
	}
	final := record.Snapshots[len(record.Snapshots)-1]
	assert.False(t, final.IsDroneOn)
	assert.Equal(t, core.PowerOff, final.Power)

	kinds := make([]string, 0, len(record.Notifications))
	for _, n := range record.Notifications {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, core.KindPowerOn, kinds[0])
	assert.Contains(t, kinds, core.KindPhotoCaptured)
	assert.Contains(t, kinds, core.KindPowerOff)

	c := rec.Counts()
	assert.Equal(t, 1, c.Flights)
	assert.Equal(t, len(record.Snapshots), c.Snapshots)
	assert.Zero(t, c.Failed)
	assert.Zero(t, c.Dropped)
}

func TestRecorder_SkipsStatesBetweenFlights(t *testing.T) {
	s, d, rec, _ := setup(t)

	require.NoError(t, s.SetSpeed(8))
	s.SetMission("Count the cows")
	d.Close()

	assert.Zero(t, rec.Counts().Snapshots)
	assert.Zero(t, rec.Counts().Failed)
}

type stalledBackend struct {
	*memory.Backend
	release chan struct{}
}

func (b *stalledBackend) RecordNotification(n *core.Notification) error {
	<-b.release
	return b.Backend.RecordNotification(n)
}

func TestRecorder_DropsWhenBackendStalls(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)

	backend := &stalledBackend{Backend: memory.New(config.MemoryConfig{}), release: make(chan struct{})}
	require.NoError(t, backend.Init())
	rec := New(Dependencies{Dispatcher: d, QueueSize: 1}, backend)
	rec.RegisterHandlers(d)

	s := sim.New(sim.DefaultConfig(), sim.Dependencies{Clock: clock.NewMock()})
	s.AddObserver(rec)

	// rejections while off only produce notifications; the first one stalls
	// the writer and the rest overflow the one-slot queue
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = s.Move(core.DirectionUp)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("commands blocked on a stalled backend")
	}

	close(backend.release)
	d.Close()

	c := rec.Counts()
	assert.Positive(t, c.Dropped)
	assert.Equal(t, 10, c.Notifications+c.Dropped)
}

func TestRecorder_RejectionWhileOffIsUnattached(t *testing.T) {
	s, d, _, backend := setup(t)

	assert.ErrorIs(t, s.Move(core.DirectionUp), core.ErrNotPoweredOn)
	d.Close()

	notes := backend.Unattached()
	require.Len(t, notes, 1)
	assert.Equal(t, core.KindRejected, notes[0].Kind)
	assert.Empty(t, backend.Flights())
}

type failingBackend struct{ *memory.Backend }

func (f *failingBackend) RecordSnapshot(*core.Snapshot) error { return errors.New("disk full") }

func TestRecorder_CountsFailures(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)

	backend := &failingBackend{Backend: memory.New(config.MemoryConfig{})}
	rec := New(Dependencies{Dispatcher: d}, backend)
	rec.RegisterHandlers(d)

	rec.SnapshotTaken(core.Snapshot{Seq: 1, FlightID: "f1"})
	rec.SnapshotTaken(core.Snapshot{Seq: 2, FlightID: "f1"})
	d.Close()

	c := rec.Counts()
	assert.Equal(t, 2, c.Failed)
	assert.Zero(t, c.Snapshots)
}

func TestRecorder_UnexpectedPayload(t *testing.T) {
	rec := New(Dependencies{}, memory.New(config.MemoryConfig{}))
	_, err := rec.handleStore(dispatcher.Event{Command: CmdStore, Payload: 42})
	assert.Error(t, err)
}

func TestRecorder_EnqueueAfterCloseIsQuiet(t *testing.T) {
	s, d, _, backend := setup(t)
	d.Close()

	require.NoError(t, s.PowerOn())
	assert.Empty(t, backend.Flights())
}
