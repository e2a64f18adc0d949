package handlers

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/logging"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/pkg/core"
)

func newTestService(t *testing.T) (*dispatcher.Dispatcher, *sim.Simulator) {
	t.Helper()

	s := sim.New(sim.DefaultConfig(), sim.Dependencies{Clock: clock.NewMock()})

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	d.SetExpected(core.IsRejection)

	NewService(Dependencies{Sim: s}).RegisterHandlers(d)
	return d, s
}

func dispatch(t *testing.T, d *dispatcher.Dispatcher, cmd string, args ...string) (core.Snapshot, error) {
	t.Helper()
	res, err := d.Dispatch(dispatcher.Event{Command: cmd, Args: args})
	if err != nil {
		return core.Snapshot{}, err
	}
	snap, ok := res.(core.Snapshot)
	require.True(t, ok, "result should be a snapshot, got %T", res)
	return snap, nil
}

func TestRegisterHandlers_AllCommands(t *testing.T) {
	d, _ := newTestService(t)

	for _, cmd := range Commands() {
		assert.True(t, d.HasHandler(cmd), cmd)
	}
	assert.Len(t, d.Commands(), len(Commands()))
}

func TestPowerCommands(t *testing.T) {
	d, _ := newTestService(t)

	snap, err := dispatch(t, d, CmdPower)
	require.NoError(t, err)
	assert.True(t, snap.IsDroneOn)

	snap, err = dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)
	assert.True(t, snap.IsDroneOn)

	snap, err = dispatch(t, d, CmdPowerOff)
	require.NoError(t, err)
	assert.False(t, snap.IsDroneOn)

	snap, err = dispatch(t, d, CmdPower)
	require.NoError(t, err)
	assert.True(t, snap.IsDroneOn)
}

func TestMove(t *testing.T) {
	d, _ := newTestService(t)

	_, err := dispatch(t, d, CmdMove, "right")
	assert.ErrorIs(t, err, core.ErrNotPoweredOn)

	_, err = dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)

	snap, err := dispatch(t, d, CmdMove, ` "RIGHT" `)
	require.NoError(t, err)
	assert.Equal(t, 55.0, snap.Position.X)
	assert.Equal(t, 90.0, snap.Position.Rotation)

	_, err = dispatch(t, d, CmdMove, "sideways")
	assert.ErrorIs(t, err, core.ErrInvalidDirection)

	_, err = dispatch(t, d, CmdMove)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestAltitude(t *testing.T) {
	d, _ := newTestService(t)
	_, err := dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)

	snap, err := dispatch(t, d, CmdAltitude, "up")
	require.NoError(t, err)
	assert.Equal(t, 35.0, snap.Position.Altitude)

	snap, err = dispatch(t, d, CmdAltitude, "down")
	require.NoError(t, err)
	assert.Equal(t, 30.0, snap.Position.Altitude)

	snap, err = dispatch(t, d, CmdAltitude, "-100")
	require.NoError(t, err)
	assert.Equal(t, 10.0, snap.Position.Altitude)

	_, err = dispatch(t, d, CmdAltitude, "high")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = dispatch(t, d, CmdAltitude, "NaN")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDrag(t *testing.T) {
	d, _ := newTestService(t)
	_, err := dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)

	_, err = dispatch(t, d, CmdDragMove, "10", "10")
	assert.ErrorIs(t, err, core.ErrNotDragging)

	snap, err := dispatch(t, d, CmdDragStart, "100", "100", "400", "300")
	require.NoError(t, err)
	assert.True(t, snap.Dragging)

	_, err = dispatch(t, d, CmdDragMove, "140", "100")
	require.NoError(t, err)

	snap, err = dispatch(t, d, CmdDragEnd)
	require.NoError(t, err)
	assert.False(t, snap.Dragging)
	assert.NotEqual(t, 50.0, snap.Position.X)

	_, err = dispatch(t, d, CmdDragStart, "1", "2")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = dispatch(t, d, CmdDragStart, "0", "0", "0", "300")
	assert.ErrorIs(t, err, core.ErrInvalidFieldSize)
}

func TestPhotoRecordCharge(t *testing.T) {
	d, _ := newTestService(t)

	_, err := dispatch(t, d, CmdPhoto)
	assert.ErrorIs(t, err, core.ErrNotPoweredOn)

	_, err = dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)

	snap, err := dispatch(t, d, CmdPhoto)
	require.NoError(t, err)
	assert.Equal(t, 99.5, snap.Game.BatteryLevel)

	snap, err = dispatch(t, d, CmdRecord)
	require.NoError(t, err)
	assert.True(t, snap.IsRecording)

	snap, err = dispatch(t, d, CmdRecord)
	require.NoError(t, err)
	assert.False(t, snap.IsRecording)

	_, err = dispatch(t, d, CmdCharge)
	assert.ErrorIs(t, err, core.ErrNotAtChargingStation)
}

func TestSpeed(t *testing.T) {
	d, _ := newTestService(t)

	snap, err := dispatch(t, d, CmdSpeed, "8")
	require.NoError(t, err)
	assert.Equal(t, 8, snap.Speed)

	_, err = dispatch(t, d, CmdSpeed, "11")
	assert.ErrorIs(t, err, core.ErrInvalidSpeed)

	_, err = dispatch(t, d, CmdSpeed, "fast")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestTickAndStep(t *testing.T) {
	d, _ := newTestService(t)
	_, err := dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)

	snap, err := dispatch(t, d, CmdTick)
	require.NoError(t, err)
	assert.InDelta(t, 99.9, snap.Game.BatteryLevel, 1e-9)

	snap, err = dispatch(t, d, CmdTick, "9")
	require.NoError(t, err)
	assert.InDelta(t, 99.0, snap.Game.BatteryLevel, 1e-9)

	// 200ms per tick
	snap, err = dispatch(t, d, CmdStep, "1s")
	require.NoError(t, err)
	assert.InDelta(t, 98.5, snap.Game.BatteryLevel, 1e-9)

	_, err = dispatch(t, d, CmdTick, "0")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = dispatch(t, d, CmdStep, "soon")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestStep_Bounded(t *testing.T) {
	d, s := newTestService(t)
	_, err := dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)
	before := s.Snapshot()

	// 100000 ticks of 200ms is a little over five and a half hours
	_, err = dispatch(t, d, CmdStep, "10000h")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = dispatch(t, d, CmdStep, "6h")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	after := s.Snapshot()
	assert.Equal(t, before.Game.BatteryLevel, after.Game.BatteryLevel)
	assert.True(t, after.IsDroneOn)
}

func TestMissionResetState(t *testing.T) {
	d, _ := newTestService(t)

	snap, err := dispatch(t, d, CmdMission, `"Survey the Orchard"`)
	require.NoError(t, err)
	assert.Equal(t, "Survey the Orchard", snap.Game.Mission)

	_, err = dispatch(t, d, CmdMission, `""`)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = dispatch(t, d, CmdPowerOn)
	require.NoError(t, err)
	_, err = dispatch(t, d, CmdMove, "up")
	require.NoError(t, err)

	snap, err = dispatch(t, d, CmdReset)
	require.NoError(t, err)
	assert.False(t, snap.IsDroneOn)
	assert.Equal(t, 50.0, snap.Position.Y)

	snap, err = dispatch(t, d, CmdState)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Game.BatteryLevel)
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"power":      CmdPower,
		"power-on":   CmdPowerOn,
		"DRAG_START": CmdDragStart,
		"drag.move":  CmdDragMove,
		":TICK:":     CmdTick,
		" record ":   CmdRecord,
	}
	for in, want := range tests {
		assert.Equal(t, want, CommandName(in), in)
	}
}
