package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerState_Text(t *testing.T) {
	for _, p := range []PowerState{PowerOff, PowerDraining, PowerCharging} {
		b, err := p.MarshalText()
		require.NoError(t, err)

		var back PowerState
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, p, back)
	}

	var p PowerState
	assert.Error(t, p.UnmarshalText([]byte("flying")))
}

func TestPowerState_JSON(t *testing.T) {
	b, err := json.Marshal(Snapshot{Power: PowerCharging})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"power":"charging"`)
}

func TestPosition_Heading(t *testing.T) {
	tests := []struct {
		rotation float64
		want     float64
	}{
		{0, 0},
		{90, 90},
		{360, 0},
		{450, 90},
		{-90, 270},
		{-720, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rotation), func(t *testing.T) {
			assert.Equal(t, tt.want, Position{Rotation: tt.rotation}.Heading())
		})
	}
}

func TestFieldType_Valid(t *testing.T) {
	assert.True(t, FieldRice.Valid())
	assert.True(t, FieldNone.Valid())
	assert.False(t, FieldType("corn").Valid())
	assert.False(t, FieldType("").Valid())
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(fmt.Errorf("move: %w", ErrNotPoweredOn)))
	assert.True(t, IsRejection(ErrInvalidArgument))
	assert.False(t, IsRejection(errors.New("disk full")))
	assert.False(t, IsRejection(nil))
}

func TestRejectionReason(t *testing.T) {
	assert.Equal(t, "not_powered_on", RejectionReason(fmt.Errorf("photo: %w", ErrNotPoweredOn)))
	assert.Equal(t, "charging_in_progress", RejectionReason(ErrChargingInProgress))
	assert.Equal(t, "battery_full", RejectionReason(ErrBatteryFull))
	assert.Equal(t, "not_dragging", RejectionReason(ErrNotDragging))
	assert.Equal(t, "", RejectionReason(errors.New("other")))
}

func TestFlight_JSONOmitsOpenEnd(t *testing.T) {
	b, err := json.Marshal(Flight{ID: "f1"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "endTime")
	assert.Contains(t, string(b), `"id":"f1"`)
}
