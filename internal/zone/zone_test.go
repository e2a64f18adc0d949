package zone

import (
	"testing"

	"github.com/farmassist/dronesim/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want core.FieldType
	}{
		{name: "rice center", x: 20, y: 40, want: core.FieldRice},
		{name: "between rice and wheat", x: 45, y: 40, want: core.FieldNone},
		{name: "wheat", x: 75, y: 50, want: core.FieldWheat},
		{name: "wheat lower-left corner inclusive", x: 50, y: 30, want: core.FieldWheat},
		{name: "orchard", x: 50, y: 80, want: core.FieldOrchard},
		{name: "reservoir", x: 90, y: 15, want: core.FieldReservoir},
		{name: "rice edge inclusive", x: 40, y: 60, want: core.FieldRice},
		{name: "just outside rice", x: 40.01, y: 60, want: core.FieldNone},
		{name: "origin", x: 0, y: 0, want: core.FieldNone},
		{name: "charging station is not a field", x: 90, y: 95, want: core.FieldNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.x, tt.y))
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	saved := fieldZones
	t.Cleanup(func() { fieldZones = saved })

	fieldZones = []Zone{
		{Field: core.FieldWheat, Rect: Rect{MinX: 0, MaxX: 50, MinY: 0, MaxY: 50}},
		{Field: core.FieldRice, Rect: Rect{MinX: 25, MaxX: 75, MinY: 25, MaxY: 75}},
	}

	assert.Equal(t, core.FieldWheat, Classify(30, 30))
	assert.Equal(t, core.FieldRice, Classify(60, 60))
}

func TestClassifyPosition_IgnoresAltitudeAndRotation(t *testing.T) {
	low := core.Position{X: 20, Y: 40, Altitude: 10, Rotation: 0}
	high := core.Position{X: 20, Y: 40, Altitude: 100, Rotation: -90}

	assert.Equal(t, ClassifyPosition(low), ClassifyPosition(high))
	assert.Equal(t, core.FieldRice, ClassifyPosition(high))
}

func TestInChargingStation(t *testing.T) {
	assert.True(t, InChargingStation(90, 95))
	assert.True(t, InChargingStation(80, 85))
	assert.True(t, InChargingStation(100, 100))
	assert.False(t, InChargingStation(50, 50))
	assert.False(t, InChargingStation(79.9, 95))
}

func TestZones_ReturnsCopy(t *testing.T) {
	zs := Zones()
	assert.Len(t, zs, 4)
	assert.Equal(t, core.FieldRice, zs[0].Field)

	zs[0].Field = core.FieldNone
	assert.Equal(t, core.FieldRice, Zones()[0].Field)
}

func TestTerrainColor(t *testing.T) {
	assert.Equal(t, "#d8c95d", TerrainColor(core.FieldWheat))
	assert.Equal(t, "#73e2a7", TerrainColor(core.FieldGreenhouse))
	assert.Equal(t, "#3c5c2b", TerrainColor(core.FieldType("swamp")))
}
