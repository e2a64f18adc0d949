// pkg/core/drone.go
package core

import (
	"fmt"
	"math"
	"time"
)

// FieldType identifies the crop field (or none) under the drone.
type FieldType string

const (
	FieldRice       FieldType = "rice"
	FieldWheat      FieldType = "wheat"
	FieldOrchard    FieldType = "orchard"
	FieldGreenhouse FieldType = "greenhouse"
	FieldReservoir  FieldType = "reservoir"
	FieldNone       FieldType = "none"
)

// Valid reports whether f is one of the known field types.
func (f FieldType) Valid() bool {
	switch f {
	case FieldRice, FieldWheat, FieldOrchard, FieldGreenhouse, FieldReservoir, FieldNone:
		return true
	}
	return false
}

// Direction is a discrete movement command.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// PowerState is the tagged drone power state. IsDroneOn and IsCharging are
// derived from it, so charging while off cannot be represented.
type PowerState int

const (
	PowerOff PowerState = iota
	PowerDraining
	PowerCharging
)

func (p PowerState) String() string {
	switch p {
	case PowerDraining:
		return "draining"
	case PowerCharging:
		return "charging"
	default:
		return "off"
	}
}

// MarshalText encodes the state as its name for JSON consumers.
func (p PowerState) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (p *PowerState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "off":
		*p = PowerOff
	case "draining":
		*p = PowerDraining
	case "charging":
		*p = PowerCharging
	default:
		return fmt.Errorf("unknown power state %q", b)
	}
	return nil
}

// Position is the drone position on the normalized field plane.
// X and Y are percentages of field width/height, Altitude is in meters and
// Rotation is the heading in degrees as assigned by the motion model.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Altitude float64 `json:"altitude"`
	Rotation float64 `json:"rotation"`
}

// Heading returns Rotation normalized to [0,360).
func (p Position) Heading() float64 {
	h := math.Mod(p.Rotation, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// GameState is the mission/scoring state of a flight.
type GameState struct {
	Score        int       `json:"score"`
	Mission      string    `json:"mission"`
	BatteryLevel float64   `json:"batteryLevel"`
	IsCharging   bool      `json:"isCharging"`
	FieldType    FieldType `json:"fieldType"`
}

// Scene describes how presentation layers should render the current state.
type Scene struct {
	HoverOffset    float64 `json:"hoverOffset"`
	CameraDistance float64 `json:"cameraDistance"`
	TerrainColor   string  `json:"terrainColor"`
}

// Snapshot is an immutable copy of the full simulation state.
type Snapshot struct {
	Seq         uint64     `json:"seq"`
	FlightID    string     `json:"flightId,omitempty"`
	Time        time.Time  `json:"time"`
	Position    Position   `json:"position"`
	Game        GameState  `json:"game"`
	Power       PowerState `json:"power"`
	IsDroneOn   bool       `json:"isDroneOn"`
	Speed       int        `json:"speed"`
	IsRecording bool       `json:"isRecording"`
	Dragging    bool       `json:"dragging"`
	Scene       Scene      `json:"scene"`
}
