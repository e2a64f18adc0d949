package core

import "time"

// Level is the severity of an advisory notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification kinds emitted by the simulator.
const (
	KindPowerOn          = "power_on"
	KindPowerOff         = "power_off"
	KindZoneEntered      = "zone_entered"
	KindBatteryLow       = "battery_low"
	KindBatteryCritical  = "battery_critical"
	KindBatteryDepleted  = "battery_depleted"
	KindChargingStarted  = "charging_started"
	KindChargingStopped  = "charging_stopped"
	KindChargingComplete = "charging_complete"
	KindPhotoCaptured    = "photo_captured"
	KindPhotoScored      = "photo_scored"
	KindRecordingStarted = "recording_started"
	KindRecordingStopped = "recording_stopped"
	KindRejected         = "rejected"
)

// Notification is a transient, non-blocking message for the user.
type Notification struct {
	Seq      uint64         `json:"seq"`
	FlightID string         `json:"flightId,omitempty"`
	Time     time.Time      `json:"time"`
	Level    Level          `json:"level"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

// Flight is one powered session of the drone, from power-on to power-off.
type Flight struct {
	ID        string    `json:"id"`
	Mission   string    `json:"mission"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitzero"`
	Start     Position  `json:"start"`
	Battery   float64   `json:"battery"`
}
