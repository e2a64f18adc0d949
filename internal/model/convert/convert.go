// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/model"
	"github.com/farmassist/dronesim/pkg/core"
)

// CoreToFlight converts a started flight to its GORM row.
func CoreToFlight(f core.Flight, ref geo.Georef) (model.Flight, error) {
	start, err := ref.Point(f.Start)
	if err != nil {
		return model.Flight{}, fmt.Errorf("flight %s start location: %w", f.ID, err)
	}
	out := model.Flight{
		ID:            f.ID,
		Mission:       f.Mission,
		StartTime:     f.StartTime,
		StartLocation: start,
		StartBattery:  f.Battery,
	}
	if !f.EndTime.IsZero() {
		out.EndTime = sql.NullTime{Time: f.EndTime, Valid: true}
	}
	return out, nil
}

// CoreToSnapshot converts a snapshot to its GORM row.
func CoreToSnapshot(s core.Snapshot, ref geo.Georef) (model.Snapshot, error) {
	loc, err := ref.Point(s.Position)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %d location: %w", s.Seq, err)
	}
	return model.Snapshot{
		FlightID:  s.FlightID,
		Seq:       s.Seq,
		Time:      s.Time,
		Location:  loc,
		X:         s.Position.X,
		Y:         s.Position.Y,
		Altitude:  s.Position.Altitude,
		Rotation:  s.Position.Rotation,
		FieldType: string(s.Game.FieldType),
		Power:     s.Power.String(),
		Battery:   s.Game.BatteryLevel,
		Score:     s.Game.Score,
		Speed:     s.Speed,
		Recording: s.IsRecording,
		Mission:   s.Game.Mission,
	}, nil
}

// CoreToNotification converts a notification to its GORM row.
func CoreToNotification(n core.Notification) (model.Notification, error) {
	data := datatypes.JSON("{}")
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return model.Notification{}, fmt.Errorf("marshal notification data: %w", err)
		}
		data = datatypes.JSON(raw)
	}

	return model.Notification{
		FlightID: sql.NullString{String: n.FlightID, Valid: n.FlightID != ""},
		Seq:      n.Seq,
		Time:     n.Time,
		Level:    string(n.Level),
		Kind:     n.Kind,
		Message:  n.Message,
		Data:     data,
	}, nil
}

// SnapshotToCore rebuilds the recorded part of a snapshot. Scene and drag
// state are presentation-only and not stored.
func SnapshotToCore(m model.Snapshot) core.Snapshot {
	power := parsePower(m.Power)
	return core.Snapshot{
		Seq:      m.Seq,
		FlightID: m.FlightID,
		Time:     m.Time,
		Position: core.Position{X: m.X, Y: m.Y, Altitude: m.Altitude, Rotation: m.Rotation},
		Game: core.GameState{
			Score:        m.Score,
			Mission:      m.Mission,
			BatteryLevel: m.Battery,
			IsCharging:   power == core.PowerCharging,
			FieldType:    core.FieldType(m.FieldType),
		},
		Power:       power,
		IsDroneOn:   power != core.PowerOff,
		Speed:       m.Speed,
		IsRecording: m.Recording,
	}
}

// NotificationToCore converts a stored notification back.
func NotificationToCore(m model.Notification) (core.Notification, error) {
	n := core.Notification{
		FlightID: m.FlightID.String,
		Seq:      m.Seq,
		Time:     m.Time,
		Level:    core.Level(m.Level),
		Kind:     m.Kind,
		Message:  m.Message,
	}
	if len(m.Data) > 0 && string(m.Data) != "{}" {
		if err := json.Unmarshal(m.Data, &n.Data); err != nil {
			return core.Notification{}, fmt.Errorf("unmarshal notification data: %w", err)
		}
	}
	return n, nil
}

func parsePower(s string) core.PowerState {
	switch s {
	case core.PowerDraining.String():
		return core.PowerDraining
	case core.PowerCharging.String():
		return core.PowerCharging
	default:
		return core.PowerOff
	}
}
