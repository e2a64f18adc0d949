package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&RecorderInfo{},
	&Flight{},
	&Snapshot{},
	&Notification{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// RecorderInfo identifies the installation that produced a database.
type RecorderInfo struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     string    `json:"version" gorm:"size:32"`
	FieldOrigin string    `json:"fieldOrigin" gorm:"size:64"` // "lon,lat" of the field's top-left corner
	FieldWidth  float64   `json:"fieldWidth"`
	FieldHeight float64   `json:"fieldHeight"`
}

func (*RecorderInfo) TableName() string {
	return "recorder_infos"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Flight is one powered session, from power-on to power-off.
type Flight struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	Mission       string          `json:"mission" gorm:"size:255"`
	StartTime     time.Time       `json:"startTime" gorm:"index:idx_flight_start_time"`
	EndTime       sql.NullTime    `json:"endTime"`
	StartLocation geom.Point      `json:"startLocation"` // EPSG:3857 with altitude as Z
	Path          geom.LineString `json:"path"`          // EPSG:3857, written at flight end
	StartBattery  float64         `json:"startBattery"`
	EndBattery    float64         `json:"endBattery"`
	FinalScore    int             `json:"finalScore"`
	SnapshotCount uint            `json:"snapshotCount"`
}

func (*Flight) TableName() string {
	return "flights"
}

// Snapshot is one published simulation state during a flight.
type Snapshot struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	FlightID string     `json:"flightId" gorm:"size:36;index:idx_snapshot_flight_id"`
	Seq      uint64     `json:"seq" gorm:"index:idx_snapshot_seq"`
	Time     time.Time  `json:"time"`
	Location geom.Point `json:"location"` // EPSG:3857 with altitude as Z

	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Altitude  float64 `json:"altitude"`
	Rotation  float64 `json:"rotation"`
	FieldType string  `json:"fieldType" gorm:"size:16"`
	Power     string  `json:"power" gorm:"size:16"`
	Battery   float64 `json:"battery"`
	Score     int     `json:"score"`
	Speed     int     `json:"speed"`
	Recording bool    `json:"recording" gorm:"default:false"`
	Mission   string  `json:"mission" gorm:"size:255"`
}

func (*Snapshot) TableName() string {
	return "snapshots"
}

// Notification is an advisory message. Rejections while the drone is off
// carry no flight.
type Notification struct {
	ID       uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	FlightID sql.NullString `json:"flightId" gorm:"size:36;index:idx_notification_flight_id"`
	Seq      uint64         `json:"seq"`
	Time     time.Time      `json:"time"`
	Level    string         `json:"level" gorm:"size:16"`
	Kind     string         `json:"kind" gorm:"size:32;index:idx_notification_kind"`
	Message  string         `json:"message" gorm:"size:255"`
	Data     datatypes.JSON `json:"data"`
}

func (*Notification) TableName() string {
	return "notifications"
}
