// Package sim owns the drone simulation state. Every command, drag event and
// clock tick is applied atomically under one lock, so concurrent callers
// observe the same ordering a single event loop would give them.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/farmassist/dronesim/internal/battery"
	"github.com/farmassist/dronesim/internal/feed"
	"github.com/farmassist/dronesim/internal/mission"
	"github.com/farmassist/dronesim/internal/motion"
	"github.com/farmassist/dronesim/internal/zone"
	"github.com/farmassist/dronesim/pkg/core"
)

// Speed bounds.
const (
	MinSpeed = 1
	MaxSpeed = 10
)

// Config holds the simulation tunables.
type Config struct {
	Start          core.Position
	Speed          int
	InitialBattery float64
	Battery        battery.Config
	PhotoCost      float64
	RecordingCost  float64
	PhotoBonus     int
	Mission        string
	TickInterval   time.Duration
	HoverAmplitude float64
	HistorySize    int
}

// DefaultConfig returns the stock simulation settings.
func DefaultConfig() Config {
	return Config{
		Start:          core.Position{X: 50, Y: 50, Altitude: 30, Rotation: 0},
		Speed:          5,
		InitialBattery: battery.Full,
		Battery:        battery.DefaultConfig(),
		PhotoCost:      0.5,
		RecordingCost:  1,
		PhotoBonus:     mission.DefaultPhotoBonus,
		Mission:        mission.DefaultMission,
		TickInterval:   200 * time.Millisecond,
		HoverAmplitude: motion.DefaultHoverAmplitude,
		HistorySize:    feed.DefaultCapacity,
	}
}

// Observer receives every published change. Calls are made while the
// simulator lock is held and must not block.
type Observer interface {
	FlightStarted(core.Flight)
	FlightEnded(core.Flight)
	SnapshotTaken(core.Snapshot)
	Notified(core.Notification)
}

// Dependencies holds the collaborators of a Simulator.
type Dependencies struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

type dragSession struct {
	lastX, lastY  float64
	width, height float64
}

// Simulator is the single owner of drone state.
type Simulator struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	battery   *battery.Model
	mission   *mission.Context
	pos       core.Position
	speed     int
	recording bool
	drag      *dragSession
	flight    *core.Flight

	elapsed time.Duration // drives the hover animation
	pending time.Duration // Step remainder shorter than one tick

	noteSeq uint64
	snapSeq uint64
	notes   *feed.Feed[core.Notification]
	snaps   *feed.Feed[core.Snapshot]

	observers    []Observer
	powerChanged chan struct{}
}

// New creates a powered-off simulator.
func New(cfg Config, deps Dependencies) *Simulator {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.Speed < MinSpeed || cfg.Speed > MaxSpeed {
		cfg.Speed = DefaultConfig().Speed
	}

	s := &Simulator{
		cfg:          cfg,
		clock:        deps.Clock,
		logger:       deps.Logger.With("component", "sim"),
		notes:        feed.New(cfg.HistorySize, func(n core.Notification) uint64 { return n.Seq }),
		snaps:        feed.New(cfg.HistorySize, func(s core.Snapshot) uint64 { return s.Seq }),
		powerChanged: make(chan struct{}, 1),
	}
	s.resetLocked()
	return s
}

func (s *Simulator) resetLocked() {
	s.battery = battery.New(s.cfg.Battery, s.cfg.InitialBattery)
	s.mission = mission.NewContext(s.cfg.Mission, s.cfg.PhotoBonus)
	s.pos = s.cfg.Start
	s.speed = s.cfg.Speed
	s.recording = false
	s.drag = nil
	s.flight = nil
	s.elapsed = 0
	s.pending = 0
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() Config {
	return s.cfg
}

// AddObserver registers o for all future changes.
func (s *Simulator) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// PowerChanged is signalled whenever the power state changes (on, off,
// charging started or stopped). The channel coalesces pending signals.
func (s *Simulator) PowerChanged() <-chan struct{} {
	return s.powerChanged
}

// Powered reports whether the drone is on.
func (s *Simulator) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battery.IsOn()
}

// Snapshot returns a copy of the current state.
func (s *Simulator) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildSnapshot()
}

// Notifications returns the retained notifications newer than seq.
func (s *Simulator) Notifications(since uint64) []core.Notification {
	return s.notes.Since(since)
}

// SubscribeNotifications streams new notifications. Deliveries to a full
// buffer are dropped.
func (s *Simulator) SubscribeNotifications(buffer int) (<-chan core.Notification, func()) {
	return s.notes.Subscribe(buffer)
}

// SubscribeSnapshots streams published snapshots. Deliveries to a full
// buffer are dropped.
func (s *Simulator) SubscribeSnapshots(buffer int) (<-chan core.Snapshot, func()) {
	return s.snaps.Subscribe(buffer)
}

// TogglePower powers the drone on when off and off when on.
func (s *Simulator) TogglePower() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.battery.IsOn() {
		s.powerOffLocked()
		return nil
	}
	return s.powerOnLocked()
}

// PowerOn powers the drone on. It is a no-op when already on.
func (s *Simulator) PowerOn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.battery.IsOn() {
		return nil
	}
	return s.powerOnLocked()
}

// PowerOff powers the drone off. It is a no-op when already off.
func (s *Simulator) PowerOff() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.battery.IsOn() {
		s.powerOffLocked()
	}
	return nil
}

func (s *Simulator) powerOnLocked() error {
	if err := s.battery.PowerOn(); err != nil {
		return s.reject("power", err, core.LevelError, "Cannot power on. Battery depleted!")
	}

	s.flight = &core.Flight{
		ID:        uuid.NewString(),
		Mission:   s.mission.Mission(),
		StartTime: s.clock.Now(),
		Start:     s.pos,
		Battery:   s.battery.Level(),
	}
	for _, o := range s.observers {
		o.FlightStarted(*s.flight)
	}
	s.logger.Info("drone powered on", "flight", s.flight.ID, "battery", s.battery.Level())

	s.notify(core.Notification{Level: core.LevelSuccess, Kind: core.KindPowerOn, Message: "Drone activated!"})
	s.notify(s.mission.UpdatePosition(s.pos)...)
	s.signalPower()
	s.publish()
	return nil
}

func (s *Simulator) powerOffLocked() {
	s.battery.PowerOff()
	s.notify(core.Notification{Level: core.LevelInfo, Kind: core.KindPowerOff, Message: "Drone deactivated"})
	s.shutdownLocked()
}

// shutdownLocked clears everything that only exists while powered,
// publishes the powered-off state as the flight's last snapshot and closes
// the flight. The battery must already be off.
func (s *Simulator) shutdownLocked() {
	s.drag = nil
	s.stopRecordingLocked()
	s.publish()

	if s.flight != nil {
		s.flight.EndTime = s.clock.Now()
		s.flight.Battery = s.battery.Level()
		s.logger.Info("drone powered off", "flight", s.flight.ID, "battery", s.battery.Level())
		for _, o := range s.observers {
			o.FlightEnded(*s.flight)
		}
		s.flight = nil
	}
	s.signalPower()
}

func (s *Simulator) stopRecordingLocked() {
	if !s.recording {
		return
	}
	s.recording = false
	s.notify(s.mission.Recording(false)...)
}

// guardFlight rejects commands that need a powered, undocked drone.
func (s *Simulator) guardFlight(op, chargingMessage string) error {
	switch {
	case !s.battery.IsOn():
		return s.reject(op, core.ErrNotPoweredOn, core.LevelError, "Drone is not powered on!")
	case s.battery.IsCharging():
		return s.reject(op, core.ErrChargingInProgress, core.LevelWarning, chargingMessage)
	}
	return nil
}

// Move moves the drone one speed step in dir.
func (s *Simulator) Move(dir core.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardFlight("move", "Drone cannot move while charging!"); err != nil {
		return err
	}
	next, err := motion.ApplyDirection(s.pos, dir, s.speed)
	if err != nil {
		return s.reject("move", err, core.LevelError, fmt.Sprintf("Unknown direction %q", dir))
	}
	s.moveTo(next)
	return nil
}

// ChangeAltitude changes the altitude by delta meters.
func (s *Simulator) ChangeAltitude(delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardFlight("altitude", "Drone cannot change altitude while charging!"); err != nil {
		return err
	}
	s.moveTo(motion.ApplyAltitude(s.pos, delta))
	return nil
}

// StartDrag begins a pointer drag at (x, y) over a field of width x height
// pixels.
func (s *Simulator) StartDrag(x, y, width, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardFlight("drag", "Drone cannot move while charging!"); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		err := fmt.Errorf("%w: %gx%g", core.ErrInvalidFieldSize, width, height)
		return s.reject("drag", err, core.LevelError, "Invalid field size")
	}
	s.drag = &dragSession{lastX: x, lastY: y, width: width, height: height}
	s.publish()
	return nil
}

// DragTo moves the drone by the pointer delta since the previous drag
// event.
func (s *Simulator) DragTo(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardFlight("drag", "Drone cannot move while charging!"); err != nil {
		return err
	}
	if s.drag == nil {
		return s.reject("drag", core.ErrNotDragging, core.LevelWarning, "No drag in progress")
	}

	d := s.drag
	next, err := motion.ApplyDrag(s.pos, x-d.lastX, y-d.lastY, d.width, d.height)
	if err != nil {
		return s.reject("drag", err, core.LevelError, "Invalid field size")
	}
	d.lastX, d.lastY = x, y
	s.moveTo(next)
	return nil
}

// EndDrag ends the current drag, if any.
func (s *Simulator) EndDrag() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag != nil {
		s.drag = nil
		s.publish()
	}
	return nil
}

// CapturePhoto takes a photo, scoring it when over a field.
func (s *Simulator) CapturePhoto() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardFlight("photo", "Cannot take photos while charging!"); err != nil {
		return err
	}
	s.notify(s.mission.CapturePhoto()...)
	if err := s.consumeLocked("photo", s.cfg.PhotoCost); err != nil {
		return err
	}
	s.publishIfOn()
	return nil
}

// ToggleRecording starts a recording, charging the start cost, or stops the
// running one for free.
func (s *Simulator) ToggleRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		s.stopRecordingLocked()
		s.publish()
		return nil
	}

	if err := s.guardFlight("record", "Cannot record while charging!"); err != nil {
		return err
	}
	s.recording = true
	s.notify(s.mission.Recording(true)...)
	if err := s.consumeLocked("record", s.cfg.RecordingCost); err != nil {
		return err
	}
	s.publishIfOn()
	return nil
}

// ToggleCharging docks the drone when it is at the charging station, or
// undocks it when charging.
func (s *Simulator) ToggleCharging() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.battery.IsOn() {
		return s.reject("charge", core.ErrNotPoweredOn, core.LevelError, "Drone is not powered on!")
	}

	if s.battery.IsCharging() {
		if err := s.battery.StopCharging(); err != nil {
			return s.reject("charge", err, core.LevelError, "Drone is not powered on!")
		}
		s.notify(core.Notification{Level: core.LevelInfo, Kind: core.KindChargingStopped, Message: "Charging stopped"})
		s.signalPower()
		s.publish()
		return nil
	}

	err := s.battery.StartCharging(zone.InChargingStation(s.pos.X, s.pos.Y))
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotAtChargingStation):
		return s.reject("charge", err, core.LevelError, "Move to charging station in the bottom right corner!")
	case errors.Is(err, core.ErrBatteryFull):
		return s.reject("charge", err, core.LevelInfo, "Battery is already full")
	default:
		return s.reject("charge", err, core.LevelError, err.Error())
	}

	s.drag = nil
	s.stopRecordingLocked()
	s.notify(core.Notification{Level: core.LevelSuccess, Kind: core.KindChargingStarted, Message: "Drone charging initiated!"})
	s.signalPower()
	s.publish()
	return nil
}

// SetSpeed sets the movement step. It is accepted while powered off.
func (s *Simulator) SetSpeed(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v < MinSpeed || v > MaxSpeed {
		err := fmt.Errorf("%w: got %d", core.ErrInvalidSpeed, v)
		return s.reject("speed", err, core.LevelWarning, fmt.Sprintf("Speed must be between %d and %d", MinSpeed, MaxSpeed))
	}
	if v == s.speed {
		return nil
	}
	s.speed = v
	s.publish()
	return nil
}

// SetMission replaces the mission label.
func (s *Simulator) SetMission(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mission.SetMission(label)
	s.publish()
}

// Reset powers the drone off and restores the initial state. Notification
// history is kept.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.battery.IsOn() {
		s.powerOffLocked()
	}
	s.resetLocked()
	s.publish()
}

// Tick advances the simulation by one clock period.
func (s *Simulator) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed += s.cfg.TickInterval
	s.tickLocked()
}

// Step advances the simulation by elapsed wall time, applying one tick per
// full period. The remainder carries over to the next call.
func (s *Simulator) Step(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed += elapsed
	s.pending += elapsed
	n := int(s.pending / s.cfg.TickInterval)
	s.pending %= s.cfg.TickInterval

	for i := 0; i < n; i++ {
		s.tickLocked()
	}
	return n
}

func (s *Simulator) tickLocked() {
	if !s.battery.IsOn() {
		return
	}
	s.handleBattery(s.battery.Tick())
	s.publishIfOn()
}

// consumeLocked spends an action cost. The guard has already run, so an
// error here means the battery state disagrees with the guard.
func (s *Simulator) consumeLocked(op string, cost float64) error {
	events, err := s.battery.Consume(cost)
	if err != nil {
		return s.reject(op, err, core.LevelError, err.Error())
	}
	s.handleBattery(events)
	return nil
}

func (s *Simulator) handleBattery(events []battery.Event) {
	for _, e := range events {
		data := map[string]any{"battery": s.battery.Level()}
		switch e {
		case battery.EventLow:
			s.notify(core.Notification{Level: core.LevelWarning, Kind: core.KindBatteryLow, Message: "Battery low! Find a charging station!", Data: data})
		case battery.EventCritical:
			s.notify(core.Notification{Level: core.LevelError, Kind: core.KindBatteryCritical, Message: "Critical battery level! Drone will auto-land soon!", Data: data})
		case battery.EventDepleted:
			s.notify(core.Notification{Level: core.LevelError, Kind: core.KindBatteryDepleted, Message: "Battery depleted! Drone powering off...", Data: data})
			s.logger.Warn("battery depleted, forcing power off")
			s.shutdownLocked()
		case battery.EventChargingComplete:
			s.notify(core.Notification{Level: core.LevelSuccess, Kind: core.KindChargingComplete, Message: "Battery fully charged", Data: data})
			s.signalPower()
		}
	}
}

func (s *Simulator) moveTo(next core.Position) {
	s.pos = next
	s.notify(s.mission.UpdatePosition(next)...)
	s.publish()
}

// reject records exactly one rejected notification and returns err wrapped
// with the command name.
func (s *Simulator) reject(op string, err error, level core.Level, message string) error {
	s.notify(core.Notification{
		Level:   level,
		Kind:    core.KindRejected,
		Message: message,
		Data: map[string]any{
			"command": op,
			"reason":  core.RejectionReason(err),
		},
	})
	s.logger.Debug("command rejected", "command", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Simulator) notify(drafts ...core.Notification) {
	if len(drafts) == 0 {
		return
	}
	now := s.clock.Now()
	for i := range drafts {
		s.noteSeq++
		drafts[i].Seq = s.noteSeq
		drafts[i].Time = now
		if s.flight != nil {
			drafts[i].FlightID = s.flight.ID
		}
		for _, o := range s.observers {
			o.Notified(drafts[i])
		}
	}
	s.notes.Push(drafts...)
}

func (s *Simulator) publish() {
	s.snapSeq++
	snap := s.buildSnapshot()
	for _, o := range s.observers {
		o.SnapshotTaken(snap)
	}
	s.snaps.Push(snap)
}

// publishIfOn publishes unless the battery just ran out, in which case the
// shutdown has already published the final state.
func (s *Simulator) publishIfOn() {
	if s.battery.IsOn() {
		s.publish()
	}
}

func (s *Simulator) signalPower() {
	select {
	case s.powerChanged <- struct{}{}:
	default:
	}
}

func (s *Simulator) buildSnapshot() core.Snapshot {
	field := s.mission.Field()
	snap := core.Snapshot{
		Seq:      s.snapSeq,
		Time:     s.clock.Now(),
		Position: s.pos,
		Game: core.GameState{
			Score:        s.mission.Score(),
			Mission:      s.mission.Mission(),
			BatteryLevel: s.battery.Level(),
			IsCharging:   s.battery.IsCharging(),
			FieldType:    field,
		},
		Power:       s.battery.State(),
		IsDroneOn:   s.battery.IsOn(),
		Speed:       s.speed,
		IsRecording: s.recording,
		Dragging:    s.drag != nil,
		Scene: core.Scene{
			HoverOffset:    motion.HoverOffset(s.elapsed.Seconds(), s.cfg.HoverAmplitude),
			CameraDistance: motion.CameraDistance(s.pos.Altitude),
			TerrainColor:   zone.TerrainColor(field),
		},
	}
	if s.flight != nil {
		snap.FlightID = s.flight.ID
	}
	return snap
}
