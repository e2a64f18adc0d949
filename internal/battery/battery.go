// Package battery implements the drone power state machine.
//
//	Off -> Draining       PowerOn (level > 0)
//	Draining -> Charging  StartCharging (at station, level < 100)
//	Charging -> Draining  StopCharging, or level reaches 100
//	Draining -> Off       PowerOff, or level reaches 0
//	Charging -> Off       PowerOff
package battery

import (
	"fmt"

	"github.com/farmassist/dronesim/internal/util"
	"github.com/farmassist/dronesim/pkg/core"
)

const (
	Empty = 0.0
	Full  = 100.0

	// levels are kept at this many decimals so repeated fractional steps
	// land on exact values
	precision = 6
)

// Config holds the battery tunables.
type Config struct {
	DrainPerTick  float64
	ChargePerTick float64
	LowLevel      float64
	CriticalLevel float64
}

// DefaultConfig returns the stock tuning: 0.1% drain and 1% charge per tick,
// low warning at 20% and critical at 10%.
func DefaultConfig() Config {
	return Config{
		DrainPerTick:  0.1,
		ChargePerTick: 1,
		LowLevel:      20,
		CriticalLevel: 10,
	}
}

// Event is a side effect produced by a battery transition.
type Event int

const (
	EventLow Event = iota + 1
	EventCritical
	EventDepleted
	EventChargingComplete
)

func (e Event) String() string {
	switch e {
	case EventLow:
		return "low"
	case EventCritical:
		return "critical"
	case EventDepleted:
		return "depleted"
	case EventChargingComplete:
		return "charging_complete"
	}
	return "unknown"
}

// Model is the battery level plus the tagged power state. It is not safe for
// concurrent use; the simulator serializes access.
type Model struct {
	cfg   Config
	state core.PowerState
	level float64
}

// New creates a powered-off battery at the given level.
func New(cfg Config, level float64) *Model {
	return &Model{
		cfg:   cfg,
		state: core.PowerOff,
		level: util.Clamp(level, Empty, Full),
	}
}

// State returns the current power state.
func (m *Model) State() core.PowerState {
	return m.state
}

// Level returns the battery level in percent.
func (m *Model) Level() float64 {
	return m.level
}

// IsOn reports whether the drone is powered.
func (m *Model) IsOn() bool {
	return m.state != core.PowerOff
}

// IsCharging reports whether the drone is docked and charging.
func (m *Model) IsCharging() bool {
	return m.state == core.PowerCharging
}

// PowerOn moves Off to Draining.
func (m *Model) PowerOn() error {
	if m.state != core.PowerOff {
		return nil
	}
	if m.level <= Empty {
		return core.ErrBatteryDepleted
	}
	m.state = core.PowerDraining
	return nil
}

// PowerOff moves any state to Off.
func (m *Model) PowerOff() {
	m.state = core.PowerOff
}

// StartCharging moves Draining to Charging. atStation is evaluated by the
// caller at the moment of the request and is not re-checked afterwards.
func (m *Model) StartCharging(atStation bool) error {
	switch m.state {
	case core.PowerOff:
		return core.ErrNotPoweredOn
	case core.PowerCharging:
		return nil
	}
	if !atStation {
		return core.ErrNotAtChargingStation
	}
	if m.level >= Full {
		return core.ErrBatteryFull
	}
	m.state = core.PowerCharging
	return nil
}

// StopCharging moves Charging back to Draining.
func (m *Model) StopCharging() error {
	if m.state == core.PowerOff {
		return core.ErrNotPoweredOn
	}
	m.state = core.PowerDraining
	return nil
}

// Tick applies one clock period: drain while Draining, charge while
// Charging, nothing while Off.
func (m *Model) Tick() []Event {
	switch m.state {
	case core.PowerDraining:
		return m.drain(m.cfg.DrainPerTick)
	case core.PowerCharging:
		return m.charge(m.cfg.ChargePerTick)
	}
	return nil
}

// Consume spends cost percent for an action. It is rejected while off or
// charging.
func (m *Model) Consume(cost float64) ([]Event, error) {
	switch m.state {
	case core.PowerOff:
		return nil, core.ErrNotPoweredOn
	case core.PowerCharging:
		return nil, core.ErrChargingInProgress
	}
	if cost < 0 {
		return nil, fmt.Errorf("%w: negative cost %g", core.ErrInvalidArgument, cost)
	}
	return m.drain(cost), nil
}

func (m *Model) drain(amount float64) []Event {
	prev := m.level
	m.level = util.RoundTo(util.Clamp(m.level-amount, Empty, Full), precision)

	var events []Event
	if crossed(prev, m.level, m.cfg.LowLevel) {
		events = append(events, EventLow)
	}
	if crossed(prev, m.level, m.cfg.CriticalLevel) {
		events = append(events, EventCritical)
	}
	if prev > Empty && m.level <= Empty {
		m.state = core.PowerOff
		events = append(events, EventDepleted)
	}
	return events
}

func (m *Model) charge(amount float64) []Event {
	m.level = util.RoundTo(util.Clamp(m.level+amount, Empty, Full), precision)
	if m.level >= Full {
		m.state = core.PowerDraining
		return []Event{EventChargingComplete}
	}
	return nil
}

// crossed reports a downward crossing of threshold between two levels.
func crossed(prev, next, threshold float64) bool {
	return prev > threshold && next <= threshold
}
