// Package handlers turns string commands from controls, scenarios and the
// HTTP API into simulator calls.
package handlers

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/internal/util"
	"github.com/farmassist/dronesim/pkg/core"
)

// Command names.
const (
	CmdPower     = ":POWER:"
	CmdPowerOn   = ":POWER:ON:"
	CmdPowerOff  = ":POWER:OFF:"
	CmdMove      = ":MOVE:"
	CmdAltitude  = ":ALTITUDE:"
	CmdDragStart = ":DRAG:START:"
	CmdDragMove  = ":DRAG:MOVE:"
	CmdDragEnd   = ":DRAG:END:"
	CmdPhoto     = ":PHOTO:"
	CmdRecord    = ":RECORD:"
	CmdCharge    = ":CHARGE:"
	CmdSpeed     = ":SPEED:"
	CmdTick      = ":TICK:"
	CmdStep      = ":STEP:"
	CmdMission   = ":MISSION:"
	CmdReset     = ":RESET:"
	CmdState     = ":STATE:"
)

// DefaultAltitudeStep is the change applied by the "up" and "down"
// altitude arguments.
const DefaultAltitudeStep = 5.0

// maxTicks bounds a single :TICK: command, and :STEP: to as many periods.
const maxTicks = 100000

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Sim          *sim.Simulator
	Logger       *slog.Logger
	AltitudeStep float64
}

// Service provides one handler per command. Every successful handler
// returns the snapshot taken after the command ran.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AltitudeStep <= 0 {
		deps.AltitudeStep = DefaultAltitudeStep
	}
	return &Service{
		deps: deps,
		log:  deps.Logger.With("component", "handlers"),
	}
}

// RegisterHandlers registers every command with the dispatcher. Commands
// are synchronous so callers see the resulting state.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdPower, s.simple(s.deps.Sim.TogglePower), dispatcher.Logged())
	d.Register(CmdPowerOn, s.simple(s.deps.Sim.PowerOn), dispatcher.Logged())
	d.Register(CmdPowerOff, s.simple(s.deps.Sim.PowerOff), dispatcher.Logged())

	d.Register(CmdMove, s.handleMove, dispatcher.Logged())
	d.Register(CmdAltitude, s.handleAltitude, dispatcher.Logged())

	d.Register(CmdDragStart, s.handleDragStart, dispatcher.Logged())
	d.Register(CmdDragMove, s.handleDragMove, dispatcher.Logged())
	d.Register(CmdDragEnd, s.simple(s.deps.Sim.EndDrag), dispatcher.Logged())

	d.Register(CmdPhoto, s.simple(s.deps.Sim.CapturePhoto), dispatcher.Logged())
	d.Register(CmdRecord, s.simple(s.deps.Sim.ToggleRecording), dispatcher.Logged())
	d.Register(CmdCharge, s.simple(s.deps.Sim.ToggleCharging), dispatcher.Logged())
	d.Register(CmdSpeed, s.handleSpeed, dispatcher.Logged())

	d.Register(CmdTick, s.handleTick, dispatcher.Logged())
	d.Register(CmdStep, s.handleStep, dispatcher.Logged())

	d.Register(CmdMission, s.handleMission, dispatcher.Logged())
	d.Register(CmdReset, s.handleReset, dispatcher.Logged())
	d.Register(CmdState, s.handleState)
}

// simple adapts an argument-less simulator method.
func (s *Service) simple(fn func() error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		if err := fn(); err != nil {
			return nil, err
		}
		return s.deps.Sim.Snapshot(), nil
	}
}

func (s *Service) handleMove(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("move: %w: direction required", core.ErrInvalidArgument)
	}
	dir := core.Direction(util.NormalizeArg(e.Args[0]))
	if err := s.deps.Sim.Move(dir); err != nil {
		return nil, err
	}
	return s.deps.Sim.Snapshot(), nil
}

// handleAltitude accepts "up", "down" or a signed delta in meters.
func (s *Service) handleAltitude(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("altitude: %w: delta required", core.ErrInvalidArgument)
	}

	var delta float64
	switch arg := util.NormalizeArg(e.Args[0]); arg {
	case "up":
		delta = s.deps.AltitudeStep
	case "down":
		delta = -s.deps.AltitudeStep
	default:
		v, err := parseFloat("altitude", "delta", arg)
		if err != nil {
			return nil, err
		}
		delta = v
	}

	if err := s.deps.Sim.ChangeAltitude(delta); err != nil {
		return nil, err
	}
	return s.deps.Sim.Snapshot(), nil
}

func (s *Service) handleDragStart(e dispatcher.Event) (any, error) {
	v, err := parseFloats("drag", e.Args, "x", "y", "width", "height")
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sim.StartDrag(v[0], v[1], v[2], v[3]); err != nil {
		return nil, err
	}
	return s.deps.Sim.Snapshot(), nil
}

func (s *Service) handleDragMove(e dispatcher.Event) (any, error) {
	v, err := parseFloats("drag", e.Args, "x", "y")
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sim.DragTo(v[0], v[1]); err != nil {
		return nil, err
	}
	return s.deps.Sim.Snapshot(), nil
}

func (s *Service) handleSpeed(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("speed: %w: value required", core.ErrInvalidArgument)
	}
	v, err := strconv.Atoi(util.NormalizeArg(e.Args[0]))
	if err != nil {
		return nil, fmt.Errorf("speed: %w: %q is not an integer", core.ErrInvalidArgument, e.Args[0])
	}
	if err := s.deps.Sim.SetSpeed(v); err != nil {
		return nil, err
	}
	return s.deps.Sim.Snapshot(), nil
}

// handleTick applies n clock ticks, one when no count is given.
func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	n := 1
	if len(e.Args) > 0 {
		v, err := strconv.Atoi(util.NormalizeArg(e.Args[0]))
		if err != nil || v < 1 || v > maxTicks {
			return nil, fmt.Errorf("tick: %w: count must be between 1 and %d, got %q", core.ErrInvalidArgument, maxTicks, e.Args[0])
		}
		n = v
	}
	for i := 0; i < n; i++ {
		s.deps.Sim.Tick()
	}
	return s.deps.Sim.Snapshot(), nil
}

// handleStep advances by a wall-clock duration such as "1s" or "750ms".
func (s *Service) handleStep(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("step: %w: duration required", core.ErrInvalidArgument)
	}
	d, err := time.ParseDuration(util.NormalizeArg(e.Args[0]))
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("step: %w: invalid duration %q", core.ErrInvalidArgument, e.Args[0])
	}
	if limit := maxTicks * s.deps.Sim.Config().TickInterval; d > limit {
		return nil, fmt.Errorf("step: %w: duration must be at most %s, got %q", core.ErrInvalidArgument, limit, e.Args[0])
	}
	ticks := s.deps.Sim.Step(d)
	s.log.Debug("stepped simulation", "elapsed", d, "ticks", ticks)
	return s.deps.Sim.Snapshot(), nil
}

// handleMission keeps the label's case; only quotes and whitespace are
// trimmed.
func (s *Service) handleMission(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("mission: %w: label required", core.ErrInvalidArgument)
	}
	label := util.TrimQuotes(strings.TrimSpace(strings.Join(e.Args, " ")))
	if label == "" {
		return nil, fmt.Errorf("mission: %w: label required", core.ErrInvalidArgument)
	}
	s.deps.Sim.SetMission(label)
	return s.deps.Sim.Snapshot(), nil
}

func (s *Service) handleReset(dispatcher.Event) (any, error) {
	s.deps.Sim.Reset()
	s.log.Info("simulation reset")
	return s.deps.Sim.Snapshot(), nil
}

func (s *Service) handleState(dispatcher.Event) (any, error) {
	return s.deps.Sim.Snapshot(), nil
}

func parseFloat(op, name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(util.NormalizeArg(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: %w: %s %q is not a number", op, core.ErrInvalidArgument, name, raw)
	}
	return v, nil
}

// parseFloats parses one float per name from args in order.
func parseFloats(op string, args []string, names ...string) ([]float64, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%s: %w: expected %s", op, core.ErrInvalidArgument, strings.Join(names, ", "))
	}
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := parseFloat(op, name, args[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Commands returns the command names RegisterHandlers installs.
func Commands() []string {
	return []string{
		CmdPower, CmdPowerOn, CmdPowerOff, CmdMove, CmdAltitude,
		CmdDragStart, CmdDragMove, CmdDragEnd, CmdPhoto, CmdRecord,
		CmdCharge, CmdSpeed, CmdTick, CmdStep, CmdMission, CmdReset, CmdState,
	}
}

// CommandName converts a friendly name such as "drag-start" or "POWER_ON"
// into its command constant. Names already in command form pass through.
func CommandName(name string) string {
	name = strings.Trim(strings.TrimSpace(name), ":")
	name = strings.NewReplacer("-", ":", "_", ":", ".", ":", " ", ":").Replace(name)
	return ":" + strings.ToUpper(name) + ":"
}
