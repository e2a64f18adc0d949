// Package scenario replays scripted control sequences against the
// simulator and checks each step's outcome.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/handlers"
	"github.com/farmassist/dronesim/pkg/core"
)

// ExpectOK is the implicit expectation of a step without "expect".
const ExpectOK = "ok"

// ExpectRejected matches any command rejection.
const ExpectRejected = "rejected"

// Step is one scripted command.
type Step struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	Repeat  int      `yaml:"repeat,omitempty"`
	// Expect is ExpectOK, ExpectRejected or a rejection reason such as
	// "not_powered_on".
	Expect string `yaml:"expect,omitempty"`
}

// Scenario is a named list of steps.
type Scenario struct {
	Name    string `yaml:"name"`
	Mission string `yaml:"mission,omitempty"`
	// Strict stops at the first step whose outcome differs from Expect.
	Strict bool   `yaml:"strict,omitempty"`
	Steps  []Step `yaml:"steps"`
}

// Result is the outcome of one executed command.
type Result struct {
	Step     int           `json:"step"`
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	Outcome  string        `json:"outcome"`
	Expected string        `json:"expected"`
	Error    string        `json:"error,omitempty"`
	Snapshot core.Snapshot `json:"snapshot"`
}

// Passed reports whether the outcome matched the expectation.
func (r Result) Passed() bool {
	switch r.Expected {
	case r.Outcome:
		return true
	case ExpectRejected:
		return r.Outcome != ExpectOK
	}
	return false
}

// Report collects the results of a run.
type Report struct {
	Name     string        `json:"name"`
	Results  []Result      `json:"results"`
	Failures []Result      `json:"failures,omitempty"`
	Final    core.Snapshot `json:"final"`
}

// Passed reports whether every step met its expectation.
func (r *Report) Passed() bool {
	return len(r.Failures) == 0
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Friendly command names such as
// "drag-start" are normalized to their command constants.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, errors.New("scenario has no steps")
	}

	known := handlers.Commands()
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if strings.TrimSpace(st.Command) == "" {
			return nil, fmt.Errorf("step %d: missing command", i+1)
		}
		st.Command = handlers.CommandName(st.Command)
		if !slices.Contains(known, st.Command) {
			return nil, fmt.Errorf("step %d: unknown command %s", i+1, st.Command)
		}
		if st.Repeat < 0 {
			return nil, fmt.Errorf("step %d: negative repeat", i+1)
		}
		if st.Repeat == 0 {
			st.Repeat = 1
		}
		st.Expect = strings.ToLower(strings.TrimSpace(st.Expect))
		if st.Expect == "" {
			st.Expect = ExpectOK
		}
	}
	return &sc, nil
}

// Dependencies holds what a run needs.
type Dependencies struct {
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
}

// Run executes sc step by step. Rejections are recorded as outcomes;
// any other dispatch error aborts the run and is returned with the partial
// report.
func Run(ctx context.Context, deps Dependencies, sc *Scenario) (*Report, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scenario", "scenario", sc.Name)

	report := &Report{Name: sc.Name}

	if sc.Mission != "" {
		if _, err := deps.Dispatcher.Dispatch(dispatcher.Event{
			Command: handlers.CmdMission,
			Args:    []string{sc.Mission},
		}); err != nil {
			return report, fmt.Errorf("setting mission: %w", err)
		}
	}

	for i, st := range sc.Steps {
		for n := 0; n < st.Repeat; n++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			res, err := execute(deps.Dispatcher, i+1, st)
			if err != nil {
				return report, err
			}
			report.Results = append(report.Results, res)

			if !res.Passed() {
				log.Warn("Step outcome differs",
					"step", res.Step, "command", res.Command,
					"expected", res.Expected, "outcome", res.Outcome)
				report.Failures = append(report.Failures, res)
				if sc.Strict {
					report.Final = res.Snapshot
					return report, nil
				}
			} else {
				log.Debug("Step passed", "step", res.Step, "command", res.Command, "outcome", res.Outcome)
			}
			report.Final = res.Snapshot
		}
	}

	if state, err := deps.Dispatcher.Dispatch(dispatcher.Event{Command: handlers.CmdState}); err == nil {
		if snap, ok := state.(core.Snapshot); ok {
			report.Final = snap
		}
	}

	log.Info("Scenario finished",
		"steps", len(report.Results),
		"failures", len(report.Failures),
		"score", report.Final.Game.Score)
	return report, nil
}

func execute(d *dispatcher.Dispatcher, step int, st Step) (Result, error) {
	res := Result{
		Step:     step,
		Command:  st.Command,
		Args:     st.Args,
		Expected: st.Expect,
		Outcome:  ExpectOK,
	}

	out, err := d.Dispatch(dispatcher.Event{Command: st.Command, Args: st.Args})
	switch {
	case err == nil:
		if snap, ok := out.(core.Snapshot); ok {
			res.Snapshot = snap
		}
	case core.IsRejection(err):
		res.Outcome = core.RejectionReason(err)
		res.Error = err.Error()
		if state, serr := d.Dispatch(dispatcher.Event{Command: handlers.CmdState}); serr == nil {
			res.Snapshot, _ = state.(core.Snapshot)
		}
	default:
		return res, fmt.Errorf("step %d (%s): %w", step, st.Command, err)
	}
	return res, nil
}
