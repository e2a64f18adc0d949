package mission

import (
	"fmt"

	"github.com/farmassist/dronesim/internal/zone"
	"github.com/farmassist/dronesim/pkg/core"
)

// DefaultMission is the label shown for a fresh flight.
const DefaultMission = "Explore the farm"

// DefaultPhotoBonus is awarded for a photo taken over a field.
const DefaultPhotoBonus = 10

// Context holds the current mission, score and field under the drone. It
// produces notification drafts; the simulator stamps and publishes them.
// Not safe for concurrent use on its own.
type Context struct {
	mission    string
	photoBonus int
	score      int
	field      core.FieldType
}

// NewContext creates a Context with the given mission label and photo bonus.
func NewContext(mission string, photoBonus int) *Context {
	if mission == "" {
		mission = DefaultMission
	}
	return &Context{
		mission:    mission,
		photoBonus: photoBonus,
		field:      core.FieldNone,
	}
}

// Mission returns the mission label.
func (c *Context) Mission() string {
	return c.mission
}

// SetMission replaces the mission label.
func (c *Context) SetMission(label string) {
	c.mission = label
}

// Score returns the accumulated score.
func (c *Context) Score() int {
	return c.score
}

// Field returns the field type last derived from the position.
func (c *Context) Field() core.FieldType {
	return c.field
}

// UpdatePosition re-derives the field under p. Entering a new field other
// than none yields a zone_entered draft. Score is never changed here.
func (c *Context) UpdatePosition(p core.Position) []core.Notification {
	next := zone.ClassifyPosition(p)
	if next == c.field {
		return nil
	}
	c.field = next
	if next == core.FieldNone {
		return nil
	}
	return []core.Notification{{
		Level:   core.LevelInfo,
		Kind:    core.KindZoneEntered,
		Message: fmt.Sprintf("Entered %s area", next),
		Data:    map[string]any{"field": string(next)},
	}}
}

// CapturePhoto records a photo. Every photo is confirmed; photos over a
// field also award the bonus.
func (c *Context) CapturePhoto() []core.Notification {
	out := []core.Notification{{
		Level:   core.LevelSuccess,
		Kind:    core.KindPhotoCaptured,
		Message: "Drone photo captured!",
	}}
	if c.field == core.FieldNone {
		return out
	}

	c.score += c.photoBonus
	return append(out, core.Notification{
		Level:   core.LevelSuccess,
		Kind:    core.KindPhotoScored,
		Message: fmt.Sprintf("+%d points for %s field photo!", c.photoBonus, c.field),
		Data: map[string]any{
			"field":  string(c.field),
			"points": c.photoBonus,
			"score":  c.score,
		},
	})
}

// Recording confirms a recording toggle. Recordings do not score.
func (c *Context) Recording(started bool) []core.Notification {
	if started {
		return []core.Notification{{
			Level:   core.LevelSuccess,
			Kind:    core.KindRecordingStarted,
			Message: "Drone recording started!",
		}}
	}
	return []core.Notification{{
		Level:   core.LevelInfo,
		Kind:    core.KindRecordingStopped,
		Message: "Drone recording stopped",
	}}
}

// Reset clears the score and field for a new session.
func (c *Context) Reset() {
	c.score = 0
	c.field = core.FieldNone
}
