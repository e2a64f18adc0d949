// Package motion computes drone positions from movement commands and drag
// gestures. All functions are pure; power and charging guards are applied by
// the simulator before calling in here.
package motion

import (
	"fmt"
	"math"

	"github.com/farmassist/dronesim/internal/util"
	"github.com/farmassist/dronesim/pkg/core"
)

// Plane and altitude bounds.
const (
	MinCoord    = 0.0
	MaxCoord    = 100.0
	MinAltitude = 10.0
	MaxAltitude = 100.0
)

// Headings assigned per direction, in degrees.
const (
	HeadingUp    = 0.0
	HeadingRight = 90.0
	HeadingDown  = 180.0
	HeadingLeft  = -90.0
)

// DefaultHoverAmplitude is the vertical bob of the 3D model in scene units.
const DefaultHoverAmplitude = 0.002

// ApplyDirection moves the drone speed units along one axis and sets the
// heading for that direction. "up" moves toward y=0.
func ApplyDirection(p core.Position, dir core.Direction, speed int) (core.Position, error) {
	next := p
	step := float64(speed)

	switch dir {
	case core.DirectionUp:
		next.Y = clampCoord(p.Y - step)
		next.Rotation = HeadingUp
	case core.DirectionDown:
		next.Y = clampCoord(p.Y + step)
		next.Rotation = HeadingDown
	case core.DirectionLeft:
		next.X = clampCoord(p.X - step)
		next.Rotation = HeadingLeft
	case core.DirectionRight:
		next.X = clampCoord(p.X + step)
		next.Rotation = HeadingRight
	default:
		return p, fmt.Errorf("%w: %q", core.ErrInvalidDirection, dir)
	}

	return next, nil
}

// ApplyAltitude changes altitude by delta, clamped to [10,100].
func ApplyAltitude(p core.Position, delta float64) core.Position {
	p.Altitude = util.Clamp(p.Altitude+delta, MinAltitude, MaxAltitude)
	return p
}

// ApplyDrag converts a pixel delta into a field percentage delta and moves
// the drone by it. The heading follows the dominant axis of the gesture; a
// zero delta keeps the current heading.
func ApplyDrag(p core.Position, dxPx, dyPx, widthPx, heightPx float64) (core.Position, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return p, fmt.Errorf("%w: %gx%g", core.ErrInvalidFieldSize, widthPx, heightPx)
	}

	next := p
	next.X = clampCoord(p.X + dxPx/widthPx*100)
	next.Y = clampCoord(p.Y + dyPx/heightPx*100)

	switch {
	case dxPx == 0 && dyPx == 0:
	case math.Abs(dxPx) > math.Abs(dyPx):
		if dxPx > 0 {
			next.Rotation = HeadingRight
		} else {
			next.Rotation = HeadingLeft
		}
	default:
		if dyPx > 0 {
			next.Rotation = HeadingDown
		} else {
			next.Rotation = HeadingUp
		}
	}

	return next, nil
}

// HoverOffset is the idle bob of the drone model after elapsed seconds.
func HoverOffset(elapsedSeconds, amplitude float64) float64 {
	return math.Sin(elapsedSeconds*2) * amplitude
}

// CameraDistance is the follow-camera distance for a given altitude.
func CameraDistance(altitude float64) float64 {
	return 5 + altitude/20
}

func clampCoord(v float64) float64 {
	return util.Clamp(v, MinCoord, MaxCoord)
}
