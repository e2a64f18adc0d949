package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/farmassist/dronesim/pkg/core"
)

// Track builds the flight path as an EPSG:3857 line string.
// Consecutive duplicate positions are skipped.
func (g Georef) Track(positions []core.Position) (geom.LineString, error) {
	flat := make([]float64, 0, len(positions)*2)
	var last geom.XY
	for i, p := range positions {
		x, y := g.Mercator(p)
		xy := geom.XY{X: x, Y: y}
		if i > 0 && xy == last {
			continue
		}
		flat = append(flat, x, y)
		last = xy
	}

	if len(flat) < 4 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 distinct points, got %d", len(flat)/2)
	}

	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}
