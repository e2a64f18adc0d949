// Package geo places the normalized field plane on the globe.
// Points are stored as EPSG:3857 so that both sqlite (no spatial support,
// WKB blobs only) and PostGIS can read them back with the same Scan.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/farmassist/dronesim/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Georef anchors the field: the origin is the top-left corner of the plane
// (x=0, y=0) and the field extends east and south from it.
type Georef struct {
	OriginLon    float64
	OriginLat    float64
	WidthMeters  float64
	HeightMeters float64
}

// Valid reports whether the field has a usable size.
func (g Georef) Valid() bool {
	return g.WidthMeters > 0 && g.HeightMeters > 0
}

// Mercator places a plane position in EPSG:3857 meters. Ground distances
// are scaled by the projection's scale factor at the origin latitude, so
// the field keeps its real size around the origin.
func (g Georef) Mercator(p core.Position) (x, y float64) {
	ox, oy := To3857(g.OriginLon, g.OriginLat)
	k := 1 / math.Cos(g.OriginLat*math.Pi/180)

	east := p.X / 100 * g.WidthMeters
	south := p.Y / 100 * g.HeightMeters
	return ox + east*k, oy - south*k
}

// ToLonLat converts a plane position to WGS84 degrees.
func (g Georef) ToLonLat(p core.Position) (lon, lat float64) {
	x, y := g.Mercator(p)
	return To4326(x, y)
}

// Point converts a plane position to an EPSG:3857 point with the altitude as Z.
func (g Georef) Point(p core.Position) (geom.Point, error) {
	x, y := g.Mercator(p)
	point, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    p.Altitude,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), fmt.Errorf("point for %v: %w", p, err)
	}
	return point, nil
}

// To3857 projects WGS84 degrees onto web mercator meters.
func To3857(lon, lat float64) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(lon, lat, 0)
	return x, y
}

// To4326 converts web mercator meters back to WGS84 degrees.
func To4326(x, y float64) (lon, lat float64) {
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ = f(x, y, 0)
	return lon, lat
}

// ParseLonLat parses "lon,lat" or "lon,lat,elev", as given on the command line.
func ParseLonLat(coords string) (lon, lat, elev float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, s := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, 0, 0, ErrInvalidCoordinates
		}
	}
	lon, lat = vals[0], vals[1]
	if len(vals) == 3 {
		elev = vals[2]
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	return lon, lat, elev, nil
}
