// Package zone holds the authoritative field geometry. The classifier and the
// map overlay both read from the tables here.
package zone

import "github.com/farmassist/dronesim/pkg/core"

// Rect is a closed axis-aligned rectangle in normalized field coordinates.
type Rect struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Contains reports whether (x, y) lies inside r, boundary included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Zone is a named field rectangle.
type Zone struct {
	Field core.FieldType `json:"field"`
	Rect  Rect           `json:"rect"`
}

// fieldZones is tested in order; the first match wins.
var fieldZones = []Zone{
	{Field: core.FieldRice, Rect: Rect{MinX: 10, MaxX: 40, MinY: 20, MaxY: 60}},
	{Field: core.FieldWheat, Rect: Rect{MinX: 50, MaxX: 90, MinY: 30, MaxY: 60}},
	{Field: core.FieldOrchard, Rect: Rect{MinX: 20, MaxX: 80, MinY: 70, MaxY: 90}},
	{Field: core.FieldReservoir, Rect: Rect{MinX: 80, MaxX: 95, MinY: 10, MaxY: 25}},
}

// ChargingStation is the docking area in the bottom right corner.
var ChargingStation = Rect{MinX: 80, MaxX: 100, MinY: 85, MaxY: 100}

// Classify maps a position to the field under it.
func Classify(x, y float64) core.FieldType {
	for _, z := range fieldZones {
		if z.Rect.Contains(x, y) {
			return z.Field
		}
	}
	return core.FieldNone
}

// ClassifyPosition is Classify over a full drone position. Altitude and
// rotation are ignored.
func ClassifyPosition(p core.Position) core.FieldType {
	return Classify(p.X, p.Y)
}

// InChargingStation reports whether (x, y) is inside the charging station.
func InChargingStation(x, y float64) bool {
	return ChargingStation.Contains(x, y)
}

// Zones returns a copy of the field zones in priority order.
func Zones() []Zone {
	out := make([]Zone, len(fieldZones))
	copy(out, fieldZones)
	return out
}

var terrainColors = map[core.FieldType]string{
	core.FieldRice:       "#548c2f",
	core.FieldWheat:      "#d8c95d",
	core.FieldOrchard:    "#2e5229",
	core.FieldGreenhouse: "#73e2a7",
	core.FieldReservoir:  "#5d99c6",
	core.FieldNone:       "#3c5c2b",
}

// TerrainColor returns the ground color used by the 3D scene for a field.
func TerrainColor(f core.FieldType) string {
	if c, ok := terrainColors[f]; ok {
		return c
	}
	return terrainColors[core.FieldNone]
}
