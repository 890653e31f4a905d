// Package geom holds the geometry and extent types shared by selection and
// the transaction codec. Coordinates are stored as orb geometries tagged with
// the CRS they are expressed in.
package geom

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Extent is an axis-aligned bounding box in map units.
type Extent struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// NewExtent orders the corners so that MinX <= MaxX and MinY <= MaxY.
func NewExtent(x1, y1, x2, y2 float64) Extent {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Extent{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// ExtentOf converts an orb bound.
func ExtentOf(b orb.Bound) Extent {
	return Extent{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
}

func (e Extent) Width() float64  { return e.MaxX - e.MinX }
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// IsDegenerate reports a zero-area (or inverted) extent.
func (e Extent) IsDegenerate() bool {
	return e.Width() <= 0 || e.Height() <= 0
}

func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

// Intersects is inclusive: extents sharing only an edge intersect.
func (e Extent) Intersects(o Extent) bool {
	return e.MinX <= o.MaxX && e.MaxX >= o.MinX && e.MinY <= o.MaxY && e.MaxY >= o.MinY
}

// Polygon returns the closed ring of the extent, counter-clockwise from MinX,MinY.
func (e Extent) Polygon() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{e.MinX, e.MinY},
		{e.MaxX, e.MinY},
		{e.MaxX, e.MaxY},
		{e.MinX, e.MaxY},
		{e.MinX, e.MinY},
	}}
}

// String matches the WFS bbox ordering minx,miny,maxx,maxy.
func (e Extent) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return strings.Join([]string{f(e.MinX), f(e.MinY), f(e.MaxX), f(e.MaxY)}, ",")
}
