package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Kind is the closed set of geometry variants the viewer handles.
type Kind int

const (
	KindInvalid Kind = iota
	KindPoint
	KindLineString
	KindPolygon
	KindMultiPoint
	KindMultiLineString
	KindMultiPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindLineString:
		return "LineString"
	case KindPolygon:
		return "Polygon"
	case KindMultiPoint:
		return "MultiPoint"
	case KindMultiLineString:
		return "MultiLineString"
	case KindMultiPolygon:
		return "MultiPolygon"
	default:
		return "Invalid"
	}
}

const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

var (
	ErrUnsupportedType = errors.New("geom: unsupported geometry type")
	ErrUnsupportedCRS  = errors.New("geom: unsupported crs")
)

// Geometry is a value type: every transform returns a new Geometry and
// leaves the receiver untouched.
type Geometry struct {
	kind   Kind
	coords orb.Geometry
	crs    string
}

func NewPoint(x, y float64, crs string) Geometry {
	return Geometry{kind: KindPoint, coords: orb.Point{x, y}, crs: crs}
}

func NewLineString(pts []orb.Point, crs string) Geometry {
	return Geometry{kind: KindLineString, coords: orb.LineString(pts).Clone(), crs: crs}
}

// NewPolygon builds a single-ring polygon. The ring is closed if the caller
// did not repeat the first vertex.
func NewPolygon(ring []orb.Point, crs string) Geometry {
	r := orb.Ring(ring).Clone()
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return Geometry{kind: KindPolygon, coords: orb.Polygon{r}, crs: crs}
}

// FromOrb wraps an orb geometry. Ring and Bound are promoted to polygons;
// collections are rejected.
func FromOrb(g orb.Geometry, crs string) (Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return Geometry{kind: KindPoint, coords: v, crs: crs}, nil
	case orb.LineString:
		return Geometry{kind: KindLineString, coords: v.Clone(), crs: crs}, nil
	case orb.Polygon:
		return Geometry{kind: KindPolygon, coords: v.Clone(), crs: crs}, nil
	case orb.Ring:
		return Geometry{kind: KindPolygon, coords: orb.Polygon{v.Clone()}, crs: crs}, nil
	case orb.Bound:
		return Geometry{kind: KindPolygon, coords: ExtentOf(v).Polygon(), crs: crs}, nil
	case orb.MultiPoint:
		return Geometry{kind: KindMultiPoint, coords: v.Clone(), crs: crs}, nil
	case orb.MultiLineString:
		return Geometry{kind: KindMultiLineString, coords: v.Clone(), crs: crs}, nil
	case orb.MultiPolygon:
		return Geometry{kind: KindMultiPolygon, coords: v.Clone(), crs: crs}, nil
	case nil:
		return Geometry{}, fmt.Errorf("%w: nil", ErrUnsupportedType)
	default:
		return Geometry{}, fmt.Errorf("%w: %s", ErrUnsupportedType, g.GeoJSONType())
	}
}

func (g Geometry) Kind() Kind   { return g.kind }
func (g Geometry) CRS() string  { return g.crs }
func (g Geometry) IsZero() bool { return g.kind == KindInvalid || g.coords == nil }

// Orb returns a copy of the underlying coordinates.
func (g Geometry) Orb() orb.Geometry {
	if g.coords == nil {
		return nil
	}
	return orb.Clone(g.coords)
}

func (g Geometry) Clone() Geometry {
	return Geometry{kind: g.kind, coords: g.Orb(), crs: g.crs}
}

func (g Geometry) Extent() Extent {
	if g.coords == nil {
		return Extent{}
	}
	return ExtentOf(g.coords.Bound())
}

func (g Geometry) Translate(dx, dy float64) Geometry {
	return g.mapPoints(func(p orb.Point) orb.Point {
		return orb.Point{p[0] + dx, p[1] + dy}
	})
}

// Rotate turns the geometry by angle radians (counter-clockwise) about anchor.
func (g Geometry) Rotate(angle float64, anchor orb.Point) Geometry {
	cos, sin := math.Cos(angle), math.Sin(angle)
	return g.mapPoints(func(p orb.Point) orb.Point {
		dx, dy := p[0]-anchor[0], p[1]-anchor[1]
		return orb.Point{
			anchor[0] + dx*cos - dy*sin,
			anchor[1] + dx*sin + dy*cos,
		}
	})
}

func (g Geometry) mapPoints(fn orb.Projection) Geometry {
	if g.coords == nil {
		return g
	}
	return Geometry{kind: g.kind, coords: project.Geometry(orb.Clone(g.coords), fn), crs: g.crs}
}

// ToWGS84 returns the geometry in lon/lat. Only web mercator input is
// reprojected; anything already in EPSG:4326 is returned as a copy.
func ToWGS84(g Geometry) (Geometry, error) {
	switch g.crs {
	case CRSWGS84, "":
		out := g.Clone()
		out.crs = CRSWGS84
		return out, nil
	case CRSWebMercator, "EPSG:900913":
		out := g.mapPoints(project.Mercator.ToWGS84)
		out.crs = CRSWGS84
		return out, nil
	default:
		return Geometry{}, fmt.Errorf("%w: %s", ErrUnsupportedCRS, g.crs)
	}
}

// Points returns the vertices of a Point, LineString or the exterior ring of
// a Polygon, in order.
func (g Geometry) Points() []orb.Point {
	switch v := g.coords.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.LineString:
		return append([]orb.Point(nil), v...)
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return append([]orb.Point(nil), v[0]...)
	default:
		return nil
	}
}
