package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// IntersectsExtent is the exact test used after the bounding-box prefilter.
func (g Geometry) IntersectsExtent(e Extent) bool {
	if g.coords == nil {
		return false
	}
	return geometryIntersects(g.coords, e)
}

func geometryIntersects(g orb.Geometry, e Extent) bool {
	if !ExtentOf(g.Bound()).Intersects(e) {
		return false
	}

	switch v := g.(type) {
	case orb.Point:
		return e.Contains(v[0], v[1])

	case orb.MultiPoint:
		for _, p := range v {
			if e.Contains(p[0], p[1]) {
				return true
			}
		}
		return false

	case orb.LineString:
		return pathIntersects(v, e)

	case orb.MultiLineString:
		for _, ls := range v {
			if pathIntersects(ls, e) {
				return true
			}
		}
		return false

	case orb.Polygon:
		return polygonIntersects(v, e)

	case orb.MultiPolygon:
		for _, p := range v {
			if polygonIntersects(p, e) {
				return true
			}
		}
		return false

	default:
		// bound overlap already established
		return true
	}
}

func pathIntersects(pts []orb.Point, e Extent) bool {
	switch len(pts) {
	case 0:
		return false
	case 1:
		return e.Contains(pts[0][0], pts[0][1])
	}
	for i := 1; i < len(pts); i++ {
		if segmentIntersects(pts[i-1], pts[i], e) {
			return true
		}
	}
	return false
}

func polygonIntersects(p orb.Polygon, e Extent) bool {
	for _, ring := range p {
		if pathIntersects(ring, e) {
			return true
		}
	}
	// no boundary crossing: either the extent is fully inside the polygon or
	// fully outside it (or inside a hole)
	return planar.PolygonContains(p, orb.Point{(e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2})
}

// segmentIntersects clips segment a-b against e (Liang-Barsky). Touching the
// boundary counts as an intersection.
func segmentIntersects(a, b orb.Point, e Extent) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := b[0]-a[0], b[1]-a[1]

	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}

	return clip(-dx, a[0]-e.MinX) &&
		clip(dx, e.MaxX-a[0]) &&
		clip(-dy, a[1]-e.MinY) &&
		clip(dy, e.MaxY-a[1]) &&
		t0 <= t1
}
