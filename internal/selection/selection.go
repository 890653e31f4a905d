// Package selection picks the features under a drag box, across wrapped
// world copies and rotated views.
package selection

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/observability"
)

// UnnamedLayer is reported for hits on layers without a name.
const UnnamedLayer = "Capa sin nombre"

// FeatureSource is a layer's spatial index. FeaturesInExtent may return
// features whose geometry only overlaps e by bounding box.
type FeatureSource interface {
	FeaturesInExtent(e geom.Extent) []*model.Feature
}

type CandidateLayer struct {
	Name    string
	Visible bool
	Source  FeatureSource
}

type ViewState struct {
	ProjectionExtent geom.Extent
	Rotation         float64 // radians
}

// DragBox is the drag rectangle in map coordinates. In a rotated view it is
// the screen rectangle turned by the view rotation.
type DragBox struct {
	geometry geom.Geometry
}

// BoxFromExtent is an axis-aligned drag box.
func BoxFromExtent(e geom.Extent) DragBox {
	return DragBox{geometry: geom.NewPolygon([]orb.Point(e.Polygon()[0]), "")}
}

// NewDragBox builds the drag box of a view rotated by rotation radians about
// anchor, given the rectangle as drawn in the unrotated view frame.
func NewDragBox(frame geom.Extent, rotation float64, anchor orb.Point) DragBox {
	b := BoxFromExtent(frame)
	if rotation != 0 {
		b.geometry = b.geometry.Rotate(rotation, anchor)
	}
	return b
}

func (d DragBox) Geometry() geom.Geometry { return d.geometry.Clone() }
func (d DragBox) Extent() geom.Extent     { return d.geometry.Extent() }

// Hit is a selected feature tagged with its layer. The feature itself is
// never modified.
type Hit struct {
	Layer   string         `json:"layer"`
	Feature *model.Feature `json:"feature"`
}

// WorldExtent is the part of a drag that falls in one world copy, shifted
// into the primary world's coordinates.
type WorldExtent struct {
	World  int
	Extent geom.Extent
}

// WorldExtents enumerates the world copies spanned by drag. A projection
// without width does not wrap. Copies strictly between the first and last
// world are fully covered and all shift onto the whole projection, so they
// are reported once, under the first of them.
func WorldExtents(drag, projection geom.Extent) []WorldExtent {
	worldWidth := projection.Width()
	if worldWidth <= 0 {
		return []WorldExtent{{World: 0, Extent: drag}}
	}
	start := worldIndex(drag.MinX, projection.MinX, worldWidth)
	end := worldIndex(drag.MaxX, projection.MinX, worldWidth)

	worlds := []int{start}
	if end-start >= 2 {
		worlds = append(worlds, start+1)
	}
	if end > start {
		worlds = append(worlds, end)
	}

	out := make([]WorldExtent, 0, len(worlds))
	for _, world := range worlds {
		shift := float64(world) * worldWidth
		left := math.Max(drag.MinX-shift, projection.MinX)
		right := math.Min(drag.MaxX-shift, projection.MaxX)
		out = append(out, WorldExtent{
			World:  world,
			Extent: geom.Extent{MinX: left, MinY: drag.MinY, MaxX: right, MaxY: drag.MaxY},
		})
	}
	return out
}

// maxWorld bounds world indexes so huge coordinates stay within int range.
const maxWorld = 1 << 30

func worldIndex(x, origin, width float64) int {
	w := math.Floor((x - origin) / width)
	return int(math.Max(-maxWorld, math.Min(maxWorld, w)))
}

// IsOblique reports whether rotation is not a multiple of a right angle, in
// which case bounding boxes no longer match the drawn rectangle.
func IsOblique(rotation float64) bool {
	return math.Mod(rotation, math.Pi/2) != 0
}

// Select returns the features of visible layers that intersect drag. Each
// feature appears at most once, tagged with the first layer it was found in.
func Select(drag DragBox, view ViewState, layers []CandidateLayer) []Hit {
	dragExtent := drag.Extent()
	if dragExtent.IsDegenerate() {
		observability.ObserveSelection(0, 0)
		return nil
	}

	oblique := IsOblique(view.Rotation)
	anchor := orb.Point{0, 0}
	worldWidth := view.ProjectionExtent.Width()

	worlds := WorldExtents(dragExtent, view.ProjectionExtent)
	seen := make(map[*model.Feature]struct{})
	var hits []Hit

	for _, we := range worlds {
		var rotated geom.Extent
		if oblique {
			shifted := drag.geometry
			if worldWidth > 0 {
				shifted = shifted.Translate(-float64(we.World)*worldWidth, 0)
			}
			rotated = shifted.Rotate(-view.Rotation, anchor).Extent()
		}

		for _, l := range layers {
			if !l.Visible || l.Source == nil {
				continue
			}
			for _, f := range l.Source.FeaturesInExtent(we.Extent) {
				if f == nil || f.Geometry.IsZero() {
					continue
				}
				if _, dup := seen[f]; dup {
					continue
				}
				if !f.Geometry.IntersectsExtent(we.Extent) {
					continue
				}
				if oblique && !f.Geometry.Rotate(-view.Rotation, anchor).IntersectsExtent(rotated) {
					continue
				}
				seen[f] = struct{}{}
				hits = append(hits, Hit{Layer: layerLabel(l.Name), Feature: f})
			}
		}
	}

	observability.ObserveSelection(len(worlds), len(hits))
	return hits
}

func layerLabel(name string) string {
	if name == "" {
		return UnnamedLayer
	}
	return name
}
