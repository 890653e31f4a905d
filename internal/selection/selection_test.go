package selection

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

var world = geom.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

// sliceSource is a naive index: bounding-box overlap only.
type sliceSource []*model.Feature

func (s sliceSource) FeaturesInExtent(e geom.Extent) []*model.Feature {
	var out []*model.Feature
	for _, f := range s {
		if f.Geometry.Extent().Intersects(e) {
			out = append(out, f)
		}
	}
	return out
}

func point(id string, x, y float64) *model.Feature {
	return &model.Feature{ID: id, Geometry: geom.NewPoint(x, y, "")}
}

func ids(hits []Hit) map[string]int {
	out := map[string]int{}
	for _, h := range hits {
		out[h.Feature.ID]++
	}
	return out
}

func TestSelect_SinglePointInsideDrag(t *testing.T) {
	f := point("isla.1", 5, 5)
	hits := Select(BoxFromExtent(geom.NewExtent(-10, -10, 10, 10)), ViewState{ProjectionExtent: world},
		[]CandidateLayer{{Name: "isla", Visible: true, Source: sliceSource{f}}})

	if len(hits) != 1 || hits[0].Feature != f || hits[0].Layer != "isla" {
		t.Fatalf("hits=%+v", hits)
	}
}

func TestSelect_NoWrapMatchesNaiveIntersection(t *testing.T) {
	src := sliceSource{
		point("in", 1, 1),
		point("edge", 10, 0),
		point("out", 11, 0),
		{ID: "line", Geometry: geom.NewLineString([]orb.Point{{-20, 20}, {20, -20}}, "")},
		{ID: "far-line", Geometry: geom.NewLineString([]orb.Point{{12, 20}, {20, 12}}, "")},
	}
	drag := geom.NewExtent(-10, -10, 10, 10)

	if n := len(WorldExtents(drag, world)); n != 1 {
		t.Fatalf("worlds=%d want 1", n)
	}

	got := ids(Select(BoxFromExtent(drag), ViewState{ProjectionExtent: world},
		[]CandidateLayer{{Name: "l", Visible: true, Source: src}}))

	for _, f := range src {
		want := f.Geometry.IntersectsExtent(drag)
		if (got[f.ID] == 1) != want {
			t.Fatalf("feature %s selected=%v want %v", f.ID, got[f.ID] == 1, want)
		}
	}
}

func TestWorldExtents_Antimeridian(t *testing.T) {
	got := WorldExtents(geom.NewExtent(170, -10, 190, 10), world)
	if len(got) != 2 {
		t.Fatalf("worlds=%+v", got)
	}
	if got[0].World != 0 || got[0].Extent != (geom.Extent{MinX: 170, MinY: -10, MaxX: 180, MaxY: 10}) {
		t.Fatalf("world 0=%+v", got[0])
	}
	if got[1].World != 1 || got[1].Extent != (geom.Extent{MinX: -180, MinY: -10, MaxX: -170, MaxY: 10}) {
		t.Fatalf("world 1=%+v", got[1])
	}

	west := WorldExtents(geom.NewExtent(-200, 0, -170, 5), world)
	if len(west) != 2 || west[0].World != -1 || west[0].Extent.MinX != 160 || west[0].Extent.MaxX != 180 {
		t.Fatalf("west=%+v", west)
	}
}

func TestWorldExtents_WideDragCollapsesFullWorlds(t *testing.T) {
	got := WorldExtents(geom.NewExtent(-1e8, -1, 1e8, 1), world)
	if len(got) != 3 {
		t.Fatalf("got %d worlds, want 3", len(got))
	}
	if got[0].Extent.MinX != 80 || got[0].Extent.MaxX != 180 {
		t.Fatalf("first world=%+v", got[0])
	}
	if got[1].World != got[0].World+1 || got[1].Extent.MinX != -180 || got[1].Extent.MaxX != 180 {
		t.Fatalf("middle world=%+v", got[1])
	}
	if got[2].Extent.MinX != -180 || got[2].Extent.MaxX != -80 {
		t.Fatalf("last world=%+v", got[2])
	}
}

func TestSelect_HugeDragDoesNotPanic(t *testing.T) {
	center := point("center", 0, 0)
	edge := point("edge", 179, 0.5)
	above := point("above", 0, 5)

	drag := geom.NewExtent(-1e20, -1, 1e20, 1)
	worlds := WorldExtents(drag, world)
	if len(worlds) > 3 {
		t.Fatalf("got %d worlds for a huge drag", len(worlds))
	}
	for _, we := range worlds {
		if we.Extent.MinX != -180 || we.Extent.MaxX != 180 {
			t.Fatalf("world %d extent=%+v, want whole projection", we.World, we.Extent)
		}
	}

	hits := Select(BoxFromExtent(drag), ViewState{ProjectionExtent: world},
		[]CandidateLayer{{Name: "l", Visible: true, Source: sliceSource{center, edge, above}}})
	got := ids(hits)
	if len(hits) != 2 || got["center"] != 1 || got["edge"] != 1 {
		t.Fatalf("hits=%v", got)
	}
}

func TestSelect_WrapReturnsBothCopiesOnce(t *testing.T) {
	east := point("east", 175, 0)
	west := point("west", -175, 0)
	boundary := point("boundary", 180, 0)
	spanning := &model.Feature{ID: "spanning", Geometry: geom.NewLineString([]orb.Point{{-179, 0}, {179, 0}}, "")}
	away := point("away", 0, 0)

	hits := Select(BoxFromExtent(geom.NewExtent(170, -10, 190, 10)), ViewState{ProjectionExtent: world},
		[]CandidateLayer{{Name: "l", Visible: true, Source: sliceSource{east, west, boundary, spanning, away}}})

	got := ids(hits)
	for _, id := range []string{"east", "west", "boundary", "spanning"} {
		if got[id] != 1 {
			t.Fatalf("%s selected %d times; hits=%v", id, got[id], got)
		}
	}
	if got["away"] != 0 {
		t.Fatalf("feature outside the drag was selected")
	}
}

func TestSelect_ObliqueUsesRotatedGeometry(t *testing.T) {
	inside := point("inside", 0.5, 0.5)
	corner := point("corner", 1.3, 1.3) // in the drag's bbox, outside the rotated rectangle

	drag := NewDragBox(geom.NewExtent(-1, -1, 1, 1), math.Pi/4, orb.Point{0, 0})
	if e := drag.Extent(); !(e.MaxX > 1.41 && e.MaxX < 1.42) {
		t.Fatalf("rotated drag extent=%+v", e)
	}

	got := ids(Select(drag, ViewState{ProjectionExtent: world, Rotation: math.Pi / 4},
		[]CandidateLayer{{Name: "l", Visible: true, Source: sliceSource{inside, corner}}}))

	if got["inside"] != 1 {
		t.Fatalf("feature inside the rotated drag must be selected: %v", got)
	}
	if got["corner"] != 0 {
		t.Fatalf("feature only inside the bounding box must not be selected: %v", got)
	}
}

func TestSelect_RightAngleRotationsUseBoundingBox(t *testing.T) {
	src := sliceSource{point("a", 0.5, 0.5), point("b", 1.3, 1.3), point("c", 3, 3)}
	drag := BoxFromExtent(geom.NewExtent(-1.5, -1.5, 1.5, 1.5))
	layers := []CandidateLayer{{Name: "l", Visible: true, Source: src}}

	base := ids(Select(drag, ViewState{ProjectionExtent: world}, layers))
	for _, rot := range []float64{math.Pi / 2, math.Pi, -math.Pi / 2, 2 * math.Pi} {
		if IsOblique(rot) {
			t.Fatalf("rotation %v reported as oblique", rot)
		}
		got := ids(Select(drag, ViewState{ProjectionExtent: world, Rotation: rot}, layers))
		if len(got) != len(base) || got["a"] != base["a"] || got["b"] != base["b"] || got["c"] != base["c"] {
			t.Fatalf("rotation %v: got %v want %v", rot, got, base)
		}
	}
}

func TestSelect_DoesNotMutateFeatures(t *testing.T) {
	poly := &model.Feature{ID: "p", Geometry: geom.NewPolygon([]orb.Point{{0, 0}, {0.5, 0}, {0.5, 0.5}, {0, 0.5}}, "")}
	before := poly.Geometry.Points()

	drag := NewDragBox(geom.NewExtent(-1, -1, 1, 1), math.Pi/6, orb.Point{0, 0})
	hits := Select(drag, ViewState{ProjectionExtent: world, Rotation: math.Pi / 6},
		[]CandidateLayer{{Name: "l", Visible: true, Source: sliceSource{poly}}})
	if len(hits) != 1 {
		t.Fatalf("hits=%+v", hits)
	}

	after := poly.Geometry.Points()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("geometry mutated at %d: %v -> %v", i, before[i], after[i])
		}
	}
	if poly.Layer != "" || poly.Attributes != nil {
		t.Fatalf("feature was tagged in place: %+v", poly)
	}
}

func TestSelect_DegenerateDragSelectsNothing(t *testing.T) {
	src := sliceSource{point("a", 0, 0)}
	layers := []CandidateLayer{{Name: "l", Visible: true, Source: src}}
	for _, e := range []geom.Extent{geom.NewExtent(0, -1, 0, 1), geom.NewExtent(-1, 0, 1, 0), {}} {
		if hits := Select(BoxFromExtent(e), ViewState{ProjectionExtent: world}, layers); len(hits) != 0 {
			t.Fatalf("degenerate drag %+v returned %+v", e, hits)
		}
	}
}

func TestSelect_SkipsHiddenAndUnusableLayers(t *testing.T) {
	f := point("a", 0, 0)
	g := point("b", 1, 1)
	hits := Select(BoxFromExtent(geom.NewExtent(-5, -5, 5, 5)), ViewState{ProjectionExtent: world}, []CandidateLayer{
		{Name: "hidden", Visible: false, Source: sliceSource{f}},
		{Name: "nil-source", Visible: true},
		{Name: "", Visible: true, Source: sliceSource{g, {ID: "no-geom"}}},
	})
	if len(hits) != 1 || hits[0].Feature != g || hits[0].Layer != UnnamedLayer {
		t.Fatalf("hits=%+v", hits)
	}
}

func TestSelect_SameFeatureInTwoLayersCountsOnce(t *testing.T) {
	f := point("shared", 0, 0)
	hits := Select(BoxFromExtent(geom.NewExtent(-1, -1, 1, 1)), ViewState{ProjectionExtent: world}, []CandidateLayer{
		{Name: "first", Visible: true, Source: sliceSource{f}},
		{Name: "second", Visible: true, Source: sliceSource{f}},
	})
	if len(hits) != 1 || hits[0].Layer != "first" {
		t.Fatalf("hits=%+v", hits)
	}
}
