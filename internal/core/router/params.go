package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
	"github.com/lauacosta/GIS-TPI/internal/draw"
	"github.com/lauacosta/GIS-TPI/internal/layers"
)

const maxBody = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, draw.ErrKindMismatch),
		errors.Is(err, geom.ErrUnsupportedCRS):
		return http.StatusBadRequest
	case errors.Is(err, draw.ErrUnknownSession),
		errors.Is(err, layers.ErrUnknownLayer):
		return http.StatusNotFound
	case errors.Is(err, draw.ErrNothingToUndo),
		errors.Is(err, draw.ErrNotDrawing),
		errors.Is(err, draw.ErrSaveInProgress):
		return http.StatusConflict
	case errors.Is(err, ogc.ErrUnsupportedGeometryKind),
		errors.Is(err, geom.ErrUnsupportedType):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	} else {
		a.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

// parseBBox reads minx,miny,maxx,maxy[,EPSG:code]. Without a code the map
// projection is assumed.
func parseBBox(raw string, defEPSG int) (model.BBox, int, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return model.BBox{}, 0, badRequest("bbox: expected minx,miny,maxx,maxy[,EPSG:code]")
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return model.BBox{}, 0, badRequest("bbox[%d]: %v", i, err)
		}
		v[i] = f
	}
	epsg := defEPSG
	if len(parts) == 5 {
		code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(parts[4])), "EPSG:")
		n, err := strconv.Atoi(code)
		if !ok || err != nil {
			return model.BBox{}, 0, badRequest("bbox srid %q", parts[4])
		}
		epsg = n
	}
	if v[2] <= v[0] || v[3] <= v[1] {
		return model.BBox{}, 0, badRequest("bbox must satisfy maxx>minx and maxy>miny")
	}
	return model.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: ogc.EPSG(epsg)}, epsg, nil
}

func extentFrom(v []float64) (geom.Extent, error) {
	if len(v) != 4 {
		return geom.Extent{}, badRequest("extent needs 4 numbers")
	}
	return geom.NewExtent(v[0], v[1], v[2], v[3]), nil
}

// defaultProjectionExtent is the world extent of the supported map projections.
func defaultProjectionExtent(epsg int) geom.Extent {
	switch epsg {
	case 4326:
		return geom.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	default:
		const half = 20037508.342789244
		return geom.Extent{MinX: -half, MinY: -half, MaxX: half, MaxY: half}
	}
}

// geometryIn decodes a GeoJSON geometry in crs (the map projection when empty).
func (a *API) geometryIn(g *geojson.Geometry, crs string) (geom.Geometry, error) {
	if g == nil || g.Geometry() == nil {
		return geom.Geometry{}, badRequest("geometry is required")
	}
	if crs == "" {
		crs = ogc.EPSG(a.epsg)
	}
	return geom.FromOrb(g.Geometry(), strings.ToUpper(strings.TrimSpace(crs)))
}

func featureJSON(f *model.Feature) *geojson.Feature {
	var g orb.Geometry
	if !f.Geometry.IsZero() {
		g = f.Geometry.Orb()
	}
	out := geojson.NewFeature(g)
	out.ID = f.ID
	for k, v := range f.Attributes {
		out.Properties[k] = v
	}
	return out
}
