package router

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
	mylog "github.com/lauacosta/GIS-TPI/internal/logger"
	"github.com/lauacosta/GIS-TPI/internal/selection"
)

type layerJSON struct {
	model.LayerDescriptor
	ZIndex  int  `json:"zIndex"`
	Visible bool `json:"visible"`
}

// GET /layers
func (a *API) listLayers(w http.ResponseWriter, r *http.Request) {
	descs, err := a.layers.LoadCatalogue(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	visible := a.layers.VisibleNames()
	out := make([]layerJSON, 0, len(descs))
	for _, d := range descs {
		out = append(out, layerJSON{
			LayerDescriptor: d,
			ZIndex:          d.ZIndex(),
			Visible:         slices.Contains(visible, d.RawName),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /wfs/{layer}?bbox=minx,miny,maxx,maxy[,EPSG:code]
func (a *API) proxyGetFeature(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		a.fail(w, r, badRequest("missing required parameter: bbox"))
		return
	}
	bbox, epsg, err := parseBBox(raw, a.epsg)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ctx := mylog.WithLayer(r.Context(), layer)
	a.up.ForwardGetFeature(w, r.WithContext(ctx), a.workspace, layer, &bbox, epsg)
}

type selectRequest struct {
	Extent           []float64  `json:"extent"`
	Rotation         float64    `json:"rotation"`
	Anchor           *orb.Point `json:"anchor,omitempty"`
	ProjectionExtent []float64  `json:"projectionExtent,omitempty"`
	Layers           []string   `json:"layers,omitempty"`
}

type hitJSON struct {
	Layer   string           `json:"layer"`
	Feature *geojson.Feature `json:"feature"`
}

// POST /select. Extent is the drag rectangle as drawn in the view frame;
// with a rotation it is turned about anchor (its center by default).
// Layers lists the visible layers; when empty the registry's visibility
// is used.
func (a *API) selectFeatures(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	frame, err := extentFrom(req.Extent)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view := selection.ViewState{ProjectionExtent: defaultProjectionExtent(a.epsg), Rotation: req.Rotation}
	if req.ProjectionExtent != nil {
		if view.ProjectionExtent, err = extentFrom(req.ProjectionExtent); err != nil {
			a.fail(w, r, err)
			return
		}
	}

	drag := selection.BoxFromExtent(frame)
	if req.Rotation != 0 {
		anchor := orb.Point{(frame.MinX + frame.MaxX) / 2, (frame.MinY + frame.MaxY) / 2}
		if req.Anchor != nil {
			anchor = *req.Anchor
		}
		drag = selection.NewDragBox(frame, req.Rotation, anchor)
	}

	candidates := a.layers.Candidates()
	if len(req.Layers) > 0 {
		for i := range candidates {
			candidates[i].Visible = slices.Contains(req.Layers, candidates[i].Name)
		}
	}

	if !drag.Extent().IsDegenerate() {
		for _, we := range selection.WorldExtents(drag.Extent(), view.ProjectionExtent) {
			for _, c := range candidates {
				if !c.Visible {
					continue
				}
				if _, err := a.layers.Load(r.Context(), c.Name, we.Extent); err != nil {
					a.fail(w, r, err)
					return
				}
			}
		}
	}

	hits := selection.Select(drag, view, candidates)
	out := make([]hitJSON, 0, len(hits))
	for _, h := range hits {
		out = append(out, hitJSON{Layer: h.Layer, Feature: featureJSON(h.Feature)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "hits": out})
}

// GET /schema/{layer}. A failed discovery still answers with the default
// schema, flagged as a fallback.
func (a *API) schema(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	s, err := a.wfst.FetchSchema(mylog.WithLayer(r.Context(), layer), a.workspace, layer)
	resp := map[string]any{"layer": layer, "schema": s, "fallback": err != nil}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
