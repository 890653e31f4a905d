package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	mylog "github.com/lauacosta/GIS-TPI/internal/logger"
)

type insertRequest struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties,omitempty"`
	CRS        string            `json:"crs,omitempty"`
}

// POST /features/{layer}. Transaction outcomes are always 200; the body
// carries ok, status and message.
func (a *API) insertFeature(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	ctx := mylog.WithLayer(r.Context(), layer)

	var req insertRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	g, err := a.geometryIn(req.Geometry, req.CRS)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	g, err = geom.ToWGS84(g)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.wfst.InsertFeature(ctx, a.workspace, layer, g, req.Properties)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if res.OK {
		a.layers.Refresh(layer)
	}
	writeJSON(w, http.StatusOK, res)
}

// DELETE /features/{layer}/{fid}
func (a *API) deleteFeature(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	fid := chi.URLParam(r, "fid")
	res := a.wfst.DeleteFeature(mylog.WithLayer(r.Context(), layer), a.workspace, layer, fid)
	if res.OK {
		a.layers.Refresh(layer)
	}
	writeJSON(w, http.StatusOK, res)
}
