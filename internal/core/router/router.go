// Package router exposes the viewer core over HTTP.
package router

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/lauacosta/GIS-TPI/internal/core/executor"
	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
	"github.com/lauacosta/GIS-TPI/internal/draw"
	"github.com/lauacosta/GIS-TPI/internal/layers"
)

// Transactions is the WFS-T side used by the handlers; *wfst.Client
// satisfies it.
type Transactions interface {
	FetchSchema(ctx context.Context, workspace, layer string) (model.FeatureTypeSchema, error)
	InsertFeature(ctx context.Context, workspace, layer string, g geom.Geometry, attrs map[string]any) (ogc.TransactionResult, error)
	DeleteFeature(ctx context.Context, workspace, layer, featureID string) ogc.TransactionResult
}

type Deps struct {
	Logger   *slog.Logger
	Upstream executor.Interface
	Layers   *layers.Registry
	WFST     Transactions
	Sessions *draw.Registry
	// OnSessionClosed runs after a session is removed, e.g. to drop the
	// schemas cached for it.
	OnSessionClosed func(ctx context.Context, id string)
}

type API struct {
	logger    *slog.Logger
	up        executor.Interface
	layers    *layers.Registry
	wfst      Transactions
	sessions  *draw.Registry
	onClosed  func(ctx context.Context, id string)
	workspace string
	epsg      int
}

func New(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &API{
		logger:    d.Logger,
		up:        d.Upstream,
		layers:    d.Layers,
		wfst:      d.WFST,
		sessions:  d.Sessions,
		onClosed:  d.OnSessionClosed,
		workspace: d.Layers.Workspace(),
		epsg:      d.Layers.EPSG(),
	}
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/layers", a.listLayers)
	r.Get("/wfs/{layer}", a.proxyGetFeature)
	r.Post("/select", a.selectFeatures)
	r.Get("/schema/{layer}", a.schema)
	r.Post("/features/{layer}", a.insertFeature)
	r.Delete("/features/{layer}/{fid}", a.deleteFeature)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(a.withSession)
			r.Get("/", a.getSession)
			r.Delete("/", a.closeSession)
			r.Post("/activate", a.activate)
			r.Post("/deactivate", a.deactivate)
			r.Post("/shapes", a.addShape)
			r.Post("/undo", a.undo)
			r.Post("/save", a.save)
			r.Post("/clear", a.clear)
		})
	})
}
