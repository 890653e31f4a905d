package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/draw"
	mylog "github.com/lauacosta/GIS-TPI/internal/logger"
	"github.com/lauacosta/GIS-TPI/internal/wfst"
)

type sessionKey struct{}

func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, err := a.sessions.Get(id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, s)
		ctx = mylog.WithSession(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *draw.Session {
	s, _ := r.Context().Value(sessionKey{}).(*draw.Session)
	return s
}

type entryJSON struct {
	draw.Entry
	Geometry *geojson.Geometry `json:"geometry"`
}

func toEntryJSON(e draw.Entry) entryJSON {
	return entryJSON{Entry: e, Geometry: geojson.NewGeometry(e.Geometry.Orb())}
}

type snapshotJSON struct {
	draw.Snapshot
	Entries []entryJSON `json:"entries"`
}

func toSnapshotJSON(s draw.Snapshot) snapshotJSON {
	out := snapshotJSON{Snapshot: s, Entries: make([]entryJSON, 0, len(s.Entries))}
	for _, e := range s.Entries {
		out.Entries = append(out.Entries, toEntryJSON(e))
	}
	return out
}

// POST /sessions
func (a *API) createSession(w http.ResponseWriter, _ *http.Request) {
	s := a.sessions.Create()
	writeJSON(w, http.StatusCreated, toSnapshotJSON(s.Snapshot()))
}

// GET /sessions/{id}
func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotJSON(sessionFrom(r).Snapshot()))
}

// DELETE /sessions/{id}
func (a *API) closeSession(w http.ResponseWriter, r *http.Request) {
	id := sessionFrom(r).ID()
	a.sessions.Remove(id)
	if a.onClosed != nil {
		a.onClosed(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

type activateRequest struct {
	Layer     string              `json:"layer"`
	Workspace string              `json:"workspace,omitempty"`
	Kind      *model.GeometryKind `json:"kind,omitempty"`
}

// POST /sessions/{id}/activate. Without a kind, the layer's geometry kind
// from the catalogue is used.
func (a *API) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	target := draw.Target{Workspace: req.Workspace, Layer: req.Layer}
	if target.Workspace == "" {
		target.Workspace = a.workspace
	}

	var kind model.GeometryKind
	switch {
	case req.Kind != nil:
		kind = *req.Kind
	default:
		l, ok := a.layers.Get(req.Layer)
		if !ok {
			a.fail(w, r, badRequest("kind is required for layer %q", req.Layer))
			return
		}
		kind = l.Descriptor.Kind
	}

	s := sessionFrom(r)
	changed := s.Activate(target, kind)
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "session": toSnapshotJSON(s.Snapshot())})
}

// POST /sessions/{id}/deactivate. A non-zero pending count means the
// client should ask whether to save or discard.
func (a *API) deactivate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"pending": sessionFrom(r).Deactivate()})
}

type shapeRequest struct {
	Geometry *geojson.Geometry `json:"geometry"`
	CRS      string            `json:"crs,omitempty"`
}

// POST /sessions/{id}/shapes
func (a *API) addShape(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	g, err := a.geometryIn(req.Geometry, req.CRS)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	e, err := sessionFrom(r).AddShape(g)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryJSON(e))
}

// POST /sessions/{id}/undo
func (a *API) undo(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	e, err := s.UndoLast()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": toEntryJSON(e), "pending": s.PendingCount()})
}

type saveResponse struct {
	wfst.Batch
	OK          bool   `json:"ok"`
	FirstError  string `json:"firstError,omitempty"`
	Pending     int    `json:"pending"`
	Interrupted string `json:"interrupted,omitempty"` // request ended before every shape was tried
}

// POST /sessions/{id}/save. Once something was saved, persisted shapes
// are dropped from the queue and the layers reload.
func (a *API) save(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	b, err := s.SaveAll(r.Context(), a.wfst)
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !interrupted {
		a.fail(w, r, err)
		return
	}
	if b.SuccessCount > 0 {
		_, _ = s.ClearSaved()
		a.layers.RefreshAll()
	}
	if b.ErrorCount > 0 || interrupted {
		a.logger.WarnContext(r.Context(), "save finished with errors",
			"saved", b.SuccessCount, "failed", b.ErrorCount, "first_error", b.FirstError(), "interrupted", interrupted)
	}
	resp := saveResponse{
		Batch:      b,
		OK:         b.ErrorCount == 0 && !interrupted,
		FirstError: b.FirstError(),
		Pending:    s.PendingCount(),
	}
	if interrupted {
		resp.Interrupted = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /sessions/{id}/clear?scope=saved|all
func (a *API) clear(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var (
		n   int
		err error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "saved":
		n, err = s.ClearSaved()
	case "all":
		n, err = s.ClearAll()
	default:
		err = badRequest("scope must be saved or all, got %q", scope)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n, "pending": s.PendingCount()})
}
