package draw

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
)

var isla = Target{Workspace: "TPI_GIS", Layer: "isla"}

type insertCall struct {
	workspace, layer string
	g                geom.Geometry
}

type fakeInserter struct {
	mu    sync.Mutex
	calls []insertCall
	fail   map[int]bool // call index -> reject
	block  chan struct{}
	onCall func(i int)
}

func (f *fakeInserter) InsertFeature(_ context.Context, ws, layer string, g geom.Geometry, _ map[string]any) (ogc.TransactionResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, insertCall{ws, layer, g})
	if f.onCall != nil {
		f.onCall(i)
	}
	if f.fail[i] {
		return ogc.Failure(ogc.OpInsert, 500, "rejected", nil), nil
	}
	return ogc.TransactionResult{Op: ogc.OpInsert, OK: true, HTTPStatus: 200, Inserted: 1, FeatureIDs: []string{layer + ".9"}}, nil
}

func square(crs string) geom.Geometry {
	return geom.NewPolygon([]orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, crs)
}

func TestActivate_Transitions(t *testing.T) {
	s := NewSession()
	if snap := s.Snapshot(); snap.State != Idle || snap.Kind != nil {
		t.Fatalf("new session must be idle: %+v", snap)
	}
	if !s.Activate(isla, model.KindPolygon) {
		t.Fatalf("first activate must start drawing")
	}
	if s.Activate(isla, model.KindPolygon) {
		t.Fatalf("same kind must be a no-op")
	}
	if !s.Activate(isla, model.KindPoint) {
		t.Fatalf("other kind must restart drawing")
	}
	snap := s.Snapshot()
	if snap.State != Drawing || snap.Kind == nil || *snap.Kind != model.KindPoint {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestAddShape(t *testing.T) {
	s := NewSession()
	if _, err := s.AddShape(square(geom.CRSWGS84)); !errors.Is(err, ErrNotDrawing) {
		t.Fatalf("idle add err=%v", err)
	}
	s.Activate(isla, model.KindPolygon)
	if _, err := s.AddShape(geom.NewPoint(1, 1, geom.CRSWGS84)); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("point in polygon tool err=%v", err)
	}
	e, err := s.AddShape(square(geom.CRSWGS84))
	if err != nil {
		t.Fatalf("AddShape: %v", err)
	}
	if e.ID == "" || e.Layer != "isla" || e.Workspace != "TPI_GIS" || e.Kind != model.KindPolygon || e.Saved || e.CreatedAt.IsZero() {
		t.Fatalf("entry=%+v", e)
	}
	if n := s.Deactivate(); n != 1 {
		t.Fatalf("pending on deactivate=%d", n)
	}
	if s.PendingCount() != 1 {
		t.Fatalf("queue must survive deactivate")
	}
}

func TestUndoLast(t *testing.T) {
	s := NewSession()
	if _, err := s.UndoLast(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("empty undo err=%v", err)
	}
	s.Activate(isla, model.KindPolygon)
	first, _ := s.AddShape(square(geom.CRSWGS84))
	second, _ := s.AddShape(square(geom.CRSWGS84))

	got, err := s.UndoLast()
	if err != nil || got.ID != second.ID {
		t.Fatalf("undo got=%s err=%v", got.ID, err)
	}
	if _, err := s.SaveAll(context.Background(), &fakeInserter{}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if _, err := s.UndoLast(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("undo of saved entry err=%v", err)
	}
	if es := s.Entries(); len(es) != 1 || es[0].ID != first.ID || !es[0].Saved {
		t.Fatalf("entries=%+v", es)
	}
}

func TestSaveAll_PartialFailure(t *testing.T) {
	s := NewSession()
	s.Activate(isla, model.KindPolygon)
	s.AddShape(square(geom.CRSWGS84))
	s.AddShape(square(geom.CRSWGS84))
	s.Activate(Target{}, model.KindPolygon)
	s.AddShape(square(geom.CRSWGS84))

	ins := &fakeInserter{fail: map[int]bool{1: true}}
	b, err := s.SaveAll(context.Background(), ins)
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if b.SuccessCount != 1 || b.ErrorCount != 2 || b.FirstError() != "rejected" {
		t.Fatalf("batch=%+v", b)
	}
	if b.Errors[1].Message != MissingLayerMessage {
		t.Fatalf("errors=%+v", b.Errors)
	}
	if len(ins.calls) != 2 {
		t.Fatalf("entries without layer must not reach the server: %d calls", len(ins.calls))
	}
	if s.PendingCount() != 2 {
		t.Fatalf("pending=%d", s.PendingCount())
	}

	// retry only touches the unsaved ones
	ins.fail = nil
	s.SaveAll(context.Background(), ins)
	if len(ins.calls) != 3 {
		t.Fatalf("retry calls=%d", len(ins.calls))
	}

	removed, err := s.ClearSaved()
	if err != nil || removed != 2 {
		t.Fatalf("ClearSaved removed=%d err=%v", removed, err)
	}
	if es := s.Entries(); len(es) != 1 || es[0].Layer != "" {
		t.Fatalf("remaining=%+v", es)
	}
	if n, _ := s.ClearAll(); n != 1 || len(s.Entries()) != 0 {
		t.Fatalf("ClearAll n=%d", n)
	}
}

func TestSaveAll_CancelledKeepsPartialBatch(t *testing.T) {
	s := NewSession()
	s.Activate(isla, model.KindPolygon)
	for range 3 {
		if _, err := s.AddShape(square(geom.CRSWGS84)); err != nil {
			t.Fatalf("AddShape: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ins := &fakeInserter{onCall: func(i int) {
		if i == 0 {
			cancel()
		}
	}}

	b, err := s.SaveAll(ctx, ins)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if b.SuccessCount != 1 || b.ErrorCount != 0 {
		t.Fatalf("batch=%+v", b)
	}
	if len(ins.calls) != 1 {
		t.Fatalf("inserted %d shapes after cancel", len(ins.calls))
	}
	entries := s.Entries()
	if !entries[0].Saved || entries[1].Saved || entries[2].Saved {
		t.Fatalf("saved flags=%v %v %v", entries[0].Saved, entries[1].Saved, entries[2].Saved)
	}
	if s.PendingCount() != 2 {
		t.Fatalf("pending=%d want 2", s.PendingCount())
	}
}

func TestSaveAll_ReprojectsToWGS84(t *testing.T) {
	s := NewSession()
	s.Activate(isla, model.KindPoint)
	s.AddShape(geom.NewPoint(-6548000, -3183000, geom.CRSWebMercator))

	ins := &fakeInserter{}
	if _, err := s.SaveAll(context.Background(), ins); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	g := ins.calls[0].g
	if g.CRS() != geom.CRSWGS84 {
		t.Fatalf("crs=%s", g.CRS())
	}
	p := g.Points()[0]
	if p[0] < -59 || p[0] > -58 || p[1] < -28 || p[1] > -27 {
		t.Fatalf("not reprojected: %v", p)
	}
}

func TestSaveAll_RejectsConcurrentSave(t *testing.T) {
	s := NewSession()
	s.Activate(isla, model.KindPolygon)
	s.AddShape(square(geom.CRSWGS84))

	ins := &fakeInserter{block: make(chan struct{})}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.SaveAll(context.Background(), ins)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Snapshot().Saving {
		if time.Now().After(deadline) {
			t.Fatalf("first save never started")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := s.SaveAll(context.Background(), ins); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("second save err=%v", err)
	}
	if _, err := s.UndoLast(); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("undo during save err=%v", err)
	}
	if _, err := s.ClearAll(); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("clear during save err=%v", err)
	}
	close(ins.block)
	<-done
	if s.PendingCount() != 0 {
		t.Fatalf("pending=%d", s.PendingCount())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(2, time.Minute)
	a := r.Create()
	r.Create()
	if got, err := r.Get(a.ID()); err != nil || got != a {
		t.Fatalf("Get err=%v", err)
	}
	r.Create()
	if r.Len() != 2 {
		t.Fatalf("len=%d", r.Len())
	}
	// a was touched after the second session was created, so that one went
	if !r.Remove(a.ID()) {
		t.Fatalf("expected a to survive eviction")
	}
	if _, err := r.Get(a.ID()); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("err=%v", err)
	}
}
