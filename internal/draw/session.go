// Package draw implements the digitizing session: a small state machine
// over the active draw kind plus the queue of shapes waiting to be saved.
package draw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
	"github.com/lauacosta/GIS-TPI/internal/wfst"
)

var (
	ErrNotDrawing     = errors.New("draw: not drawing")
	ErrNothingToUndo  = errors.New("draw: nothing to undo")
	ErrSaveInProgress = errors.New("draw: save in progress")
	ErrKindMismatch   = errors.New("draw: geometry kind does not match the active tool")
)

// MissingLayerMessage is reported for queued shapes with no owning layer.
const MissingLayerMessage = "feature without layer information"

type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Target is the layer new shapes are attributed to.
type Target struct {
	Workspace string `json:"workspace"`
	Layer     string `json:"layer"`
}

type Entry struct {
	ID         string             `json:"id"`
	Layer      string             `json:"layer"`
	Workspace  string             `json:"workspace"`
	Kind       model.GeometryKind `json:"kind"`
	Geometry   geom.Geometry      `json:"-"`
	CreatedAt  time.Time          `json:"createdAt"`
	Saved      bool               `json:"saved"`
	FeatureIDs []string           `json:"featureIds,omitempty"`
}

// Inserter persists one shape; *wfst.Client satisfies it.
type Inserter interface {
	InsertFeature(ctx context.Context, workspace, layer string, g geom.Geometry, attrs map[string]any) (ogc.TransactionResult, error)
}

type Session struct {
	mu      sync.Mutex
	id      string
	state   State
	kind    model.GeometryKind
	target  Target
	entries []*Entry
	saving  bool
	now     func() time.Time
}

func NewSession() *Session {
	return &Session{id: uuid.NewString(), now: time.Now}
}

func (s *Session) ID() string { return s.id }

// Activate switches to Drawing(kind). Re-activating the same kind on the
// same target is a no-op and reports false.
func (s *Session) Activate(t Target, kind model.GeometryKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Drawing && s.kind == kind && s.target == t {
		return false
	}
	s.state = Drawing
	s.kind = kind
	s.target = t
	return true
}

// Deactivate returns to Idle and reports how many shapes are still unsaved,
// so the caller can ask whether to save or discard them.
func (s *Session) Deactivate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	return s.pendingLocked()
}

// AddShape queues a completed shape for the active target.
func (s *Session) AddShape(g geom.Geometry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Drawing {
		return Entry{}, ErrNotDrawing
	}
	if s.saving {
		return Entry{}, ErrSaveInProgress
	}
	if g.IsZero() {
		return Entry{}, fmt.Errorf("%w: empty geometry", ErrKindMismatch)
	}
	if got := model.KindOf(g.Kind()); got != s.kind {
		return Entry{}, fmt.Errorf("%w: got %s, drawing %s", ErrKindMismatch, got, s.kind)
	}
	e := &Entry{
		ID:        uuid.NewString(),
		Layer:     s.target.Layer,
		Workspace: s.target.Workspace,
		Kind:      s.kind,
		Geometry:  g.Clone(),
		CreatedAt: s.now().UTC(),
	}
	s.entries = append(s.entries, e)
	return *e, nil
}

// UndoLast drops the most recent shape. Saved shapes cannot be undone.
func (s *Session) UndoLast() (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Entry{}, ErrSaveInProgress
	}
	n := len(s.entries)
	if n == 0 || s.entries[n-1].Saved {
		return Entry{}, ErrNothingToUndo
	}
	last := s.entries[n-1]
	s.entries = s.entries[:n-1]
	return *last, nil
}

// SaveAll inserts every unsaved shape in queue order. Successful shapes are
// marked saved; failures stay queued for a retry. If ctx ends mid-way the
// batch so far is returned with ctx's error.
func (s *Session) SaveAll(ctx context.Context, ins Inserter) (wfst.Batch, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return wfst.Batch{}, ErrSaveInProgress
	}
	s.saving = true
	var todo []*Entry
	for _, e := range s.entries {
		if !e.Saved {
			todo = append(todo, e)
		}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	var b wfst.Batch
	for _, e := range todo {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		if e.Layer == "" || e.Workspace == "" {
			b.Fail(e.ID, MissingLayerMessage)
			continue
		}
		g, err := geom.ToWGS84(e.Geometry)
		if err != nil {
			b.Fail(e.ID, err.Error())
			continue
		}
		res, err := ins.InsertFeature(ctx, e.Workspace, e.Layer, g, nil)
		if err != nil {
			b.Fail(e.ID, err.Error())
			continue
		}
		b.Add(e.ID, res)
		if res.OK {
			s.mu.Lock()
			e.Saved = true
			e.FeatureIDs = res.FeatureIDs
			s.mu.Unlock()
		}
	}
	return b, nil
}

// ClearSaved drops persisted shapes and keeps the unsaved ones. It returns
// how many were removed.
func (s *Session) ClearSaved() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return 0, ErrSaveInProgress
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.Saved {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	clear(s.entries[len(kept):])
	s.entries = kept
	return removed, nil
}

func (s *Session) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return 0, ErrSaveInProgress
	}
	n := len(s.entries)
	s.entries = nil
	return n, nil
}

func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Session) pendingLocked() int {
	n := 0
	for _, e := range s.entries {
		if !e.Saved {
			n++
		}
	}
	return n
}

// Entries returns a copy of the queue, oldest first.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

type Snapshot struct {
	ID      string              `json:"id"`
	State   State               `json:"state"`
	Kind    *model.GeometryKind `json:"kind,omitempty"`
	Target  Target              `json:"target"`
	Pending int                 `json:"pending"`
	Saving  bool                `json:"saving"`
	Entries []Entry             `json:"entries"`
}

func (s *Session) Snapshot() Snapshot {
	entries := s.Entries()
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:      s.id,
		State:   s.state,
		Target:  s.target,
		Pending: s.pendingLocked(),
		Saving:  s.saving,
		Entries: entries,
	}
	if s.state == Drawing {
		k := s.kind
		snap.Kind = &k
	}
	return snap
}
