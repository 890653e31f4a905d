// Package layers keeps the per-layer feature sources the selector queries
// and loads them from GeoServer by extent.
package layers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
	"github.com/lauacosta/GIS-TPI/internal/selection"
)

var ErrUnknownLayer = errors.New("unknown layer")

type Fetcher interface {
	FetchGetFeature(ctx context.Context, workspace, layer string, bbox *model.BBox, epsg int) ([]byte, error)
	GetCapabilities(ctx context.Context, workspace string) ([]byte, error)
}

type Layer struct {
	Descriptor model.LayerDescriptor
	Visible    bool
	Source     *Source
}

type Registry struct {
	mu        sync.RWMutex
	fetch     Fetcher
	workspace string
	epsg      int
	logger    *slog.Logger
	layers    map[string]*Layer
}

// NewRegistry serves layers of one workspace; features are requested and
// stored in epsg, the map projection.
func NewRegistry(f Fetcher, workspace string, epsg int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		fetch:     f,
		workspace: workspace,
		epsg:      epsg,
		logger:    logger,
		layers:    map[string]*Layer{},
	}
}

func (r *Registry) Workspace() string { return r.workspace }
func (r *Registry) EPSG() int         { return r.epsg }

func (r *Registry) key(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), r.workspace+":")
}

// Register adds a layer, hidden until made visible. Registering a known
// layer updates its descriptor and keeps loaded features.
func (r *Registry) Register(d model.LayerDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(d.RawName)
	d.RawName = k
	if l, ok := r.layers[k]; ok {
		l.Descriptor = d
		return
	}
	r.layers[k] = &Layer{Descriptor: d, Source: NewSource()}
}

// LoadCatalogue reads the workspace capabilities and registers every layer.
func (r *Registry) LoadCatalogue(ctx context.Context) ([]model.LayerDescriptor, error) {
	body, err := r.fetch.GetCapabilities(ctx, r.workspace)
	if err != nil {
		return nil, fmt.Errorf("get capabilities: %w", err)
	}
	descs, err := ogc.ParseCapabilities(bytes.NewReader(body), r.workspace)
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		r.Register(d)
	}
	return r.Layers(), nil
}

// Layers lists the registered layers, top-most first.
func (r *Registry) Layers() []model.LayerDescriptor {
	r.mu.RLock()
	out := make([]model.LayerDescriptor, 0, len(r.layers))
	for _, l := range r.layers {
		out = append(out, l.Descriptor)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex() != out[j].ZIndex() {
			return out[i].ZIndex() > out[j].ZIndex()
		}
		return out[i].RawName < out[j].RawName
	})
	return out
}

func (r *Registry) Get(name string) (*Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.layers[r.key(name)]
	return l, ok
}

func (r *Registry) SetVisible(name string, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[r.key(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	l.Visible = visible
	return nil
}

func (r *Registry) isVisible(l *Layer) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return l.Visible
}

// Load fetches the features of a layer inside extent (map projection).
// Extents already covered by an earlier load are skipped. It returns the
// number of new features.
func (r *Registry) Load(ctx context.Context, name string, extent geom.Extent) (int, error) {
	l, ok := r.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	if extent.IsDegenerate() || l.Source.covered(extent) {
		return 0, nil
	}

	bbox := model.BBoxFromExtent(extent, ogc.EPSG(r.epsg))
	body, err := r.fetch.FetchGetFeature(ctx, r.workspace, l.Descriptor.RawName, &bbox, r.epsg)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", l.Descriptor.RawName, err)
	}
	fs, err := DecodeFeatures(body, l.Descriptor.RawName, ogc.EPSG(r.epsg))
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", l.Descriptor.RawName, err)
	}
	n := l.Source.Add(fs...)
	l.Source.markLoaded(extent)
	r.logger.DebugContext(ctx, "layer loaded", "layer", l.Descriptor.RawName, "extent", extent.String(), "new", n)
	return n, nil
}

// Refresh drops the loaded features of a layer so the next Load refetches.
func (r *Registry) Refresh(name string) bool {
	l, ok := r.Get(name)
	if !ok {
		return false
	}
	l.Source.Clear()
	return true
}

func (r *Registry) RefreshAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.layers {
		l.Source.Clear()
	}
}

// VisibleNames returns the visible layers, top-most first.
func (r *Registry) VisibleNames() []string {
	var out []string
	for _, d := range r.Layers() {
		if l, ok := r.Get(d.RawName); ok && r.isVisible(l) {
			out = append(out, d.RawName)
		}
	}
	return out
}

// Candidates adapts the registry to the selector, top-most layer first.
func (r *Registry) Candidates() []selection.CandidateLayer {
	descs := r.Layers()
	out := make([]selection.CandidateLayer, 0, len(descs))
	for _, d := range descs {
		l, ok := r.Get(d.RawName)
		if !ok {
			continue
		}
		out = append(out, selection.CandidateLayer{Name: d.RawName, Visible: r.isVisible(l), Source: l.Source})
	}
	return out
}

// DecodeFeatures parses a GeoJSON FeatureCollection. Features whose geometry
// has no mapping are skipped; ids follow GeoServer's <layer>.<n>.
func DecodeFeatures(body []byte, layer, crs string) ([]*model.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	out := make([]*model.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		g, err := geom.FromOrb(f.Geometry, crs)
		if err != nil {
			continue
		}
		id := ""
		if f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		out = append(out, &model.Feature{
			ID:         id,
			Layer:      layer,
			Geometry:   g,
			Attributes: map[string]any(f.Properties),
		})
	}
	return out, nil
}
