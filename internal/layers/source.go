package layers

import (
	"sync"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

// Source holds the loaded features of one layer. Features are keyed by id,
// so reloading an overlapping extent does not duplicate them.
type Source struct {
	mu       sync.RWMutex
	features map[string]*model.Feature
	order    []string
	loaded   []geom.Extent
}

func NewSource() *Source {
	return &Source{features: map[string]*model.Feature{}}
}

// Add stores features and returns how many were new. Features without an
// id cannot be deduplicated and are dropped.
func (s *Source) Add(fs ...*model.Feature) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, f := range fs {
		if f == nil || f.ID == "" {
			continue
		}
		if _, ok := s.features[f.ID]; !ok {
			s.order = append(s.order, f.ID)
			added++
		}
		s.features[f.ID] = f
	}
	return added
}

func (s *Source) Remove(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.features, id)
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.features[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}

// FeaturesInExtent returns features whose bounding box overlaps e, in load order.
func (s *Source) FeaturesInExtent(e geom.Extent) []*model.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Feature
	for _, id := range s.order {
		f := s.features[id]
		if f.Geometry.IsZero() {
			continue
		}
		if f.Geometry.Extent().Intersects(e) {
			out = append(out, f)
		}
	}
	return out
}

func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// covered reports whether e lies inside an extent that was already loaded.
func (s *Source) covered(e geom.Extent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.loaded {
		if l.MinX <= e.MinX && l.MinY <= e.MinY && l.MaxX >= e.MaxX && l.MaxY >= e.MaxY {
			return true
		}
	}
	return false
}

func (s *Source) markLoaded(e geom.Extent) {
	s.mu.Lock()
	s.loaded = append(s.loaded, e)
	s.mu.Unlock()
}

// Clear drops every feature and loaded extent.
func (s *Source) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = map[string]*model.Feature{}
	s.order = nil
	s.loaded = nil
}
