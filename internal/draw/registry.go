package draw

import (
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lauacosta/GIS-TPI/internal/core/observability"
)

var ErrUnknownSession = errors.New("draw: unknown session")

// Registry keeps one Session per viewer. Sessions idle for longer than the
// TTL are dropped, as is the least recently used one when full.
type Registry struct {
	sessions *expirable.LRU[string, *Session]
}

func NewRegistry(size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 1024
	}
	return &Registry{sessions: expirable.NewLRU[string, *Session](size, nil, ttl)}
}

func (r *Registry) Create() *Session {
	s := NewSession()
	r.sessions.Add(s.ID(), s)
	observability.SetDrawSessions(r.sessions.Len())
	return s
}

// Get returns a live session and extends its idle deadline.
func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.sessions.Get(id)
	if !ok {
		observability.SetDrawSessions(r.sessions.Len())
		return nil, ErrUnknownSession
	}
	r.sessions.Add(id, s)
	return s, nil
}

func (r *Registry) Remove(id string) bool {
	ok := r.sessions.Remove(id)
	observability.SetDrawSessions(r.sessions.Len())
	return ok
}

func (r *Registry) Len() int { return r.sessions.Len() }
