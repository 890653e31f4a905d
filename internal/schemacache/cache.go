// Package schemacache stores discovered feature type schemas so repeated
// inserts into the same layer skip DescribeFeatureType.
package schemacache

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/observability"
)

type Cache interface {
	Get(ctx context.Context, k Key) (model.FeatureTypeSchema, bool)
	Set(ctx context.Context, k Key, s model.FeatureTypeSchema)
}

// SessionDropper forgets every schema cached for one session.
type SessionDropper interface {
	DropSession(ctx context.Context, session string) error
}

func sessionPrefix(session string) string {
	return keyPrefix + ":" + sanitize(session) + ":"
}

// Local is an in-process LRU. It is safe for concurrent use.
type Local struct {
	lru *lru.Cache[string, model.FeatureTypeSchema]
}

func NewLocal(size int) *Local {
	if size <= 0 {
		size = 128
	}
	c, _ := lru.New[string, model.FeatureTypeSchema](size)
	return &Local{lru: c}
}

func (l *Local) Get(_ context.Context, k Key) (model.FeatureTypeSchema, bool) {
	s, ok := l.lru.Get(k.String())
	observability.IncSchemaCache("local", ok)
	if !ok {
		return model.FeatureTypeSchema{}, false
	}
	return cloneSchema(s), true
}

func (l *Local) Set(_ context.Context, k Key, s model.FeatureTypeSchema) {
	l.lru.Add(k.String(), cloneSchema(s))
}

func (l *Local) Len() int { return l.lru.Len() }

func (l *Local) DropSession(_ context.Context, session string) error {
	if session == "" {
		return nil
	}
	prefix := sessionPrefix(session)
	for _, k := range l.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			l.lru.Remove(k)
		}
	}
	return nil
}

// Tiered reads the local LRU first and falls back to a shared remote cache,
// filling the local tier on a remote hit. Remote errors degrade to misses.
type Tiered struct {
	local  *Local
	remote *Redis
	logger *slog.Logger
}

func NewTiered(local *Local, remote *Redis, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{local: local, remote: remote, logger: logger}
}

func (t *Tiered) Get(ctx context.Context, k Key) (model.FeatureTypeSchema, bool) {
	if s, ok := t.local.Get(ctx, k); ok {
		return s, true
	}
	if t.remote == nil {
		return model.FeatureTypeSchema{}, false
	}
	s, ok, err := t.remote.Get(ctx, k)
	if err != nil {
		t.logger.WarnContext(ctx, "remote schema cache get failed", "err", err)
		return model.FeatureTypeSchema{}, false
	}
	if ok {
		t.local.Set(ctx, k, s)
	}
	return s, ok
}

func (t *Tiered) Set(ctx context.Context, k Key, s model.FeatureTypeSchema) {
	t.local.Set(ctx, k, s)
	if t.remote == nil {
		return
	}
	if err := t.remote.Set(ctx, k, s); err != nil {
		t.logger.WarnContext(ctx, "remote schema cache set failed", "err", err)
	}
}

// DropSession clears both tiers; a remote failure is returned after the
// local tier is already cleared.
func (t *Tiered) DropSession(ctx context.Context, session string) error {
	_ = t.local.DropSession(ctx, session)
	if t.remote == nil {
		return nil
	}
	return t.remote.DropSession(ctx, session)
}

func cloneSchema(s model.FeatureTypeSchema) model.FeatureTypeSchema {
	s.Fields = append([]model.Field(nil), s.Fields...)
	return s
}
