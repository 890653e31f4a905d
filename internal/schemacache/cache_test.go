package schemacache

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

func islaSchema() model.FeatureTypeSchema {
	return model.FeatureTypeSchema{
		TargetNamespace: "http://tpi.gis",
		GeometryField:   "geom",
		GeometryKind:    model.KindPolygon,
		Fields:          []model.Field{{Name: "nombre", Type: "xsd:string"}},
	}
}

func newMini(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := NewRedis(ctx, mr.Addr(), time.Minute, time.Second)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestKey_IsStableAndSessionScoped(t *testing.T) {
	a := Key{Session: "s1", Workspace: "TPI_GIS", Layer: "isla"}
	b := Key{Session: "s2", Workspace: "TPI_GIS", Layer: "isla"}
	if a.String() != a.String() {
		t.Fatalf("key not stable")
	}
	if a.String() == b.String() {
		t.Fatalf("sessions must not share keys")
	}
	if !strings.HasPrefix(Key{Layer: "isla"}.String(), "gis:schema:shared:_:isla:h=") {
		t.Fatalf("shared key=%q", Key{Layer: "isla"}.String())
	}
	// sanitizing collapses these names; the hash keeps them apart
	if (Key{Layer: "red vial"}).String() == (Key{Layer: "red\tvial"}).String() {
		t.Fatalf("distinct layers collided")
	}
}

func TestLocal_ReturnsCopies(t *testing.T) {
	c := NewLocal(2)
	ctx := context.Background()
	k := Key{Session: "s1", Workspace: "TPI_GIS", Layer: "isla"}

	if _, ok := c.Get(ctx, k); ok {
		t.Fatalf("unexpected hit on empty cache")
	}
	c.Set(ctx, k, islaSchema())
	got, ok := c.Get(ctx, k)
	if !ok || got.GeometryKind != model.KindPolygon {
		t.Fatalf("got=%+v ok=%v", got, ok)
	}
	got.Fields[0].Name = "mutated"
	again, _ := c.Get(ctx, k)
	if again.Fields[0].Name != "nombre" {
		t.Fatalf("cached schema was mutated through a returned copy")
	}
}

func TestLocal_EvictsOldest(t *testing.T) {
	c := NewLocal(1)
	ctx := context.Background()
	c.Set(ctx, Key{Layer: "a"}, islaSchema())
	c.Set(ctx, Key{Layer: "b"}, islaSchema())
	if _, ok := c.Get(ctx, Key{Layer: "a"}); ok {
		t.Fatalf("expected eviction of a")
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
}

func TestRedis_SetGetWithTTL(t *testing.T) {
	mr, rc := newMini(t)
	ctx := context.Background()
	k := Key{Session: "s1", Workspace: "TPI_GIS", Layer: "isla"}

	if _, ok, err := rc.Get(ctx, k); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	if err := rc.Set(ctx, k, islaSchema()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, k)
	if err != nil || !ok || got.TargetNamespace != "http://tpi.gis" || len(got.Fields) != 1 {
		t.Fatalf("got=%+v ok=%v err=%v", got, ok, err)
	}
	if ttl := mr.TTL(k.String()); ttl != time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := rc.Get(ctx, k); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestRedis_DropSession(t *testing.T) {
	mr, rc := newMini(t)
	ctx := context.Background()
	keep := Key{Session: "s2", Workspace: "TPI_GIS", Layer: "isla"}
	for _, k := range []Key{{Session: "s1", Layer: "isla"}, {Session: "s1", Layer: "rio"}, keep} {
		if err := rc.Set(ctx, k, islaSchema()); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := rc.DropSession(ctx, "s1"); err != nil {
		t.Fatalf("DropSession: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != keep.String() {
		t.Fatalf("remaining keys=%v", keys)
	}
}

func TestTiered_FillsLocalFromRemote(t *testing.T) {
	_, rc := newMini(t)
	ctx := context.Background()
	k := Key{Session: "s1", Workspace: "TPI_GIS", Layer: "isla"}
	if err := rc.Set(ctx, k, islaSchema()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	local := NewLocal(8)
	tc := NewTiered(local, rc, nil)
	if _, ok := tc.Get(ctx, k); !ok {
		t.Fatalf("expected remote hit")
	}
	if _, ok := local.Get(ctx, k); !ok {
		t.Fatalf("local tier not filled")
	}
}

func TestTiered_RemoteDownDegradesToMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rc, err := NewRedis(context.Background(), mr.Addr(), time.Minute, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	mr.Close()

	tc := NewTiered(NewLocal(8), rc, nil)
	ctx := context.Background()
	k := Key{Layer: "isla"}
	tc.Set(ctx, k, islaSchema())
	if _, ok := tc.Get(ctx, k); !ok {
		t.Fatalf("local tier should still serve")
	}
	if _, ok := tc.Get(ctx, Key{Layer: "other"}); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestLocal_DropSessionKeepsOtherSessions(t *testing.T) {
	c := NewLocal(8)
	ctx := context.Background()
	mine := Key{Session: "s1", Workspace: "TPI_GIS", Layer: "isla"}
	other := Key{Session: "s10", Workspace: "TPI_GIS", Layer: "isla"}
	shared := Key{Workspace: "TPI_GIS", Layer: "isla"}
	for _, k := range []Key{mine, other, shared} {
		c.Set(ctx, k, islaSchema())
	}

	if err := c.DropSession(ctx, "s1"); err != nil {
		t.Fatalf("DropSession: %v", err)
	}
	if _, ok := c.Get(ctx, mine); ok {
		t.Fatalf("session entry survived")
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d want 2", c.Len())
	}
	if err := c.DropSession(ctx, ""); err != nil || c.Len() != 2 {
		t.Fatalf("empty session dropped entries: len=%d err=%v", c.Len(), err)
	}
}

func TestTiered_DropSessionClearsBothTiers(t *testing.T) {
	mr, rc := newMini(t)
	ctx := context.Background()
	k := Key{Session: "s1", Workspace: "TPI_GIS", Layer: "isla"}

	local := NewLocal(8)
	tc := NewTiered(local, rc, nil)
	tc.Set(ctx, k, islaSchema())

	if err := tc.DropSession(ctx, "s1"); err != nil {
		t.Fatalf("DropSession: %v", err)
	}
	if local.Len() != 0 {
		t.Fatalf("local tier kept %d entries", local.Len())
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("redis kept %v", mr.Keys())
	}
}
