package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"GEOSERVER_URL", "NAMESPACE_BASE", "GEOSERVER_WORKSPACE", "REDIS_ADDR", "CHANGES_ENABLED", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8090" || c.Workspace != "TPI_GIS" || c.MapEPSG != 3857 || c.DataEPSG != 4326 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.NamespaceBase != "http://localhost:8080/geoserver" {
		t.Fatalf("namespace base=%q", c.NamespaceBase)
	}
	if c.RedisAddr != "" || c.Changes.Enabled || c.NamePrefix != "Nuevo" {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GEOSERVER_URL", "http://gs:8080/geoserver/")
	t.Setenv("NAMESPACE_BASE", "")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("SESSION_MAX", "bogus")
	t.Setenv("CHANGES_ENABLED", "yes")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	c := FromEnv()
	if c.GeoServerURL != "http://gs:8080/geoserver" || c.NamespaceBase != c.GeoServerURL {
		t.Fatalf("url=%q ns=%q", c.GeoServerURL, c.NamespaceBase)
	}
	if c.SessionTTL != 5*time.Minute || c.SessionMax != 1024 {
		t.Fatalf("session cfg ttl=%v max=%d", c.SessionTTL, c.SessionMax)
	}
	if !c.Changes.Enabled || len(c.Changes.Brokers) != 2 || c.Changes.Brokers[1] != "b:9092" {
		t.Fatalf("changes=%+v", c.Changes)
	}
}
