// Package config loads viewer settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ChangesCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	GeoServerURL  string
	Workspace     string
	NamespaceBase string
	MapEPSG       int
	DataEPSG      int
	NamePrefix    string

	UpstreamTimeout time.Duration

	SchemaCacheSize int
	SchemaCacheTTL  time.Duration
	RedisAddr       string
	CacheOpTimeout  time.Duration

	SessionTTL time.Duration
	SessionMax int

	Changes ChangesCfg
	Metrics MetricsCfg
}

func FromEnv() Config {
	geoserver := strings.TrimRight(getenv("GEOSERVER_URL", "http://localhost:8080/geoserver"), "/")

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		GeoServerURL:  geoserver,
		Workspace:     getenv("GEOSERVER_WORKSPACE", "TPI_GIS"),
		NamespaceBase: getenv("NAMESPACE_BASE", geoserver),
		MapEPSG:       getint("MAP_EPSG", 3857),
		DataEPSG:      getint("DATA_EPSG", 4326),
		NamePrefix:    getenv("DEFAULT_NAME_PREFIX", "Nuevo"),

		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),

		SchemaCacheSize: getint("SCHEMA_CACHE_SIZE", 128),
		SchemaCacheTTL:  getduration("SCHEMA_CACHE_TTL", 30*time.Minute),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		SessionTTL: getduration("SESSION_TTL", 30*time.Minute),
		SessionMax: getint("SESSION_MAX", 1024),

		Changes: ChangesCfg{
			Enabled: getbool("CHANGES_ENABLED", false),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "gis-feature-changes"),
			GroupID: getenv("KAFKA_GROUP_ID", "gis-viewer"),
			Queue:   getint("CHANGES_QUEUE", 256),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9091"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
