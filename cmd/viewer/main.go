package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lauacosta/GIS-TPI/internal/changes"
	"github.com/lauacosta/GIS-TPI/internal/core/config"
	"github.com/lauacosta/GIS-TPI/internal/core/executor"
	"github.com/lauacosta/GIS-TPI/internal/core/health"
	"github.com/lauacosta/GIS-TPI/internal/core/httpclient"
	"github.com/lauacosta/GIS-TPI/internal/core/observability"
	"github.com/lauacosta/GIS-TPI/internal/core/router"
	"github.com/lauacosta/GIS-TPI/internal/core/server"
	"github.com/lauacosta/GIS-TPI/internal/draw"
	"github.com/lauacosta/GIS-TPI/internal/layers"
	"github.com/lauacosta/GIS-TPI/internal/logger"
	"github.com/lauacosta/GIS-TPI/internal/metrics"
	"github.com/lauacosta/GIS-TPI/internal/schemacache"
	"github.com/lauacosta/GIS-TPI/internal/wfst"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Workspace: cfg.Workspace,
		Component: "viewer",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting viewer",
		"addr", cfg.Addr,
		"version", Version,
		"geoserver", cfg.GeoServerURL,
		"workspace", cfg.Workspace,
		"map_epsg", cfg.MapEPSG)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec, err := executor.New(appLog, httpclient.NewOutbound(cfg.UpstreamTimeout), cfg.GeoServerURL)
	if err != nil {
		appLog.Error("failed to initialize executor", "err", err)
		return 1
	}

	ready := map[string]health.Check{
		"geoserver": func(ctx context.Context) error {
			_, err := exec.GetCapabilities(ctx, cfg.Workspace)
			return err
		},
	}

	local := schemacache.NewLocal(cfg.SchemaCacheSize)
	var (
		schemas schemacache.Cache          = local
		dropper schemacache.SessionDropper = local
		remote  *schemacache.Redis
	)
	if cfg.RedisAddr != "" {
		remote, err = schemacache.NewRedis(ctx, cfg.RedisAddr, cfg.SchemaCacheTTL, cfg.CacheOpTimeout)
		if err != nil {
			appLog.Error("redis schema cache unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = remote.Close() }()
		tiered := schemacache.NewTiered(local, remote, appLog)
		schemas, dropper = tiered, tiered
		ready["redis"] = remote.Ping
	}

	reg := layers.NewRegistry(exec, cfg.Workspace, cfg.MapEPSG, appLog)
	if _, err := reg.LoadCatalogue(ctx); err != nil {
		// the catalogue is reloaded on GET /layers
		appLog.Warn("initial layer catalogue failed", "err", err)
	}

	opts := []wfst.Option{
		wfst.WithLogger(appLog),
		wfst.WithSchemaCache(schemas),
		wfst.WithNamespaceBase(cfg.NamespaceBase),
		wfst.WithNamePrefix(cfg.NamePrefix),
	}

	if cfg.Changes.Enabled {
		source := uuid.NewString()
		pub, err := changes.NewPublisher(cfg.Changes.Brokers, cfg.Changes.Topic, cfg.Changes.Queue, source, appLog)
		if err != nil {
			appLog.Error("change publisher setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Error("change publisher close", "err", err)
			}
		}()
		opts = append(opts, wfst.WithNotifier(pub))

		cons := changes.NewConsumer(changes.ConsumerConfig{
			Brokers:   cfg.Changes.Brokers,
			Topic:     cfg.Changes.Topic,
			GroupID:   cfg.Changes.GroupID + "-" + source,
			Workspace: cfg.Workspace,
			Source:    source,
			Log:       &zl,
		}, appLog, reg)
		go func() {
			if err := cons.Start(ctx); err != nil {
				appLog.Error("change consumer stopped", "err", err)
			}
		}()
	}

	api := router.New(router.Deps{
		Logger:   appLog,
		Upstream: exec,
		Layers:   reg,
		WFST:     wfst.New(exec, opts...),
		Sessions: draw.NewRegistry(cfg.SessionMax, cfg.SessionTTL),
		OnSessionClosed: func(ctx context.Context, id string) {
			if err := dropper.DropSession(ctx, id); err != nil {
				appLog.WarnContext(ctx, "drop session schemas", "err", err)
			}
		},
	})

	srvOpts := server.Options{Ready: ready}
	if cfg.Metrics.Enabled {
		if err := startMetrics(ctx, cfg.Metrics, appLog); err != nil {
			appLog.Error("metrics setup failed", "err", err)
			return 1
		}
	} else {
		srvOpts.Metrics = promhttp.Handler()
	}

	if err := server.Run(ctx, cfg, appLog, server.Handler(appLog, api, srvOpts)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// startMetrics serves a dedicated registry on its own listener.
func startMetrics(ctx context.Context, mc config.MetricsCfg, log *slog.Logger) error {
	p := metrics.Init(metrics.Config{
		Enabled: true,
		Addr:    mc.Addr,
		Path:    mc.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if err := p.Attach(observability.Register); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(mc.Path, p.Handler())
	srv := &http.Server{
		Addr:              mc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("metrics listen", "addr", mc.Addr, "path", mc.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return nil
}
