// Command gisctl runs the viewer core against GeoServer from the shell:
// catalogue, schema discovery, WFS-T insert/delete and box selection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lauacosta/GIS-TPI/internal/core/config"
	"github.com/lauacosta/GIS-TPI/internal/core/executor"
	"github.com/lauacosta/GIS-TPI/internal/core/httpclient"
	"github.com/lauacosta/GIS-TPI/internal/layers"
	"github.com/lauacosta/GIS-TPI/internal/logger"
	"github.com/lauacosta/GIS-TPI/internal/wfst"
)

var Version = "dev"

type globalOpts struct {
	geoserver string
	workspace string
	epsg      int
	useYAML   bool
	verbose   bool
}

// env holds the pieces every subcommand needs.
type env struct {
	opts   *globalOpts
	cfg    config.Config
	log    *slog.Logger
	exec   *executor.Executor
	layers *layers.Registry
	wfst   *wfst.Client
	out    io.Writer
}

func newEnv(opts *globalOpts, out io.Writer) (*env, error) {
	cfg := config.FromEnv()
	if opts.geoserver != "" {
		cfg.GeoServerURL = opts.geoserver
		cfg.NamespaceBase = opts.geoserver
	}
	if opts.workspace != "" {
		cfg.Workspace = opts.workspace
	}
	if opts.epsg != 0 {
		cfg.MapEPSG = opts.epsg
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	zl := logger.Build(logger.Config{Level: level, Console: true, Workspace: cfg.Workspace, Component: "gisctl"}, os.Stderr)
	log := logger.NewSlog(&zl)

	exec, err := executor.New(log, httpclient.NewOutbound(cfg.UpstreamTimeout), cfg.GeoServerURL)
	if err != nil {
		return nil, err
	}
	return &env{
		opts:   opts,
		cfg:    cfg,
		log:    log,
		exec:   exec,
		layers: layers.NewRegistry(exec, cfg.Workspace, cfg.MapEPSG, log),
		wfst: wfst.New(exec,
			wfst.WithLogger(log),
			wfst.WithNamespaceBase(cfg.NamespaceBase),
			wfst.WithNamePrefix(cfg.NamePrefix)),
		out: out,
	}, nil
}

// emit prints v as indented JSON, or YAML with --yaml. Values go through
// JSON first so both formats use the same field names.
func (e *env) emit(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if e.opts.useYAML {
		var plain any
		if err := json.Unmarshal(b, &plain); err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		if b, err = yaml.Marshal(plain); err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
	} else {
		b = append(b, '\n')
	}
	_, err = e.out.Write(b)
	return err
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:           "gisctl",
		Short:         "Query and edit GeoServer layers from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.geoserver, "geoserver", "", "GeoServer base URL (default $GEOSERVER_URL)")
	pf.StringVarP(&opts.workspace, "workspace", "w", "", "workspace (default $GEOSERVER_WORKSPACE)")
	pf.IntVar(&opts.epsg, "epsg", 0, "map projection EPSG code (default $MAP_EPSG)")
	pf.BoolVarP(&opts.useYAML, "yaml", "y", false, "output as YAML instead of JSON")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	envFor := func() (*env, error) { return newEnv(opts, out) }
	root.AddCommand(
		newLayersCmd(envFor),
		newSchemaCmd(envFor),
		newInsertCmd(envFor),
		newDeleteCmd(envFor),
		newSelectCmd(envFor),
		newDoctorCmd(envFor),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
