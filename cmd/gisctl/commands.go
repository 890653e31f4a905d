package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/selection"
)

type envFunc func() (*env, error)

func newLayersCmd(envFor envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the workspace layers, top-most first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFor()
			if err != nil {
				return err
			}
			descs, err := e.layers.LoadCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			return e.emit(descs)
		},
	}
}

func newSchemaCmd(envFor envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <layer>",
		Short: "Describe a layer's feature type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor()
			if err != nil {
				return err
			}
			s, err := e.wfst.FetchSchema(cmd.Context(), e.cfg.Workspace, args[0])
			if err != nil {
				e.log.Warn("using default schema", "err", err)
			}
			return e.emit(map[string]any{"layer": args[0], "schema": s, "fallback": err != nil})
		},
	}
}

func newInsertCmd(envFor envFunc) *cobra.Command {
	var (
		geometry string
		crs      string
		props    []string
	)
	cmd := &cobra.Command{
		Use:   "insert <layer>",
		Short: "Insert one feature through WFS-T",
		Example: `  gisctl insert isla --geometry '{"type":"Point","coordinates":[-58.82,-27.49]}'
  gisctl insert Red_Vial --crs EPSG:3857 --geometry @tramo.json --set nombre="Ruta 12"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor()
			if err != nil {
				return err
			}
			g, err := parseGeometry(geometry, crs)
			if err != nil {
				return err
			}
			if g, err = geom.ToWGS84(g); err != nil {
				return err
			}
			attrs, err := parseProps(props)
			if err != nil {
				return err
			}
			res, err := e.wfst.InsertFeature(cmd.Context(), e.cfg.Workspace, args[0], g, attrs)
			if err != nil {
				return err
			}
			if err := e.emit(res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("insert failed: %s", res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&geometry, "geometry", "g", "", "GeoJSON geometry, or @file")
	cmd.Flags().StringVar(&crs, "crs", geom.CRSWGS84, "CRS of the geometry")
	cmd.Flags().StringArrayVar(&props, "set", nil, "attribute as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("geometry")
	return cmd
}

func newDeleteCmd(envFor envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <layer> <feature-id>",
		Short: "Delete one feature by id, e.g. isla isla.1",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor()
			if err != nil {
				return err
			}
			res := e.wfst.DeleteFeature(cmd.Context(), e.cfg.Workspace, args[0], args[1])
			if err := e.emit(res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("delete failed: %s", res.Message)
			}
			return nil
		},
	}
}

type hitOut struct {
	Layer      string         `json:"layer" yaml:"layer"`
	ID         string         `json:"id" yaml:"id"`
	Kind       string         `json:"kind" yaml:"kind"`
	BBox       []float64      `json:"bbox" yaml:"bbox"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

func newSelectCmd(envFor envFunc) *cobra.Command {
	var (
		extent   string
		rotation float64
	)
	cmd := &cobra.Command{
		Use:   "select <layer>...",
		Short: "Select the features of the given layers under a box (map projection)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor()
			if err != nil {
				return err
			}
			frame, err := parseExtent(extent)
			if err != nil {
				return err
			}
			if _, err := e.layers.LoadCatalogue(cmd.Context()); err != nil {
				return err
			}
			for _, name := range args {
				if err := e.layers.SetVisible(name, true); err != nil {
					return err
				}
			}

			drag := selection.BoxFromExtent(frame)
			if rotation != 0 {
				center := orb.Point{(frame.MinX + frame.MaxX) / 2, (frame.MinY + frame.MaxY) / 2}
				drag = selection.NewDragBox(frame, rotation, center)
			}
			view := selection.ViewState{ProjectionExtent: projectionExtent(e.cfg.MapEPSG), Rotation: rotation}
			for _, we := range selection.WorldExtents(drag.Extent(), view.ProjectionExtent) {
				for _, name := range e.layers.VisibleNames() {
					if _, err := e.layers.Load(cmd.Context(), name, we.Extent); err != nil {
						return err
					}
				}
			}

			hits := selection.Select(drag, view, e.layers.Candidates())
			out := make([]hitOut, 0, len(hits))
			for _, h := range hits {
				b := h.Feature.Geometry.Extent()
				out = append(out, hitOut{
					Layer:      h.Layer,
					ID:         h.Feature.ID,
					Kind:       h.Feature.Geometry.Kind().String(),
					BBox:       []float64{b.MinX, b.MinY, b.MaxX, b.MaxY},
					Properties: h.Feature.Attributes,
				})
			}
			return e.emit(out)
		},
	}
	cmd.Flags().StringVarP(&extent, "extent", "e", "", "minx,miny,maxx,maxy in the map projection")
	cmd.Flags().Float64Var(&rotation, "rotation", 0, "view rotation in radians")
	_ = cmd.MarkFlagRequired("extent")
	return cmd
}

func parseGeometry(raw, crs string) (geom.Geometry, error) {
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return geom.Geometry{}, err
		}
		raw = string(b)
	}
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("parse geometry: %w", err)
	}
	return geom.FromOrb(g.Geometry(), strings.ToUpper(crs))
}

// parseProps reads key=value pairs; values that parse as JSON keep their
// type, anything else is a string.
func parseProps(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", kv)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			out[k] = parsed
			continue
		}
		out[k] = v
	}
	return out, nil
}

func parseExtent(s string) (geom.Extent, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geom.Extent{}, errors.New("extent: expected minx,miny,maxx,maxy")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Extent{}, fmt.Errorf("extent[%d]: %w", i, err)
		}
		v[i] = f
	}
	return geom.NewExtent(v[0], v[1], v[2], v[3]), nil
}

func projectionExtent(epsg int) geom.Extent {
	if epsg == 4326 {
		return geom.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	}
	const half = 20037508.342789244
	return geom.Extent{MinX: -half, MinY: -half, MaxX: half, MaxY: half}
}
