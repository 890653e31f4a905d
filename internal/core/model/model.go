// Package model defines core domain types shared across the viewer.
package model

import (
	"strconv"
	"strings"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
)

// BBox is the WFS bbox parameter: extent plus the CRS suffix.
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	parts := []string{ftoa(b.X1), ftoa(b.Y1), ftoa(b.X2), ftoa(b.Y2)}
	if b.SRID != "" {
		parts = append(parts, b.SRID)
	}
	return strings.Join(parts, ",")
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func BBoxFromExtent(e geom.Extent, srid string) BBox {
	return BBox{X1: e.MinX, Y1: e.MinY, X2: e.MaxX, Y2: e.MaxY, SRID: srid}
}

// Feature is one server feature or a locally digitized shape.
// ID follows the GeoServer "<layer>.<n>" convention, e.g. isla.1.
type Feature struct {
	ID         string
	Layer      string
	Geometry   geom.Geometry
	Attributes map[string]any
}

type GeometryKind int

const (
	KindPoint GeometryKind = iota
	KindLine
	KindPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	}
	return "unknown"
}

// DrawType is the geometry variant a draw interaction produces for this kind.
func (k GeometryKind) DrawType() geom.Kind {
	switch k {
	case KindPoint:
		return geom.KindPoint
	case KindLine:
		return geom.KindLineString
	case KindPolygon:
		return geom.KindPolygon
	}
	return geom.KindInvalid
}

// ZIndex orders layers so points draw above lines above polygons.
func (k GeometryKind) ZIndex() int {
	switch k {
	case KindPoint:
		return 100
	case KindLine:
		return 50
	case KindPolygon:
		return 10
	}
	return 1
}

func (k GeometryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *GeometryKind) UnmarshalText(b []byte) error {
	*k = ParseGeometryKind(string(b))
	return nil
}

// ParseGeometryKind maps style names and geometry type names onto a kind.
// Unknown values are treated as polygons.
func ParseGeometryKind(s string) GeometryKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "multipoint":
		return KindPoint
	case "line", "linestring", "multilinestring":
		return KindLine
	default:
		return KindPolygon
	}
}

// KindOf maps a concrete geometry onto the layer kind it belongs to.
func KindOf(k geom.Kind) GeometryKind {
	switch k {
	case geom.KindPoint, geom.KindMultiPoint:
		return KindPoint
	case geom.KindLineString, geom.KindMultiLineString:
		return KindLine
	default:
		return KindPolygon
	}
}

type LayerDescriptor struct {
	RawName string       `json:"name"`
	Label   string       `json:"label"`
	Kind    GeometryKind `json:"kind"`
}

func (d LayerDescriptor) ZIndex() int { return d.Kind.ZIndex() }

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FeatureTypeSchema is the server-side description of one layer.
type FeatureTypeSchema struct {
	TargetNamespace string       `json:"targetNamespace"`
	GeometryField   string       `json:"geometryField"`
	GeometryKind    GeometryKind `json:"geometryKind"`
	Fields          []Field      `json:"fields"`
}
