package ogc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
)

var (
	ErrUnsupportedGeometryKind = errors.New("unsupported geometry kind")
	ErrNotGeographic           = errors.New("geometry must be in EPSG:4326 before encoding")
)

// EncodeGeometry renders g as GML 3.1.1 wrapped in the qualified geometry
// field element. Only Point, LineString and the exterior ring of a Polygon
// have a mapping; coordinates are written lon/lat.
func EncodeGeometry(g geom.Geometry, field string) (string, error) {
	if crs := g.CRS(); crs != "" && crs != geom.CRSWGS84 {
		return "", fmt.Errorf("%w (got %s)", ErrNotGeographic, crs)
	}

	pts := g.Points()
	var body string
	switch g.Kind() {
	case geom.KindPoint:
		if len(pts) != 1 {
			return "", errors.New("point without coordinates")
		}
		body = `<gml:Point srsName="` + geom.CRSWGS84 + `"><gml:pos>` + posList(pts) + `</gml:pos></gml:Point>`
	case geom.KindLineString:
		if len(pts) < 2 {
			return "", fmt.Errorf("linestring needs 2 points, got %d", len(pts))
		}
		body = `<gml:LineString srsName="` + geom.CRSWGS84 + `"><gml:posList>` + posList(pts) + `</gml:posList></gml:LineString>`
	case geom.KindPolygon:
		if len(pts) < 4 {
			return "", fmt.Errorf("polygon ring needs 4 points, got %d", len(pts))
		}
		body = `<gml:Polygon srsName="` + geom.CRSWGS84 + `"><gml:exterior><gml:LinearRing><gml:posList>` +
			posList(pts) + `</gml:posList></gml:LinearRing></gml:exterior></gml:Polygon>`
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedGeometryKind, g.Kind())
	}

	return "<" + field + ">" + body + "</" + field + ">", nil
}

func posList(pts []orb.Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
	}
	return b.String()
}

type gmlNode struct {
	XMLName  xml.Name
	Pos      string    `xml:"pos"`
	PosList  string    `xml:"posList"`
	Exterior string    `xml:"exterior>LinearRing>posList"`
	Children []gmlNode `xml:",any"`
}

// DecodeGeometry parses markup produced by EncodeGeometry (with or without the
// field wrapper) back into an EPSG:4326 geometry.
func DecodeGeometry(markup string) (geom.Geometry, error) {
	var root gmlNode
	if err := xml.Unmarshal([]byte(markup), &root); err != nil {
		return geom.Geometry{}, fmt.Errorf("decode gml: %w", err)
	}
	n := findGML(&root)
	if n == nil {
		return geom.Geometry{}, errors.New("decode gml: no Point, LineString or Polygon element")
	}

	switch n.XMLName.Local {
	case "Point":
		pts, err := parsePosList(n.Pos)
		if err != nil {
			return geom.Geometry{}, err
		}
		if len(pts) != 1 {
			return geom.Geometry{}, fmt.Errorf("decode gml: point has %d positions", len(pts))
		}
		return geom.NewPoint(pts[0][0], pts[0][1], geom.CRSWGS84), nil
	case "LineString":
		pts, err := parsePosList(n.PosList)
		if err != nil {
			return geom.Geometry{}, err
		}
		return geom.NewLineString(pts, geom.CRSWGS84), nil
	default:
		pts, err := parsePosList(n.Exterior)
		if err != nil {
			return geom.Geometry{}, err
		}
		return geom.NewPolygon(pts, geom.CRSWGS84), nil
	}
}

func findGML(n *gmlNode) *gmlNode {
	switch n.XMLName.Local {
	case "Point", "LineString", "Polygon":
		return n
	}
	for i := range n.Children {
		if f := findGML(&n.Children[i]); f != nil {
			return f
		}
	}
	return nil
}

func parsePosList(s string) ([]orb.Point, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("decode gml: odd or empty coordinate list %q", s)
	}
	pts := make([]orb.Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("decode gml: x: %w", err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("decode gml: y: %w", err)
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts, nil
}
