package ogc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

const DefaultGeometryField = "geom"

type xsdSchema struct {
	XMLName         xml.Name         `xml:"schema"`
	TargetNamespace string           `xml:"targetNamespace,attr"`
	ComplexTypes    []xsdComplexType `xml:"complexType"`
}

type xsdComplexType struct {
	Name     string       `xml:"name,attr"`
	Elements []xsdElement `xml:"complexContent>extension>sequence>element"`
}

type xsdElement struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// ParseFeatureType reads a DescribeFeatureType response for one layer.
func ParseFeatureType(r io.Reader, layer string) (model.FeatureTypeSchema, error) {
	var s xsdSchema
	if err := xml.NewDecoder(r).Decode(&s); err != nil {
		return model.FeatureTypeSchema{}, fmt.Errorf("decode feature type: %w", err)
	}
	if strings.TrimSpace(s.TargetNamespace) == "" {
		return model.FeatureTypeSchema{}, errors.New("feature type: missing targetNamespace")
	}
	if len(s.ComplexTypes) == 0 {
		return model.FeatureTypeSchema{}, errors.New("feature type: no complexType")
	}

	ct := s.ComplexTypes[0]
	want := localName(layer) + "Type"
	for _, c := range s.ComplexTypes {
		if c.Name == want {
			ct = c
			break
		}
	}

	out := model.FeatureTypeSchema{
		TargetNamespace: s.TargetNamespace,
		GeometryField:   DefaultGeometryField,
		GeometryKind:    model.KindPoint,
		Fields:          []model.Field{},
	}
	geomFound := false
	for _, el := range ct.Elements {
		if el.Name == "" {
			continue
		}
		if !geomFound && isGeometryType(el.Type) {
			out.GeometryField = el.Name
			out.GeometryKind = InferGeometryKind(el.Type)
			geomFound = true
			continue
		}
		out.Fields = append(out.Fields, model.Field{Name: el.Name, Type: el.Type})
	}
	return out, nil
}

func isGeometryType(t string) bool {
	return strings.HasPrefix(t, "gml:") || strings.Contains(t, "opengis.net/gml")
}

// InferGeometryKind matches the declared geometry type against known
// substrings; the first match wins and anything unknown is a point.
func InferGeometryKind(declared string) model.GeometryKind {
	switch {
	case strings.Contains(declared, "Polygon"), strings.Contains(declared, "Surface"):
		return model.KindPolygon
	case strings.Contains(declared, "Line"), strings.Contains(declared, "Curve"):
		return model.KindLine
	case strings.Contains(declared, "Point"):
		return model.KindPoint
	default:
		return model.KindPoint
	}
}

// DefaultSchema is used when discovery fails. The namespace follows the
// GeoServer convention <base>/<workspace>.
func DefaultSchema(namespaceBase, workspace string) model.FeatureTypeSchema {
	return model.FeatureTypeSchema{
		TargetNamespace: strings.TrimRight(namespaceBase, "/") + "/" + workspace,
		GeometryField:   DefaultGeometryField,
		GeometryKind:    model.KindPoint,
		Fields:          []model.Field{},
	}
}

func localName(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}
