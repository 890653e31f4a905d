package ogc

import (
	"strings"
	"testing"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

const islaFeatureType = `<?xml version="1.0" encoding="UTF-8"?>
<xsd:schema xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:TPI_GIS="http://tpi.gis"
    xmlns:gml="http://www.opengis.net/gml" elementFormDefault="qualified" targetNamespace="http://tpi.gis">
  <xsd:import namespace="http://www.opengis.net/gml" schemaLocation="http://localhost:8080/geoserver/schemas/gml/3.1.1/base/gml.xsd"/>
  <xsd:complexType name="islaType">
    <xsd:complexContent>
      <xsd:extension base="gml:AbstractFeatureType">
        <xsd:sequence>
          <xsd:element maxOccurs="1" minOccurs="0" name="geom" nillable="true" type="gml:MultiSurfacePropertyType"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="nombre" nillable="true" type="xsd:string"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="actualizac" nillable="true" type="xsd:date"/>
        </xsd:sequence>
      </xsd:extension>
    </xsd:complexContent>
  </xsd:complexType>
  <xsd:element name="isla" substitutionGroup="gml:_Feature" type="TPI_GIS:islaType"/>
</xsd:schema>`

func TestParseFeatureType(t *testing.T) {
	s, err := ParseFeatureType(strings.NewReader(islaFeatureType), "TPI_GIS:isla")
	if err != nil {
		t.Fatalf("ParseFeatureType: %v", err)
	}
	if s.TargetNamespace != "http://tpi.gis" {
		t.Fatalf("namespace=%q", s.TargetNamespace)
	}
	if s.GeometryField != "geom" || s.GeometryKind != model.KindPolygon {
		t.Fatalf("geometry field=%q kind=%s", s.GeometryField, s.GeometryKind)
	}
	if len(s.Fields) != 2 || s.Fields[0] != (model.Field{Name: "nombre", Type: "xsd:string"}) || s.Fields[1].Name != "actualizac" {
		t.Fatalf("fields=%+v", s.Fields)
	}
}

func TestParseFeatureType_Malformed(t *testing.T) {
	if _, err := ParseFeatureType(strings.NewReader("<html>nope"), "isla"); err == nil {
		t.Fatalf("expected error for malformed body")
	}
	noNS := `<xsd:schema xmlns:xsd="http://www.w3.org/2001/XMLSchema"><xsd:complexType name="islaType"/></xsd:schema>`
	if _, err := ParseFeatureType(strings.NewReader(noNS), "isla"); err == nil {
		t.Fatalf("expected error without targetNamespace")
	}
}

func TestInferGeometryKind(t *testing.T) {
	cases := map[string]model.GeometryKind{
		"gml:MultiSurfacePropertyType":    model.KindPolygon,
		"gml:PolygonPropertyType":         model.KindPolygon,
		"gml:MultiLineStringPropertyType": model.KindLine,
		"gml:MultiCurvePropertyType":      model.KindLine,
		"gml:PointPropertyType":           model.KindPoint,
		"gml:GeometryPropertyType":        model.KindPoint,
	}
	for in, want := range cases {
		if got := InferGeometryKind(in); got != want {
			t.Fatalf("InferGeometryKind(%q)=%s want %s", in, got, want)
		}
	}
}

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema("http://localhost:8080/geoserver/", "TPI_GIS")
	if s.TargetNamespace != "http://localhost:8080/geoserver/TPI_GIS" || s.GeometryField != "geom" ||
		s.GeometryKind != model.KindPoint || len(s.Fields) != 0 {
		t.Fatalf("unexpected default %+v", s)
	}
}
