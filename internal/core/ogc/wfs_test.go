package ogc

import (
	"net/url"
	"strings"
	"testing"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

func TestBuildGetFeatureParams_WithBBox(t *testing.T) {
	bb := &model.BBox{X1: -58.9, Y1: -27.6, X2: -58.7, Y2: -27.4}
	v := BuildGetFeatureParams("TPI_GIS", "isla", bb, 4326)
	assertHas := func(k, want string) {
		if got := v.Get(k); got != want {
			t.Fatalf("param %q got %q want %q", k, got, want)
		}
	}
	assertHas("service", "WFS")
	assertHas("version", "1.1.0")
	assertHas("request", "GetFeature")
	assertHas("typeName", "TPI_GIS:isla")
	assertHas("outputFormat", "application/json")
	assertHas("srsname", "EPSG:4326")
	assertHas("bbox", "-58.9,-27.6,-58.7,-27.4,EPSG:4326")
}

func TestBuildGetFeatureParams_LargeMercatorValuesAreNotExponent(t *testing.T) {
	bb := &model.BBox{X1: -20037508.342789244, Y1: -1e7, X2: 20037508.342789244, Y2: 1e7}
	got := BuildGetFeatureParams("TPI_GIS", "isla", bb, 3857).Get("bbox")
	if strings.Contains(got, "e+") {
		t.Fatalf("bbox uses exponent notation: %q", got)
	}
	if got != "-20037508.342789244,-10000000,20037508.342789244,10000000,EPSG:3857" {
		t.Fatalf("bbox=%q", got)
	}
}

func TestBuildDescribeFeatureTypeParams(t *testing.T) {
	v := BuildDescribeFeatureTypeParams("TPI_GIS", "isla")
	if v.Get("request") != "DescribeFeatureType" || v.Get("typeName") != "TPI_GIS:isla" || v.Get("version") != "1.1.0" {
		t.Fatalf("unexpected params %v", v)
	}
}

func TestEndpoints(t *testing.T) {
	base := "http://localhost:8080/geoserver/"
	cases := map[string]string{
		WFSEndpoint(base, "TPI_GIS"): "http://localhost:8080/geoserver/TPI_GIS/wfs",
		OWSEndpoint(base, "TPI_GIS"): "http://localhost:8080/geoserver/TPI_GIS/ows",
		WMSEndpoint(base, "TPI_GIS"): "http://localhost:8080/geoserver/TPI_GIS/wms",
		OWSEndpoint(base, ""):        "http://localhost:8080/geoserver/ows",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("endpoint got %q want %q", got, want)
		}
		if _, err := url.Parse(got); err != nil {
			t.Fatalf("invalid URL %q: %v", got, err)
		}
	}
}

func TestTypeName_KeepsQualifiedNames(t *testing.T) {
	if got := TypeName("TPI_GIS", "other:isla"); got != "other:isla" {
		t.Fatalf("got %q", got)
	}
	if got := TypeName("", "isla"); got != "isla" {
		t.Fatalf("got %q", got)
	}
}
