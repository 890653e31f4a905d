package ogc

import (
	"strings"
	"testing"
	"time"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func islaSchema() model.FeatureTypeSchema {
	return model.FeatureTypeSchema{
		TargetNamespace: "http://localhost:8080/geoserver/TPI_GIS",
		GeometryField:   "geom",
		GeometryKind:    model.KindPolygon,
		Fields: []model.Field{
			{Name: "nombre", Type: "string"},
			{Name: "actualizac", Type: "date"},
		},
	}
}

func TestEncodeAttributes_DefaultsForIsla(t *testing.T) {
	got := EncodeAttributes(AttributeInput{
		Workspace: "TPI_GIS",
		Layer:     "isla",
		Schema:    islaSchema(),
		Now:       fixedNow,
	})
	want := "<TPI_GIS:nombre>Nuevo isla</TPI_GIS:nombre><TPI_GIS:actualizac>2026-03-14</TPI_GIS:actualizac>"
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestEncodeAttributes_IsDeterministic(t *testing.T) {
	schema := islaSchema()
	schema.Fields = append(schema.Fields,
		model.Field{Name: "superficie", Type: "xsd:double"},
		model.Field{Name: "habitantes", Type: "xsd:int"},
		model.Field{Name: "protegida", Type: "xsd:boolean"},
		model.Field{Name: "codigo", Type: "xsd:string"},
	)
	in := AttributeInput{
		Workspace: "TPI_GIS",
		Layer:     "isla",
		Schema:    schema,
		Values:    map[string]any{"codigo": "A<1>", "superficie": nil},
		Now:       fixedNow,
	}
	a := EncodeAttributes(in)
	b := EncodeAttributes(in)
	if a != b {
		t.Fatalf("non-deterministic output:\n%s\n%s", a, b)
	}
	for _, want := range []string{
		"<TPI_GIS:superficie>0.0</TPI_GIS:superficie>",
		"<TPI_GIS:habitantes>0</TPI_GIS:habitantes>",
		"<TPI_GIS:protegida>false</TPI_GIS:protegida>",
		"<TPI_GIS:codigo>A&lt;1&gt;</TPI_GIS:codigo>",
	} {
		if !strings.Contains(a, want) {
			t.Fatalf("missing %s in %s", want, a)
		}
	}
}

func TestEncodeAttributes_NameHeuristicBeforeType(t *testing.T) {
	schema := model.FeatureTypeSchema{
		GeometryField: "geom",
		Fields: []model.Field{
			{Name: "fecha_nombre", Type: "string"},
			{Name: "name_count", Type: "int"},
		},
	}
	got := EncodeAttributes(AttributeInput{Workspace: "ws", Layer: "rio", Schema: schema, Now: fixedNow})
	if !strings.Contains(got, "<ws:fecha_nombre>2026-03-14</ws:fecha_nombre>") {
		t.Fatalf("date name pattern must win: %s", got)
	}
	if !strings.Contains(got, "<ws:name_count>Nuevo rio</ws:name_count>") {
		t.Fatalf("name pattern must win over numeric type: %s", got)
	}
}

func TestEncodeAttributes_OmitsUnknownAndGeometry(t *testing.T) {
	schema := model.FeatureTypeSchema{
		GeometryField: "geom",
		Fields: []model.Field{
			{Name: "geom", Type: "gml:PointPropertyType"},
			{Name: "observacion", Type: "string"},
		},
	}
	got := EncodeAttributes(AttributeInput{Workspace: "ws", Layer: "pozo", Schema: schema, Now: fixedNow})
	if got != "" {
		t.Fatalf("expected nothing, got %s", got)
	}
}

func TestEncodeAttributes_CallerValuesWin(t *testing.T) {
	got := EncodeAttributes(AttributeInput{
		Workspace:  "TPI_GIS",
		Layer:      "isla",
		Schema:     islaSchema(),
		Values:     map[string]any{"Nombre": "Isla del Cerrito", "actualizac": time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
		Now:        fixedNow,
		NamePrefix: "New",
	})
	want := "<TPI_GIS:nombre>Isla del Cerrito</TPI_GIS:nombre><TPI_GIS:actualizac>2020-01-02</TPI_GIS:actualizac>"
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestEncodeAttributes_CaseInsensitiveKeysAreStable(t *testing.T) {
	in := AttributeInput{
		Workspace: "TPI_GIS",
		Layer:     "isla",
		Schema:    islaSchema(),
		Values:    map[string]any{"Nombre": "Cerrito", "NOMBRE": "Apipé", "NoMbRe": "Yacyretá"},
		Now:       fixedNow,
	}
	want := "<TPI_GIS:nombre>Apipé</TPI_GIS:nombre><TPI_GIS:actualizac>2026-03-14</TPI_GIS:actualizac>"
	for i := 0; i < 50; i++ {
		if got := EncodeAttributes(in); got != want {
			t.Fatalf("run %d: got  %s\nwant %s", i, got, want)
		}
	}

	in.Values["nombre"] = "Exacto"
	if got := EncodeAttributes(in); !strings.Contains(got, ">Exacto<") {
		t.Fatalf("exact key did not win: %s", got)
	}
}
