package ogc

import (
	"encoding/xml"
	"strings"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

const (
	nsWFS = "http://www.opengis.net/wfs"
	nsGML = "http://www.opengis.net/gml"
	nsOGC = "http://www.opengis.net/ogc"
	nsXSI = "http://www.w3.org/2001/XMLSchema-instance"

	wfsSchemaLocation = "http://www.opengis.net/wfs http://schemas.opengis.net/wfs/1.1.0/wfs.xsd"
)

func openTransaction(b *strings.Builder, workspace string, schema model.FeatureTypeSchema) {
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<wfs:Transaction service="WFS" version="` + wfsVersion + `"`)
	b.WriteString(` xmlns:wfs="` + nsWFS + `"`)
	b.WriteString(` xmlns:gml="` + nsGML + `"`)
	b.WriteString(` xmlns:ogc="` + nsOGC + `"`)
	b.WriteString(` xmlns:xsi="` + nsXSI + `"`)
	if workspace != "" {
		b.WriteString(` xmlns:` + workspace + `="` + attr(schema.TargetNamespace) + `"`)
	}
	b.WriteString(` xsi:schemaLocation="` + wfsSchemaLocation + `">`)
}

// BuildInsertRequest wraps already-encoded geometry and attribute markup in
// a wfs:Insert of <workspace>:<layer>.
func BuildInsertRequest(workspace, layer string, schema model.FeatureTypeSchema, geometryMarkup, attributeMarkup string) string {
	var b strings.Builder
	openTransaction(&b, workspace, schema)
	tn := TypeName(workspace, localName(layer))
	b.WriteString(`<wfs:Insert><` + tn + `>`)
	b.WriteString(geometryMarkup)
	b.WriteString(attributeMarkup)
	b.WriteString(`</` + tn + `></wfs:Insert>`)
	b.WriteString(`</wfs:Transaction>`)
	return b.String()
}

// BuildDeleteRequest removes a single feature by its feature id.
func BuildDeleteRequest(workspace, layer string, schema model.FeatureTypeSchema, featureID string) string {
	var b strings.Builder
	openTransaction(&b, workspace, schema)
	b.WriteString(`<wfs:Delete typeName="` + attr(TypeName(workspace, localName(layer))) + `">`)
	b.WriteString(`<ogc:Filter><ogc:FeatureId fid="` + attr(featureID) + `"/></ogc:Filter>`)
	b.WriteString(`</wfs:Delete>`)
	b.WriteString(`</wfs:Transaction>`)
	return b.String()
}

func attr(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
