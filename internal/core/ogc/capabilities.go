package ogc

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

type wmsCapabilities struct {
	XMLName    xml.Name `xml:"WMS_Capabilities"`
	Capability struct {
		Layer struct {
			Layers []wmsLayer `xml:"Layer"`
		} `xml:"Layer"`
	} `xml:"Capability"`
}

type wmsLayer struct {
	Name   string `xml:"Name"`
	Title  string `xml:"Title"`
	Styles []struct {
		Name string `xml:"Name"`
	} `xml:"Style"`
}

// ParseCapabilities reads a WMS GetCapabilities document and returns the
// published layers of the workspace. The first style name of a layer
// (point/line/polygon in the default GeoServer setup) decides its kind.
func ParseCapabilities(r io.Reader, workspace string) ([]model.LayerDescriptor, error) {
	var caps wmsCapabilities
	if err := xml.NewDecoder(r).Decode(&caps); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}

	prefix := workspace + ":"
	out := make([]model.LayerDescriptor, 0, len(caps.Capability.Layer.Layers))
	for _, l := range caps.Capability.Layer.Layers {
		raw := strings.TrimPrefix(strings.TrimSpace(l.Name), prefix)
		if raw == "" {
			continue
		}
		style := ""
		if len(l.Styles) > 0 {
			style = l.Styles[0].Name
		}
		out = append(out, model.LayerDescriptor{
			RawName: raw,
			Label:   strings.ToLower(strings.ReplaceAll(raw, "_", " ")),
			Kind:    model.ParseGeometryKind(style),
		})
	}
	return out, nil
}
