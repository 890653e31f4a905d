package ogc

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

const wfsVersion = "1.1.0"

func endpoint(geoServerBase, workspace, service string) string {
	base := strings.TrimRight(geoServerBase, "/")
	if ws := strings.Trim(workspace, "/"); ws != "" {
		base += "/" + ws
	}
	return base + "/" + service
}

// WFSEndpoint is the workspace-scoped WFS URL, used for DescribeFeatureType
// and Transaction requests.
func WFSEndpoint(geoServerBase, workspace string) string {
	return endpoint(geoServerBase, workspace, "wfs")
}

// OWSEndpoint is the workspace-scoped OWS URL, used for GetFeature.
func OWSEndpoint(geoServerBase, workspace string) string {
	return endpoint(geoServerBase, workspace, "ows")
}

func WMSEndpoint(geoServerBase, workspace string) string {
	return endpoint(geoServerBase, workspace, "wms")
}

// TypeName qualifies a layer with its workspace prefix.
func TypeName(workspace, layer string) string {
	if workspace == "" || strings.Contains(layer, ":") {
		return layer
	}
	return workspace + ":" + layer
}

func EPSG(code int) string {
	return "EPSG:" + strconv.Itoa(code)
}

// BuildGetFeatureParams produces the bbox-strategy GetFeature query. The bbox
// carries the same EPSG code the features are requested in.
func BuildGetFeatureParams(workspace, layer string, bbox *model.BBox, epsg int) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", wfsVersion)
	params.Set("request", "GetFeature")
	params.Set("typeName", TypeName(workspace, layer))
	params.Set("outputFormat", "application/json")
	params.Set("srsname", EPSG(epsg))
	if bbox != nil {
		b := *bbox
		if b.SRID == "" {
			b.SRID = EPSG(epsg)
		}
		params.Set("bbox", b.String())
	}
	return params
}

func BuildDescribeFeatureTypeParams(workspace, layer string) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", wfsVersion)
	params.Set("request", "DescribeFeatureType")
	params.Set("typeName", TypeName(workspace, layer))
	return params
}

func BuildCapabilitiesParams() url.Values {
	params := url.Values{}
	params.Set("service", "WMS")
	params.Set("request", "GetCapabilities")
	return params
}
