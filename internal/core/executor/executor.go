// Package executor performs the upstream HTTP calls to GeoServer.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/observability"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
)

const upstreamName = "geoserver"

// maximum body kept from a failed upstream call
const errBodyLimit = 8 << 10

type Interface interface {
	FetchGetFeature(ctx context.Context, workspace, layer string, bbox *model.BBox, epsg int) ([]byte, error)
	DescribeFeatureType(ctx context.Context, workspace, layer string) ([]byte, error)
	GetCapabilities(ctx context.Context, workspace string) ([]byte, error)
	PostTransaction(ctx context.Context, workspace, payload string) (int, []byte, error)
	ForwardGetFeature(w http.ResponseWriter, r *http.Request, workspace, layer string, bbox *model.BBox, epsg int)
}

// StatusError is returned for non-2xx answers on read requests.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	base     string
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, geoServerBase string) (*Executor, error) {
	u, err := url.Parse(geoServerBase)
	if err != nil {
		return nil, fmt.Errorf("parse geoserver url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geoserver url %q: missing scheme or host", geoServerBase)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Executor{
		logger:   logger,
		client:   client,
		base:     strings.TrimRight(geoServerBase, "/"),
		startNow: time.Now,
	}, nil
}

func (e *Executor) Base() string { return e.base }

func (e *Executor) FetchGetFeature(ctx context.Context, workspace, layer string, bbox *model.BBox, epsg int) ([]byte, error) {
	params := ogc.BuildGetFeatureParams(workspace, layer, bbox, epsg)
	return e.get(ctx, "GetFeature", ogc.OWSEndpoint(e.base, workspace), params, "application/json")
}

func (e *Executor) DescribeFeatureType(ctx context.Context, workspace, layer string) ([]byte, error) {
	params := ogc.BuildDescribeFeatureTypeParams(workspace, layer)
	return e.get(ctx, "DescribeFeatureType", ogc.WFSEndpoint(e.base, workspace), params, "application/xml")
}

func (e *Executor) GetCapabilities(ctx context.Context, workspace string) ([]byte, error) {
	return e.get(ctx, "GetCapabilities", ogc.WMSEndpoint(e.base, workspace), ogc.BuildCapabilitiesParams(), "application/xml")
}

func (e *Executor) get(ctx context.Context, request, endpoint string, params url.Values, accept string) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", request, err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(upstreamName, request, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(b)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", request, err)
	}
	e.logger.Debug("upstream call done", "request", request, "status", resp.StatusCode, "bytes", len(b))
	return b, nil
}

// PostTransaction posts a WFS-T document. Non-2xx answers are not errors here:
// the caller interprets status and body together.
func (e *Executor) PostTransaction(ctx context.Context, workspace, payload string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ogc.WFSEndpoint(e.base, workspace), bytes.NewBufferString(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("transaction: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(upstreamName, "Transaction", time.Since(start).Seconds())

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("transaction: read body: %w", err)
	}
	return resp.StatusCode, b, nil
}

// ForwardGetFeature proxies a bbox GetFeature to GeoServer /ows and streams the response.
func (e *Executor) ForwardGetFeature(w http.ResponseWriter, r *http.Request, workspace, layer string, bbox *model.BBox, epsg int) {
	owsURL, err := url.Parse(ogc.OWSEndpoint(e.base, workspace))
	if err != nil {
		http.Error(w, "bad upstream url", http.StatusInternalServerError)
		return
	}
	params := ogc.BuildGetFeatureParams(workspace, layer, bbox, epsg)
	start := e.startNow()

	rt := http.RoundTripper(http.DefaultTransport)
	if e.client != nil && e.client.Transport != nil {
		rt = e.client.Transport
	}

	proxy := &httputil.ReverseProxy{
		Transport: rt,

		Rewrite: func(p *httputil.ProxyRequest) {
			p.Out.URL.Scheme = owsURL.Scheme
			p.Out.URL.Host = owsURL.Host
			p.Out.URL.Path = owsURL.Path
			p.Out.URL.RawPath = owsURL.EscapedPath()
			p.Out.URL.RawQuery = params.Encode()
			p.Out.Host = owsURL.Host
			p.Out.Header.Set("Accept", "application/json")
			p.SetXForwarded()
		},

		ModifyResponse: func(resp *http.Response) error {
			dur := time.Since(start)
			e.logger.Debug("forward done",
				"status", resp.StatusCode,
				"duration", dur.String())
			observability.ObserveUpstreamLatency(upstreamName, "GetFeature", dur.Seconds())
			return nil
		},

		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			e.logger.Error("reverse proxy error", "err", err)
			http.Error(w, "upstream proxy error: "+err.Error(), http.StatusBadGateway)
		},
	}

	e.logger.Debug("forward WFS GetFeature",
		"layer", layer,
		"geoserver_ows", owsURL.String())

	proxy.ServeHTTP(w, r)
}
