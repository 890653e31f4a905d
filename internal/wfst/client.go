// Package wfst runs schema discovery and WFS-T insert/delete transactions
// against GeoServer.
package wfst

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/observability"
	"github.com/lauacosta/GIS-TPI/internal/core/ogc"
	mylog "github.com/lauacosta/GIS-TPI/internal/logger"
	"github.com/lauacosta/GIS-TPI/internal/schemacache"
)

var ErrSchemaDiscoveryFailed = errors.New("schema discovery failed")

type Upstream interface {
	DescribeFeatureType(ctx context.Context, workspace, layer string) ([]byte, error)
	PostTransaction(ctx context.Context, workspace, payload string) (int, []byte, error)
}

// Change describes a committed transaction.
type Change struct {
	Op         ogc.Op
	Workspace  string
	Layer      string
	FeatureIDs []string
	Extent     *geom.Extent
}

type Notifier interface {
	NotifyChange(ctx context.Context, c Change)
}

type nopNotifier struct{}

func (nopNotifier) NotifyChange(context.Context, Change) {}

type Option func(*Client)

func WithSchemaCache(c schemacache.Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithNotifier(n Notifier) Option {
	return func(cl *Client) {
		if n != nil {
			cl.notifier = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithNamespaceBase sets the base of the fallback namespace <base>/<workspace>.
func WithNamespaceBase(base string) Option {
	return func(cl *Client) { cl.namespaceBase = base }
}

func WithNamePrefix(p string) Option {
	return func(cl *Client) { cl.namePrefix = p }
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

type Client struct {
	up            Upstream
	cache         schemacache.Cache
	notifier      Notifier
	logger        *slog.Logger
	namespaceBase string
	namePrefix    string
	now           func() time.Time
}

func New(up Upstream, opts ...Option) *Client {
	c := &Client{
		up:         up,
		notifier:   nopNotifier{},
		logger:     slog.Default(),
		namePrefix: ogc.DefaultNamePrefix,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchSchema discovers the layer schema. On failure it still returns the
// default schema, together with an error wrapping ErrSchemaDiscoveryFailed,
// so callers may proceed with best-effort defaults.
func (c *Client) FetchSchema(ctx context.Context, workspace, layer string) (model.FeatureTypeSchema, error) {
	key := schemacache.Key{Session: mylog.SessionID(ctx), Workspace: workspace, Layer: layer}
	if c.cache != nil {
		if s, ok := c.cache.Get(ctx, key); ok {
			return s, nil
		}
	}

	fallback := ogc.DefaultSchema(c.namespaceBase, workspace)

	body, err := c.up.DescribeFeatureType(ctx, workspace, layer)
	if err != nil {
		return fallback, c.schemaFailed(ctx, layer, err)
	}
	s, err := ogc.ParseFeatureType(bytes.NewReader(body), layer)
	if err != nil {
		return fallback, c.schemaFailed(ctx, layer, err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, s)
	}
	return s, nil
}

func (c *Client) schemaFailed(ctx context.Context, layer string, cause error) error {
	observability.IncSchemaFallback(layer)
	return fmt.Errorf("%w: %s: %w", ErrSchemaDiscoveryFailed, layer, cause)
}

// InsertFeature inserts one geometry, which must already be in EPSG:4326.
// Expected failures come back in the result; only geometry kinds without a
// GML mapping are returned as an error.
func (c *Client) InsertFeature(ctx context.Context, workspace, layer string, g geom.Geometry, attrs map[string]any) (ogc.TransactionResult, error) {
	ctx = mylog.WithLayer(ctx, layer)

	schema, err := c.FetchSchema(ctx, workspace, layer)
	if err != nil {
		c.logger.WarnContext(ctx, "using default schema", "err", err)
	}

	gml, err := ogc.EncodeGeometry(g, ogc.TypeName(workspace, schema.GeometryField))
	if err != nil {
		if errors.Is(err, ogc.ErrUnsupportedGeometryKind) {
			return ogc.TransactionResult{}, err
		}
		res := ogc.Failure(ogc.OpInsert, 0, err.Error(), err)
		observability.IncTransaction(string(ogc.OpInsert), false)
		return res, nil
	}

	attributes := ogc.EncodeAttributes(ogc.AttributeInput{
		Workspace:  workspace,
		Layer:      layer,
		Schema:     schema,
		Values:     attrs,
		Now:        c.now(),
		NamePrefix: c.namePrefix,
	})
	payload := ogc.BuildInsertRequest(workspace, layer, schema, gml, attributes)

	res := c.Submit(ctx, workspace, ogc.OpInsert, payload)
	if res.OK {
		ext := g.Extent()
		c.notifier.NotifyChange(ctx, Change{
			Op:         ogc.OpInsert,
			Workspace:  workspace,
			Layer:      layer,
			FeatureIDs: res.FeatureIDs,
			Extent:     &ext,
		})
	}
	return res, nil
}

func (c *Client) DeleteFeature(ctx context.Context, workspace, layer, featureID string) ogc.TransactionResult {
	ctx = mylog.WithLayer(ctx, layer)

	schema, err := c.FetchSchema(ctx, workspace, layer)
	if err != nil {
		c.logger.WarnContext(ctx, "using default schema", "err", err)
	}

	res := c.Submit(ctx, workspace, ogc.OpDelete, ogc.BuildDeleteRequest(workspace, layer, schema, featureID))
	if res.OK {
		c.notifier.NotifyChange(ctx, Change{
			Op:         ogc.OpDelete,
			Workspace:  workspace,
			Layer:      layer,
			FeatureIDs: []string{featureID},
		})
	}
	return res
}

// Submit posts a transaction document and interprets the answer. There is
// no retry; a transport error is a failed result.
func (c *Client) Submit(ctx context.Context, workspace string, op ogc.Op, payload string) ogc.TransactionResult {
	status, body, err := c.up.PostTransaction(ctx, workspace, payload)
	var res ogc.TransactionResult
	if err != nil {
		res = ogc.Failure(op, status, err.Error(), err)
	} else {
		res = ogc.InterpretTransaction(op, status, body)
	}

	observability.IncTransaction(string(op), res.OK)
	if !res.OK {
		c.logger.WarnContext(ctx, "transaction failed",
			"op", string(op), "status", res.HTTPStatus, "message", res.Message)
	} else {
		c.logger.DebugContext(ctx, "transaction committed",
			"op", string(op), "inserted", res.Inserted, "deleted", res.Deleted)
	}
	return res
}
