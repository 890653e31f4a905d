// Package changes carries feature change notifications between viewers over
// Kafka, so a viewer reloads a layer another viewer has just edited.
package changes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lauacosta/GIS-TPI/internal/core/geom"
	"github.com/lauacosta/GIS-TPI/internal/wfst"
)

const EventVersion = 1

type Event struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	Workspace  string    `json:"workspace"`
	Layer      string    `json:"layer"`
	TS         time.Time `json:"ts"`
	FeatureIDs []string  `json:"feature_ids,omitempty"`
	Source     string    `json:"source,omitempty"`
	BBox       *BBox     `json:"bbox,omitempty"`
}

// BBox is the lon/lat extent of the changed geometry, when known.
type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

// FromChange builds the event for a committed transaction. Extents in a
// change are in EPSG:4326, like the geometry that was sent.
func FromChange(c wfst.Change, source string, now time.Time) Event {
	ev := Event{
		Version:    EventVersion,
		ID:         uuid.NewString(),
		Op:         string(c.Op),
		Workspace:  c.Workspace,
		Layer:      c.Layer,
		TS:         now.UTC(),
		FeatureIDs: c.FeatureIDs,
		Source:     source,
	}
	if c.Extent != nil {
		ev.BBox = &BBox{X1: c.Extent.MinX, Y1: c.Extent.MinY, X2: c.Extent.MaxX, Y2: c.Extent.MaxY, SRID: geom.CRSWGS84}
	}
	return ev
}

func (e Event) Validate() error {
	if e.Version != EventVersion {
		return fmt.Errorf("version must be %d", EventVersion)
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	switch e.Op {
	case "insert", "delete":
	default:
		return fmt.Errorf("op must be insert|delete")
	}
	if strings.TrimSpace(e.Layer) == "" {
		return fmt.Errorf("layer is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.BBox == nil {
		return nil
	}
	bb := *e.BBox
	if bb.SRID != geom.CRSWGS84 {
		return fmt.Errorf("bbox.srid must be %s", geom.CRSWGS84)
	}
	if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
		return fmt.Errorf("bbox longitude out of range")
	}
	if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
		return fmt.Errorf("bbox latitude out of range")
	}
	// a point insert has a zero-area box
	if bb.X2 < bb.X1 || bb.Y2 < bb.Y1 {
		return fmt.Errorf("bbox must satisfy x2>=x1 and y2>=y1")
	}
	return nil
}
