package ogc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
)

const (
	DateLayout        = "2006-01-02"
	DefaultNamePrefix = "Nuevo"
)

// AttributeInput is everything the attribute encoder needs. Now is the
// call-time clock used for date defaults; it is the only time source.
type AttributeInput struct {
	Workspace  string
	Layer      string
	Schema     model.FeatureTypeSchema
	Values     map[string]any
	Now        time.Time
	NamePrefix string
}

// EncodeAttributes renders one <ws:field>value</ws:field> element per schema
// field, in schema order. Missing values get a default picked from the field
// name first and the field type second; fields with no default are omitted so
// the server applies its own.
func EncodeAttributes(in AttributeInput) string {
	prefix := in.NamePrefix
	if prefix == "" {
		prefix = DefaultNamePrefix
	}

	var b strings.Builder
	for _, f := range in.Schema.Fields {
		if f.Name == "" || f.Name == in.Schema.GeometryField {
			continue
		}
		val, ok := lookup(in.Values, f.Name)
		var text string
		if ok {
			text = formatValue(val, f.Type)
		} else {
			text, ok = defaultValue(f, in.Layer, prefix, in.Now)
			if !ok {
				continue
			}
		}
		qn := qualify(in.Workspace, f.Name)
		b.WriteString("<" + qn + ">")
		_ = xml.EscapeText(&b, []byte(text))
		b.WriteString("</" + qn + ">")
	}
	return b.String()
}

func lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok && v != nil {
		return v, true
	}
	// Case-insensitive matches resolve to the smallest key so the output does
	// not depend on map order.
	best, found := "", false
	for k, v := range values {
		if v == nil || !strings.EqualFold(k, name) {
			continue
		}
		if !found || k < best {
			best, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return values[best], true
}

func defaultValue(f model.Field, layer, namePrefix string, now time.Time) (string, bool) {
	name := strings.ToLower(f.Name)
	typ := normalizeType(f.Type)

	switch {
	case strings.Contains(name, "fecha"), strings.Contains(name, "date"):
		return now.Format(DateLayout), true
	case strings.Contains(name, "nombre"), strings.Contains(name, "name"):
		return namePrefix + " " + layer, true
	case isIntegerType(typ):
		return "0", true
	case isDecimalType(typ):
		return "0.0", true
	case typ == "boolean":
		return "false", true
	case typ == "date", typ == "datetime":
		return now.Format(DateLayout), true
	}
	return "", false
}

// normalizeType strips the xsd: prefix and lowercases.
func normalizeType(t string) string {
	return strings.ToLower(localName(strings.TrimSpace(t)))
}

func isIntegerType(t string) bool {
	switch t {
	case "int", "integer", "long", "short", "byte", "biginteger", "unsignedint", "unsignedlong":
		return true
	}
	return false
}

func isDecimalType(t string) bool {
	switch t {
	case "double", "float", "decimal", "number", "numeric", "real":
		return true
	}
	return false
}

func formatValue(v any, fieldType string) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case time.Time:
		if normalizeType(fieldType) == "date" {
			return t.Format(DateLayout)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func qualify(workspace, name string) string {
	if workspace == "" {
		return name
	}
	return workspace + ":" + name
}
