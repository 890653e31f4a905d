package schemacache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const keyPrefix = "gis:schema"

// Key identifies one cached schema. An empty Session means the entry is
// shared by every session.
type Key struct {
	Session   string
	Workspace string
	Layer     string
}

// String renders the storage key. Names are sanitized for readability and
// the hash keeps keys distinct when sanitizing collapses two names.
func (k Key) String() string {
	session := k.Session
	if session == "" {
		session = "shared"
	}
	raw := session + "\x00" + k.Workspace + "\x00" + k.Layer
	sum := xxhash.Sum64String(raw)
	return fmt.Sprintf("%s:%s:%s:%s:h=%016x", keyPrefix,
		sanitize(session), sanitize(k.Workspace), sanitize(k.Layer), sum)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
