package changes

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// eventDedupe remembers recently applied event ids.
type eventDedupe struct {
	lru *lru.Cache[string, struct{}]
}

func newEventDedupe(size int) *eventDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, struct{}](size)
	return &eventDedupe{lru: c}
}

// firstSeen records id and reports whether it was new.
func (d *eventDedupe) firstSeen(id string) bool {
	found, _ := d.lru.ContainsOrAdd(id, struct{}{})
	return !found
}
