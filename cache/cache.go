// Package cache memoizes generated itineraries so identical requests skip
// the model cascade.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tripweave/tripweave/itinerary"
)

// entry pairs a cached plan with the model that produced it, so records
// created from cache hits still name their true producer.
type entry struct {
	plan  *itinerary.Itinerary
	model string
}

// Cache holds recently generated itineraries. Entries are keyed by
// destination, duration, and language; destination is trimmed and
// lowercased so "Kyoto" and " kyoto " share one entry. Plans are deep
// copied on the way in and out.
type Cache struct {
	lru *expirable.LRU[string, entry]
}

// New returns a cache holding at most size entries, each for at most ttl.
// A non-positive ttl disables expiry.
func New(size int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, entry](size, nil, ttl),
	}
}

// Get returns a copy of the cached plan for the request shape plus the
// model that produced it, if present.
func (c *Cache) Get(destination string, duration int, lang string) (*itinerary.Itinerary, string, bool) {
	e, ok := c.lru.Get(key(destination, duration, lang))
	if !ok {
		return nil, "", false
	}
	return e.plan.Clone(), e.model, true
}

// Put stores a copy of the plan under the request shape.
func (c *Cache) Put(destination string, duration int, lang string, plan *itinerary.Itinerary, model string) {
	c.lru.Add(key(destination, duration, lang), entry{plan: plan.Clone(), model: model})
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops all entries.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func key(destination string, duration int, lang string) string {
	return fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(destination)), duration, lang)
}
