package locator

import (
	"github.com/zoneinfo/server/internal/geom"
	"github.com/zoneinfo/server/internal/world"
)

// Cache remembers the building found for the previous square. Adjacent
// squares usually sit on the same building, and the quad test is far cheaper
// than a grid walk.
type Cache struct {
	match Match
	valid bool
	hits  uint64
}

// Lookup returns the cached subservice when square overlaps the cached
// footprint.
func (c *Cache) Lookup(square geom.Quad2) (world.SubService, bool) {
	if !c.valid || !square.Intersect(c.match.Footprint) {
		return world.SubServiceNone, false
	}
	c.hits++
	return c.match.Service, true
}

// Remember records the result of a Find. A miss empties the cache.
func (c *Cache) Remember(m Match, found bool) {
	c.match, c.valid = m, found
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.match, c.valid = Match{}, false
}

// Hits returns the number of successful lookups.
func (c *Cache) Hits() uint64 { return c.hits }
