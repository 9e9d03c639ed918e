// Package counts accumulates per-category, per-district square counts and
// publishes completed passes for readers on other goroutines.
package counts

import (
	"sync/atomic"

	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/world"
)

// Row holds built, empty and total counts of one category for every district
// plus Entire City.
type Row struct {
	Built [world.DistrictArraySize]int32
	Empty [world.DistrictArraySize]int32
	Total [world.DistrictArraySize]int32
}

// Buffer is a full set of counts for one pass.
type Buffer struct {
	Rows [category.Count]Row
	// Pass is the sequence number of the completed pass, starting at 1.
	Pass uint64
}

// Counts is the triple reported for one category and district.
type Counts struct {
	Built int `json:"built"`
	Empty int `json:"empty"`
	Total int `json:"total"`
}

// Get returns the counts of c for district.
func (b *Buffer) Get(c category.Category, district uint8) Counts {
	if b == nil || !c.Valid() || int(district) >= world.DistrictArraySize {
		return Counts{}
	}
	r := &b.Rows[c]
	return Counts{
		Built: int(r.Built[district]),
		Empty: int(r.Empty[district]),
		Total: int(r.Total[district]),
	}
}

// Store owns the in-progress buffer written by the scanner and the published
// buffer read by everyone else. Only the scanner goroutine may call
// Increment, Reset and Publish.
type Store struct {
	temp   Buffer
	final  atomic.Pointer[Buffer]
	passes uint64
}

// NewStore returns a store whose published buffer is all zeros.
func NewStore() *Store {
	s := &Store{}
	s.final.Store(&Buffer{})
	return s
}

// Increment counts one square of category c in district and in Entire City.
func (s *Store) Increment(c category.Category, district uint8, occupied bool) {
	if !c.Valid() || int(district) >= world.MaxDistrictCount {
		return
	}
	r := &s.temp.Rows[c]
	for _, d := range [2]uint8{district, world.DistrictEntireCity} {
		if occupied {
			r.Built[d]++
		} else {
			r.Empty[d]++
		}
		r.Total[d]++
	}
}

// Reset zeroes the in-progress buffer.
func (s *Store) Reset() {
	s.temp = Buffer{}
}

// Publish makes a copy of the in-progress buffer visible to readers.
func (s *Store) Publish() *Buffer {
	s.passes++
	snap := new(Buffer)
	*snap = s.temp
	snap.Pass = s.passes
	s.final.Store(snap)
	return snap
}

// Restore publishes a previously saved buffer and continues pass numbering
// after it. It must be called before the scanner starts.
func (s *Store) Restore(buf *Buffer) {
	snap := new(Buffer)
	*snap = *buf
	s.passes = snap.Pass
	s.final.Store(snap)
}

// Final returns the most recently published buffer. It must not be modified.
func (s *Store) Final() *Buffer {
	return s.final.Load()
}

// Query reads c for district from the published buffer.
func (s *Store) Query(c category.Category, district uint8) Counts {
	return s.Final().Get(c, district)
}

// Pending reads c for district from the in-progress buffer. Scanner
// goroutine only.
func (s *Store) Pending(c category.Category, district uint8) Counts {
	return s.temp.Get(c, district)
}
