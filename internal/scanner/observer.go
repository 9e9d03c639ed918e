package scanner

import (
	"sync/atomic"
	"time"
)

// Observer receives scan telemetry. Implement it to feed a monitoring system.
type Observer interface {
	// OnTick is called after every tick; skipped is true when the world
	// was not ready.
	OnTick(d time.Duration, blocks, squares int, skipped bool)
	// OnPass is called when a pass is published.
	OnPass(pass uint64, elapsed time.Duration)
	// OnLookup is called for every building lookup on an occupied unzoned
	// square. cacheHit is true when the adjacency cache answered.
	OnLookup(cacheHit bool)
	// OnIntegrityEvent is called for every corrupt building list walk.
	OnIntegrityEvent()
}

// NoopObserver discards all telemetry.
type NoopObserver struct{}

func (NoopObserver) OnTick(time.Duration, int, int, bool) {}
func (NoopObserver) OnPass(uint64, time.Duration)         {}
func (NoopObserver) OnLookup(bool)                        {}
func (NoopObserver) OnIntegrityEvent()                    {}

// CountingObserver keeps simple in-memory totals.
type CountingObserver struct {
	Ticks           atomic.Int64
	SkippedTicks    atomic.Int64
	Blocks          atomic.Int64
	Squares         atomic.Int64
	Passes          atomic.Int64
	Lookups         atomic.Int64
	CacheHits       atomic.Int64
	IntegrityEvents atomic.Int64
}

// OnTick implements Observer.
func (c *CountingObserver) OnTick(_ time.Duration, blocks, squares int, skipped bool) {
	if skipped {
		c.SkippedTicks.Add(1)
		return
	}
	c.Ticks.Add(1)
	c.Blocks.Add(int64(blocks))
	c.Squares.Add(int64(squares))
}

// OnPass implements Observer.
func (c *CountingObserver) OnPass(uint64, time.Duration) { c.Passes.Add(1) }

// OnLookup implements Observer.
func (c *CountingObserver) OnLookup(cacheHit bool) {
	c.Lookups.Add(1)
	if cacheHit {
		c.CacheHits.Add(1)
	}
}

// OnIntegrityEvent implements Observer.
func (c *CountingObserver) OnIntegrityEvent() { c.IntegrityEvents.Add(1) }
