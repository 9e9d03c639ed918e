// Package scanner walks the zone block table a slice at a time, classifies
// every countable square and publishes the counts once a pass completes.
package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/classify"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/geom"
	"github.com/zoneinfo/server/internal/locator"
	"github.com/zoneinfo/server/internal/performance"
	"github.com/zoneinfo/server/internal/world"
)

// DefaultBlocksPerTick is the per-tick block budget of a budgeted tick.
const DefaultBlocksPerTick = 256

// squareInset shrinks a square to just inside its corners so buildings on
// adjacent squares are not matched.
const squareInset = 0.5 * 0.99

var (
	// ErrNotReady is reported when a world handle is missing.
	ErrNotReady = errors.New("world tables not ready")
	// ErrTickPanic wraps a panic recovered inside a tick.
	ErrTickPanic = errors.New("scan tick panicked")
)

// TickResult summarises one call to Tick.
type TickResult struct {
	Skipped   bool
	Stopped   bool
	Blocks    int
	Squares   int
	Published bool
	Pass      uint64
	Duration  time.Duration
	Err       error
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithObserver installs a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Scanner) { s.observer = o }
}

// WithProfiler times ticks and passes.
func WithProfiler(p *performance.Profiler) Option {
	return func(s *Scanner) { s.profiler = p }
}

// Scanner is driven by a single goroutine. RequestFullRecount, RequestStop
// and the read accessors are safe from any goroutine.
type Scanner struct {
	store      *counts.Store
	classifier classify.Classifier
	locator    *locator.Locator
	cache      locator.Cache

	cursor    int
	passStart time.Time

	recount atomic.Bool
	stopped atomic.Bool
	pos     atomic.Int64

	logger   *slog.Logger
	observer Observer
	profiler *performance.Profiler
}

// New returns a scanner writing into store.
func New(store *counts.Store, rules *category.RuleSet, opts ...Option) *Scanner {
	s := &Scanner{
		store:      store,
		classifier: classify.New(rules),
		logger:     slog.Default(),
		observer:   NoopObserver{},
		profiler:   performance.NewProfiler(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scanner")
	s.locator = locator.New(
		locator.WithLogger(s.logger),
		locator.WithStop(s.stopped.Load),
		locator.WithIntegrityHook(func(int, error) { s.observer.OnIntegrityEvent() }),
	)
	return s
}

// RequestFullRecount makes the next tick restart the pass and scan the whole
// table at once.
func (s *Scanner) RequestFullRecount() { s.recount.Store(true) }

// RequestStop aborts the current tick as soon as possible and turns later
// ticks into no-ops. The published counts are left untouched.
func (s *Scanner) RequestStop() { s.stopped.Store(true) }

// Stopped reports whether RequestStop was called.
func (s *Scanner) Stopped() bool { return s.stopped.Load() }

// Resume clears a stop and restarts the pass from the beginning. Scanner
// goroutine only.
func (s *Scanner) Resume() {
	s.cursor = 0
	s.pos.Store(0)
	s.store.Reset()
	s.stopped.Store(false)
}

func (s *Scanner) abandonPass() {
	s.store.Reset()
	s.cache.Clear()
	s.cursor = 0
	s.pos.Store(0)
}

// Cursor returns the index of the next block to scan.
func (s *Scanner) Cursor() int { return int(s.pos.Load()) }

// Locator exposes the building locator for diagnostics.
func (s *Scanner) Locator() *locator.Locator { return s.locator }

// Tick scans up to budget blocks, or the whole table when forceFull is set
// or a full recount was requested. It never panics and never returns an
// error to the caller; problems are reported in the result.
func (s *Scanner) Tick(wc world.Context, budget int, forceFull bool) (res TickResult) {
	if s.stopped.Load() {
		res.Stopped = true
		return res
	}
	if !wc.Ready() {
		res.Skipped = true
		res.Err = ErrNotReady
		s.observer.OnTick(0, 0, 0, true)
		return res
	}

	start := time.Now()
	op := s.profiler.Start("scanner.tick")
	defer func() {
		op.End()
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrTickPanic, r)
			s.logger.Error("tick aborted, restarting pass", "cursor", s.cursor, "error", res.Err)
			// Rows counted before the panic are already in temp; the pass
			// restarts so no block is counted twice.
			s.abandonPass()
		}
		s.observer.OnTick(res.Duration, res.Blocks, res.Squares, false)
	}()

	if s.recount.Swap(false) {
		forceFull = true
	}
	if forceFull {
		s.cursor = 0
		s.store.Reset()
	}
	if budget <= 0 {
		budget = DefaultBlocksPerTick
	}

	n := min(wc.Blocks.Len(), world.MaxBlockCount)
	if s.cursor > n {
		s.cursor = n
	}
	if s.cursor == 0 {
		s.passStart = start
	}
	end := n
	if !forceFull {
		end = min(s.cursor+budget, n)
	}

	for i := s.cursor; i < end; i++ {
		if s.stopped.Load() {
			res.Stopped = true
			return res
		}
		b := wc.Blocks.Block(i)
		res.Blocks++
		if !b.Created() {
			continue
		}
		squares, ok := s.scanBlock(wc, b)
		res.Squares += squares
		if !ok {
			res.Stopped = true
			return res
		}
	}
	s.cursor = end

	if s.cursor >= n {
		buf := s.store.Publish()
		s.store.Reset()
		s.cursor = 0
		res.Published = true
		res.Pass = buf.Pass
		elapsed := time.Since(s.passStart)
		s.profiler.Record("scanner.pass", elapsed)
		s.observer.OnPass(buf.Pass, elapsed)
		s.logger.Debug("pass published", "pass", buf.Pass, "blocks", n, "elapsed", elapsed)
	}
	s.pos.Store(int64(s.cursor))
	return res
}

// scanBlock counts the squares of one created block. It returns false when
// a stop was observed.
func (s *Scanner) scanBlock(wc world.Context, b world.Block) (int, bool) {
	v1, v2 := geom.Basis(float64(b.Angle), world.SquareSize)
	origin := geom.Vec2{X: float64(b.Position.X), Z: float64(b.Position.Z)}
	counted := 0
	s.cache.Clear()

	rows := b.RowCount()
	for z := 0; z < rows; z++ {
		for x := 0; x < world.BlockColumns; x++ {
			if s.stopped.Load() {
				return counted, false
			}
			mask := world.SquareMask(x, z)
			if !b.Countable(mask) {
				continue
			}
			occupied := b.Occupied(mask)

			center := origin.Add(v1.Scale(float64(x) - 3.5)).Add(v2.Scale(float64(z) - 3.5))
			point := world.Vec3{X: float32(center.X), Y: b.Position.Y, Z: float32(center.Z)}

			district := wc.Districts.DistrictAt(point)
			if int(district) >= world.MaxDistrictCount {
				district = 0
			}
			in := classify.Input{Zone: b.ZoneAt(x, z), Occupied: occupied}
			if d := wc.Districts.District(district); d.Created() {
				in.Specialization = d.Specialization
			}
			if classify.NeedsBuilding(in.Zone, occupied) {
				square := geom.RectAround(center, v1.Scale(squareInset), v2.Scale(squareInset))
				if svc, found := s.findService(wc.Buildings, point, square); found {
					in.Service = &svc
				}
			}

			r := s.classifier.Classify(in)
			if r.HasLeaf {
				s.store.Increment(r.Leaf, district, occupied)
			}
			if r.HasSubtotal {
				s.store.Increment(r.Subtotal, district, occupied)
			}
			s.store.Increment(category.Total, district, occupied)
			counted++
		}
	}
	return counted, true
}

func (s *Scanner) findService(idx world.BuildingIndex, point world.Vec3, square geom.Quad2) (world.SubService, bool) {
	if svc, ok := s.cache.Lookup(square); ok {
		s.observer.OnLookup(true)
		return svc, true
	}
	s.observer.OnLookup(false)
	op := s.profiler.Start("locator.find")
	m, found := s.locator.Find(idx, point, square)
	op.End()
	s.cache.Remember(m, found)
	return m.Service, found
}
