// Package locator finds the building standing on a square by walking the
// building spatial hash grid around the square's position.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"github.com/zoneinfo/server/internal/geom"
	"github.com/zoneinfo/server/internal/world"
)

// ErrCorruptBuildingList marks a grid cell whose building list did not end
// within MaxBuildingCount steps.
var ErrCorruptBuildingList = errors.New("building grid list exceeds arena size")

// Match is a building whose footprint overlaps the searched square.
type Match struct {
	Building  world.BuildingID
	Footprint geom.Quad2
	Service   world.SubService
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the logger used for integrity events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// WithStop installs a check consulted before each building visit. When it
// returns true the search ends without a match.
func WithStop(stop func() bool) Option {
	return func(l *Locator) { l.stop = stop }
}

// WithIntegrityHook is called for every corrupt walk, with the wrapped error.
func WithIntegrityHook(hook func(cell int, err error)) Option {
	return func(l *Locator) { l.onIntegrity = hook }
}

// Locator searches the 3x3 block of grid cells around a position.
type Locator struct {
	logger      *slog.Logger
	stop        func() bool
	onIntegrity func(cell int, err error)
	reported    *bitset.BitSet
	events      atomic.Uint64
	lookups     atomic.Uint64
}

// New returns a locator.
func New(opts ...Option) *Locator {
	l := &Locator{
		logger:   slog.Default(),
		stop:     func() bool { return false },
		reported: bitset.New(world.BuildingGridResolution * world.BuildingGridResolution),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "locator")
	return l
}

// IntegrityEvents returns the number of corrupt walks seen so far.
func (l *Locator) IntegrityEvents() uint64 { return l.events.Load() }

// Lookups returns the number of Find calls.
func (l *Locator) Lookups() uint64 { return l.lookups.Load() }

// Footprint returns the ground quad covered by b.
func Footprint(b world.Building) geom.Quad2 {
	v1, v2 := geom.Basis(float64(b.Angle), world.SquareSize)
	v1 = v1.Scale(0.5 * float64(b.Width))
	v2 = v2.Scale(0.5 * float64(b.Length))
	return geom.RectAround(geom.Vec2{X: float64(b.Position.X), Z: float64(b.Position.Z)}, v1, v2)
}

type cell struct{ col, row int }

// searchOrder returns the base cell followed by its distinct orthogonal and
// then diagonal neighbours, clamped to the grid.
func searchOrder(col, row int) []cell {
	const last = world.BuildingGridResolution - 1
	lo := cell{max(col-1, 0), max(row-1, 0)}
	hi := cell{min(col+1, last), min(row+1, last)}

	out := make([]cell, 0, 9)
	out = append(out, cell{col, row})
	if lo.col != col {
		out = append(out, cell{lo.col, row})
	}
	if hi.col != col {
		out = append(out, cell{hi.col, row})
	}
	if lo.row != row {
		out = append(out, cell{col, lo.row})
	}
	if hi.row != row {
		out = append(out, cell{col, hi.row})
	}
	for _, rowN := range []int{lo.row, hi.row} {
		for _, colN := range []int{lo.col, hi.col} {
			if rowN != row && colN != col {
				out = append(out, cell{colN, rowN})
			}
		}
	}
	return out
}

// Find returns the first trackable building near point whose footprint
// intersects square.
func (l *Locator) Find(idx world.BuildingIndex, point world.Vec3, square geom.Quad2) (Match, bool) {
	l.lookups.Add(1)
	col, row := world.GridCell(point)
	for _, c := range searchOrder(col, row) {
		m, found, stopped := l.walk(idx, world.GridCellIndex(c.col, c.row), square)
		if found {
			return m, true
		}
		if stopped {
			return Match{}, false
		}
	}
	return Match{}, false
}

func (l *Locator) walk(idx world.BuildingIndex, cellIndex int, square geom.Quad2) (m Match, found, stopped bool) {
	steps := 0
	for id := idx.GridHead(cellIndex); id != 0; {
		if l.stop() {
			return Match{}, false, true
		}
		b := idx.Building(id)
		if b.Trackable() {
			fp := Footprint(b)
			if square.Intersect(fp) {
				return Match{Building: id, Footprint: fp, Service: b.SubService}, true, false
			}
		}
		id = b.NextGridBuilding

		steps++
		if steps >= world.MaxBuildingCount {
			l.corrupt(cellIndex)
			break
		}
	}
	return Match{}, false, false
}

func (l *Locator) corrupt(cellIndex int) {
	l.events.Add(1)
	err := fmt.Errorf("cell %d: %w", cellIndex, ErrCorruptBuildingList)
	if l.onIntegrity != nil {
		l.onIntegrity(cellIndex, err)
	}
	if l.reported.Test(uint(cellIndex)) {
		return
	}
	l.reported.Set(uint(cellIndex))
	l.logger.Warn("invalid building list detected", "cell", cellIndex, "error", err)
}
