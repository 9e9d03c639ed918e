package testutil

import (
	"math/rand"
	"testing"

	"github.com/zoneinfo/server/internal/geom"
	"github.com/zoneinfo/server/internal/world"
)

// BlockBuilder assembles a zone block square by square.
type BlockBuilder struct {
	block world.Block
}

// NewBlock starts a created block at (x, z) with the given row count.
func NewBlock(x, z float32, rows int) *BlockBuilder {
	return &BlockBuilder{block: world.Block{
		Position: world.Vec3{X: x, Z: z},
		Flags:    world.BlockCreated.WithRows(rows),
	}}
}

// Angle sets the block rotation in radians.
func (bb *BlockBuilder) Angle(a float32) *BlockBuilder {
	bb.block.Angle = a
	return bb
}

// Square marks (x, z) valid with the given zone and occupancy.
func (bb *BlockBuilder) Square(x, z int, zone world.Zone, occupied bool) *BlockBuilder {
	mask := world.SquareMask(x, z)
	bb.block.Valid |= mask
	if occupied {
		bb.block.Occupied1 |= mask
	}
	bb.block.SetZone(x, z, zone)
	return bb
}

// Shared marks (x, z) as shared with an overlapping block.
func (bb *BlockBuilder) Shared(x, z int) *BlockBuilder {
	bb.block.Shared |= world.SquareMask(x, z)
	return bb
}

// Deleted clears the created flag.
func (bb *BlockBuilder) Deleted() *BlockBuilder {
	bb.block.Flags &^= world.BlockCreated
	return bb
}

// Build returns the block.
func (bb *BlockBuilder) Build() world.Block {
	return bb.block
}

// SquareCenter returns the world position of square (x, z) of b.
func SquareCenter(b world.Block, x, z int) world.Vec3 {
	v1, v2 := geom.Basis(float64(b.Angle), world.SquareSize)
	c := geom.Vec2{X: float64(b.Position.X), Z: float64(b.Position.Z)}.
		Add(v1.Scale(float64(x) - 3.5)).
		Add(v2.Scale(float64(z) - 3.5))
	return world.Vec3{X: float32(c.X), Y: b.Position.Y, Z: float32(c.Z)}
}

// WorldFixture wraps an in-memory world with failing-test helpers.
type WorldFixture struct {
	*world.Memory
	t *testing.T
}

// NewWorld returns an empty world fixture.
func NewWorld(t *testing.T) *WorldFixture {
	return &WorldFixture{Memory: world.NewMemory(), t: t}
}

// PutBlock adds b to the block table.
func (w *WorldFixture) PutBlock(b world.Block) int {
	w.t.Helper()
	idx, err := w.AddBlock(b)
	if err != nil {
		w.t.Fatalf("add block: %v", err)
	}
	return idx
}

// PutBuilding adds a trackable building.
func (w *WorldFixture) PutBuilding(pos world.Vec3, width, length uint8, svc world.SubService) world.BuildingID {
	w.t.Helper()
	id, err := w.AddBuilding(world.Building{
		Position: pos, Width: width, Length: length, SubService: svc, AI: world.AICommon,
	})
	if err != nil {
		w.t.Fatalf("add building: %v", err)
	}
	return id
}

// PutDistrict creates district id and paints it over area.
func (w *WorldFixture) PutDistrict(id uint8, name string, spec world.Specialization, area world.Area) {
	w.t.Helper()
	if err := w.SetDistrict(id, world.District{Flags: world.DistrictCreated, Name: name, Specialization: spec}); err != nil {
		w.t.Fatalf("set district: %v", err)
	}
	area.District = id
	if err := w.PaintDistrict(area); err != nil {
		w.t.Fatalf("paint district: %v", err)
	}
}

var randomZones = []world.Zone{
	world.ZoneUnzoned, world.ZoneResidentialLow, world.ZoneResidentialHigh,
	world.ZoneCommercialLow, world.ZoneCommercialHigh, world.ZoneIndustrial,
	world.ZoneOffice, world.ZoneNone,
}

var randomServices = []world.SubService{
	world.SubServiceResidentialLowEco, world.SubServiceCommercialEco,
	world.SubServiceIndustrialOre, world.SubServiceOfficeHightech, world.SubServiceOther,
}

// RandomWorld builds a deterministic pseudo-random world with the given
// number of blocks spread over four districts.
func RandomWorld(t *testing.T, seed int64, blocks int) *WorldFixture {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	w := NewWorld(t)

	specs := []world.Specialization{
		world.SpecializationNone,
		world.SpecializationTourist | world.SpecializationForest,
		world.SpecializationSelfSufficient | world.SpecializationHightech,
		world.SpecializationOre | world.SpecializationOfficeWallToWall,
	}
	for i, spec := range specs {
		id := uint8(i + 1)
		minX := float32(-2000 + i*1000)
		w.PutDistrict(id, "District "+string(rune('A'+i)), spec, world.Area{MinX: minX, MaxX: minX + 1000, MinZ: -2000, MaxZ: 2000})
	}

	for i := 0; i < blocks; i++ {
		x := float32(rng.Intn(4800) - 2400)
		z := float32(rng.Intn(3600) - 1800)
		bb := NewBlock(x, z, 1+rng.Intn(world.MaxBlockRows)).Angle(float32(rng.Float64() * 6.283))
		if rng.Intn(10) == 0 {
			bb.Deleted()
		}
		blk := bb.Build()
		for row := 0; row < blk.RowCount(); row++ {
			for col := 0; col < world.BlockColumns; col++ {
				if rng.Intn(5) == 0 {
					continue
				}
				zone := randomZones[rng.Intn(len(randomZones))]
				occupied := rng.Intn(2) == 0
				bb.Square(col, row, zone, occupied)
				if rng.Intn(12) == 0 {
					bb.Shared(col, row)
				}
				if zone == world.ZoneUnzoned && occupied && rng.Intn(2) == 0 {
					w.PutBuilding(SquareCenter(blk, col, row), 1, 1, randomServices[rng.Intn(len(randomServices))])
				}
			}
		}
		w.PutBlock(bb.Build())
	}
	return w
}
