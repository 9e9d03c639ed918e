package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockZonePacking(t *testing.T) {
	var b Block
	cells := []struct {
		x, z int
		zone Zone
	}{
		{0, 0, ZoneResidentialLow},
		{3, 0, ZoneOffice},
		{1, 3, ZoneIndustrial},
		{0, 4, ZoneCommercialHigh}, // first square stored in Zone2
		{3, 7, ZoneNone},
	}
	for _, c := range cells {
		b.SetZone(c.x, c.z, c.zone)
	}
	for _, c := range cells {
		assert.Equal(t, c.zone, b.ZoneAt(c.x, c.z), "square (%d,%d)", c.x, c.z)
	}
	assert.Equal(t, ZoneUnzoned, b.ZoneAt(2, 2))
	assert.NotZero(t, b.Zone2)
}

func TestBlockRowCount(t *testing.T) {
	b := Block{Flags: BlockCreated.WithRows(4)}
	assert.True(t, b.Created())
	assert.Equal(t, 4, b.RowCount())

	b.Flags = b.Flags.WithRows(12)
	assert.Equal(t, MaxBlockRows, b.RowCount())
	assert.Equal(t, 12, b.EncodedRows())
}

func TestBuildingTrackable(t *testing.T) {
	tests := []struct {
		name string
		b    Building
		want bool
	}{
		{"created common", Building{Flags: BuildingCreated, AI: AICommon}, true},
		{"not created", Building{AI: AICommon}, false},
		{"decoration", Building{Flags: BuildingCreated, AI: AIDecoration}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.Trackable())
		})
	}
}

func TestBlockCountable(t *testing.T) {
	mask := SquareMask(1, 2)
	b := Block{Valid: mask}
	assert.True(t, b.Countable(mask))

	b.Shared = mask
	assert.False(t, b.Countable(mask))

	b = Block{Valid: SquareMask(0, 0)}
	assert.False(t, b.Countable(mask))
}

func TestGridCellClamp(t *testing.T) {
	tests := []struct {
		name     string
		pos      Vec3
		col, row int
	}{
		{"origin", Vec3{}, 135, 135},
		{"one cell east", Vec3{X: 64}, 136, 135},
		{"just west of origin", Vec3{X: -1}, 134, 135},
		{"far negative", Vec3{X: -100000, Z: -100000}, 0, 0},
		{"far positive", Vec3{X: 100000, Z: 100000}, 269, 269},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, row := GridCell(tt.pos)
			assert.Equal(t, tt.col, col)
			assert.Equal(t, tt.row, row)
		})
	}
}

func TestMemoryBuildingsLinkIntoCells(t *testing.T) {
	m := NewMemory()
	first, err := m.AddBuilding(Building{Position: Vec3{X: 10, Z: 10}, AI: AICommon})
	require.NoError(t, err)
	second, err := m.AddBuilding(Building{Position: Vec3{X: 20, Z: 20}, AI: AICommon})
	require.NoError(t, err)

	cell := GridCellIndex(GridCell(Vec3{X: 10, Z: 10}))
	assert.Equal(t, second, m.GridHead(cell))
	assert.Equal(t, first, m.Building(second).NextGridBuilding)
	assert.Equal(t, BuildingID(0), m.Building(first).NextGridBuilding)
	assert.Equal(t, 2, m.BuildingCount())
}

func TestMemoryDistrictAt(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SetDistrict(3, District{Flags: DistrictCreated, Name: "Harbor"}))
	require.NoError(t, m.PaintDistrict(Area{District: 3, MinX: 0, MinZ: 0, MaxX: 100, MaxZ: 100}))

	assert.Equal(t, uint8(3), m.DistrictAt(Vec3{X: 50, Z: 50}))
	assert.Equal(t, uint8(0), m.DistrictAt(Vec3{X: -50, Z: 50}))
	assert.True(t, m.District(3).Created())
	assert.False(t, m.District(4).Created())

	assert.Error(t, m.SetDistrict(0, District{}))
	assert.Error(t, m.PaintDistrict(Area{District: 3, MinX: 5, MaxX: 5, MaxZ: 1}))
}

func TestContextReady(t *testing.T) {
	assert.False(t, Context{}.Ready())
	assert.True(t, NewMemory().Context().Ready())
}

func TestSpecializationString(t *testing.T) {
	s := SpecializationForest | SpecializationHightech
	assert.Equal(t, "forest|hightech", s.String())
	assert.True(t, s.Has(SpecializationForest))
	assert.False(t, s.Has(SpecializationOre))

	parsed, err := ParseSpecialization("tourist")
	require.NoError(t, err)
	assert.Equal(t, SpecializationTourist, parsed)
}
