package world

import (
	"errors"
	"fmt"
)

// ErrArenaFull is returned when no building handle is left.
var ErrArenaFull = errors.New("building arena is full")

// Area paints a district onto an axis-aligned rectangle of the ground plane.
type Area struct {
	District uint8   `json:"district"`
	MinX     float32 `json:"min_x"`
	MinZ     float32 `json:"min_z"`
	MaxX     float32 `json:"max_x"`
	MaxZ     float32 `json:"max_z"`
}

func (a Area) contains(pos Vec3) bool {
	return pos.X >= a.MinX && pos.X < a.MaxX && pos.Z >= a.MinZ && pos.Z < a.MaxZ
}

// Memory is an in-process world holding every table. It is built once and
// then only read; a fresh Memory replaces it when the world changes.
type Memory struct {
	blocks    []Block
	buildings []Building
	grid      []BuildingID
	districts [MaxDistrictCount]District
	areas     []Area
}

// NewMemory returns an empty world. Building id 0 is reserved.
func NewMemory() *Memory {
	return &Memory{
		buildings: make([]Building, 1, 64),
		grid:      make([]BuildingID, BuildingGridResolution*BuildingGridResolution),
	}
}

// Len implements BlockTable.
func (m *Memory) Len() int { return len(m.blocks) }

// Block implements BlockTable.
func (m *Memory) Block(i int) Block { return m.blocks[i] }

// AddBlock appends a block and returns its index.
func (m *Memory) AddBlock(b Block) (int, error) {
	if len(m.blocks) >= MaxBlockCount {
		return 0, fmt.Errorf("block table is full (%d)", MaxBlockCount)
	}
	m.blocks = append(m.blocks, b)
	return len(m.blocks) - 1, nil
}

// Building implements BuildingIndex. Unknown ids yield the zero building.
func (m *Memory) Building(id BuildingID) Building {
	if int(id) >= len(m.buildings) {
		return Building{}
	}
	return m.buildings[id]
}

// GridHead implements BuildingIndex.
func (m *Memory) GridHead(cell int) BuildingID {
	if cell < 0 || cell >= len(m.grid) {
		return 0
	}
	return m.grid[cell]
}

// AddBuilding stores b and links it at the head of its grid cell list.
func (m *Memory) AddBuilding(b Building) (BuildingID, error) {
	if len(m.buildings) >= MaxBuildingCount {
		return 0, ErrArenaFull
	}
	id := BuildingID(len(m.buildings))
	col, row := GridCell(b.Position)
	cell := GridCellIndex(col, row)
	b.Flags |= BuildingCreated
	b.NextGridBuilding = m.grid[cell]
	m.buildings = append(m.buildings, b)
	m.grid[cell] = id
	return id, nil
}

// Relink overwrites the next pointer of id. It exists so corrupt lists can
// be reproduced.
func (m *Memory) Relink(id, next BuildingID) {
	if int(id) < len(m.buildings) {
		m.buildings[id].NextGridBuilding = next
	}
}

// BuildingCount returns the number of stored buildings.
func (m *Memory) BuildingCount() int { return len(m.buildings) - 1 }

// District implements DistrictTable.
func (m *Memory) District(id uint8) District {
	if int(id) >= MaxDistrictCount {
		return District{}
	}
	return m.districts[id]
}

// DistrictAt implements DistrictTable. The last painted area containing pos
// wins; positions outside every area belong to district 0.
func (m *Memory) DistrictAt(pos Vec3) uint8 {
	for i := len(m.areas) - 1; i >= 0; i-- {
		if m.areas[i].contains(pos) {
			return m.areas[i].District
		}
	}
	return 0
}

// SetDistrict stores a district record under id.
func (m *Memory) SetDistrict(id uint8, d District) error {
	if id == 0 || int(id) >= MaxDistrictCount {
		return fmt.Errorf("district id %d out of range 1..%d", id, MaxDistrictCount-1)
	}
	m.districts[id] = d
	return nil
}

// PaintDistrict assigns an area of the map to a district.
func (m *Memory) PaintDistrict(a Area) error {
	if int(a.District) >= MaxDistrictCount {
		return fmt.Errorf("district id %d out of range", a.District)
	}
	if a.MaxX <= a.MinX || a.MaxZ <= a.MinZ {
		return fmt.Errorf("district area for %d is empty", a.District)
	}
	m.areas = append(m.areas, a)
	return nil
}

// Context returns a scan context backed entirely by m.
func (m *Memory) Context() Context {
	return Context{Blocks: m, Buildings: m, Districts: m}
}
