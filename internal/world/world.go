// Package world models the read-only simulation tables the zone scanner
// walks: zone blocks, buildings with their spatial hash grid, and districts.
package world

// BlockTable exposes the zone block table by index.
type BlockTable interface {
	Len() int
	Block(i int) Block
}

// BuildingIndex exposes the building arena and the head of each grid cell
// list. GridHead takes a flattened cell index (see GridCellIndex).
type BuildingIndex interface {
	Building(id BuildingID) Building
	GridHead(cell int) BuildingID
}

// DistrictTable resolves districts by id and by position.
type DistrictTable interface {
	District(id uint8) District
	DistrictAt(pos Vec3) uint8
}

// Context carries the world handles for one scan tick.
type Context struct {
	Blocks    BlockTable
	Buildings BuildingIndex
	Districts DistrictTable
}

// Ready reports whether every handle the scanner depends on is present.
func (c Context) Ready() bool {
	return c.Blocks != nil && c.Buildings != nil && c.Districts != nil
}
