package world

// World table sizes and grid geometry. Values mirror the host simulation.
const (
	// MaxBlockCount is the length of the zone block table.
	MaxBlockCount = 49152

	// MaxBuildingCount is the length of the building arena. It also bounds
	// any single grid cell walk.
	MaxBuildingCount = 49152

	// MaxDistrictCount is the number of real district ids (0..127).
	// Id 0 is "No District".
	MaxDistrictCount = 128

	// DistrictEntireCity is the synthetic id aggregating every district.
	DistrictEntireCity = MaxDistrictCount

	// DistrictArraySize covers real district ids plus Entire City.
	DistrictArraySize = MaxDistrictCount + 1

	// SquareSize is the side length of one zone square in world units.
	SquareSize = 8.0

	// BlockColumns is the fixed number of columns in a zone block.
	BlockColumns = 4

	// MaxBlockRows is the largest row count a block may carry.
	MaxBlockRows = 8

	// BuildingGridResolution is the number of building grid cells per axis.
	BuildingGridResolution = 270

	// BuildingGridCellSize is the world size of one building grid cell.
	BuildingGridCellSize = 64.0
)
