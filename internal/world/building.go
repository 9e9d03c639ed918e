package world

import (
	"fmt"
	"math"
)

// SubService is the host's building classification.
type SubService uint8

const (
	SubServiceNone SubService = iota
	SubServiceResidentialLow
	SubServiceResidentialHigh
	SubServiceResidentialLowEco
	SubServiceResidentialHighEco
	SubServiceResidentialWallToWall
	SubServiceCommercialLow
	SubServiceCommercialHigh
	SubServiceCommercialTourist
	SubServiceCommercialLeisure
	SubServiceCommercialEco
	SubServiceCommercialWallToWall
	SubServiceIndustrialGeneric
	SubServiceIndustrialForestry
	SubServiceIndustrialFarming
	SubServiceIndustrialOre
	SubServiceIndustrialOil
	SubServicePlayerIndustryForestry
	SubServicePlayerIndustryFarming
	SubServicePlayerIndustryOre
	SubServicePlayerIndustryOil
	SubServiceOfficeGeneric
	SubServiceOfficeHightech
	SubServiceOfficeWallToWall
	// SubServiceOther covers parks, service buildings and anything else
	// that is never mapped to a zoned category.
	SubServiceOther
)

var subServiceNames = [...]string{
	"none",
	"residential_low", "residential_high", "residential_low_eco", "residential_high_eco", "residential_wall_to_wall",
	"commercial_low", "commercial_high", "commercial_tourist", "commercial_leisure", "commercial_eco", "commercial_wall_to_wall",
	"industrial_generic", "industrial_forestry", "industrial_farming", "industrial_ore", "industrial_oil",
	"player_industry_forestry", "player_industry_farming", "player_industry_ore", "player_industry_oil",
	"office_generic", "office_hightech", "office_wall_to_wall",
	"other",
}

func (s SubService) String() string {
	if int(s) < len(subServiceNames) {
		return subServiceNames[s]
	}
	return fmt.Sprintf("subservice(%d)", uint8(s))
}

// ParseSubService resolves a subservice from its wire name. Unknown names
// map to SubServiceOther.
func ParseSubService(name string) SubService {
	for i, n := range subServiceNames {
		if n == name {
			return SubService(i)
		}
	}
	return SubServiceOther
}

// AIKind identifies the building behaviour class.
type AIKind uint8

const (
	// AIDecoration buildings (props, decorations) are never counted.
	AIDecoration AIKind = iota
	// AICommon buildings are trackable.
	AICommon
)

// BuildingFlags holds building state bits.
type BuildingFlags uint32

const (
	BuildingCreated BuildingFlags = 1 << 0
)

// BuildingID is a handle into the building arena. Zero means none.
type BuildingID uint16

// Building is one building record. NextGridBuilding links buildings sharing a
// grid cell.
type Building struct {
	Position         Vec3          `json:"position"`
	Angle            float32       `json:"angle"`
	Width            uint8         `json:"width"`
	Length           uint8         `json:"length"`
	SubService       SubService    `json:"sub_service"`
	AI               AIKind        `json:"ai"`
	Flags            BuildingFlags `json:"flags"`
	NextGridBuilding BuildingID    `json:"next_grid_building"`
}

// Trackable reports whether the building may determine a square's category.
func (b Building) Trackable() bool {
	return b.Flags&BuildingCreated != 0 && b.AI == AICommon
}

// GridCell returns the building grid cell coordinates containing pos.
func GridCell(pos Vec3) (col, row int) {
	col = gridCoord(pos.X)
	row = gridCoord(pos.Z)
	return col, row
}

// GridCellIndex flattens a cell coordinate pair into a grid index.
func GridCellIndex(col, row int) int {
	return row*BuildingGridResolution + col
}

func gridCoord(v float32) int {
	c := int(math.Floor(float64(v)/BuildingGridCellSize + BuildingGridResolution/2.0))
	if c < 0 {
		return 0
	}
	if c > BuildingGridResolution-1 {
		return BuildingGridResolution - 1
	}
	return c
}
