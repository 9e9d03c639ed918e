// Package category defines the square categories and the rule tables that
// map zones, district policies and building subservices onto them.
package category

import (
	"fmt"

	"github.com/zoneinfo/server/internal/world"
)

// Category identifies one counted row. Values are dense so they index arrays.
type Category int

const (
	ResidentialGenericLow Category = iota
	ResidentialGenericHigh
	ResidentialSelfSuff
	ResidentialWallToWall
	ResidentialSubtotal

	CommercialGenericLow
	CommercialGenericHigh
	CommercialTourism
	CommercialLeisure
	CommercialOrganic
	CommercialWallToWall
	CommercialSubtotal

	IndustrialGeneric
	IndustrialForestry
	IndustrialFarming
	IndustrialOre
	IndustrialOil
	IndustrialSubtotal

	OfficeGeneric
	OfficeITCluster
	OfficeWallToWall
	OfficeSubtotal

	Unzoned
	Total

	// Count is the number of categories.
	Count = int(Total) + 1
)

// Kind says how a category participates in sums.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindSubtotal
	KindUnzoned
	KindTotal
)

// Info is the static description of a category.
type Info struct {
	Name   string
	Label  string
	Family world.Family
	Kind   Kind
	// Policy is the district specialization the category depends on, if any.
	Policy world.Specialization
}

var infos = [Count]Info{
	ResidentialGenericLow:  {"ResidentialLow", "Residential Low Density", world.FamilyResidential, KindLeaf, world.SpecializationNone},
	ResidentialGenericHigh: {"ResidentialHigh", "Residential High Density", world.FamilyResidential, KindLeaf, world.SpecializationNone},
	ResidentialSelfSuff:    {"ResidentialSelfSuff", "Residential Self-Suff", world.FamilyResidential, KindLeaf, world.SpecializationSelfSufficient},
	ResidentialWallToWall:  {"ResidentialWallToWall", "Residential Wall-to-Wall", world.FamilyResidential, KindLeaf, world.SpecializationResidentialWallToWall},
	ResidentialSubtotal:    {"ResidentialSubTotal", "Residential Subtotal", world.FamilyResidential, KindSubtotal, world.SpecializationNone},

	CommercialGenericLow:  {"CommercialLow", "Commercial Low Density", world.FamilyCommercial, KindLeaf, world.SpecializationNone},
	CommercialGenericHigh: {"CommercialHigh", "Commercial High Density", world.FamilyCommercial, KindLeaf, world.SpecializationNone},
	CommercialTourism:     {"CommercialTourism", "Commercial Tourism", world.FamilyCommercial, KindLeaf, world.SpecializationTourist},
	CommercialLeisure:     {"CommercialLeisure", "Commercial Leisure", world.FamilyCommercial, KindLeaf, world.SpecializationLeisure},
	CommercialOrganic:     {"CommercialOrganic", "Commercial Organic", world.FamilyCommercial, KindLeaf, world.SpecializationOrganic},
	CommercialWallToWall:  {"CommercialWallToWall", "Commercial Wall-to-Wall", world.FamilyCommercial, KindLeaf, world.SpecializationCommercialWallToWall},
	CommercialSubtotal:    {"CommercialSubTotal", "Commercial Subtotal", world.FamilyCommercial, KindSubtotal, world.SpecializationNone},

	IndustrialGeneric:  {"IndustrialGeneric", "Industrial Generic", world.FamilyIndustrial, KindLeaf, world.SpecializationNone},
	IndustrialForestry: {"IndustrialForestry", "Industrial Forestry", world.FamilyIndustrial, KindLeaf, world.SpecializationForest},
	IndustrialFarming:  {"IndustrialFarming", "Industrial Farming", world.FamilyIndustrial, KindLeaf, world.SpecializationFarming},
	IndustrialOre:      {"IndustrialOre", "Industrial Ore", world.FamilyIndustrial, KindLeaf, world.SpecializationOre},
	IndustrialOil:      {"IndustrialOil", "Industrial Oil", world.FamilyIndustrial, KindLeaf, world.SpecializationOil},
	IndustrialSubtotal: {"IndustrialSubTotal", "Industrial Subtotal", world.FamilyIndustrial, KindSubtotal, world.SpecializationNone},

	OfficeGeneric:    {"OfficeGeneric", "Office Generic", world.FamilyOffice, KindLeaf, world.SpecializationNone},
	OfficeITCluster:  {"OfficeITCluster", "Office IT Cluster", world.FamilyOffice, KindLeaf, world.SpecializationHightech},
	OfficeWallToWall: {"OfficeWallToWall", "Office Wall-to-Wall", world.FamilyOffice, KindLeaf, world.SpecializationOfficeWallToWall},
	OfficeSubtotal:   {"OfficeSubTotal", "Office Subtotal", world.FamilyOffice, KindSubtotal, world.SpecializationNone},

	Unzoned: {"Unzoned", "Unzoned", world.FamilyUnzoned, KindUnzoned, world.SpecializationNone},
	Total:   {"Total", "Total", world.FamilyNone, KindTotal, world.SpecializationNone},
}

// Valid reports whether c names a category.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < Count
}

// Info returns the static description of c.
func (c Category) Info() Info {
	if !c.Valid() {
		return Info{}
	}
	return infos[c]
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return infos[c].Name
}

// Parse resolves a category by name.
func Parse(name string) (Category, error) {
	for i := range infos {
		if infos[i].Name == name {
			return Category(i), nil
		}
	}
	return -1, fmt.Errorf("unknown category %q", name)
}

// SubtotalFor returns the subtotal category of a zone family.
func SubtotalFor(f world.Family) (Category, bool) {
	switch f {
	case world.FamilyResidential:
		return ResidentialSubtotal, true
	case world.FamilyCommercial:
		return CommercialSubtotal, true
	case world.FamilyIndustrial:
		return IndustrialSubtotal, true
	case world.FamilyOffice:
		return OfficeSubtotal, true
	default:
		return -1, false
	}
}

// Leaves returns the leaf categories belonging to family f, in display order.
func Leaves(f world.Family) []Category {
	var out []Category
	for i := range infos {
		if infos[i].Family == f && infos[i].Kind == KindLeaf {
			out = append(out, Category(i))
		}
	}
	return out
}
