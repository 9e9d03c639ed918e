package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/world"
)

func svc(s world.SubService) *world.SubService { return &s }

func TestClassifyZoned(t *testing.T) {
	c := New(category.DefaultRuleSet())
	tests := []struct {
		name     string
		in       Input
		leaf     category.Category
		subtotal category.Category
	}{
		{"residential low", Input{Zone: world.ZoneResidentialLow}, category.ResidentialGenericLow, category.ResidentialSubtotal},
		{"residential high", Input{Zone: world.ZoneResidentialHigh}, category.ResidentialGenericHigh, category.ResidentialSubtotal},
		{"self-sufficient beats wall-to-wall", Input{Zone: world.ZoneResidentialHigh,
			Specialization: world.SpecializationSelfSufficient | world.SpecializationResidentialWallToWall}, category.ResidentialSelfSuff, category.ResidentialSubtotal},
		{"residential wall-to-wall", Input{Zone: world.ZoneResidentialLow,
			Specialization: world.SpecializationResidentialWallToWall}, category.ResidentialWallToWall, category.ResidentialSubtotal},
		{"tourist beats leisure", Input{Zone: world.ZoneCommercialLow,
			Specialization: world.SpecializationTourist | world.SpecializationLeisure}, category.CommercialTourism, category.CommercialSubtotal},
		{"leisure beats organic", Input{Zone: world.ZoneCommercialHigh,
			Specialization: world.SpecializationLeisure | world.SpecializationOrganic}, category.CommercialLeisure, category.CommercialSubtotal},
		{"commercial organic", Input{Zone: world.ZoneCommercialLow, Specialization: world.SpecializationOrganic}, category.CommercialOrganic, category.CommercialSubtotal},
		{"commercial high", Input{Zone: world.ZoneCommercialHigh}, category.CommercialGenericHigh, category.CommercialSubtotal},
		{"industrial generic", Input{Zone: world.ZoneIndustrial}, category.IndustrialGeneric, category.IndustrialSubtotal},
		{"forest beats oil", Input{Zone: world.ZoneIndustrial,
			Specialization: world.SpecializationOil | world.SpecializationForest}, category.IndustrialForestry, category.IndustrialSubtotal},
		{"ore beats oil", Input{Zone: world.ZoneIndustrial,
			Specialization: world.SpecializationOil | world.SpecializationOre}, category.IndustrialOre, category.IndustrialSubtotal},
		{"office IT", Input{Zone: world.ZoneOffice, Specialization: world.SpecializationHightech}, category.OfficeITCluster, category.OfficeSubtotal},
		{"office wall-to-wall", Input{Zone: world.ZoneOffice, Specialization: world.SpecializationOfficeWallToWall}, category.OfficeWallToWall, category.OfficeSubtotal},
		{"office ignores farming", Input{Zone: world.ZoneOffice, Specialization: world.SpecializationFarming}, category.OfficeGeneric, category.OfficeSubtotal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.in)
			assert.True(t, got.HasLeaf)
			assert.True(t, got.HasSubtotal)
			assert.Equal(t, tt.leaf, got.Leaf)
			assert.Equal(t, tt.subtotal, got.Subtotal)
		})
	}
}

func TestClassifyUnzoned(t *testing.T) {
	c := New(category.DefaultRuleSet())
	tests := []struct {
		name        string
		in          Input
		leaf        category.Category
		hasSubtotal bool
		subtotal    category.Category
	}{
		{"empty", Input{Zone: world.ZoneUnzoned}, category.Unzoned, false, 0},
		{"occupied, nothing found", Input{Zone: world.ZoneUnzoned, Occupied: true}, category.Unzoned, false, 0},
		{"eco residential", Input{Zone: world.ZoneUnzoned, Occupied: true, Service: svc(world.SubServiceResidentialHighEco)},
			category.ResidentialSelfSuff, true, category.ResidentialSubtotal},
		{"eco commercial", Input{Zone: world.ZoneUnzoned, Occupied: true, Service: svc(world.SubServiceCommercialEco)},
			category.CommercialOrganic, true, category.CommercialSubtotal},
		{"player industry", Input{Zone: world.ZoneUnzoned, Occupied: true, Service: svc(world.SubServicePlayerIndustryFarming)},
			category.IndustrialFarming, true, category.IndustrialSubtotal},
		{"park", Input{Zone: world.ZoneUnzoned, Occupied: true, Service: svc(world.SubServiceOther)}, category.Unzoned, false, 0},
		{"service ignored when unoccupied", Input{Zone: world.ZoneUnzoned, Service: svc(world.SubServiceOfficeGeneric)}, category.Unzoned, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.in)
			assert.True(t, got.HasLeaf)
			assert.Equal(t, tt.leaf, got.Leaf)
			assert.Equal(t, tt.hasSubtotal, got.HasSubtotal)
			if tt.hasSubtotal {
				assert.Equal(t, tt.subtotal, got.Subtotal)
			}
		})
	}
}

func TestClassifyNoFamily(t *testing.T) {
	c := New(category.DefaultRuleSet())
	for _, z := range []world.Zone{world.ZoneNone, world.ZoneDistant} {
		got := c.Classify(Input{Zone: z, Occupied: true})
		assert.False(t, got.HasLeaf)
		assert.False(t, got.HasSubtotal)
	}
}

func TestClassifyClassicFallsThrough(t *testing.T) {
	c := New(category.ClassicRuleSet())

	got := c.Classify(Input{Zone: world.ZoneResidentialHigh, Specialization: world.SpecializationResidentialWallToWall})
	assert.Equal(t, category.ResidentialGenericHigh, got.Leaf)

	got = c.Classify(Input{Zone: world.ZoneOffice, Specialization: world.SpecializationOfficeWallToWall | world.SpecializationHightech})
	assert.Equal(t, category.OfficeITCluster, got.Leaf)

	got = c.ClassifyService(world.SubServiceCommercialWallToWall)
	assert.Equal(t, category.Unzoned, got.Leaf)
	assert.False(t, got.HasSubtotal)
}

func TestNeedsBuilding(t *testing.T) {
	assert.True(t, NeedsBuilding(world.ZoneUnzoned, true))
	assert.False(t, NeedsBuilding(world.ZoneUnzoned, false))
	assert.False(t, NeedsBuilding(world.ZoneIndustrial, true))
}
