package category

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/zoneinfo/server/internal/world"
)

// Rule maps a district specialization to a leaf category.
type Rule struct {
	Requires world.Specialization
	Category Category
}

// FamilyRules is the ordered rule list for one zone family. The first rule
// whose specialization is present wins; otherwise Low or High applies by
// zone density.
type FamilyRules struct {
	Rules    []Rule
	Low      Category
	High     Category
	Subtotal Category
}

// RuleSet is the configuration driving classification: which categories
// exist, how zones refine into them and how building subservices map.
type RuleSet struct {
	name           string
	enabled        *bitset.BitSet
	families       map[world.Family]FamilyRules
	services       map[world.SubService]Category
	includeUnzoned bool
}

// Name returns the preset name.
func (r *RuleSet) Name() string { return r.name }

// Enabled reports whether c is counted and displayed.
func (r *RuleSet) Enabled(c Category) bool {
	return c.Valid() && r.enabled.Test(uint(c))
}

// Categories lists the enabled categories in display order.
func (r *RuleSet) Categories() []Category {
	out := make([]Category, 0, r.enabled.Count())
	for i, ok := r.enabled.NextSet(0); ok; i, ok = r.enabled.NextSet(i + 1) {
		out = append(out, Category(i))
	}
	return out
}

// Family returns the rules for a zone family.
func (r *RuleSet) Family(f world.Family) (FamilyRules, bool) {
	fr, ok := r.families[f]
	return fr, ok
}

// ServiceCategory maps a building subservice to its leaf category. The
// second result is false for subservices that are not counted as zoned.
func (r *RuleSet) ServiceCategory(s world.SubService) (Category, bool) {
	c, ok := r.services[s]
	if !ok || !r.Enabled(c) {
		return -1, false
	}
	return c, true
}

// HasIncludeUnzoned reports whether the include-unzoned display toggle is
// offered.
func (r *RuleSet) HasIncludeUnzoned() bool { return r.includeUnzoned }

var fullFamilies = map[world.Family]FamilyRules{
	world.FamilyResidential: {
		Rules: []Rule{
			{world.SpecializationSelfSufficient, ResidentialSelfSuff},
			{world.SpecializationResidentialWallToWall, ResidentialWallToWall},
		},
		Low: ResidentialGenericLow, High: ResidentialGenericHigh, Subtotal: ResidentialSubtotal,
	},
	world.FamilyCommercial: {
		Rules: []Rule{
			{world.SpecializationTourist, CommercialTourism},
			{world.SpecializationLeisure, CommercialLeisure},
			{world.SpecializationOrganic, CommercialOrganic},
			{world.SpecializationCommercialWallToWall, CommercialWallToWall},
		},
		Low: CommercialGenericLow, High: CommercialGenericHigh, Subtotal: CommercialSubtotal,
	},
	world.FamilyIndustrial: {
		Rules: []Rule{
			{world.SpecializationForest, IndustrialForestry},
			{world.SpecializationFarming, IndustrialFarming},
			{world.SpecializationOre, IndustrialOre},
			{world.SpecializationOil, IndustrialOil},
		},
		Low: IndustrialGeneric, High: IndustrialGeneric, Subtotal: IndustrialSubtotal,
	},
	world.FamilyOffice: {
		Rules: []Rule{
			{world.SpecializationHightech, OfficeITCluster},
			{world.SpecializationOfficeWallToWall, OfficeWallToWall},
		},
		Low: OfficeGeneric, High: OfficeGeneric, Subtotal: OfficeSubtotal,
	},
}

var fullServices = map[world.SubService]Category{
	world.SubServiceResidentialLowEco:      ResidentialSelfSuff,
	world.SubServiceResidentialHighEco:     ResidentialSelfSuff,
	world.SubServiceResidentialLow:         ResidentialGenericLow,
	world.SubServiceResidentialHigh:        ResidentialGenericHigh,
	world.SubServiceResidentialWallToWall:  ResidentialWallToWall,
	world.SubServiceCommercialTourist:      CommercialTourism,
	world.SubServiceCommercialLeisure:      CommercialLeisure,
	world.SubServiceCommercialEco:          CommercialOrganic,
	world.SubServiceCommercialLow:          CommercialGenericLow,
	world.SubServiceCommercialHigh:         CommercialGenericHigh,
	world.SubServiceCommercialWallToWall:   CommercialWallToWall,
	world.SubServicePlayerIndustryForestry: IndustrialForestry,
	world.SubServiceIndustrialForestry:     IndustrialForestry,
	world.SubServicePlayerIndustryFarming:  IndustrialFarming,
	world.SubServiceIndustrialFarming:      IndustrialFarming,
	world.SubServicePlayerIndustryOre:      IndustrialOre,
	world.SubServiceIndustrialOre:          IndustrialOre,
	world.SubServicePlayerIndustryOil:      IndustrialOil,
	world.SubServiceIndustrialOil:          IndustrialOil,
	world.SubServiceIndustrialGeneric:      IndustrialGeneric,
	world.SubServiceOfficeHightech:         OfficeITCluster,
	world.SubServiceOfficeGeneric:          OfficeGeneric,
	world.SubServiceOfficeWallToWall:       OfficeWallToWall,
}

// NewRuleSet builds a rule set over the given enabled categories. Rules and
// subservice mappings that target disabled categories are dropped, so a
// square that would have matched them falls through to the next rule.
func NewRuleSet(name string, enabled []Category, includeUnzoned bool) (*RuleSet, error) {
	set := bitset.New(uint(Count))
	for _, c := range enabled {
		if !c.Valid() {
			return nil, fmt.Errorf("rule set %s: invalid category %d", name, int(c))
		}
		set.Set(uint(c))
	}
	for _, required := range []Category{Unzoned, Total} {
		if !set.Test(uint(required)) {
			return nil, fmt.Errorf("rule set %s: %s must be enabled", name, required)
		}
	}

	rs := &RuleSet{
		name:           name,
		enabled:        set,
		families:       make(map[world.Family]FamilyRules, len(fullFamilies)),
		services:       make(map[world.SubService]Category, len(fullServices)),
		includeUnzoned: includeUnzoned,
	}
	for fam, fr := range fullFamilies {
		kept := FamilyRules{Low: fr.Low, High: fr.High, Subtotal: fr.Subtotal}
		for _, rule := range fr.Rules {
			if set.Test(uint(rule.Category)) {
				kept.Rules = append(kept.Rules, rule)
			}
		}
		rs.families[fam] = kept
	}
	for svc, c := range fullServices {
		if set.Test(uint(c)) {
			rs.services[svc] = c
		}
	}
	return rs, nil
}

func allCategories() []Category {
	out := make([]Category, Count)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// DefaultRuleSet is the complete category set with the include-unzoned
// toggle.
func DefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet("default", allCategories(), true)
	if err != nil {
		panic(err)
	}
	return rs
}

// ClassicRuleSet omits the wall-to-wall categories and the include-unzoned
// toggle.
func ClassicRuleSet() *RuleSet {
	var cats []Category
	for _, c := range allCategories() {
		switch c {
		case ResidentialWallToWall, CommercialWallToWall, OfficeWallToWall:
			continue
		}
		cats = append(cats, c)
	}
	rs, err := NewRuleSet("classic", cats, false)
	if err != nil {
		panic(err)
	}
	return rs
}

// RuleSetByName returns a preset by name.
func RuleSetByName(name string) (*RuleSet, error) {
	switch name {
	case "", "default":
		return DefaultRuleSet(), nil
	case "classic":
		return ClassicRuleSet(), nil
	default:
		return nil, fmt.Errorf("unknown rule set %q", name)
	}
}
