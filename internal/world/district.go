package world

import (
	"fmt"
	"strings"
)

// Specialization is a bitset of district policies that refine classification.
type Specialization uint32

const (
	SpecializationNone                  Specialization = 0
	SpecializationForest                Specialization = 1 << 0
	SpecializationFarming               Specialization = 1 << 1
	SpecializationOil                   Specialization = 1 << 2
	SpecializationOre                   Specialization = 1 << 3
	SpecializationLeisure               Specialization = 1 << 4
	SpecializationTourist               Specialization = 1 << 5
	SpecializationOrganic               Specialization = 1 << 6
	SpecializationSelfSufficient        Specialization = 1 << 7
	SpecializationHightech              Specialization = 1 << 8
	SpecializationResidentialWallToWall Specialization = 1 << 9
	SpecializationCommercialWallToWall  Specialization = 1 << 10
	SpecializationOfficeWallToWall      Specialization = 1 << 11
)

var specializationNames = []struct {
	flag Specialization
	name string
}{
	{SpecializationForest, "forest"},
	{SpecializationFarming, "farming"},
	{SpecializationOil, "oil"},
	{SpecializationOre, "ore"},
	{SpecializationLeisure, "leisure"},
	{SpecializationTourist, "tourist"},
	{SpecializationOrganic, "organic"},
	{SpecializationSelfSufficient, "self_sufficient"},
	{SpecializationHightech, "hightech"},
	{SpecializationResidentialWallToWall, "residential_wall_to_wall"},
	{SpecializationCommercialWallToWall, "commercial_wall_to_wall"},
	{SpecializationOfficeWallToWall, "office_wall_to_wall"},
}

// Has reports whether every bit of flag is set in s.
func (s Specialization) Has(flag Specialization) bool {
	return flag != 0 && s&flag == flag
}

func (s Specialization) String() string {
	if s == SpecializationNone {
		return "none"
	}
	var parts []string
	for _, sn := range specializationNames {
		if s&sn.flag != 0 {
			parts = append(parts, sn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseSpecialization resolves a single specialization policy by name.
func ParseSpecialization(name string) (Specialization, error) {
	for _, sn := range specializationNames {
		if sn.name == name {
			return sn.flag, nil
		}
	}
	return SpecializationNone, fmt.Errorf("unknown specialization %q", name)
}

// DistrictFlags holds district state bits.
type DistrictFlags uint32

const (
	DistrictCreated DistrictFlags = 1 << 0
)

// District is one record of the district table.
type District struct {
	Flags          DistrictFlags  `json:"flags"`
	Specialization Specialization `json:"specialization"`
	Name           string         `json:"name"`
}

// Created reports whether the district exists.
func (d District) Created() bool {
	return d.Flags&DistrictCreated != 0
}
