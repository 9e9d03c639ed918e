package snapshot

import (
	"sort"
	"strings"

	"github.com/zoneinfo/server/internal/world"
)

// DistrictEntry is one item of the district picker.
type DistrictEntry struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
}

const (
	entireCityName = "Entire City"
	noDistrictName = "No District"
)

// Districts lists the selectable districts: Entire City first, then
// No District and the created districts sorted by name. No District is only
// offered when at least one real district exists.
func Districts(table world.DistrictTable) []DistrictEntry {
	entries := []DistrictEntry{{ID: world.DistrictEntireCity, Name: entireCityName}}
	if table == nil {
		return entries
	}

	var created []DistrictEntry
	for id := 1; id < world.MaxDistrictCount; id++ {
		d := table.District(uint8(id))
		if !d.Created() {
			continue
		}
		name := strings.TrimSpace(d.Name)
		if name == "" {
			name = "District " + itoa(id)
		}
		created = append(created, DistrictEntry{ID: uint8(id), Name: name})
	}
	if len(created) == 0 {
		return entries
	}

	sort.SliceStable(created, func(i, j int) bool {
		return strings.ToLower(created[i].Name) < strings.ToLower(created[j].Name)
	})
	entries = append(entries, DistrictEntry{ID: 0, Name: noDistrictName})
	return append(entries, created...)
}

// DistrictName returns the display name of id, or "" for an unknown district.
func DistrictName(table world.DistrictTable, id uint8) string {
	switch {
	case id == world.DistrictEntireCity:
		return entireCityName
	case id == 0:
		return noDistrictName
	}
	for _, e := range Districts(table) {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}

func itoa(n int) string {
	return printer.Sprintf("%d", n)
}
