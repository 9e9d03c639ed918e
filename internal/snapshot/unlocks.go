package snapshot

import (
	"fmt"
	"strings"

	"github.com/zoneinfo/server/internal/world"
)

// UnlockSet is an Unlocks built from configured names.
type UnlockSet struct {
	allZones    bool
	zones       map[world.Family]bool
	allPolicies bool
	policies    world.Specialization
}

// ParseUnlocks builds an UnlockSet from zone family and policy names. A nil
// list unlocks everything of that kind.
func ParseUnlocks(zones, policies []string) (*UnlockSet, error) {
	u := &UnlockSet{
		allZones:    zones == nil,
		zones:       make(map[world.Family]bool, len(zones)),
		allPolicies: policies == nil,
	}
	for _, name := range zones {
		f, err := world.ParseFamily(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, err
		}
		u.zones[f] = true
	}
	for _, name := range policies {
		s, err := world.ParseSpecialization(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, fmt.Errorf("unlocked policies: %w", err)
		}
		u.policies |= s
	}
	return u, nil
}

func (u *UnlockSet) ZoneUnlocked(f world.Family) bool {
	return u.allZones || u.zones[f]
}

func (u *UnlockSet) PolicyUnlocked(s world.Specialization) bool {
	return u.allPolicies || u.policies.Has(s)
}
