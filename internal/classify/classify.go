// Package classify decides which categories a single zone square counts
// toward. It is pure: no state is kept between calls.
package classify

import (
	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/world"
)

// Input describes one square. Service is the subservice of the building found
// on an occupied unzoned square, or nil when none was found or looked up.
type Input struct {
	Zone           world.Zone
	Specialization world.Specialization
	Occupied       bool
	Service        *world.SubService
}

// Result names the leaf and subtotal to increment. Total is not included;
// every countable square adds to it regardless of the result.
type Result struct {
	Leaf        category.Category
	Subtotal    category.Category
	HasLeaf     bool
	HasSubtotal bool
}

func leafOnly(c category.Category) Result {
	return Result{Leaf: c, HasLeaf: true}
}

// Classifier applies a rule set.
type Classifier struct {
	Rules *category.RuleSet
}

// New returns a classifier over rules.
func New(rules *category.RuleSet) Classifier {
	return Classifier{Rules: rules}
}

// NeedsBuilding reports whether in requires a building lookup before it can
// be classified.
func NeedsBuilding(zone world.Zone, occupied bool) bool {
	return zone == world.ZoneUnzoned && occupied
}

// Classify maps a square to its categories.
func (c Classifier) Classify(in Input) Result {
	fam := in.Zone.Family()
	switch fam {
	case world.FamilyNone:
		return Result{}
	case world.FamilyUnzoned:
		if !in.Occupied || in.Service == nil {
			return leafOnly(category.Unzoned)
		}
		return c.ClassifyService(*in.Service)
	}

	fr, ok := c.Rules.Family(fam)
	if !ok {
		return Result{}
	}
	res := Result{Subtotal: fr.Subtotal, HasSubtotal: c.Rules.Enabled(fr.Subtotal)}
	for _, rule := range fr.Rules {
		if in.Specialization.Has(rule.Requires) && c.Rules.Enabled(rule.Category) {
			res.Leaf, res.HasLeaf = rule.Category, true
			return res
		}
	}
	leaf := fr.Low
	if in.Zone.IsHigh() {
		leaf = fr.High
	}
	res.Leaf, res.HasLeaf = leaf, c.Rules.Enabled(leaf)
	return res
}

// ClassifyService maps the subservice of a building standing on an unzoned
// square. Subservices without a counted category are Unzoned.
func (c Classifier) ClassifyService(s world.SubService) Result {
	leaf, ok := c.Rules.ServiceCategory(s)
	if !ok {
		return leafOnly(category.Unzoned)
	}
	res := leafOnly(leaf)
	if sub, ok := category.SubtotalFor(leaf.Info().Family); ok && c.Rules.Enabled(sub) {
		res.Subtotal, res.HasSubtotal = sub, true
	}
	return res
}
