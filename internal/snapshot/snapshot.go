// Package snapshot turns published counts into the rows a display shows:
// per-category built/empty/total for one district, as counts or percents,
// with locked categories flagged.
package snapshot

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/world"
)

// Options selects what a view shows.
type Options struct {
	District       uint8 `json:"district"`
	Percent        bool  `json:"percent"`
	IncludeUnzoned bool  `json:"include_unzoned"`
}

// DefaultOptions shows Entire City as counts with the Unzoned row.
func DefaultOptions() Options {
	return Options{District: world.DistrictEntireCity, IncludeUnzoned: true}
}

// Row is one category line of a view.
type Row struct {
	Category  string `json:"category"`
	Label     string `json:"label"`
	Kind      string `json:"kind"`
	Built     int    `json:"built"`
	Empty     int    `json:"empty"`
	Total     int    `json:"total"`
	BuiltText string `json:"built_text"`
	EmptyText string `json:"empty_text"`
	TotalText string `json:"total_text"`
	Locked    bool   `json:"locked"`
}

// View is a rendered snapshot for one district.
type View struct {
	District       uint8  `json:"district"`
	Percent        bool   `json:"percent"`
	IncludeUnzoned bool   `json:"include_unzoned"`
	Pass           uint64 `json:"pass"`
	Rows           []Row  `json:"rows"`
}

// Unlocks reports which zone families and district policies the player has.
type Unlocks interface {
	ZoneUnlocked(f world.Family) bool
	PolicyUnlocked(s world.Specialization) bool
}

// AllUnlocked unlocks everything.
type AllUnlocked struct{}

func (AllUnlocked) ZoneUnlocked(world.Family) bool           { return true }
func (AllUnlocked) PolicyUnlocked(world.Specialization) bool { return true }

// Reader renders views from the published buffer of a store.
type Reader struct {
	store   *counts.Store
	rules   *category.RuleSet
	unlocks Unlocks
}

// NewReader returns a reader. A nil unlocks treats everything as unlocked.
func NewReader(store *counts.Store, rules *category.RuleSet, unlocks Unlocks) *Reader {
	if unlocks == nil {
		unlocks = AllUnlocked{}
	}
	return &Reader{store: store, rules: rules, unlocks: unlocks}
}

// Rules returns the rule set the reader renders.
func (r *Reader) Rules() *category.RuleSet { return r.rules }

// Buffer returns the published buffer the reader renders from.
func (r *Reader) Buffer() *counts.Buffer { return r.store.Final() }

// Query returns the published counts of c for district.
func (r *Reader) Query(c category.Category, district uint8) counts.Counts {
	return r.store.Query(c, district)
}

// Locked reports whether c should be shown as unavailable: nothing of it
// exists anywhere in the city and its zone or policy is not unlocked.
func (r *Reader) Locked(c category.Category) bool {
	return locked(r.store.Final(), c, r.unlocks)
}

func locked(buf *counts.Buffer, c category.Category, u Unlocks) bool {
	if buf.Get(c, world.DistrictEntireCity).Total != 0 {
		return false
	}
	info := c.Info()
	switch info.Kind {
	case category.KindUnzoned, category.KindTotal:
		return false
	}
	if !u.ZoneUnlocked(info.Family) {
		return true
	}
	return info.Policy != world.SpecializationNone && !u.PolicyUnlocked(info.Policy)
}

// View renders every enabled category for opts.District from one published
// buffer, so all rows belong to the same pass.
func (r *Reader) View(opts Options) View {
	buf := r.store.Final()
	district := opts.District
	if int(district) >= world.DistrictArraySize {
		district = world.DistrictEntireCity
	}
	includeUnzoned := opts.IncludeUnzoned || !r.rules.HasIncludeUnzoned()

	total := buf.Get(category.Total, district)
	if !includeUnzoned {
		unzoned := buf.Get(category.Unzoned, district)
		total.Built -= unzoned.Built
		total.Empty -= unzoned.Empty
		total.Total -= unzoned.Total
	}

	v := View{
		District:       district,
		Percent:        opts.Percent,
		IncludeUnzoned: includeUnzoned,
		Pass:           buf.Pass,
	}
	for _, c := range r.rules.Categories() {
		if c == category.Unzoned && !includeUnzoned {
			continue
		}
		got := buf.Get(c, district)
		if c == category.Total {
			got = total
		}
		info := c.Info()
		v.Rows = append(v.Rows, Row{
			Category:  info.Name,
			Label:     info.Label,
			Kind:      kindNames[info.Kind],
			Built:     got.Built,
			Empty:     got.Empty,
			Total:     got.Total,
			BuiltText: FormatValue(opts.Percent, got.Built, total.Built),
			EmptyText: FormatValue(opts.Percent, got.Empty, total.Empty),
			TotalText: FormatValue(opts.Percent, got.Total, total.Total),
			Locked:    locked(buf, c, r.unlocks),
		})
	}
	return v
}

// CategoryInfo describes one enabled category for clients building their
// own layout.
type CategoryInfo struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Family string `json:"family"`
	Policy string `json:"policy,omitempty"`
	Locked bool   `json:"locked"`
}

// Categories lists the enabled categories in display order.
func (r *Reader) Categories() []CategoryInfo {
	buf := r.store.Final()
	cats := r.rules.Categories()
	out := make([]CategoryInfo, 0, len(cats))
	for _, c := range cats {
		info := c.Info()
		ci := CategoryInfo{
			Name:   info.Name,
			Label:  info.Label,
			Kind:   kindNames[info.Kind],
			Family: info.Family.String(),
			Locked: locked(buf, c, r.unlocks),
		}
		if info.Policy != world.SpecializationNone {
			ci.Policy = info.Policy.String()
		}
		out = append(out, ci)
	}
	return out
}

var kindNames = map[category.Kind]string{
	category.KindLeaf:     "leaf",
	category.KindSubtotal: "subtotal",
	category.KindUnzoned:  "unzoned",
	category.KindTotal:    "total",
}

var printer = message.NewPrinter(language.English)

// FormatValue renders value either as a whole-number percent of total or as
// a count with thousands separators.
func FormatValue(percent bool, value, total int) string {
	if percent {
		pct := 0.0
		if total != 0 {
			pct = 100 * float64(value) / float64(total)
		}
		return printer.Sprintf("%d%%", int64(math.Round(pct)))
	}
	return printer.Sprintf("%d", value)
}
