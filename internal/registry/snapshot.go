package registry

import (
	"fmt"
	"sort"
	"time"

	"intentgate/internal/types"
)

// Category is one whitelist of the registry.
type Category string

const (
	CategoryMachines      Category = "machines"
	CategoryMetrics       Category = "metrics"
	CategoryTimeRanges    Category = "time_ranges"
	CategoryEnergySources Category = "energy_sources"
	CategoryGroups        Category = "groups"
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{CategoryMachines, CategoryMetrics, CategoryTimeRanges, CategoryEnergySources, CategoryGroups}
}

// CategoryForSlot maps an intent slot to the whitelist that validates it.
// limit is validated numerically and has no category.
func CategoryForSlot(slot types.Slot) (Category, bool) {
	switch slot {
	case types.SlotMachine, types.SlotMachines:
		return CategoryMachines, true
	case types.SlotMetric:
		return CategoryMetrics, true
	case types.SlotTimeRange:
		return CategoryTimeRanges, true
	case types.SlotEnergySource:
		return CategoryEnergySources, true
	case types.SlotGroup:
		return CategoryGroups, true
	}
	return "", false
}

// Member is one whitelisted entity.
type Member struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Group   string   `yaml:"group,omitempty" json:"group,omitempty"`
}

// Catalog is the raw content a Source delivers.
type Catalog struct {
	Machines      []Member `yaml:"machines" json:"machines"`
	Metrics       []Member `yaml:"metrics" json:"metrics"`
	TimeRanges    []Member `yaml:"time_ranges" json:"time_ranges"`
	EnergySources []Member `yaml:"energy_sources" json:"energy_sources"`
	Groups        []Member `yaml:"groups" json:"groups"`
}

func (c Catalog) members(cat Category) []Member {
	switch cat {
	case CategoryMachines:
		return c.Machines
	case CategoryMetrics:
		return c.Metrics
	case CategoryTimeRanges:
		return c.TimeRanges
	case CategoryEnergySources:
		return c.EnergySources
	case CategoryGroups:
		return c.Groups
	}
	return nil
}

func (c *Catalog) add(cat Category, m Member) {
	switch cat {
	case CategoryMachines:
		c.Machines = append(c.Machines, m)
	case CategoryMetrics:
		c.Metrics = append(c.Metrics, m)
	case CategoryTimeRanges:
		c.TimeRanges = append(c.TimeRanges, m)
	case CategoryEnergySources:
		c.EnergySources = append(c.EnergySources, m)
	case CategoryGroups:
		c.Groups = append(c.Groups, m)
	}
}

// form is one spelling (name or alias) of a member in comparison form.
type form struct {
	key    string
	tokens []string
	digits []string
	member int
}

type index struct {
	members []Member
	byKey   map[string]int
	byName  map[string]int
	forms   []form
}

// Snapshot is an immutable view of the whitelist. A validation holds one
// snapshot for its whole run, so a concurrent refresh is never observed
// half-applied.
type Snapshot struct {
	version  uint64
	loadedAt time.Time
	source   string
	cats     map[Category]*index
}

// NewSnapshot indexes a catalog. Two members of one category whose names or
// aliases normalize to the same form are rejected.
func NewSnapshot(c Catalog, version uint64, source string) (*Snapshot, error) {
	s := &Snapshot{
		version:  version,
		loadedAt: time.Now(),
		source:   source,
		cats:     make(map[Category]*index, 5),
	}
	for _, cat := range Categories() {
		idx := &index{
			byKey:  make(map[string]int),
			byName: make(map[string]int),
		}
		for _, m := range c.members(cat) {
			if Normalize(m.Name) == "" {
				return nil, fmt.Errorf("%s: member with empty name", cat)
			}
			if _, dup := idx.byName[m.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate member %q", cat, m.Name)
			}
			pos := len(idx.members)
			m.Aliases = append([]string(nil), m.Aliases...)
			idx.members = append(idx.members, m)
			idx.byName[m.Name] = pos

			for _, spelling := range append([]string{m.Name}, m.Aliases...) {
				toks := Tokens(spelling)
				if len(toks) == 0 {
					continue
				}
				key := Normalize(spelling)
				if owner, seen := idx.byKey[key]; seen {
					if owner != pos {
						return nil, fmt.Errorf("%s: %q of %q collides with %q", cat, spelling, m.Name, idx.members[owner].Name)
					}
					continue
				}
				idx.byKey[key] = pos
				idx.forms = append(idx.forms, form{key: key, tokens: toks, digits: DigitTokens(toks), member: pos})
			}
		}
		s.cats[cat] = idx
	}
	return s, nil
}

// Empty returns a snapshot with no members.
func Empty() *Snapshot {
	s, _ := NewSnapshot(Catalog{}, 0, "empty")
	return s
}

func (s *Snapshot) Version() uint64     { return s.version }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *Snapshot) Source() string      { return s.source }

// Lookup finds the member whose name or alias equals value after
// normalization.
func (s *Snapshot) Lookup(cat Category, value string) (Member, bool) {
	idx := s.cats[cat]
	if idx == nil {
		return Member{}, false
	}
	pos, ok := idx.byKey[Normalize(value)]
	if !ok {
		return Member{}, false
	}
	return idx.members[pos], true
}

// Contains reports whether canonical is a member name, verbatim.
func (s *Snapshot) Contains(cat Category, canonical string) bool {
	idx := s.cats[cat]
	if idx == nil {
		return false
	}
	_, ok := idx.byName[canonical]
	return ok
}

// Members returns a copy of the members of a category in source order.
func (s *Snapshot) Members(cat Category) []Member {
	idx := s.cats[cat]
	if idx == nil {
		return nil
	}
	out := make([]Member, len(idx.members))
	copy(out, idx.members)
	return out
}

// Names returns the canonical names of a category in source order.
func (s *Snapshot) Names(cat Category) []string {
	idx := s.cats[cat]
	if idx == nil {
		return nil
	}
	out := make([]string, len(idx.members))
	for i, m := range idx.members {
		out[i] = m.Name
	}
	return out
}

// Spellings returns every normalized name and alias of a category, longest
// first. Parsers use it to scan utterances.
func (s *Snapshot) Spellings(cat Category) []Spelling {
	idx := s.cats[cat]
	if idx == nil {
		return nil
	}
	out := make([]Spelling, 0, len(idx.forms))
	for _, f := range idx.forms {
		out = append(out, Spelling{Key: f.key, Canonical: idx.members[f.member].Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Key) > len(out[j].Key) })
	return out
}

// Spelling is one normalized surface form and the member it names.
type Spelling struct {
	Key       string
	Canonical string
}

// MachinesInGroup returns the machines assigned to a group.
func (s *Snapshot) MachinesInGroup(group string) []string {
	var out []string
	for _, m := range s.cats[CategoryMachines].members {
		if m.Group == group {
			out = append(out, m.Name)
		}
	}
	return out
}

// Count returns the number of members in a category.
func (s *Snapshot) Count(cat Category) int {
	if idx := s.cats[cat]; idx != nil {
		return len(idx.members)
	}
	return 0
}

// Catalog rebuilds the raw catalog the snapshot was indexed from.
func (s *Snapshot) Catalog() Catalog {
	var c Catalog
	for _, cat := range Categories() {
		for _, m := range s.Members(cat) {
			c.add(cat, m)
		}
	}
	return c
}
