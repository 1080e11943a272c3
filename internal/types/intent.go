package types

import (
	"sort"
	"strings"
)

// Kind is the command category of an intent.
type Kind string

const (
	KindStatus     Kind = "STATUS_QUERY"
	KindPower      Kind = "POWER_QUERY"
	KindMetric     Kind = "METRIC_QUERY"
	KindSource     Kind = "SOURCE_QUERY"
	KindRanking    Kind = "RANKING"
	KindComparison Kind = "COMPARISON"
	KindAnomaly    Kind = "ANOMALY_CHECK"
	KindPrediction Kind = "PREDICTION"
	KindOverview   Kind = "OVERVIEW"
	KindHelp       Kind = "HELP"

	// KindFollowUp marks an elliptical utterance ("and yesterday?") whose
	// real kind comes from session context. It never reaches validation.
	KindFollowUp Kind = "FOLLOW_UP"
)

// commandKinds is the closed set of kinds a validated intent may carry.
var commandKinds = []Kind{
	KindStatus,
	KindPower,
	KindMetric,
	KindSource,
	KindRanking,
	KindComparison,
	KindAnomaly,
	KindPrediction,
	KindOverview,
	KindHelp,
}

// CommandKinds returns the closed set of executable kinds.
func CommandKinds() []Kind {
	out := make([]Kind, len(commandKinds))
	copy(out, commandKinds)
	return out
}

// ParseKind maps a string to a command kind. FOLLOW_UP is not accepted.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range commandKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Slot names an entity position in an intent.
type Slot string

const (
	SlotMachine      Slot = "machine"
	SlotMachines     Slot = "machines"
	SlotMetric       Slot = "metric"
	SlotTimeRange    Slot = "time_range"
	SlotEnergySource Slot = "energy_source"
	SlotGroup        Slot = "group"
	SlotLimit        Slot = "limit"
)

// slotOrder fixes the order in which slots are validated and reported.
var slotOrder = []Slot{
	SlotMachine,
	SlotMachines,
	SlotMetric,
	SlotEnergySource,
	SlotGroup,
	SlotTimeRange,
	SlotLimit,
}

// Slots returns all slot names in validation order.
func Slots() []Slot {
	out := make([]Slot, len(slotOrder))
	copy(out, slotOrder)
	return out
}

// ParseSlot maps a string to a known slot.
func ParseSlot(s string) (Slot, bool) {
	for _, known := range slotOrder {
		if Slot(s) == known {
			return known, true
		}
	}
	return "", false
}

// IsList reports whether the slot holds several values.
func (s Slot) IsList() bool {
	return s == SlotMachines
}

// Tier identifies the resolution stage that produced an intent.
type Tier int

const (
	TierNone       Tier = 0
	TierFastMatch  Tier = 1
	TierStructured Tier = 2
	TierGenerative Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierFastMatch:
		return "fast_match"
	case TierStructured:
		return "structured"
	case TierGenerative:
		return "generative"
	default:
		return "none"
	}
}

// Entity is the value extracted for one slot.
type Entity struct {
	Value       string   `json:"value,omitempty"`
	Values      []string `json:"values,omitempty"`
	FromContext bool     `json:"from_context,omitempty"`
}

// IsEmpty reports whether the entity carries no value.
func (e Entity) IsEmpty() bool {
	return e.Value == "" && len(e.Values) == 0
}

// Intent is the structured form of an utterance.
type Intent struct {
	Kind       Kind            `json:"kind"`
	Entities   map[Slot]Entity `json:"entities,omitempty"`
	Confidence float64         `json:"confidence"`
	SourceTier Tier            `json:"source_tier"`
}

// NewIntent creates an intent with an empty entity map.
func NewIntent(kind Kind, confidence float64) Intent {
	return Intent{
		Kind:       kind,
		Entities:   make(map[Slot]Entity),
		Confidence: confidence,
	}
}

// Get returns the entity for a slot if it is populated.
func (i Intent) Get(slot Slot) (Entity, bool) {
	e, ok := i.Entities[slot]
	if !ok || e.IsEmpty() {
		return Entity{}, false
	}
	return e, true
}

// Value returns the scalar value of a slot or "".
func (i Intent) Value(slot Slot) string {
	return i.Entities[slot].Value
}

// Has reports whether a slot is populated.
func (i Intent) Has(slot Slot) bool {
	_, ok := i.Get(slot)
	return ok
}

// Set stores a scalar value. Empty values clear the slot.
func (i *Intent) Set(slot Slot, value string) {
	if i.Entities == nil {
		i.Entities = make(map[Slot]Entity)
	}
	if value == "" {
		delete(i.Entities, slot)
		return
	}
	i.Entities[slot] = Entity{Value: value}
}

// SetList stores a list value.
func (i *Intent) SetList(slot Slot, values []string) {
	if i.Entities == nil {
		i.Entities = make(map[Slot]Entity)
	}
	if len(values) == 0 {
		delete(i.Entities, slot)
		return
	}
	i.Entities[slot] = Entity{Values: append([]string(nil), values...)}
}

// Clone returns a deep copy.
func (i Intent) Clone() Intent {
	out := i
	out.Entities = make(map[Slot]Entity, len(i.Entities))
	for k, v := range i.Entities {
		if v.Values != nil {
			v.Values = append([]string(nil), v.Values...)
		}
		out.Entities[k] = v
	}
	return out
}

// PopulatedSlots returns the populated slots in validation order.
func (i Intent) PopulatedSlots() []Slot {
	var out []Slot
	for _, s := range slotOrder {
		if i.Has(s) {
			out = append(out, s)
		}
	}
	// Unknown slot names can only come from a malformed producer; keep them
	// visible so the validator can reject them.
	var extra []string
	for s := range i.Entities {
		if _, ok := ParseSlot(string(s)); !ok && !i.Entities[s].IsEmpty() {
			extra = append(extra, string(s))
		}
	}
	sort.Strings(extra)
	for _, s := range extra {
		out = append(out, Slot(s))
	}
	return out
}
