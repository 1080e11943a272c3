package types

import (
	"fmt"
	"strconv"
)

// DefaultRankingLimit is used when a ranking does not state how many entries.
const DefaultRankingLimit = 5

// Command is the typed, executable form of a validated intent. The set of
// implementations is closed; each one declares the slots it cannot run
// without.
type Command interface {
	Kind() Kind
	RequiredSlots() []Slot
	isCommand()
}

type StatusQuery struct {
	Machine string `json:"machine"`
}

type PowerQuery struct {
	Machine   string `json:"machine"`
	TimeRange string `json:"time_range,omitempty"`
}

type MetricQuery struct {
	Machine   string `json:"machine"`
	Metric    string `json:"metric"`
	TimeRange string `json:"time_range,omitempty"`
}

type SourceQuery struct {
	EnergySource string `json:"energy_source"`
	TimeRange    string `json:"time_range,omitempty"`
	Group        string `json:"group,omitempty"`
}

type RankingQuery struct {
	Metric    string `json:"metric,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
	Group     string `json:"group,omitempty"`
	Limit     int    `json:"limit"`
}

type ComparisonQuery struct {
	Machines  []string `json:"machines"`
	Metric    string   `json:"metric,omitempty"`
	TimeRange string   `json:"time_range,omitempty"`
}

type AnomalyCheck struct {
	Machine   string `json:"machine,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
}

type PredictionQuery struct {
	Machine   string `json:"machine,omitempty"`
	Metric    string `json:"metric,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type OverviewQuery struct {
	Group     string `json:"group,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
}

type HelpRequest struct{}

func (StatusQuery) Kind() Kind     { return KindStatus }
func (PowerQuery) Kind() Kind      { return KindPower }
func (MetricQuery) Kind() Kind     { return KindMetric }
func (SourceQuery) Kind() Kind     { return KindSource }
func (RankingQuery) Kind() Kind    { return KindRanking }
func (ComparisonQuery) Kind() Kind { return KindComparison }
func (AnomalyCheck) Kind() Kind    { return KindAnomaly }
func (PredictionQuery) Kind() Kind { return KindPrediction }
func (OverviewQuery) Kind() Kind   { return KindOverview }
func (HelpRequest) Kind() Kind     { return KindHelp }

func (StatusQuery) RequiredSlots() []Slot     { return []Slot{SlotMachine} }
func (PowerQuery) RequiredSlots() []Slot      { return []Slot{SlotMachine} }
func (MetricQuery) RequiredSlots() []Slot     { return []Slot{SlotMachine, SlotMetric} }
func (SourceQuery) RequiredSlots() []Slot     { return []Slot{SlotEnergySource} }
func (RankingQuery) RequiredSlots() []Slot    { return nil }
func (ComparisonQuery) RequiredSlots() []Slot { return []Slot{SlotMachines} }
func (AnomalyCheck) RequiredSlots() []Slot    { return nil }
func (PredictionQuery) RequiredSlots() []Slot { return nil }
func (OverviewQuery) RequiredSlots() []Slot   { return nil }
func (HelpRequest) RequiredSlots() []Slot     { return nil }

func (StatusQuery) isCommand()     {}
func (PowerQuery) isCommand()      {}
func (MetricQuery) isCommand()     {}
func (SourceQuery) isCommand()     {}
func (RankingQuery) isCommand()    {}
func (ComparisonQuery) isCommand() {}
func (AnomalyCheck) isCommand()    {}
func (PredictionQuery) isCommand() {}
func (OverviewQuery) isCommand()   {}
func (HelpRequest) isCommand()     {}

// MinComparisonMachines is the smallest machine list a comparison accepts.
const MinComparisonMachines = 2

// zeroCommand returns the empty variant for a kind.
func zeroCommand(k Kind) (Command, bool) {
	switch k {
	case KindStatus:
		return StatusQuery{}, true
	case KindPower:
		return PowerQuery{}, true
	case KindMetric:
		return MetricQuery{}, true
	case KindSource:
		return SourceQuery{}, true
	case KindRanking:
		return RankingQuery{}, true
	case KindComparison:
		return ComparisonQuery{}, true
	case KindAnomaly:
		return AnomalyCheck{}, true
	case KindPrediction:
		return PredictionQuery{}, true
	case KindOverview:
		return OverviewQuery{}, true
	case KindHelp:
		return HelpRequest{}, true
	}
	return nil, false
}

// RequiredSlots returns the slots a kind cannot run without.
// Unknown kinds and FOLLOW_UP have none.
func RequiredSlots(k Kind) []Slot {
	c, ok := zeroCommand(k)
	if !ok {
		return nil
	}
	return c.RequiredSlots()
}

// AllowedSlots returns the slots a kind accepts, required first.
func AllowedSlots(k Kind) []Slot {
	switch k {
	case KindStatus:
		return []Slot{SlotMachine}
	case KindPower:
		return []Slot{SlotMachine, SlotTimeRange}
	case KindMetric:
		return []Slot{SlotMachine, SlotMetric, SlotTimeRange}
	case KindSource:
		return []Slot{SlotEnergySource, SlotTimeRange, SlotGroup}
	case KindRanking:
		return []Slot{SlotMetric, SlotTimeRange, SlotGroup, SlotLimit}
	case KindComparison:
		return []Slot{SlotMachines, SlotMetric, SlotTimeRange}
	case KindAnomaly:
		return []Slot{SlotMachine, SlotTimeRange}
	case KindPrediction:
		return []Slot{SlotMachine, SlotMetric, SlotTimeRange, SlotLimit}
	case KindOverview:
		return []Slot{SlotGroup, SlotTimeRange}
	}
	return nil
}

// IsSatisfied reports whether a required slot is filled well enough to run.
func IsSatisfied(in Intent, slot Slot) bool {
	e, ok := in.Get(slot)
	if !ok {
		return false
	}
	if slot == SlotMachines {
		return len(e.Values) >= MinComparisonMachines
	}
	return true
}

// BuildCommand turns a validated intent into its typed variant.
func BuildCommand(in Intent) (Command, error) {
	if _, ok := zeroCommand(in.Kind); !ok {
		return nil, fmt.Errorf("unknown kind %q", in.Kind)
	}
	for _, slot := range RequiredSlots(in.Kind) {
		if !IsSatisfied(in, slot) {
			return nil, fmt.Errorf("%s requires %s: %w", in.Kind, slot, ErrMissingRequiredSlot)
		}
	}

	limit := 0
	if raw := in.Value(SlotLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("limit %q is not a number", raw)
		}
		limit = n
	}

	switch in.Kind {
	case KindStatus:
		return StatusQuery{Machine: in.Value(SlotMachine)}, nil
	case KindPower:
		return PowerQuery{Machine: in.Value(SlotMachine), TimeRange: in.Value(SlotTimeRange)}, nil
	case KindMetric:
		return MetricQuery{
			Machine:   in.Value(SlotMachine),
			Metric:    in.Value(SlotMetric),
			TimeRange: in.Value(SlotTimeRange),
		}, nil
	case KindSource:
		return SourceQuery{
			EnergySource: in.Value(SlotEnergySource),
			TimeRange:    in.Value(SlotTimeRange),
			Group:        in.Value(SlotGroup),
		}, nil
	case KindRanking:
		if limit == 0 {
			limit = DefaultRankingLimit
		}
		return RankingQuery{
			Metric:    in.Value(SlotMetric),
			TimeRange: in.Value(SlotTimeRange),
			Group:     in.Value(SlotGroup),
			Limit:     limit,
		}, nil
	case KindComparison:
		return ComparisonQuery{
			Machines:  append([]string(nil), in.Entities[SlotMachines].Values...),
			Metric:    in.Value(SlotMetric),
			TimeRange: in.Value(SlotTimeRange),
		}, nil
	case KindAnomaly:
		return AnomalyCheck{Machine: in.Value(SlotMachine), TimeRange: in.Value(SlotTimeRange)}, nil
	case KindPrediction:
		return PredictionQuery{
			Machine:   in.Value(SlotMachine),
			Metric:    in.Value(SlotMetric),
			TimeRange: in.Value(SlotTimeRange),
			Limit:     limit,
		}, nil
	case KindOverview:
		return OverviewQuery{Group: in.Value(SlotGroup), TimeRange: in.Value(SlotTimeRange)}, nil
	case KindHelp:
		return HelpRequest{}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", in.Kind)
}
