package resolver

import (
	"fmt"
	"strings"

	"intentgate/internal/types"
)

var slotNames = map[types.Slot]string{
	types.SlotMachine:      "machine",
	types.SlotMachines:     "machine",
	types.SlotMetric:       "metric",
	types.SlotTimeRange:    "time range",
	types.SlotEnergySource: "energy source",
	types.SlotGroup:        "area",
	types.SlotLimit:        "number",
}

func slotName(s types.Slot) string {
	if n, ok := slotNames[s]; ok {
		return n
	}
	return string(s)
}

// oneOf renders "A", "A or B", "A, B or C".
func oneOf(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}

// offending returns the raw value that caused a clarification.
func offending(nc types.NeedsClarification) string {
	e := nc.Partial.Entities[nc.Slot]
	if nc.Slot.IsList() {
		if nc.Index >= 0 && nc.Index < len(e.Values) {
			return e.Values[nc.Index]
		}
		return ""
	}
	return e.Value
}

// clarificationPrompt is the question shown for a NeedsClarification.
func clarificationPrompt(nc types.NeedsClarification) string {
	name := slotName(nc.Slot)
	switch nc.Reason {
	case types.ReasonAmbiguousEntity:
		return fmt.Sprintf("Which %s do you mean: %s?", name, oneOf(nc.Candidates))
	case types.ReasonUnknownEntity:
		return fmt.Sprintf("I don't know the %s %q. Did you mean %s?", name, offending(nc), oneOf(nc.Candidates))
	case types.ReasonMissingRequiredSlot:
		q := fmt.Sprintf("Which %s should I use?", name)
		if nc.Slot == types.SlotMachines {
			q = "Which machine should I compare it with?"
		}
		if len(nc.Candidates) > 0 {
			q += " For example: " + oneOf(nc.Candidates) + "."
		}
		return q
	default:
		return "I'm not sure what you mean. Could you rephrase that?"
	}
}

// rejectionPrompt is the message shown for a Rejected outcome.
func rejectionPrompt(r types.Rejected) string {
	switch r.Reason {
	case types.ReasonUnknownEntity:
		return "I couldn't find that in the plant registry (" + r.Detail + ")."
	case types.ReasonInvalidValue:
		return "That value can't be used: " + r.Detail + "."
	default:
		return "Sorry, I didn't understand that. Could you rephrase?"
	}
}
