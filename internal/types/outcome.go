package types

// Status tags the variant of an Outcome or Result.
type Status string

const (
	StatusValid              Status = "valid"
	StatusNeedsClarification Status = "needs_clarification"
	StatusRejected           Status = "rejected"
)

// Outcome is the validator's verdict on a candidate intent. Exactly one of
// Valid, NeedsClarification or Rejected implements it.
type Outcome interface {
	Status() Status
	isOutcome()
}

// Valid carries an intent whose every entity is canonical and whitelisted.
type Valid struct {
	Intent  Intent
	Command Command
}

// NeedsClarification asks the user to fill or disambiguate one slot. Slot is
// empty for a generic "please rephrase".
type NeedsClarification struct {
	Partial    Intent
	Slot       Slot
	Index      int // position inside a list slot, -1 otherwise
	Reason     ReasonCode
	Candidates []string
}

// Rejected ends the turn without a command.
type Rejected struct {
	Reason ReasonCode
	Detail string
}

func (Valid) Status() Status              { return StatusValid }
func (NeedsClarification) Status() Status { return StatusNeedsClarification }
func (Rejected) Status() Status           { return StatusRejected }

func (Valid) isOutcome()              {}
func (NeedsClarification) isOutcome() {}
func (Rejected) isOutcome()           {}

// Result is what the resolver hands to its collaborators.
type Result struct {
	SessionID  string     `json:"session_id"`
	TurnID     string     `json:"turn_id"`
	Status     Status     `json:"status"`
	Intent     *Intent    `json:"intent,omitempty"`
	Command    Command    `json:"command,omitempty"`
	Prompt     string     `json:"prompt,omitempty"`
	Candidates []string   `json:"candidates,omitempty"`
	Slot       Slot       `json:"slot,omitempty"`
	Reason     ReasonCode `json:"reason,omitempty"`
	SourceTier Tier       `json:"source_tier"`
	Confidence float64    `json:"confidence"`
}
