package types

import "errors"

// ReasonCode is the machine-readable cause attached to a clarification or a
// rejection.
type ReasonCode string

const (
	ReasonNone                 ReasonCode = ""
	ReasonParseFailure         ReasonCode = "parse_failure"
	ReasonLowConfidence        ReasonCode = "low_confidence"
	ReasonUnknownEntity        ReasonCode = "unknown_entity"
	ReasonAmbiguousEntity      ReasonCode = "ambiguous_entity"
	ReasonMissingRequiredSlot  ReasonCode = "missing_required_slot"
	ReasonInvalidValue         ReasonCode = "invalid_value"
	ReasonSchemaViolation      ReasonCode = "schema_violation"
	ReasonInferenceTimeout     ReasonCode = "inference_timeout"
	ReasonClarificationTimeout ReasonCode = "clarification_timeout"
)

// Sentinel errors. Callers test with errors.Is.
var (
	// ErrNoMatch is returned by a tier that recognised nothing.
	ErrNoMatch = errors.New("no match")

	ErrParseFailure         = errors.New("parse failure")
	ErrLowConfidence        = errors.New("low confidence")
	ErrUnknownEntity        = errors.New("unknown entity")
	ErrAmbiguousEntity      = errors.New("ambiguous entity")
	ErrMissingRequiredSlot  = errors.New("missing required slot")
	ErrSchemaViolation      = errors.New("schema violation")
	ErrInferenceTimeout     = errors.New("inference timeout")
	ErrClarificationTimeout = errors.New("clarification timeout")
)

// ReasonFor maps a pipeline error to its reason code.
func ReasonFor(err error) ReasonCode {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrLowConfidence):
		return ReasonLowConfidence
	case errors.Is(err, ErrUnknownEntity):
		return ReasonUnknownEntity
	case errors.Is(err, ErrAmbiguousEntity):
		return ReasonAmbiguousEntity
	case errors.Is(err, ErrMissingRequiredSlot):
		return ReasonMissingRequiredSlot
	case errors.Is(err, ErrSchemaViolation):
		return ReasonSchemaViolation
	case errors.Is(err, ErrInferenceTimeout):
		return ReasonInferenceTimeout
	case errors.Is(err, ErrClarificationTimeout):
		return ReasonClarificationTimeout
	default:
		return ReasonParseFailure
	}
}
