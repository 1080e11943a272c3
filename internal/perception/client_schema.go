package perception

import (
	"sync"

	"intentgate/internal/types"
)

var (
	intentSchemaOnce sync.Once
	intentSchemaRaw  map[string]interface{}
)

// intentRawSchema returns the JSON schema every Tier-3 response must satisfy.
// The kind enum and the slot names come from the types package so the schema
// cannot drift from the validator.
func intentRawSchema() map[string]interface{} {
	intentSchemaOnce.Do(func() {
		kinds := make([]string, 0, 11)
		for _, k := range types.CommandKinds() {
			kinds = append(kinds, string(k))
		}
		kinds = append(kinds, string(types.KindFollowUp))

		slots := make(map[string]interface{})
		for _, s := range types.Slots() {
			switch {
			case s.IsList():
				slots[string(s)] = map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				}
			case s == types.SlotLimit:
				slots[string(s)] = map[string]interface{}{"type": "integer", "minimum": 1}
			default:
				slots[string(s)] = map[string]interface{}{"type": "string"}
			}
		}

		intentSchemaRaw = map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"kind": map[string]interface{}{
					"type": "string",
					"enum": kinds,
				},
				"entities": map[string]interface{}{
					"type":                 "object",
					"properties":           slots,
					"additionalProperties": false,
				},
				"confidence": map[string]interface{}{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
			},
			"required":             []string{"kind", "entities", "confidence"},
			"additionalProperties": false,
		}
	})
	return intentSchemaRaw
}

// BuildOllamaIntentSchema returns the value for Ollama's "format" field,
// which accepts a raw JSON schema and constrains decoding to it.
func BuildOllamaIntentSchema() map[string]interface{} {
	return intentRawSchema()
}

// BuildGeminiIntentSchema returns the raw schema for Gemini's
// responseJsonSchema.
func BuildGeminiIntentSchema() map[string]interface{} {
	return intentRawSchema()
}
