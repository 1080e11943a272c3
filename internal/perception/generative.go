package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intentgate/internal/logging"
	"intentgate/internal/registry"
	"intentgate/internal/types"
)

// GenerativeParser is Tier-3: a schema-constrained model call bounded by a
// hard deadline. It is the only tier that may invent entity values, so its
// output is decoded strictly and anything off-schema is a schema violation.
type GenerativeParser struct {
	client       LLMClient
	timeout      time.Duration
	historyTurns int
	// maxListed caps how many whitelist names go into the prompt.
	maxListed int
}

// NewGenerativeParser creates the Tier-3 parser.
func NewGenerativeParser(client LLMClient, timeout time.Duration, historyTurns int) *GenerativeParser {
	if historyTurns < 0 {
		historyTurns = 0
	}
	return &GenerativeParser{
		client:       client,
		timeout:      timeout,
		historyTurns: historyTurns,
		maxListed:    40,
	}
}

func (g *GenerativeParser) Number() types.Tier { return types.TierGenerative }
func (g *GenerativeParser) Name() string       { return "generative" }

type inference struct {
	text string
	err  error
}

// Attempt runs the model call as a separate task and waits for it, the
// deadline, or the caller, whichever comes first. A call abandoned on timeout
// finishes in the background and its result is discarded.
func (g *GenerativeParser) Attempt(ctx context.Context, req Request) (types.Intent, error) {
	if g.client == nil {
		return types.Intent{}, types.ErrNoMatch
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system := g.systemPrompt(req.Snapshot)
	user := g.userPrompt(req)

	done := make(chan inference, 1)
	go func() {
		text, err := g.client.CompleteWithSchema(callCtx, system, user, BuildOllamaIntentSchema())
		done <- inference{text: text, err: err}
	}()

	var res inference
	select {
	case res = <-done:
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return types.Intent{}, err
		}
		logging.Get(logging.CategoryGenerative).Warn("model %s exceeded %v", g.client.Model(), g.timeout)
		return types.Intent{}, fmt.Errorf("tier 3 after %v: %w", g.timeout, types.ErrInferenceTimeout)
	}

	if res.err != nil {
		if err := ctx.Err(); err != nil {
			return types.Intent{}, err
		}
		if errors.Is(res.err, context.DeadlineExceeded) {
			return types.Intent{}, fmt.Errorf("tier 3: %w", types.ErrInferenceTimeout)
		}
		// A transport failure is not something the model said.
		return types.Intent{}, fmt.Errorf("tier 3 call failed: %v: %w", res.err, types.ErrNoMatch)
	}

	in, err := parseIntentJSON(res.text)
	if err != nil {
		logging.Get(logging.CategoryGenerative).Warn("discarding model output: %v", err)
		return types.Intent{}, err
	}
	return in, nil
}

func (g *GenerativeParser) systemPrompt(snap *registry.Snapshot) string {
	var b strings.Builder
	b.WriteString("You convert one industrial-monitoring request into a JSON object.\n")
	b.WriteString("Fields: kind, entities, confidence (0 to 1, your certainty).\n")
	b.WriteString("kind is one of: ")
	for i, k := range types.CommandKinds() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(k))
	}
	b.WriteString(", or FOLLOW_UP when the request only continues the previous one.\n")
	b.WriteString("entities may contain: machine, machines (list), metric, time_range, energy_source, group, limit (integer).\n")
	b.WriteString("Only include entities the user actually mentioned. Output JSON only.\n")

	if snap != nil {
		for _, cat := range []registry.Category{registry.CategoryMachines, registry.CategoryMetrics, registry.CategoryTimeRanges, registry.CategoryEnergySources} {
			names := snap.Names(cat)
			if len(names) == 0 {
				continue
			}
			if len(names) > g.maxListed {
				names = names[:g.maxListed]
			}
			fmt.Fprintf(&b, "Known %s: %s\n", cat, strings.Join(names, ", "))
		}
	}
	return b.String()
}

func (g *GenerativeParser) userPrompt(req Request) string {
	var b strings.Builder
	history := req.History
	if len(history) > g.historyTurns {
		history = history[len(history)-g.historyTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Previous turns:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "- user: %q", t.Utterance)
			if t.Intent != nil {
				if data, err := json.Marshal(t.Intent); err == nil {
					fmt.Fprintf(&b, " -> %s", data)
				}
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "Request: %q", req.Utterance)
	return b.String()
}

// wireIntent is the model's output shape.
type wireIntent struct {
	Kind       string                     `json:"kind"`
	Entities   map[string]json.RawMessage `json:"entities"`
	Confidence *float64                   `json:"confidence"`
}

// parseIntentJSON extracts the first JSON object from resp and checks it
// against the intent schema.
func parseIntentJSON(resp string) (types.Intent, error) {
	start := strings.Index(resp, "{")
	if start == -1 {
		return types.Intent{}, fmt.Errorf("no JSON object found in response: %w", types.ErrSchemaViolation)
	}

	decoder := json.NewDecoder(strings.NewReader(resp[start:]))
	decoder.DisallowUnknownFields()
	var w wireIntent
	if err := decoder.Decode(&w); err != nil {
		return types.Intent{}, fmt.Errorf("failed to parse intent JSON: %v: %w", err, types.ErrSchemaViolation)
	}

	kind := types.Kind(strings.ToUpper(strings.TrimSpace(w.Kind)))
	if _, ok := types.ParseKind(string(kind)); !ok && kind != types.KindFollowUp {
		return types.Intent{}, fmt.Errorf("kind %q outside the enum: %w", w.Kind, types.ErrSchemaViolation)
	}
	if w.Confidence == nil {
		return types.Intent{}, fmt.Errorf("missing confidence: %w", types.ErrSchemaViolation)
	}
	if *w.Confidence < 0 || *w.Confidence > 1 {
		return types.Intent{}, fmt.Errorf("confidence %v outside [0,1]: %w", *w.Confidence, types.ErrSchemaViolation)
	}

	in := types.NewIntent(kind, *w.Confidence)
	for name, raw := range w.Entities {
		slot, ok := types.ParseSlot(name)
		if !ok {
			return types.Intent{}, fmt.Errorf("unknown entity %q: %w", name, types.ErrSchemaViolation)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		switch {
		case slot.IsList():
			var vals []string
			if err := json.Unmarshal(raw, &vals); err != nil {
				return types.Intent{}, fmt.Errorf("entity %s must be a list of strings: %w", name, types.ErrSchemaViolation)
			}
			var clean []string
			for _, v := range vals {
				if v = strings.TrimSpace(v); v != "" {
					clean = append(clean, v)
				}
			}
			in.SetList(slot, clean)
		case slot == types.SlotLimit:
			var n int
			if err := json.Unmarshal(raw, &n); err != nil {
				var s string
				if err2 := json.Unmarshal(raw, &s); err2 != nil {
					return types.Intent{}, fmt.Errorf("entity limit must be an integer: %w", types.ErrSchemaViolation)
				}
				if n, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
					return types.Intent{}, fmt.Errorf("entity limit %q is not an integer: %w", s, types.ErrSchemaViolation)
				}
			}
			in.Set(slot, strconv.Itoa(n))
		default:
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return types.Intent{}, fmt.Errorf("entity %s must be a string: %w", name, types.ErrSchemaViolation)
			}
			in.Set(slot, strings.TrimSpace(v))
		}
	}
	return in, nil
}
