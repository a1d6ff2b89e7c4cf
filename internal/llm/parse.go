// Tolerant decision parsing. Model output is an untrusted payload: the
// parser accepts fenced JSON blocks, bare JSON objects, or keyword-recovered
// actions from free text, then validates the result against a strict schema.
// Anything that fails ends up on the rule-fallback path.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/villagers/internal/agents"
)

// ErrUnparseable reports a response no decision could be recovered from.
var ErrUnparseable = errors.New("unparseable model response")

const decisionSchemaJSON = `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {
      "type": "string",
      "enum": ["gather", "build", "trade", "explore", "wait"]
    },
    "target": {"type": "string"},
    "reason": {"type": "string"}
  }
}`

var decisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchemaJSON)

// ParseDecision recovers a Decision from raw model output.
func ParseDecision(raw string) (agents.Decision, error) {
	raw = stripFences(raw)

	if obj, ok := extractObject(raw); ok {
		var payload any
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			if err := decisionSchema.Validate(payload); err != nil {
				return agents.Decision{}, fmt.Errorf("%w: schema: %v", ErrUnparseable, err)
			}
			var d agents.Decision
			if err := json.Unmarshal([]byte(obj), &d); err != nil {
				return agents.Decision{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
			}
			return d, nil
		}
	}

	// No parseable JSON, so scan the text for action keywords.
	if d, ok := recoverFromText(raw); ok {
		return d, nil
	}

	return agents.Decision{}, fmt.Errorf("%w: no action found", ErrUnparseable)
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the outermost {...} span, if any.
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

var actionKeywords = []string{
	agents.ActionGather,
	agents.ActionBuild,
	agents.ActionTrade,
	agents.ActionExplore,
	agents.ActionWait,
}

// targetKeywords are the commodity and building names a free-text target
// can name.
var targetKeywords = []string{
	"wood", "stone", "food", "gold",
	"house", "workshop", "storage", "market", "tower",
}

// recoverFromText scans free-form output line by line for a recognizable
// action, an optional target, and an optional reason.
func recoverFromText(s string) (agents.Decision, bool) {
	var d agents.Decision
	for _, line := range strings.Split(s, "\n") {
		lower := strings.ToLower(line)
		if d.Action == "" && strings.Contains(lower, "action") {
			for _, kw := range actionKeywords {
				if strings.Contains(lower, kw) {
					d.Action = kw
					break
				}
			}
			// "move" in free text means roaming.
			if d.Action == "" && strings.Contains(lower, "move") {
				d.Action = agents.ActionExplore
			}
		}
		if d.Target == "" && (strings.Contains(lower, "action") || strings.Contains(lower, "target")) {
			for _, kw := range targetKeywords {
				if strings.Contains(lower, kw) {
					d.Target = kw
					break
				}
			}
		}
		if d.Reason == "" && strings.Contains(lower, "reason") {
			if _, after, found := strings.Cut(line, ":"); found {
				d.Reason = strings.TrimSpace(after)
			}
		}
	}
	if d.Action == "" {
		return agents.Decision{}, false
	}
	return d, true
}
