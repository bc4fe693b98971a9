// Package plan defines the structured-output contract for plan generation,
// the strict decoder for model output, and the markdown/text projections of
// a goal tree.
package plan

// SchemaName is the name the schema is registered under with providers
// that support named structured output.
const SchemaName = "goalPlan"

// Schema returns the JSON Schema every plan response must satisfy. Identity
// fields are absent on purpose: identities are assigned after parsing.
func Schema() map[string]any {
	return object(map[string]any{
		"goal": goalSchema(),
	})
}

func goalSchema() map[string]any {
	return object(map[string]any{
		"name":        str(),
		"description": nullable(str()),
		"deadline":    str(),
		"progress":    map[string]any{"type": "number"},
		"milestones":  array(milestoneSchema()),
	})
}

func milestoneSchema() map[string]any {
	return object(map[string]any{
		"name":        str(),
		"order":       map[string]any{"type": "integer"},
		"description": nullable(str()),
		"deadline":    nullable(str()),
		"tasks":       array(taskSchema()),
	})
}

func taskSchema() map[string]any {
	return object(map[string]any{
		"name":           str(),
		"order":          map[string]any{"type": "integer"},
		"description":    nullable(str()),
		"duration_hours": map[string]any{"type": "number"},
		"deadline":       str(),
		"simplicity":     score(),
		"importance":     score(),
		"urgency":        score(),
		"completed":      map[string]any{"type": "boolean"},
	})
}

// object marks every property as required, the form strict structured
// output expects. Optional fields are expressed as nullable instead.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for _, k := range sortedKeys(props) {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func str() map[string]any {
	return map[string]any{"type": "string"}
}

func nullable(s map[string]any) map[string]any {
	return map[string]any{"type": []string{s["type"].(string), "null"}}
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func score() map[string]any {
	return map[string]any{"type": "integer", "minimum": MinScore, "maximum": MaxScore}
}
