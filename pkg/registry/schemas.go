package registry

import "github.com/finwatch/sentinel/pkg/models"

// ConfigSchema returns the JSON schema for a node kind's config variant,
// for editor consumption and definition validation.
func ConfigSchema(kind models.NodeKind) map[string]any {
	switch kind {
	case models.NodeKindStart:
		return map[string]any{"type": "object", "additionalProperties": false}
	case models.NodeKindDataSource:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"provider_id":     map[string]any{"type": "string"},
				"payload":         map[string]any{"type": "object"},
				"response_path":   map[string]any{"type": "string"},
				"timeout_seconds": map[string]any{"type": "integer", "minimum": 0},
			},
			"required": []any{"provider_id"},
		}
	case models.NodeKindAPICall:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":             map[string]any{"type": "string"},
				"method":          map[string]any{"type": "string"},
				"headers":         map[string]any{"type": "object"},
				"body":            map[string]any{"type": "string"},
				"response_path":   map[string]any{"type": "string"},
				"timeout_seconds": map[string]any{"type": "integer", "minimum": 0},
			},
			"required": []any{"url"},
		}
	case models.NodeKindCondition:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value":    map[string]any{"type": "string"},
				"operator": map[string]any{"type": "string"},
				"literal":  map[string]any{"type": "string"},
				"branches": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"cases": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"branch":  map[string]any{"type": "string"},
							"literal": map[string]any{"type": "string"},
						},
						"required": []any{"branch"},
					},
				},
			},
			"required": []any{"value", "operator"},
		}
	case models.NodeKindAction:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"set":             map[string]any{"type": "object"},
				"effect":          map[string]any{"type": "string"},
				"params":          map[string]any{"type": "object"},
				"timeout_seconds": map[string]any{"type": "integer", "minimum": 0},
			},
		}
	case models.NodeKindCustomCode:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"assignments": map[string]any{"type": "object"},
			},
			"required": []any{"assignments"},
		}
	case models.NodeKindApprove, models.NodeKindReject, models.NodeKindManualReview:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{"type": "string"},
			},
		}
	default:
		return nil
	}
}
