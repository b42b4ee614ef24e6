// Package template resolves {{scope.path}} references for dynamic node configuration.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/finwatch/sentinel/pkg/models"
)

// placeholderPattern matches {{scope.dotted.path}} occurrences. The first
// segment names the scope; the rest walk nested maps and sequences.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)((?:\.[A-Za-z0-9_-]+)*)\s*\}\}`)

// Scope names a template reference may start with.
const (
	ScopeInput   = "input"
	ScopeResults = "results"
	ScopeContext = "context"
)

// Resolve substitutes every placeholder in the template, left to right, each
// independently. A missing path resolves to the empty string and adds a
// warning; resolution never fails the run by itself. A node that needs a
// non-empty value must check for it in its own logic.
func Resolve(input string, executionCtx *models.ExecutionContext) (string, []string) {
	var warnings []string

	resolved := placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		scope := groups[1]
		path := strings.TrimPrefix(groups[2], ".")

		value, ok := lookup(scope, path, executionCtx)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unresolved reference %s", strings.TrimSpace(match)))

			return ""
		}

		return stringify(value)
	})

	return resolved, warnings
}

// ResolveValue resolves a template that is a single placeholder to its typed
// value, so numeric comparisons keep their native type. Templates mixing
// literal text and placeholders resolve to a string.
func ResolveValue(input string, executionCtx *models.ExecutionContext) (any, []string) {
	trimmed := strings.TrimSpace(input)
	if groups := placeholderPattern.FindStringSubmatch(trimmed); groups != nil && groups[0] == trimmed {
		scope := groups[1]
		path := strings.TrimPrefix(groups[2], ".")

		value, ok := lookup(scope, path, executionCtx)
		if !ok {
			return "", []string{fmt.Sprintf("unresolved reference %s", trimmed)}
		}

		return value, nil
	}

	return Resolve(input, executionCtx)
}

// ResolveMap resolves every value of a template map, collecting warnings.
func ResolveMap(templates map[string]string, executionCtx *models.ExecutionContext) (map[string]any, []string) {
	resolved := make(map[string]any, len(templates))

	var warnings []string

	for key, tmpl := range templates {
		value, w := ResolveValue(tmpl, executionCtx)
		resolved[key] = value
		warnings = append(warnings, w...)
	}

	return resolved, warnings
}

// lookup walks the dotted path inside the named scope. Numeric path segments
// index sequences. The results scope exposes each prior node's output under
// the node's ID.
func lookup(scope, path string, executionCtx *models.ExecutionContext) (any, bool) {
	var root any

	switch scope {
	case ScopeInput:
		root = executionCtx.InputData
	case ScopeResults:
		outputs := make(map[string]any, len(executionCtx.Results))
		for nodeID, result := range executionCtx.Results {
			outputs[nodeID] = result.Output
		}

		root = outputs
	case ScopeContext:
		root = executionCtx.ContextVars
	default:
		return nil, false
	}

	if path == "" {
		return root, root != nil
	}

	current := root

	for _, segment := range strings.Split(path, ".") {
		switch value := current.(type) {
		case map[string]any:
			next, ok := value[segment]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(value) {
				return nil, false
			}

			current = value[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// stringify renders a resolved value for substitution into template text.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(encoded)
	}
}
