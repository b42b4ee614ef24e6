package nodes

import (
	"strconv"
	"strings"
)

// ExtractPath walks a dotted response-mapping path through nested maps and
// sequences. Numeric segments index sequences. An empty path returns the
// value unchanged.
func ExtractPath(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}

	current := value

	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(v) {
				return nil, false
			}

			current = v[index]
		default:
			return nil, false
		}
	}

	return current, true
}
