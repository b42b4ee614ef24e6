// Package condition evaluates typed operators for workflow branching.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Operator names supported by condition nodes.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
	OperatorInList      = "in_list"
	OperatorRegexMatch  = "regex_match"
)

// ListDelimiter separates entries of an in_list literal.
const ListDelimiter = ","

// EvaluationError reports that an operator could not be applied to its
// operands, for example a numeric comparison against a non-numeric value.
type EvaluationError struct {
	Operator string
	Detail   string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("condition evaluation failed for operator %q: %s", e.Operator, e.Detail)
}

// Evaluate applies the operator to a resolved value and a literal and
// reports whether the condition matched. Numeric operators coerce both sides
// to float64 and fail with an EvaluationError when coercion is impossible.
func Evaluate(value any, operator, literal string) (bool, error) {
	switch operator {
	case OperatorEquals:
		return compareEqual(value, literal), nil
	case OperatorNotEquals:
		return !compareEqual(value, literal), nil
	case OperatorGreaterThan, OperatorLessThan:
		left, err := toFloat(value)
		if err != nil {
			return false, &EvaluationError{Operator: operator, Detail: err.Error()}
		}

		right, err := toFloat(literal)
		if err != nil {
			return false, &EvaluationError{Operator: operator, Detail: err.Error()}
		}

		if operator == OperatorGreaterThan {
			return left > right, nil
		}

		return left < right, nil
	case OperatorContains:
		return strings.Contains(toString(value), literal), nil
	case OperatorNotContains:
		return !strings.Contains(toString(value), literal), nil
	case OperatorInList:
		needle := toString(value)
		for _, entry := range strings.Split(literal, ListDelimiter) {
			if strings.TrimSpace(entry) == needle {
				return true, nil
			}
		}

		return false, nil
	case OperatorRegexMatch:
		pattern, err := regexp.Compile(literal)
		if err != nil {
			return false, &EvaluationError{Operator: operator, Detail: fmt.Sprintf("invalid pattern: %v", err)}
		}

		return pattern.MatchString(toString(value)), nil
	default:
		return false, &EvaluationError{Operator: operator, Detail: "unknown operator"}
	}
}

// compareEqual compares numerically when both sides coerce to numbers, and
// textually otherwise, so "100" equals 100.0.
func compareEqual(value any, literal string) bool {
	left, leftErr := toFloat(value)
	right, rightErr := toFloat(literal)

	if leftErr == nil && rightErr == nil {
		return left == right
	}

	return toString(value) == literal
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to number", v)
		}

		return parsed, nil
	case bool:
		if v {
			return 1, nil
		}

		return 0, nil
	case nil:
		return 0, fmt.Errorf("cannot coerce empty value to number")
	default:
		return 0, fmt.Errorf("cannot coerce %T to number", value)
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
