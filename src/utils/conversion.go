package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 coerces a decoded webhook value into a float64. Strings are
// trimmed before parsing.
func ToFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("failed to convert '%s' to float: %w", t, err)
		}

		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("failed to convert '%s' to float: not a finite number", t)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("failed to convert %v (%T) to float", v, v)
	}
}

// ToInt64 coerces a decoded webhook value into an int64. JSON numbers arrive
// as float64, so integral floats are accepted.
func ToInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, fmt.Errorf("failed to convert %v to int: not integral", t)
		}

		// int64(t) is implementation-defined outside [-2^63, 2^63)
		if t < -(1<<63) || t >= 1<<63 {
			return 0, fmt.Errorf("failed to convert %v to int: out of range", t)
		}

		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to convert '%s' to int: %w", t, err)
		}

		return i, nil
	default:
		return 0, fmt.Errorf("failed to convert %v (%T) to int", v, v)
	}
}

// ToString renders a decoded webhook value as a trimmed string. Nil becomes "".
func ToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// FirstPresent returns the value of the first key found in fields.
func FirstPresent(fields map[string]interface{}, keys ...string) (string, interface{}, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}

			return k, v, true
		}
	}

	if len(keys) > 0 {
		return keys[0], nil, false
	}

	return "", nil, false
}
