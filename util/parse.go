package util

import (
	"strconv"
	"strings"
)

// FloatValueFromMap coerces the first present key of a decoded payload map
// into a float. Numeric strings are accepted; anything else yields nil,
// never an error, since payload blobs are not trusted.
func FloatValueFromMap(properties map[string]interface{}, keys ...string) *float64 {
	for _, key := range keys {
		value, exists := properties[key]
		if !exists || value == nil {
			continue
		}

		switch v := value.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// StringValueFromMap returns the first present, non-empty key of a decoded
// payload map as a string. Numbers marshalled as values are formatted back.
func StringValueFromMap(properties map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		value, exists := properties[key]
		if !exists || value == nil {
			continue
		}

		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
