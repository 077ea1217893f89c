package rules

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// paramFloat reads an optional numeric parameter. The second return is false
// when the key is absent; a present but non-numeric value is an error.
func paramFloat(params map[string]any, key string) (float64, bool, error) {
	v, ok := params[key]
	if !ok {
		return 0, false, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false, fmt.Errorf("param %s: %w", key, err)
	}
	return f, true, nil
}

// paramInt reads an optional integer parameter. The second return is false
// when the key is absent; a present but non-integer value is an error.
func paramInt(params map[string]any, key string) (int, bool, error) {
	v, ok := params[key]
	if !ok {
		return 0, false, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, false, fmt.Errorf("param %s: %w", key, err)
	}
	return n, true, nil
}

// paramString reads a required string parameter.
func paramString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("param missing: %s", key)
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return "", fmt.Errorf("param %s must be a non-empty string", key)
	}
	return s, nil
}

// paramSlice reads a required non-empty list parameter.
func paramSlice(params map[string]any, key string) ([]any, error) {
	v, ok := params[key]
	if !ok {
		return nil, fmt.Errorf("param missing: %s", key)
	}
	s, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", key, err)
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("param %s must not be empty", key)
	}
	return s, nil
}

// paramTime reads an optional timestamp parameter in any accepted layout.
func paramTime(params map[string]any, key string) (time.Time, bool, error) {
	v, ok := params[key]
	if !ok {
		return time.Time{}, false, nil
	}
	t, ok := coerceTime(v)
	if !ok {
		return time.Time{}, false, fmt.Errorf("param %s: cannot parse %v as a timestamp", key, v)
	}
	return t, true, nil
}

// timeLayouts are the accepted textual timestamp forms, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceTime converts a cell or parameter value to a time.
func coerceTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
