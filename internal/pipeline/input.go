package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Placeholder replaces inputs that are empty after trimming, so the model
// always sees at least one token.
const Placeholder = " "

// NormalizeInput coerces a decoded JSON input value into a non-empty,
// ordered batch of trimmed strings.
//
// A single value becomes a batch of one. Arrays keep their order. Non-string
// values are converted to their JSON text. Elements that are null, empty or
// whitespace become Placeholder. It never fails.
func NormalizeInput(raw interface{}) []string {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []string:
		items = make([]interface{}, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		items = []interface{}{v}
	}

	if len(items) == 0 {
		return []string{Placeholder}
	}

	out := make([]string, len(items))
	for i, item := range items {
		s := strings.TrimSpace(stringify(item))
		if s == "" {
			s = Placeholder
		}
		out[i] = s
	}
	return out
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
