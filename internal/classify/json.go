package classify

import (
	"encoding/json"
	"fmt"
)

// jsonField extracts a top-level field from a JSON object body and renders
// it as text. Non-string values (the upstream sometimes nests lists and
// objects under "detail") are flattened so substring rules still apply.
// Returns "" for non-JSON bodies or absent fields.
func jsonField(body []byte, key string) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	v, ok := obj[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
