package mapping

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
)

// SerializeValue deterministically flattens a value to a scalar the
// destination's typed columns can hold:
//   - nil stays nil
//   - time.Time becomes an RFC 3339 string
//   - arrays become their elements serialized recursively, joined with ";"
//     (an empty array becomes "")
//   - plain objects become compact JSON
//   - bool, numbers and strings pass through unchanged
//
// The output is round-trip legible: a consumer can split on ";" or
// re-parse the JSON to recover structure.
func SerializeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []any:
		if len(t) == 0 {
			return ""
		}
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(SerializeValue(e))
		}
		return strings.Join(parts, ";")
	case map[string]any:
		return compactJSON(t)
	case record.Record:
		return compactJSON(map[string]any(t))
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func compactJSON(m map[string]any) any {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(b)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
