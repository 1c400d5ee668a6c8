package facts

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Amount coerces a model-extracted value into a currency figure. Values
// arrive as JSON numbers, quoted numbers, or garbage; anything unparsable
// is 0 so one bad field never fails a whole turn.
func Amount(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
