package model

import (
	"fmt"
	"strconv"
)

// QueryValue renders an arbitrary parameter value as query-string text.
// Booleans and numbers become their literal text ("true", "42", "1.5");
// strings pass through for the URL encoder to percent-encode. Nil values
// render empty so callers can drop them instead of emitting junk text.
func QueryValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
