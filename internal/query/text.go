package query

import (
	"fmt"
	"strconv"
	"time"

	"ctxview/internal/event"
)

// NotApplicable is the text of an absent value.
const NotApplicable = "N/A"

// TimeLayout is the layout used for instants.
const TimeLayout = "15:04:05.000000"

// Text formats a value for display and for filter comparison.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return NotApplicable
	case string:
		return x
	case time.Duration:
		return x.String()
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case *event.Thread:
		if x == nil {
			return NotApplicable
		}
		return x.Name
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
