package gateway

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimeLayout matches the text form SQLite's date functions produce, with
// optional fractional seconds and zone.
const TimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// QuoteIdent quotes an identifier for use in SQL text, doubling embedded
// double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdents quotes each name and joins them with ", ".
func QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// PlainColumns renders names as a select list of `+"col" AS "col"` items.
// The unary plus keeps every value as stored but drops the declared column
// type, so DATE, DATETIME and TIMESTAMP text is not turned into time.Time by
// the driver.
func PlainColumns(names []string) string {
	items := make([]string, len(names))
	for i, n := range names {
		q := QuoteIdent(n)
		items[i] = "+" + q + " AS " + q
	}
	return strings.Join(items, ", ")
}

// FormatValue renders a scalar the way it is shown in the console and
// written to CSV. NULL renders as the empty string; blobs that are not
// valid UTF-8 render as hex.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return hex.EncodeToString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return val.Format(TimeLayout)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// TypeName returns the SQLite storage class of a scanned value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int64, bool:
		return "integer"
	case float64:
		return "real"
	case []byte:
		return "blob"
	default:
		return "text"
	}
}
