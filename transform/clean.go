package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
)

// MaxPhoneLen is the longest normalized phone number: "+966" followed by 12 digits.
const MaxPhoneLen = 16

// CleanPhone normalizes a contact number. It keeps digits and '+', strips
// leading zeros and infers the country prefix from the first digit: '5' is a
// Saudi mobile ("+966" + up to 12 digits), '9' already carries a country code
// ("+" + up to 14 digits). Anything else is cut to 15 characters. Numbers that
// are already prefixed with '+' keep up to MaxPhoneLen characters, which makes
// the function a fixed point on its own output. Empty results are nil.
func CleanPhone(v any) any {
	s, ok := asString(v)
	if !ok {
		return nil
	}

	var b strings.Builder
	for _, r := range s {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	num := strings.TrimLeft(b.String(), "0")
	if num == "" {
		return nil
	}

	switch num[0] {
	case '5':
		return "+966" + truncate(num, 12)
	case '9':
		return "+" + truncate(num, 14)
	case '+':
		return truncate(num, MaxPhoneLen)
	default:
		return truncate(num, 15)
	}
}

// legacy date layouts, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2 2006 3:04PM",
	"Jan 2 2006 3:04:05PM",
	"Jan 2 2006 3:04:05:000PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
}

// ParseTime converts driver and legacy string values to time.Time. Unparseable
// values yield false.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return ParseTime(*t)
	}

	s, ok := asString(v)
	if !ok {
		return time.Time{}, false
	}
	// SQL Server pads single-digit days with a second space ("May  9 2020").
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var clockLayouts = []string{"15:04", "15:04:05", "15:04:05.9999999", "3:04PM", "3:04 PM", "3:04:05 PM"}

// CleanClock renders a time of day as HH:MM.
func CleanClock(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format("15:04")
	}
	s, ok := asString(v)
	if !ok {
		return nil
	}
	s = strings.ToUpper(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	if t, ok := ParseTime(s); ok {
		return t.Format("15:04")
	}
	return nil
}

// CleanInt coerces v to int64; malformed values are nil.
func CleanInt(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	if n, ok := etl.AsInt64(v); ok {
		return n
	}
	return nil
}

// CleanDecimal coerces v to float64, rounds it to round decimals when round
// is non-nil and nulls values whose magnitude exceeds maxAbs when positive.
func CleanDecimal(v any, round *int, maxAbs float64) any {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	if round != nil {
		p := math.Pow(10, float64(*round))
		f = math.Round(f*p) / p
	}
	if maxAbs > 0 && math.Abs(f) > maxAbs {
		return nil
	}
	return f
}

// CleanBool coerces v to bool; malformed values are nil.
func CleanBool(v any) any {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return nil
	}
	if n, ok := etl.AsInt64(v); ok {
		return n != 0
	}
	s, ok := asString(v)
	if !ok {
		return nil
	}
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y":
		return true
	case "false", "f", "no", "n":
		return false
	}
	return nil
}

// CleanString trims v; empty strings and any of nullTokens become nil.
// maxLen truncates by runes when positive; the cut is trimmed again.
func CleanString(v any, nullTokens []string, maxLen int) any {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	for _, token := range nullTokens {
		if s == token {
			return nil
		}
	}
	if maxLen > 0 {
		s = strings.TrimSpace(truncateRunes(s, maxLen))
	}
	return s
}

// CleanDisplay trims v without ever nulling it: nil becomes "".
func CleanDisplay(v any, maxLen int) any {
	s, ok := asString(v)
	if !ok {
		return ""
	}
	if maxLen > 0 {
		s = strings.TrimSpace(truncateRunes(s, maxLen))
	}
	return s
}

// LookupKey normalizes a lookup input: lower case without spaces.
func LookupKey(v any) (string, bool) {
	s, ok := asString(v)
	if !ok {
		return "", false
	}
	return strings.ToLower(strings.ReplaceAll(s, " ", "")), true
}

// Literal converts descriptor values decoded from YAML into row values.
func Literal(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// asString renders a scalar as trimmed text. Nil and blank values yield false.
func asString(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case []byte:
		s = string(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int:
		s = strconv.Itoa(x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		s = x.Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return asFloat(float64(x))
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	s, ok := asString(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return asFloat(f)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
