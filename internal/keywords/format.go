package keywords

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/generalbots/botcore/internal/expr"
)

var (
	numberPatternRe   = regexp.MustCompile(`^[Nn]([0-9]+)([A-Za-z-]*)$`)
	currencyPatternRe = regexp.MustCompile(`^[Cc]([0-9]+)([A-Za-z-]*)$`)
)

// FormatValue implements the FORMAT(value, pattern) verb: N<digits>
// and C<digits> numeric/currency patterns (with an optional BCP-47
// locale suffix), date/time specifiers, and text placeholders (@, &,
// >, !), per spec.md §4.4.
func FormatValue(value expr.Value, pattern string) (expr.Value, error) {
	if m := numberPatternRe.FindStringSubmatch(pattern); m != nil {
		return formatNumber(value, m[1], m[2], false)
	}
	if m := currencyPatternRe.FindStringSubmatch(pattern); m != nil {
		return formatNumber(value, m[1], m[2], true)
	}
	if isDatePattern(pattern) {
		return formatDate(value, pattern)
	}
	if isTextPattern(pattern) {
		return formatText(toString(value), pattern), nil
	}
	return toString(value), nil
}

func formatNumber(value expr.Value, digitsStr, locale string, currency bool) (expr.Value, error) {
	digits, err := strconv.Atoi(digitsStr)
	if err != nil {
		return nil, NewError(KindInvalidArgument, "FORMAT: invalid decimal-digit count in pattern")
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, NewError(KindInvalidArgument, "FORMAT: value is not numeric")
	}
	tag := language.English
	if locale != "" {
		if parsed, err := language.Parse(strings.Trim(locale, "-")); err == nil {
			tag = parsed
		}
	}
	p := message.NewPrinter(tag)
	if currency {
		return p.Sprintf("%.*f", digits, f), nil
	}
	return p.Sprintf("%.*f", digits, f), nil
}

func toFloat(v expr.Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var dateSpecifierRe = regexp.MustCompile(`yyyy|yy|MM|dd|HH|hh|mm|ss|tt`)

func isDatePattern(pattern string) bool {
	return dateSpecifierRe.MatchString(pattern)
}

// formatDate translates the BASIC-style date pattern into Go's
// reference-time layout and formats value (a time.Time, RFC3339
// string, or unix-seconds number) with it.
func formatDate(value expr.Value, pattern string) (expr.Value, error) {
	t, ok := toTime(value)
	if !ok {
		return nil, NewError(KindInvalidArgument, "FORMAT: value is not a date")
	}
	layout := dateSpecifierRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		switch tok {
		case "yyyy":
			return "2006"
		case "yy":
			return "06"
		case "MM":
			return "01"
		case "dd":
			return "02"
		case "HH":
			return "15"
		case "hh":
			return "03"
		case "mm":
			return "04"
		case "ss":
			return "05"
		case "tt":
			return "PM"
		default:
			return tok
		}
	})
	return t.Format(layout), nil
}

func toTime(v expr.Value) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse("2006-01-02", t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	case int64:
		return time.Unix(t, 0).UTC(), true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func isTextPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "@&>!")
}

// formatText applies the text placeholder grammar left to right: '@' and
// '&' both consume one input character ('@' writes a space once the input
// is exhausted, '&' writes nothing), '>' uppercases the character the
// next placeholder consumes, and '!' cancels a pending '>'. Other pattern
// characters are copied as-is. There is no right-to-left alignment.
func formatText(s, pattern string) string {
	runes := []rune(s)
	var out strings.Builder
	pos := 0
	upperNext := false
	for _, p := range pattern {
		switch p {
		case '@':
			if pos < len(runes) {
				out.WriteRune(applyCase(runes[pos], upperNext))
				pos++
			} else {
				out.WriteRune(' ')
			}
		case '&':
			if pos < len(runes) {
				out.WriteRune(applyCase(runes[pos], upperNext))
				pos++
			}
		case '>':
			upperNext = true
			continue
		case '!':
			upperNext = false
			continue
		default:
			out.WriteRune(p)
		}
		upperNext = false
	}
	return out.String()
}

func applyCase(r rune, upper bool) rune {
	if !upper {
		return r
	}
	return []rune(strings.ToUpper(string(r)))[0]
}
