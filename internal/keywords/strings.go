package keywords

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/generalbots/botcore/internal/expr"
)

// RegisterStringHelpers wires the string-helper and formatting verbs
// from spec.md §4.4's "String helpers and SWITCH runtime" group. None
// of these are side-effecting.
func RegisterStringHelpers(e *expr.Engine) error {
	helpers := map[string]expr.Handler{
		"INSTR":      vInstr,
		"IS_NUMERIC": vIsNumeric,
		"UPPER":      unary(strings.ToUpper),
		"LOWER":      unary(strings.ToLower),
		"LEN":        vLen,
		"TRIM":       unary(strings.TrimSpace),
		"LTRIM":      unary(func(s string) string { return strings.TrimLeft(s, " \t\n\r") }),
		"RTRIM":      unary(func(s string) string { return strings.TrimRight(s, " \t\n\r") }),
		"LEFT":       vLeft,
		"RIGHT":      vRight,
		"MID":        vMid,
		"REPLACE":    vReplace,
		"FIRST":      vFirst,
		"LAST":       vLast,
		"FORMAT":     vFormat,
	}
	for name, h := range helpers {
		if err := e.RegisterSyntax(name, false, h); err != nil {
			return fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return nil
}

func unary(f func(string) string) expr.Handler {
	return func(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func stringArg(args []expr.Value, i int) (string, error) {
	if i >= len(args) {
		return "", NewError(KindInvalidArgument, "missing argument")
	}
	return toString(args[i]), nil
}

func toString(v expr.Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt(v expr.Value) (int, bool) {
	switch t := v.(type) {
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

// vInstr implements both INSTR(hay, needle) and INSTR(start, hay, needle),
// 1-indexed with 0 on not-found.
func vInstr(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	switch len(args) {
	case 2:
		hay, needle := toString(args[0]), toString(args[1])
		idx := strings.Index(hay, needle)
		if idx < 0 {
			return int64(0), nil
		}
		return int64(idx + 1), nil
	case 3:
		start, ok := toInt(args[0])
		if !ok || start < 1 {
			return nil, NewError(KindInvalidArgument, "INSTR start must be a positive integer")
		}
		hay, needle := toString(args[1]), toString(args[2])
		if start > len(hay) {
			return int64(0), nil
		}
		idx := strings.Index(hay[start-1:], needle)
		if idx < 0 {
			return int64(0), nil
		}
		return int64(start + idx), nil
	default:
		return nil, NewError(KindInvalidArgument, "INSTR takes 2 or 3 arguments")
	}
}

func vIsNumeric(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	s, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	_, parseErr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return parseErr == nil, nil
}

func vLen(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) == 0 {
		return nil, NewError(KindInvalidArgument, "LEN requires an argument")
	}
	if list, ok := args[0].([]expr.Value); ok {
		return int64(len(list)), nil
	}
	return int64(len([]rune(toString(args[0])))), nil
}

func vLeft(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "LEFT requires (s, n)")
	}
	s := []rune(toString(args[0]))
	n, ok := toInt(args[1])
	if !ok || n < 0 {
		return nil, NewError(KindInvalidArgument, "LEFT length must be a non-negative integer")
	}
	if n > len(s) {
		n = len(s)
	}
	return string(s[:n]), nil
}

func vRight(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "RIGHT requires (s, n)")
	}
	s := []rune(toString(args[0]))
	n, ok := toInt(args[1])
	if !ok || n < 0 {
		return nil, NewError(KindInvalidArgument, "RIGHT length must be a non-negative integer")
	}
	if n > len(s) {
		n = len(s)
	}
	return string(s[len(s)-n:]), nil
}

// vMid implements 1-indexed MID(s, start[, length]).
func vMid(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewError(KindInvalidArgument, "MID requires (s, start[, length])")
	}
	s := []rune(toString(args[0]))
	start, ok := toInt(args[1])
	if !ok || start < 1 {
		return nil, NewError(KindInvalidArgument, "MID start must be a positive integer")
	}
	if start > len(s) {
		return "", nil
	}
	length := len(s) - (start - 1)
	if len(args) == 3 {
		l, ok := toInt(args[2])
		if !ok || l < 0 {
			return nil, NewError(KindInvalidArgument, "MID length must be a non-negative integer")
		}
		if l < length {
			length = l
		}
	}
	return string(s[start-1 : start-1+length]), nil
}

func vReplace(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "REPLACE requires (s, old, new)")
	}
	return strings.ReplaceAll(toString(args[0]), toString(args[1]), toString(args[2])), nil
}

func vFirst(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "FIRST requires a list argument")
	}
	list, ok := args[0].([]expr.Value)
	if !ok || len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func vLast(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "LAST requires a list argument")
	}
	list, ok := args[0].([]expr.Value)
	if !ok || len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func vFormat(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "FORMAT requires (value, pattern)")
	}
	return FormatValue(args[0], toString(args[1]))
}
