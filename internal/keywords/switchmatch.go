package keywords

import (
	"fmt"
	"math"

	"github.com/generalbots/botcore/internal/expr"
)

const floatEpsilon = 1e-9

// RegisterSwitchRuntime wires __switch_match, the equality helper C2's
// SWITCH lowering emits calls to: strings compare exactly, integers
// compare exactly, floats compare within floatEpsilon, and an int
// compared against a float cross-compares numerically.
func RegisterSwitchRuntime(e *expr.Engine) error {
	if err := e.RegisterSyntax("__switch_match", false, vSwitchMatch); err != nil {
		return fmt.Errorf("keywords: register __switch_match: %w", err)
	}
	return nil
}

func vSwitchMatch(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "__switch_match requires exactly 2 arguments")
	}
	return switchMatch(args[0], args[1]), nil
}

func switchMatch(a, b expr.Value) bool {
	af, aIsNum := numericValue(a)
	bf, bIsNum := numericValue(b)
	if aIsNum && bIsNum {
		return math.Abs(af-bf) < floatEpsilon
	}
	if aIsNum != bIsNum {
		return false
	}
	return toString(a) == toString(b)
}

func numericValue(v expr.Value) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
