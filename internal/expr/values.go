package expr

import "github.com/dop251/goja"

// ToGoValue converts a goja.Value to the neutral Value representation
// (map[string]any / []any / string / int64 for integral numbers and
// float64 otherwise / bool / nil) the keyword library operates on.
func ToGoValue(v goja.Value) Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

// ToJSValue is the inverse of ToGoValue; goja.Runtime.ToValue already
// handles the neutral representation directly, so this is an identity
// hook kept for call-site symmetry and future normalization (e.g.
// canonicalizing numeric types before they cross back into JS).
func ToJSValue(v Value) any {
	return v
}
