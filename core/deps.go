package core

import "reflect"

// depsEqual reports whether two dependency lists hold the same values by identity.
//
// Comparable values are compared with ==. Slices, maps, funcs and channels are
// compared by pointer, so a freshly built slice with equal contents still counts
// as a change.
func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameDep(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameDep(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
	if vx.Type() != vy.Type() {
		return false
	}
	if vx.Type().Comparable() {
		// Interface-typed fields inside structs can still hold uncomparable values.
		return safeEqual(x, y)
	}
	switch vx.Kind() {
	case reflect.Slice:
		return vx.Pointer() == vy.Pointer() && vx.Len() == vy.Len()
	case reflect.Map, reflect.Func:
		return vx.Pointer() == vy.Pointer()
	default:
		return false
	}
}

func safeEqual(x, y any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return x == y
}

// cloneDeps copies the dependency list so later caller mutation cannot leak in.
func cloneDeps(deps []any) []any {
	if deps == nil {
		return nil
	}
	out := make([]any, len(deps))
	copy(out, deps)
	return out
}
