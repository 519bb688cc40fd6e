package gojabridge

import (
	"fmt"
	"math"
	"math/big"

	"github.com/dop251/goja"
)

// Safe integer bounds of a script number.
const (
	maxSafeInteger = 1<<53 - 1
	minSafeInteger = -(1<<53 - 1)
)

// int64ToGoja converts an int64 to a JS value. Values within the safe
// integer range are returned as numbers; values outside use BigInt.
func (m *Module) int64ToGoja(v int64) goja.Value {
	if v >= minSafeInteger && v <= maxSafeInteger {
		return m.runtime.ToValue(v)
	}
	return m.runtime.ToValue(new(big.Int).SetInt64(v))
}

// uint64ToGoja converts a uint64 to a JS value. Values within the safe
// integer range are returned as numbers; values outside use BigInt.
func (m *Module) uint64ToGoja(v uint64) goja.Value {
	if v <= uint64(maxSafeInteger) {
		return m.runtime.ToValue(v)
	}
	return m.runtime.ToValue(new(big.Int).SetUint64(v))
}

// gojaToInt64 extracts an integral value from a number or BigInt.
// Fractional, non-finite and out of range values are rejected.
func gojaToInt64(exported any) (int64, bool) {
	switch x := exported.(type) {
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case *big.Int:
		if !x.IsInt64() {
			return 0, false
		}
		return x.Int64(), true
	}
	return 0, false
}

// gojaToUint64 is the unsigned variant of gojaToInt64.
func gojaToUint64(exported any) (uint64, bool) {
	switch x := exported.(type) {
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x < 0 || x >= math.MaxUint64 {
			return 0, false
		}
		return uint64(x), true
	case *big.Int:
		if !x.IsUint64() {
			return 0, false
		}
		return x.Uint64(), true
	}
	return 0, false
}

// isIntegral reports whether exported is a number or BigInt with no
// fractional part.
func isIntegral(exported any) bool {
	switch x := exported.(type) {
	case int64, *big.Int:
		return true
	case float64:
		return x == math.Trunc(x) && !math.IsInf(x, 0)
	}
	return false
}

// extractBytes copies the contents of a Uint8Array or ArrayBuffer. The
// native side never aliases script memory.
func extractBytes(val goja.Value) ([]byte, error) {
	obj, ok := val.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("expected Uint8Array or ArrayBuffer")
	}
	switch x := obj.Export().(type) {
	case goja.ArrayBuffer:
		return append([]byte{}, x.Bytes()...), nil
	case []byte:
		return append([]byte{}, x...), nil
	}
	return nil, fmt.Errorf("expected Uint8Array or ArrayBuffer, got %s", obj.ClassName())
}

// newUint8Array creates a JavaScript Uint8Array holding a copy of data.
func (m *Module) newUint8Array(data []byte) goja.Value {
	ab := m.runtime.NewArrayBuffer(append([]byte{}, data...))
	uint8ArrayCtor := m.runtime.Get("Uint8Array")
	if uint8ArrayCtor == nil || goja.IsUndefined(uint8ArrayCtor) {
		return m.runtime.ToValue(ab)
	}
	result, err := m.runtime.New(uint8ArrayCtor, m.runtime.ToValue(ab))
	if err != nil {
		return m.runtime.ToValue(ab)
	}
	return result
}
