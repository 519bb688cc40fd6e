package gojabridge

import (
	"math/big"
	"reflect"
	"strings"

	"github.com/dop251/goja"
)

// describe names the script shape of v, for error messages.
func (m *Module) describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if _, ok := v.(*goja.Symbol); ok {
		return "symbol"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		switch v.Export().(type) {
		case bool:
			return "boolean"
		case int64, float64:
			return "number"
		case string:
			return "string"
		case *big.Int:
			return "bigint"
		}
		return v.String()
	}
	if h := m.handleOf(obj); h != nil {
		return h.class.name + " instance"
	}
	if mem := m.memberOf(obj); mem != nil {
		return "enum " + mem.family.name
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return "function"
	}
	switch obj.ExportType() {
	case bytesGoType:
		return "Uint8Array"
	case arrayBufferGoType:
		return "ArrayBuffer"
	}
	switch obj.ClassName() {
	case "Array":
		return "array"
	case "Object":
		return "object"
	}
	return strings.ToLower(obj.ClassName())
}

var (
	bytesGoType       = reflect.TypeFor[[]byte]()
	arrayBufferGoType = reflect.TypeFor[goja.ArrayBuffer]()
	plainObjectGoType = reflect.TypeFor[map[string]any]()
)

// isBytesObject reports whether obj is a Uint8Array or an ArrayBuffer.
func isBytesObject(obj *goja.Object) bool {
	switch obj.ExportType() {
	case bytesGoType, arrayBufferGoType:
		return true
	}
	return false
}

// isPlainObject reports whether obj is usable as a mapping: an ordinary
// object which is neither an instance nor an enum member. Typed arrays and
// buffers share the Object class, but not the export type.
func (m *Module) isPlainObject(obj *goja.Object) bool {
	if obj.ClassName() != "Object" || obj.ExportType() != plainObjectGoType {
		return false
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return false
	}
	return m.handleOf(obj) == nil && m.memberOf(obj) == nil
}

func isArray(v goja.Value) (*goja.Object, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, false
	}
	return obj, true
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

// exportString returns the value of a string primitive. Symbols export as
// their description, so they are excluded.
func exportString(v goja.Value) (string, bool) {
	switch v.(type) {
	case *goja.Object, *goja.Symbol:
		return "", false
	}
	s, ok := v.Export().(string)
	return s, ok
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// matches is the structural predicate used to discriminate variant
// alternatives. It is shallow: a match is confirmed by a full conversion.
func (m *Module) matches(v goja.Value, t *Type) bool {
	if isNullish(v) {
		return t.kind == KindOptional
	}
	obj, isObj := v.(*goja.Object)
	switch t.kind {
	case KindBool:
		_, ok := v.Export().(bool)
		return !isObj && ok
	case KindInt:
		return !isObj && isIntegral(v.Export())
	case KindFloat:
		if isObj {
			return false
		}
		switch v.Export().(type) {
		case int64, float64:
			return true
		}
		return false
	case KindString:
		_, ok := exportString(v)
		return ok
	case KindBytes:
		return isObj && isBytesObject(obj)
	case KindOptional:
		return m.matches(v, t.elem)
	case KindSequence:
		_, ok := isArray(v)
		return ok
	case KindPair:
		arr, ok := isArray(v)
		return ok && arr.Get("length").ToInteger() == 2
	case KindMapping:
		return isObj && m.isPlainObject(obj)
	case KindEnum:
		if mem := m.memberOf(v); mem != nil {
			return mem.family.name == t.family
		}
		return !isObj && isIntegral(v.Export())
	case KindClass:
		h := m.handleOf(v)
		return h != nil && h.class.IsSubclassOf(t.class)
	case KindVariant:
		for _, alt := range t.alts {
			if m.matches(v, alt) {
				return true
			}
		}
	}
	return false
}
