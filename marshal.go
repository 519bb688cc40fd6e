package gojabridge

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// ToScript converts native, whose Go type must be the payload type of t, to
// a script value. Class instances become borrowed views: the native side
// remains responsible for keeping them alive.
//
// Recoverable failures return a *[ConversionError]. A native value which
// does not match its declaration panics with a *[TypeContractViolation].
func (m *Module) ToScript(native any, t *Type) (goja.Value, error) {
	return m.toScriptAny(native, t, false)
}

// ToScriptOwned is like [Module.ToScript], but a top level class instance
// is owned by the returned handle: it is released once the handle is
// collected, or on [Module.Release]. t must declare a class, or an
// optional class.
func (m *Module) ToScriptOwned(native any, t *Type) (goja.Value, error) {
	mustDeclared(t, "ToScriptOwned")
	if t.kind != KindClass && !(t.kind == KindOptional && t.elem.kind == KindClass) {
		m.violation("$", t, reflect.TypeOf(native), "owning conversion requires a class declaration")
	}
	return m.toScriptAny(native, t, true)
}

func (m *Module) toScriptAny(native any, t *Type, owning bool) (goja.Value, error) {
	mustDeclared(t, "ToScript")
	if t.kind == KindVariant {
		return m.toScript(reflect.ValueOf(&native).Elem(), t, "$", owning)
	}
	if native == nil {
		if t.kind == KindOptional {
			return goja.Null(), nil
		}
		m.violation("$", t, nil, "nil payload")
	}
	return m.toScript(reflect.ValueOf(native), t, "$", owning)
}

func (m *Module) toScript(v reflect.Value, t *Type, path string, owning bool) (goja.Value, error) {
	switch t.kind {
	case KindVariant:
		return m.variantToScript(v, t, path, owning)
	case KindClass:
		if v.Kind() != reflect.Pointer || m.classFor(v.Type(), t.class) == nil {
			m.violation(path, t, v.Type(), "not an instance of the class")
		}
		if v.IsNil() {
			m.violation(path, t, v.Type(), "nil instance")
		}
		return m.instanceToScript(v, m.classFor(v.Type(), t.class), path, owning)
	case KindOptional:
		if t.elem.kind == KindClass {
			if v.Kind() != reflect.Pointer || m.classFor(v.Type(), t.elem.class) == nil {
				m.violation(path, t, v.Type(), "not an instance of the class")
			}
			if v.IsNil() {
				return goja.Null(), nil
			}
			return m.instanceToScript(v, m.classFor(v.Type(), t.elem.class), path, owning)
		}
	}

	if v.Type() != t.goType {
		m.violation(path, t, v.Type(), "")
	}

	switch t.kind {
	case KindBool:
		return m.runtime.ToValue(v.Bool()), nil

	case KindInt:
		if v.CanInt() {
			return m.int64ToGoja(v.Int()), nil
		}
		return m.uint64ToGoja(v.Uint()), nil

	case KindFloat:
		return m.runtime.ToValue(v.Float()), nil

	case KindString:
		if t.text {
			s, err := marshalText(v)
			if err != nil {
				return nil, newConversionError(path, t.String(), v.Type().String(), err)
			}
			return m.runtime.ToValue(s), nil
		}
		return m.runtime.ToValue(v.String()), nil

	case KindBytes:
		return m.newUint8Array(v.Bytes()), nil

	case KindOptional:
		if v.IsNil() {
			return goja.Null(), nil
		}
		return m.toScript(v.Elem(), t.elem, path, false)

	case KindSequence:
		values := make([]any, v.Len())
		for i := range values {
			item, err := m.toScript(v.Index(i), t.elem, indexPath(path, i), false)
			if err != nil {
				return nil, err
			}
			values[i] = item
		}
		return m.runtime.NewArray(values...), nil

	case KindMapping:
		return m.mappingToScript(v, t, path)

	case KindPair:
		key, err := m.toScript(v.Field(0), t.key, indexPath(path, 0), false)
		if err != nil {
			return nil, err
		}
		value, err := m.toScript(v.Field(1), t.value, indexPath(path, 1), false)
		if err != nil {
			return nil, err
		}
		return m.runtime.NewArray(key, value), nil

	case KindEnum:
		var (
			mem *Member
			err error
		)
		if v.CanInt() {
			mem, err = m.registry.Resolve(t.family, v.Int())
		} else if u := v.Uint(); u <= 1<<63-1 {
			mem, err = m.registry.Resolve(t.family, int64(u))
		} else {
			err = fmt.Errorf("gojabridge: enum %s has no member with value %d: %w", t.family, u, ErrUnknownMember)
		}
		if err != nil {
			m.logUnknownMember(path, t, err)
			return nil, newConversionError(path, t.String(), fmt.Sprintf("%v", v.Interface()), ErrUnknownMember)
		}
		return m.memberObject(mem), nil
	}

	panic(fmt.Sprintf("gojabridge: unhandled kind %s", t.kind))
}

func (m *Module) variantToScript(v reflect.Value, t *Type, path string, owning bool) (goja.Value, error) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			for _, alt := range t.alts {
				if alt.kind == KindOptional {
					return goja.Null(), nil
				}
			}
			return nil, newConversionError(path, t.String(), "nil", ErrUnknownVariantAlternative)
		}
		v = v.Elem()
	}
	for _, alt := range t.alts {
		if m.acceptsGoType(alt, v.Type()) {
			return m.toScript(v, alt, path, owning)
		}
	}
	return nil, newConversionError(path, t.String(), v.Type().String(), ErrUnknownVariantAlternative)
}

// acceptsGoType reports whether a native value of type rt is a payload of t.
func (m *Module) acceptsGoType(t *Type, rt reflect.Type) bool {
	switch {
	case t.kind == KindClass:
		return m.classFor(rt, t.class) != nil
	case t.kind == KindOptional && t.elem.kind == KindClass:
		return m.classFor(rt, t.elem.class) != nil
	}
	return rt == t.goType
}

func (m *Module) mappingToScript(v reflect.Value, t *Type, path string) (goja.Value, error) {
	type entry struct {
		key   string
		value goja.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := m.keyToString(iter.Key(), t.key, path)
		if err != nil {
			return nil, err
		}
		value, err := m.toScript(iter.Value(), t.value, keyPath(path, key), false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: key, value: value})
	}
	slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.key, b.key) })

	obj := m.runtime.NewObject()
	for _, e := range entries {
		if err := obj.DefineDataProperty(e.key, e.value, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return nil, newConversionError(keyPath(path, e.key), t.String(), "key "+strconv.Quote(e.key), err)
		}
	}
	return obj, nil
}

// keyToString stringifies a mapping key without loss, or fails with
// ErrUnrepresentableKey.
func (m *Module) keyToString(k reflect.Value, t *Type, path string) (string, error) {
	switch t.kind {
	case KindString:
		if t.text {
			s, err := marshalText(k)
			if err != nil {
				return "", newConversionError(path, t.String(), k.Type().String(), fmt.Errorf("%w: %w", ErrUnrepresentableKey, err))
			}
			return s, nil
		}
		return k.String(), nil
	case KindInt:
		if k.CanInt() {
			return strconv.FormatInt(k.Int(), 10), nil
		}
		return strconv.FormatUint(k.Uint(), 10), nil
	case KindBool:
		return strconv.FormatBool(k.Bool()), nil
	}
	return "", newConversionError(path, t.String(), k.Type().String(), ErrUnrepresentableKey)
}

func marshalText(v reflect.Value) (string, error) {
	b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// textKey reports whether keys of type rt convert through their text form.
func textKey(rt reflect.Type) bool {
	return rt.Implements(reflect.TypeFor[encoding.TextMarshaler]()) &&
		reflect.PointerTo(rt).Implements(reflect.TypeFor[encoding.TextUnmarshaler]())
}

func (m *Module) instanceToScript(v reflect.Value, c *Class, path string, owning bool) (goja.Value, error) {
	obj, err := m.wrapInstance(c, v, owning)
	if err != nil {
		return nil, newConversionError(path, "class "+c.name, v.Type().String(), err)
	}
	return obj, nil
}

// wrapInstance creates a script view of v, an instance of exactly c.
func (m *Module) wrapInstance(c *Class, v reflect.Value, owning bool) (*goja.Object, error) {
	b := m.bindClass(c)
	h, err := m.newHandle(c, v, owning)
	if err != nil {
		return nil, err
	}
	obj := m.runtime.CreateObject(b.proto)
	_ = obj.DefineDataPropertySymbol(m.handleSym, m.runtime.ToValue(h), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return obj, nil
}

// violation logs and panics with a *TypeContractViolation.
func (m *Module) violation(path string, t *Type, actual reflect.Type, reason string) {
	e := &TypeContractViolation{
		Path:     path,
		Declared: t.String(),
		Actual:   "nil",
		Reason:   reason,
	}
	if actual != nil {
		e.Actual = actual.String()
	}
	m.logContractViolation(e)
	panic(e)
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func keyPath(path string, key string) string {
	return path + "[" + strconv.Quote(key) + "]"
}
