package gojabridge

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

// ToNative converts v to a new native value of the payload type of t. The
// whole value tree is validated and built before anything is returned, so
// a failed conversion has no native side effects. Failures are returned as
// *[ConversionError].
func (m *Module) ToNative(v goja.Value, t *Type) (any, error) {
	mustDeclared(t, "ToNative")
	r, err := m.toNative(v, t, "$")
	if err != nil {
		return nil, err
	}
	return r.Interface(), nil
}

// ToNativeInto is like [Module.ToNative], but stores the result in dst,
// which must be a non-nil pointer to the payload type of t. dst is only
// written on success.
func (m *Module) ToNativeInto(v goja.Value, t *Type, dst any) error {
	mustDeclared(t, "ToNativeInto")
	d := reflect.ValueOf(dst)
	if d.Kind() != reflect.Pointer || d.IsNil() || d.Elem().Type() != t.goType {
		m.violation("$", t, reflect.TypeOf(dst), "destination must be a non-nil pointer to the payload type")
	}
	r, err := m.toNative(v, t, "$")
	if err != nil {
		return err
	}
	d.Elem().Set(r)
	return nil
}

// ToNativeAs is the typed form of [Module.ToNative]. T must be the payload
// type of t.
func ToNativeAs[T any](m *Module, v goja.Value, t *Type) (T, error) {
	var zero T
	mustDeclared(t, "ToNativeAs")
	if reflect.TypeFor[T]() != t.goType {
		m.violation("$", t, reflect.TypeFor[T](), "type parameter is not the payload type")
	}
	r, err := m.toNative(v, t, "$")
	if err != nil {
		return zero, err
	}
	if !r.IsValid() || (r.Kind() == reflect.Interface && r.IsNil()) {
		return zero, nil
	}
	return r.Interface().(T), nil
}

const maxSequencePrealloc = 1024

func (m *Module) toNative(v goja.Value, t *Type, path string) (reflect.Value, error) {
	if v == nil {
		v = goja.Undefined()
	}
	fail := func(err error) (reflect.Value, error) {
		return reflect.Value{}, newConversionError(path, t.String(), m.describe(v), err)
	}

	switch t.kind {
	case KindOptional:
		if isNullish(v) {
			return reflect.Zero(t.goType), nil
		}
		x, err := m.toNative(v, t.elem, path)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.elem.kind == KindClass {
			return x, nil
		}
		p := reflect.New(t.elem.goType)
		p.Elem().Set(x)
		return p, nil

	case KindVariant:
		return m.variantToNative(v, t, path)
	}

	if isNullish(v) {
		return fail(ErrShapeMismatch)
	}
	obj, isObj := v.(*goja.Object)

	switch t.kind {
	case KindBool:
		b, ok := v.Export().(bool)
		if isObj || !ok {
			return fail(ErrShapeMismatch)
		}
		return reflect.ValueOf(b), nil

	case KindInt:
		if isObj || !isIntegral(v.Export()) {
			return fail(ErrShapeMismatch)
		}
		r := reflect.New(t.goType).Elem()
		if r.CanInt() {
			i, ok := gojaToInt64(v.Export())
			if !ok || r.OverflowInt(i) {
				return fail(ErrOutOfRange)
			}
			r.SetInt(i)
		} else {
			u, ok := gojaToUint64(v.Export())
			if !ok || r.OverflowUint(u) {
				return fail(ErrOutOfRange)
			}
			r.SetUint(u)
		}
		return r, nil

	case KindFloat:
		if isObj {
			return fail(ErrShapeMismatch)
		}
		var f float64
		switch x := v.Export().(type) {
		case int64:
			f = float64(x)
		case float64:
			f = x
		default:
			return fail(ErrShapeMismatch)
		}
		r := reflect.New(t.goType).Elem()
		if r.OverflowFloat(f) {
			return fail(ErrOutOfRange)
		}
		r.SetFloat(f)
		return r, nil

	case KindString:
		s, ok := exportString(v)
		if !ok {
			return fail(ErrShapeMismatch)
		}
		if t.text {
			p := reflect.New(t.goType)
			if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
				return fail(fmt.Errorf("%w: %w", ErrShapeMismatch, err))
			}
			return p.Elem(), nil
		}
		return reflect.ValueOf(s), nil

	case KindBytes:
		if !isObj || !isBytesObject(obj) {
			return fail(ErrShapeMismatch)
		}
		b, err := extractBytes(obj)
		if err != nil {
			return fail(fmt.Errorf("%w: %w", ErrShapeMismatch, err))
		}
		return reflect.ValueOf(b), nil

	case KindSequence:
		arr, ok := isArray(v)
		if !ok {
			return fail(ErrShapeMismatch)
		}
		// length is script controlled, so the slice grows with the
		// converted elements rather than being sized up front
		n := int(arr.Get("length").ToInteger())
		out := reflect.MakeSlice(t.goType, 0, min(n, maxSequencePrealloc))
		for i := 0; i < n; i++ {
			x, err := m.toNative(arr.Get(strconv.Itoa(i)), t.elem, indexPath(path, i))
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, x)
		}
		return out, nil

	case KindPair:
		arr, ok := isArray(v)
		if !ok {
			return fail(ErrShapeMismatch)
		}
		if arr.Get("length").ToInteger() != 2 {
			return fail(ErrArity)
		}
		key, err := m.toNative(arr.Get("0"), t.key, indexPath(path, 0))
		if err != nil {
			return reflect.Value{}, err
		}
		value, err := m.toNative(arr.Get("1"), t.value, indexPath(path, 1))
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t.goType).Elem()
		out.Field(0).Set(key)
		out.Field(1).Set(value)
		return out, nil

	case KindMapping:
		if !isObj || !m.isPlainObject(obj) {
			return fail(ErrShapeMismatch)
		}
		keys := obj.Keys()
		out := reflect.MakeMapWithSize(t.goType, len(keys))
		for _, k := range keys {
			kv, err := m.keyFromString(k, t.key, path)
			if err != nil {
				return reflect.Value{}, err
			}
			if out.MapIndex(kv).IsValid() {
				return reflect.Value{}, newConversionError(keyPath(path, k), t.key.String(), strconv.Quote(k), fmt.Errorf("%w: duplicate native key", ErrUnrepresentableKey))
			}
			x, err := m.toNative(obj.Get(k), t.value, keyPath(path, k))
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(kv, x)
		}
		return out, nil

	case KindEnum:
		return m.enumToNative(v, t, path)

	case KindClass:
		h := m.handleOf(v)
		if h == nil || !h.class.IsSubclassOf(t.class) {
			return fail(ErrShapeMismatch)
		}
		nat := h.native()
		if !nat.IsValid() {
			return fail(ErrReleased)
		}
		up, ok := h.class.convertTo(nat, t.class)
		if !ok {
			return fail(ErrShapeMismatch)
		}
		return up, nil
	}

	panic(fmt.Sprintf("gojabridge: unhandled kind %s", t.kind))
}

// variantToNative picks the first alternative, in declaration order, whose
// shape matches v and whose conversion succeeds.
func (m *Module) variantToNative(v goja.Value, t *Type, path string) (reflect.Value, error) {
	var first error
	for _, alt := range t.alts {
		if !m.matches(v, alt) {
			continue
		}
		x, err := m.toNative(v, alt, path)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		out := reflect.New(anyType).Elem()
		out.Set(x)
		return out, nil
	}
	err := ErrUnknownVariantAlternative
	if first != nil {
		err = fmt.Errorf("%w: %w", ErrUnknownVariantAlternative, first)
	}
	return reflect.Value{}, newConversionError(path, t.String(), m.describe(v), err)
}

func (m *Module) enumToNative(v goja.Value, t *Type, path string) (reflect.Value, error) {
	fail := func(err error) (reflect.Value, error) {
		return reflect.Value{}, newConversionError(path, t.String(), m.describe(v), err)
	}

	family := m.registry.Family(t.family)
	mem := m.memberOf(v)
	switch {
	case mem != nil:
		if family == nil || mem.family != family {
			return fail(ErrUnknownMember)
		}
	case !isObject(v) && isIntegral(v.Export()):
		i, ok := gojaToInt64(v.Export())
		if !ok {
			return fail(ErrUnknownMember)
		}
		var err error
		if mem, err = m.registry.Resolve(t.family, i); err != nil {
			m.logUnknownMember(path, t, err)
			return fail(ErrUnknownMember)
		}
	default:
		return fail(ErrShapeMismatch)
	}

	r := reflect.New(t.goType).Elem()
	if r.CanInt() {
		if r.OverflowInt(mem.value) {
			return fail(ErrOutOfRange)
		}
		r.SetInt(mem.value)
	} else {
		if mem.value < 0 || r.OverflowUint(uint64(mem.value)) {
			return fail(ErrOutOfRange)
		}
		r.SetUint(uint64(mem.value))
	}
	return r, nil
}

// keyFromString parses a mapping key, accepting only the canonical string
// form of the native key.
func (m *Module) keyFromString(s string, t *Type, path string) (reflect.Value, error) {
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, newConversionError(keyPath(path, s), t.String(), strconv.Quote(s), ErrUnrepresentableKey)
	}
	r := reflect.New(t.goType).Elem()
	switch t.kind {
	case KindString:
		if t.text {
			if err := r.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
				return fail()
			}
			return r, nil
		}
		r.SetString(s)
		return r, nil
	case KindInt:
		if r.CanInt() {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil || strconv.FormatInt(i, 10) != s || r.OverflowInt(i) {
				return fail()
			}
			r.SetInt(i)
		} else {
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil || strconv.FormatUint(u, 10) != s || r.OverflowUint(u) {
				return fail()
			}
			r.SetUint(u)
		}
		return r, nil
	case KindBool:
		switch s {
		case "true":
			r.SetBool(true)
		case "false":
		default:
			return fail()
		}
		return r, nil
	}
	return fail()
}
