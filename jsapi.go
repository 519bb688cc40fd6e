package gojabridge

import (
	"github.com/dop251/goja"
)

// jsEnumType is the JS-facing implementation of bridge.enumType(family).
// It returns the frozen family object, throwing a TypeError if the family
// is not registered.
func (m *Module) jsEnumType(call goja.FunctionCall) goja.Value {
	family := call.Argument(0).String()
	obj, err := m.EnumObject(family)
	if err != nil {
		panic(m.runtime.NewTypeError("enum type %q not found", family))
	}
	return obj
}

// jsFamilyOf is the JS-facing implementation of bridge.familyOf(member).
func (m *Module) jsFamilyOf(call goja.FunctionCall) goja.Value {
	mem := m.memberOf(call.Argument(0))
	if mem == nil {
		panic(m.runtime.NewTypeError("familyOf: expected an enum member, got %s", m.describe(call.Argument(0))))
	}
	return m.runtime.ToValue(FamilyOf(mem))
}

// jsIsEnumMember is the JS-facing implementation of
// bridge.isEnumMember(value[, family]).
func (m *Module) jsIsEnumMember(call goja.FunctionCall) goja.Value {
	mem := m.memberOf(call.Argument(0))
	if mem == nil {
		return m.runtime.ToValue(false)
	}
	if family := call.Argument(1); !goja.IsUndefined(family) {
		return m.runtime.ToValue(mem.family.name == family.String())
	}
	return m.runtime.ToValue(true)
}

// jsIsInstance is the JS-facing implementation of
// bridge.isInstance(value[, className]). Instances of subclasses are
// instances of their base classes.
func (m *Module) jsIsInstance(call goja.FunctionCall) goja.Value {
	h := m.handleOf(call.Argument(0))
	if h == nil {
		return m.runtime.ToValue(false)
	}
	name := call.Argument(1)
	if goja.IsUndefined(name) {
		return m.runtime.ToValue(true)
	}
	for c := h.class; c != nil; c = c.base {
		if c.name == name.String() {
			return m.runtime.ToValue(true)
		}
	}
	return m.runtime.ToValue(false)
}

// jsClassType is the JS-facing implementation of bridge.classType(name).
func (m *Module) jsClassType(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	c := m.classNames[name]
	if c == nil {
		panic(m.runtime.NewTypeError("class type %q not found", name))
	}
	return m.classes[c].ctor
}

// jsRelease is the JS-facing implementation of bridge.release(instance).
func (m *Module) jsRelease(call goja.FunctionCall) goja.Value {
	if err := m.Release(call.Argument(0)); err != nil {
		panic(m.runtime.NewTypeError("release: %s", err))
	}
	return goja.Undefined()
}

// jsLoadDescriptorSet is the JS-facing implementation of
// bridge.loadDescriptorSet(bytes). It registers every enum of a serialized
// FileDescriptorSet and returns their family names.
func (m *Module) jsLoadDescriptorSet(call goja.FunctionCall) goja.Value {
	data, err := extractBytes(call.Argument(0))
	if err != nil {
		panic(m.runtime.NewTypeError("loadDescriptorSet: %s", err))
	}
	names, err := m.LoadDescriptorSetBytes(data)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = name
	}
	return m.runtime.NewArray(values...)
}
