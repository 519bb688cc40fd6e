package gojabridge

import (
	"github.com/dop251/goja"
)

// memberObject returns the script token of mem. Tokens are cached per
// module, so the same member is always the same object, and === holds.
func (m *Module) memberObject(mem *Member) *goja.Object {
	if obj := m.members[mem]; obj != nil {
		return obj
	}

	obj := m.runtime.NewObject()
	_ = obj.DefineDataProperty("$name", m.runtime.ToValue(mem.family.name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineDataProperty("name", m.runtime.ToValue(mem.name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineDataProperty("value", m.int64ToGoja(mem.value), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)

	str := m.runtime.ToValue(mem.String())
	_ = obj.DefineDataProperty("toString", m.runtime.ToValue(func(goja.FunctionCall) goja.Value {
		return str
	}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	value := m.int64ToGoja(mem.value)
	_ = obj.DefineDataProperty("valueOf", m.runtime.ToValue(func(goja.FunctionCall) goja.Value {
		return value
	}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)

	_ = obj.DefineDataPropertySymbol(m.memberSym, m.runtime.ToValue(mem), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	_ = obj.DefineDataPropertySymbol(goja.SymToStringTag, m.runtime.ToValue(mem.family.name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	m.freeze(obj)

	m.members[mem] = obj
	return obj
}

// familyObject returns the frozen script object of f, holding $name and
// every member token by name.
func (m *Module) familyObject(f *Family) *goja.Object {
	if obj := m.families[f]; obj != nil {
		return obj
	}

	obj := m.runtime.NewObject()
	_ = obj.DefineDataProperty("$name", m.runtime.ToValue(f.name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	for _, mem := range f.members {
		_ = obj.DefineDataProperty(mem.name, m.memberObject(mem), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	m.freeze(obj)

	m.families[f] = obj
	return obj
}
