package gojabridge

import (
	"reflect"

	"github.com/dop251/goja"
)

// Equatable is implemented by native instance types with a value equality.
// The argument is the other native instance, already upcast to the common
// class of both operands.
type Equatable interface {
	Equal(other any) bool
}

// instancesEqual compares two native instances. Instances are compared as
// the most derived class both belong to, using the nearest equality defined
// along that class chain, else pointer identity. Aliases of one native
// object are always equal.
func instancesEqual(ca *Class, a reflect.Value, cb *Class, b reflect.Value) bool {
	common := commonClass(ca, cb)
	if common == nil {
		return false
	}
	x, ok := ca.convertTo(a, common)
	if !ok {
		return false
	}
	y, ok := cb.convertTo(b, common)
	if !ok {
		return false
	}
	if x.Pointer() == y.Pointer() {
		return true
	}
	for p := common; p != nil; p = p.base {
		if p.equal == nil {
			continue
		}
		px, ok1 := common.convertTo(x, p)
		py, ok2 := common.convertTo(y, p)
		if !ok1 || !ok2 {
			return false
		}
		return p.equal(px, py)
	}
	return false
}

// Equal applies the bridge equality to two script values: the instance
// protocol for class instances, member equality for enum members, and
// strict equality otherwise.
func (m *Module) Equal(a, b goja.Value) bool {
	if a == nil {
		a = goja.Undefined()
	}
	if b == nil {
		b = goja.Undefined()
	}
	if h := m.handleOf(a); h != nil {
		hb := m.handleOf(b)
		if hb == nil {
			return false
		}
		x, y := h.native(), hb.native()
		if !x.IsValid() || !y.IsValid() {
			return h == hb
		}
		return instancesEqual(h.class, x, hb.class, y)
	}
	if mem := m.memberOf(a); mem != nil {
		return mem.Equal(m.memberOf(b))
	}
	return a.StrictEquals(b)
}

// jsInstanceEquals implements the $equals(other) method installed on every
// class prototype.
func (m *Module) jsInstanceEquals(c *Class) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) != 1 {
			panic(m.runtime.NewTypeError("$equals expects exactly 1 argument, got %d", len(call.Arguments)))
		}
		_, self := m.receiver(call.This, c)
		other := m.handleOf(call.Argument(0))
		if other == nil {
			return m.runtime.ToValue(false)
		}
		y := other.native()
		if !y.IsValid() {
			return m.runtime.ToValue(false)
		}
		return m.runtime.ToValue(instancesEqual(c, self, other.class, y))
	}
}

func (m *Module) jsEquals(call goja.FunctionCall) goja.Value {
	return m.runtime.ToValue(m.Equal(call.Argument(0), call.Argument(1)))
}
