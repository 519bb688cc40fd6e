package gojabridge

import (
	"fmt"

	"github.com/dop251/goja"
)

// convertArgs converts call arguments per params. Arity must match exactly,
// and no argument is handed to native code unless all of them convert.
func (m *Module) convertArgs(args []goja.Value, params []*Type) ([]any, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("expected %d arguments, got %d: %w", len(params), len(args), ErrArity)
	}
	out := make([]any, len(params))
	for i, p := range params {
		x, err := m.toNative(args[i], p, fmt.Sprintf("arguments[%d]", i))
		if err != nil {
			return nil, err
		}
		out[i] = x.Interface()
	}
	return out, nil
}

func (m *Module) jsConstruct(c *Class) func(call goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		if c.ctor == nil {
			panic(m.runtime.NewTypeError("%s cannot be constructed from script", c.name))
		}
		args, err := m.convertArgs(call.Arguments, c.ctor.params)
		if err != nil {
			panic(m.runtime.NewTypeError("new %s: %s", c.name, err))
		}
		v, err := c.ctor.fn(args)
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		obj, err := m.wrapInstance(c, v, true)
		if err != nil {
			panic(m.runtime.NewTypeError("new %s: %s", c.name, err))
		}
		return obj
	}
}

func (m *Module) jsMethod(c *Class, meth classMethod) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		_, self := m.receiver(call.This, c)
		if meth.raw != nil {
			return meth.raw(self, call)
		}
		args, err := m.convertArgs(call.Arguments, meth.params)
		if err != nil {
			panic(m.runtime.NewTypeError("%s.%s: %s", c.name, meth.name, err))
		}
		result, err := meth.typed(self, args)
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		if meth.result == nil {
			return goja.Undefined()
		}
		out, err := m.toScriptAny(result, meth.result, false)
		if err != nil {
			panic(m.runtime.NewTypeError("%s.%s: %s", c.name, meth.name, err))
		}
		return out
	}
}

func (m *Module) jsPropertyGetter(c *Class, prop classProperty) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		_, self := m.receiver(call.This, c)
		out, err := m.toScriptAny(prop.get(self), prop.typ, false)
		if err != nil {
			panic(m.runtime.NewTypeError("%s.%s: %s", c.name, prop.name, err))
		}
		return out
	}
}

func (m *Module) jsPropertySetter(c *Class, prop classProperty) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		_, self := m.receiver(call.This, c)
		x, err := m.toNative(call.Argument(0), prop.typ, prop.name)
		if err != nil {
			panic(m.runtime.NewTypeError("%s.%s: %s", c.name, prop.name, err))
		}
		prop.set(self, x.Interface())
		return goja.Undefined()
	}
}
