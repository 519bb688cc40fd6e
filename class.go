package gojabridge

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/dop251/goja"
)

// Class describes a native struct type exposed to script code as instances
// with a shared prototype. Build one with [DefineClass].
type Class struct {
	name    string
	goType  reflect.Type // *T
	base    *Class
	upcast  func(reflect.Value) (reflect.Value, bool)
	methods []classMethod
	props   []classProperty
	ctor    *classConstructor
	equal   func(a, b reflect.Value) bool
	release func(reflect.Value)
}

type classMethod struct {
	name   string
	params []*Type
	result *Type
	typed  func(self reflect.Value, args []any) (any, error)
	raw    func(self reflect.Value, call goja.FunctionCall) goja.Value
}

type classProperty struct {
	name string
	typ  *Type
	get  func(self reflect.Value) any
	set  func(self reflect.Value, v any)
}

type classConstructor struct {
	params []*Type
	fn     func(args []any) (reflect.Value, error)
}

// ClassBuilder declares a [Class] for the native type T.
type ClassBuilder[T any] struct {
	c     *Class
	built bool
}

// DefineClass starts the declaration of a class named name, whose instances
// are *T. If *T implements [Equatable] it defines instance equality, unless
// replaced with [ClassBuilder.Equal].
func DefineClass[T any](name string) *ClassBuilder[T] {
	if name == "" {
		panic("gojabridge: DefineClass requires a class name")
	}
	c := &Class{
		name:   name,
		goType: reflect.TypeFor[*T](),
	}
	if c.goType.Implements(reflect.TypeFor[Equatable]()) {
		c.equal = func(a, b reflect.Value) bool {
			return a.Interface().(Equatable).Equal(b.Interface())
		}
	}
	return &ClassBuilder[T]{c: c}
}

func (b *ClassBuilder[T]) mutable() *Class {
	if b.built {
		panic("gojabridge: class " + b.c.name + " has already been built")
	}
	return b.c
}

// Method adds a method which receives the raw script call. The receiver is
// resolved and type checked before fn runs.
func (b *ClassBuilder[T]) Method(name string, fn func(self *T, call goja.FunctionCall) goja.Value) *ClassBuilder[T] {
	c := b.mutable()
	c.methods = append(c.methods, classMethod{
		name: name,
		raw: func(self reflect.Value, call goja.FunctionCall) goja.Value {
			return fn(self.Interface().(*T), call)
		},
	})
	return b
}

// TypedMethod adds a method with declared parameters and an optional
// result. All arguments are converted before fn runs, so fn is never
// invoked with a partially valid argument list. A nil result declares a
// method returning undefined.
func (b *ClassBuilder[T]) TypedMethod(name string, params []*Type, result *Type, fn func(self *T, args []any) (any, error)) *ClassBuilder[T] {
	c := b.mutable()
	c.methods = append(c.methods, classMethod{
		name:   name,
		params: append([]*Type(nil), params...),
		result: result,
		typed: func(self reflect.Value, args []any) (any, error) {
			return fn(self.Interface().(*T), args)
		},
	})
	return b
}

// Property adds an accessor. The getter result is converted per t. The
// setter, if any, receives a value already converted from script, of the
// Go type of t. A nil setter makes the property read only.
func (b *ClassBuilder[T]) Property(name string, t *Type, get func(self *T) any, set func(self *T, v any)) *ClassBuilder[T] {
	c := b.mutable()
	mustDeclared(t, "Property")
	if get == nil {
		panic("gojabridge: property " + c.name + "." + name + " requires a getter")
	}
	p := classProperty{
		name: name,
		typ:  t,
		get:  func(self reflect.Value) any { return get(self.Interface().(*T)) },
	}
	if set != nil {
		p.set = func(self reflect.Value, v any) { set(self.Interface().(*T), v) }
	}
	c.props = append(c.props, p)
	return b
}

// Constructor allows script code to construct instances with new. Instances
// constructed from script are owned by their script handle. Classes without
// a constructor throw a TypeError when constructed.
func (b *ClassBuilder[T]) Constructor(params []*Type, fn func(args []any) (*T, error)) *ClassBuilder[T] {
	c := b.mutable()
	c.ctor = &classConstructor{
		params: append([]*Type(nil), params...),
		fn: func(args []any) (reflect.Value, error) {
			v, err := fn(args)
			if err != nil {
				return reflect.Value{}, err
			}
			if v == nil {
				return reflect.Value{}, fmt.Errorf("constructor of %s returned nil", b.c.name)
			}
			return reflect.ValueOf(v), nil
		},
	}
	return b
}

// Extends declares base as the superclass. T must embed the base struct,
// by value or by pointer; instances are upcast through the embedded field.
func (b *ClassBuilder[T]) Extends(base *Class) *ClassBuilder[T] {
	c := b.mutable()
	if base == nil {
		panic("gojabridge: Extends requires a base class")
	}
	for p := base; p != nil; p = p.base {
		if p == c {
			panic("gojabridge: class " + c.name + " cannot extend itself")
		}
	}
	elem := c.goType.Elem()
	if elem.Kind() != reflect.Struct {
		panic("gojabridge: class " + c.name + " must be a struct to extend " + base.name)
	}
	var (
		index []int
		byPtr bool
	)
	for _, f := range reflect.VisibleFields(elem) {
		if !f.Anonymous {
			continue
		}
		if f.Type == base.goType.Elem() {
			index = f.Index
			break
		}
		if f.Type == base.goType {
			index, byPtr = f.Index, true
			break
		}
	}
	if index == nil {
		panic(fmt.Sprintf("gojabridge: class %s (%s) does not embed %s", c.name, elem, base.goType.Elem()))
	}
	c.base = base
	c.upcast = func(v reflect.Value) (reflect.Value, bool) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		f, err := v.Elem().FieldByIndexErr(index)
		if err != nil {
			return reflect.Value{}, false
		}
		// fields of unexported embedded types are read-only, so the
		// pointer is rebuilt from the field address
		p := reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr()))
		if byPtr {
			p = p.Elem()
			if p.IsNil() {
				return reflect.Value{}, false
			}
		}
		return p, true
	}
	return b
}

// Equal sets the instance equality function.
func (b *ClassBuilder[T]) Equal(fn func(a, b *T) bool) *ClassBuilder[T] {
	c := b.mutable()
	c.equal = func(x, y reflect.Value) bool {
		return fn(x.Interface().(*T), y.Interface().(*T))
	}
	return b
}

// Release sets the function which releases the native resource of an
// owned instance. It runs at most once per owned instance.
func (b *ClassBuilder[T]) Release(fn func(self *T)) *ClassBuilder[T] {
	c := b.mutable()
	c.release = func(v reflect.Value) { fn(v.Interface().(*T)) }
	return b
}

// Build completes the declaration. The builder may not be used afterwards.
func (b *ClassBuilder[T]) Build() *Class {
	b.mutable()
	b.built = true
	return b.c
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// GoType returns the native pointer type of instances.
func (c *Class) GoType() reflect.Type { return c.goType }

// Base returns the superclass, or nil.
func (c *Class) Base() *Class { return c.base }

// IsSubclassOf reports whether c is other or derives from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for p := c; p != nil; p = p.base {
		if p == other {
			return true
		}
	}
	return false
}

// convertTo upcasts v, an instance of c, to an instance of target.
func (c *Class) convertTo(v reflect.Value, target *Class) (reflect.Value, bool) {
	for p := c; p != nil; p = p.base {
		if p == target {
			return v, true
		}
		if p.base == nil {
			break
		}
		var ok bool
		if v, ok = p.upcast(v); !ok {
			return reflect.Value{}, false
		}
	}
	return reflect.Value{}, false
}

// commonClass returns the most derived class both a and b derive from.
func commonClass(a, b *Class) *Class {
	for p := a; p != nil; p = p.base {
		if b.IsSubclassOf(p) {
			return p
		}
	}
	return nil
}
