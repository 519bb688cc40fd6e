package gojabridge

import (
	"fmt"
	"reflect"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Module bridges native Go values and a single [goja.Runtime]. It converts
// values in both directions according to declared [Type]s, exposes native
// classes and enum families to script code, and tracks which native
// objects are owned by script handles.
//
// A Module is bound to one runtime and, like the runtime, must only be used
// from one goroutine at a time. See [Host] for a single threaded context.
type Module struct {
	runtime   *goja.Runtime
	registry  *Registry
	logger    *logiface.Logger[logiface.Event]
	owners    *ownershipTable
	handleSym *goja.Symbol
	memberSym *goja.Symbol

	classes    map[*Class]*classBinding
	classIndex map[reflect.Type]*Class
	classNames map[string]*Class

	members  map[*Member]*goja.Object
	families map[*Family]*goja.Object

	// files loaded by LoadDescriptorSetBytes
	files *protoregistry.Files

	setup []func(*Module, *goja.Object) error
}

// classBinding is the per runtime script representation of a [Class].
type classBinding struct {
	ctor  *goja.Object
	proto *goja.Object
}

// New creates a new [Module] bound to the given [goja.Runtime].
//
// New panics if runtime is nil, as this is a programming error. It returns
// an error if option validation fails.
func New(runtime *goja.Runtime, opts ...Option) (*Module, error) {
	if runtime == nil {
		panic("gojabridge: runtime must not be nil")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("gojabridge: %w", err)
	}

	registry := cfg.registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Module{
		runtime:    runtime,
		registry:   registry,
		logger:     cfg.logger,
		owners:     newOwnershipTable(cfg.scheduler, cfg.logger),
		handleSym:  goja.NewSymbol("gojabridge.instance"),
		memberSym:  goja.NewSymbol("gojabridge.member"),
		classes:    make(map[*Class]*classBinding),
		classIndex: make(map[reflect.Type]*Class),
		classNames: make(map[string]*Class),
		members:    make(map[*Member]*goja.Object),
		families:   make(map[*Family]*goja.Object),
		files:      new(protoregistry.Files),
		setup:      cfg.setup,
	}, nil
}

// Runtime returns the [goja.Runtime] this module is bound to.
func (m *Module) Runtime() *goja.Runtime {
	return m.runtime
}

// Registry returns the enum registry used by this module.
func (m *Module) Registry() *Registry {
	return m.registry
}

// SetupExports wires the module's JS API onto the given exports object.
// This is equivalent to the setup performed by [Require] but allows
// external consumers to configure exports without the require() mechanism.
func (m *Module) SetupExports(exports *goja.Object) {
	m.setupExports(exports)
}

// RegisterClass makes c, and its base classes, known to the module without
// installing a constructor. Instances of a subclass can only cross the
// boundary under a base class declaration once the subclass is registered.
func (m *Module) RegisterClass(c *Class) {
	m.bindClass(c)
}

// DefineClass installs the constructor of c as a property named after the
// class on target, or on the global object if target is nil.
func (m *Module) DefineClass(target *goja.Object, c *Class) error {
	b := m.bindClass(c)
	if target == nil {
		target = m.runtime.GlobalObject()
	}
	if err := target.Set(c.name, b.ctor); err != nil {
		return fmt.Errorf("gojabridge: define class %s: %w", c.name, err)
	}
	return nil
}

// ClassConstructor returns the script constructor of c.
func (m *Module) ClassConstructor(c *Class) *goja.Object {
	return m.bindClass(c).ctor
}

// DefineEnum installs the frozen object of a registered family as a
// property named after the family on target, or on the global object if
// target is nil.
func (m *Module) DefineEnum(target *goja.Object, family string) error {
	obj, err := m.EnumObject(family)
	if err != nil {
		return err
	}
	if target == nil {
		target = m.runtime.GlobalObject()
	}
	if err := target.Set(family, obj); err != nil {
		return fmt.Errorf("gojabridge: define enum %s: %w", family, err)
	}
	return nil
}

// EnumObject returns the frozen script object of a registered family. It
// carries $name and one property per member.
func (m *Module) EnumObject(family string) (*goja.Object, error) {
	f := m.registry.Family(family)
	if f == nil {
		return nil, fmt.Errorf("gojabridge: enum %s is not registered: %w", family, ErrUnknownMember)
	}
	return m.familyObject(f), nil
}

// MemberOf returns the enum member represented by v, or nil.
func (m *Module) MemberOf(v goja.Value) *Member {
	return m.memberOf(v)
}

func (m *Module) bindClass(c *Class) *classBinding {
	if c == nil {
		panic("gojabridge: class must not be nil")
	}
	if b := m.classes[c]; b != nil {
		return b
	}

	var proto *goja.Object
	if c.base != nil {
		proto = m.runtime.CreateObject(m.bindClass(c.base).proto)
	} else {
		proto = m.runtime.NewObject()
	}

	for _, meth := range c.methods {
		_ = proto.DefineDataProperty(meth.name, m.runtime.ToValue(m.jsMethod(c, meth)), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	for _, prop := range c.props {
		var setter goja.Value
		if prop.set != nil {
			setter = m.runtime.ToValue(m.jsPropertySetter(c, prop))
		}
		_ = proto.DefineAccessorProperty(prop.name, m.runtime.ToValue(m.jsPropertyGetter(c, prop)), setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	_ = proto.DefineDataProperty("$equals", m.runtime.ToValue(m.jsInstanceEquals(c)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	_ = proto.DefineDataPropertySymbol(goja.SymToStringTag, m.runtime.ToValue(c.name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)

	ctor := m.runtime.ToValue(m.jsConstruct(c)).(*goja.Object)
	_ = ctor.Set("prototype", proto)
	_ = ctor.DefineDataProperty("name", m.runtime.ToValue(c.name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	_ = proto.DefineDataProperty("constructor", ctor, goja.FLAG_TRUE, goja.FLAG_FALSE, goja.FLAG_FALSE)

	b := &classBinding{ctor: ctor, proto: proto}
	m.classes[c] = b
	if _, ok := m.classIndex[c.goType]; !ok {
		m.classIndex[c.goType] = c
	}
	if _, ok := m.classNames[c.name]; !ok {
		m.classNames[c.name] = c
	}
	return b
}

// classFor returns the registered class of the dynamic native type t, if
// it is declared, or a subclass of, declared.
func (m *Module) classFor(t reflect.Type, declared *Class) *Class {
	if t == declared.goType {
		return declared
	}
	if c := m.classIndex[t]; c != nil && c.IsSubclassOf(declared) {
		return c
	}
	return nil
}

// handleOf returns the instance handle of v, or nil if v is not an instance
// created by this module.
func (m *Module) handleOf(v goja.Value) *instanceHandle {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	hv := obj.GetSymbol(m.handleSym)
	if hv == nil {
		return nil
	}
	h, _ := hv.Export().(*instanceHandle)
	return h
}

func (m *Module) memberOf(v goja.Value) *Member {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	mv := obj.GetSymbol(m.memberSym)
	if mv == nil {
		return nil
	}
	mem, _ := mv.Export().(*Member)
	return mem
}

// receiver resolves the native instance of this, upcast to c, throwing into
// script code if this is not a live instance of c.
func (m *Module) receiver(this goja.Value, c *Class) (*instanceHandle, reflect.Value) {
	h := m.handleOf(this)
	if h == nil || !h.class.IsSubclassOf(c) {
		panic(m.runtime.NewTypeError("This object is not a valid %s instance", c.name))
	}
	v := h.native()
	if !v.IsValid() {
		m.throwReferenceError(fmt.Sprintf("This %s object is no longer available", h.class.name))
	}
	up, ok := h.class.convertTo(v, c)
	if !ok {
		panic(m.runtime.NewTypeError("This %s object has no %s", h.class.name, c.name))
	}
	return h, up
}

func (m *Module) throwReferenceError(msg string) {
	ctor := m.runtime.Get("ReferenceError")
	obj, err := m.runtime.New(ctor, m.runtime.ToValue(msg))
	if err != nil {
		panic(m.runtime.NewTypeError("%s", msg))
	}
	panic(obj)
}

// freeze applies Object.freeze to obj.
func (m *Module) freeze(obj *goja.Object) {
	freezeVal := m.runtime.Get("Object").ToObject(m.runtime).Get("freeze")
	if freezeFn, ok := goja.AssertFunction(freezeVal); ok {
		_, _ = freezeFn(goja.Undefined(), obj)
	}
}

// setupExports wires the module's JS API onto the given exports object.
func (m *Module) setupExports(exports *goja.Object) {
	_ = exports.Set("enumType", m.jsEnumType)
	_ = exports.Set("familyOf", m.jsFamilyOf)
	_ = exports.Set("isEnumMember", m.jsIsEnumMember)
	_ = exports.Set("isInstance", m.jsIsInstance)
	_ = exports.Set("equals", m.jsEquals)
	_ = exports.Set("classType", m.jsClassType)
	_ = exports.Set("release", m.jsRelease)
	_ = exports.Set("loadDescriptorSet", m.jsLoadDescriptorSet)
}
