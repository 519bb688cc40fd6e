package gojabridge

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/exp/constraints"
)

// Kind identifies the category of a declared [Type].
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindOptional
	KindSequence
	KindMapping
	KindVariant
	KindEnum
	KindPair
	KindClass
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindBytes:    "bytes",
	KindOptional: "optional",
	KindSequence: "sequence",
	KindMapping:  "mapping",
	KindVariant:  "variant",
	KindEnum:     "enum",
	KindPair:     "pair",
	KindClass:    "class",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a declared bridge type. Declarations are produced once (usually by
// a generator, see [FieldType]) and are immutable afterwards, so a single
// *Type may be shared between modules and goroutines.
//
// The Go payload of each kind is fixed, see [Type.GoType].
type Type struct {
	kind   Kind
	goType reflect.Type
	elem   *Type   // optional, sequence
	key    *Type   // mapping, pair
	value  *Type   // mapping, pair
	alts   []*Type // variant
	family string  // enum
	class  *Class  // class
	text   bool    // string through encoding.TextMarshaler
}

// Pair is the native payload of [PairOf].
type Pair[K, V any] struct {
	Key   K
	Value V
}

var (
	boolType   = &Type{kind: KindBool, goType: reflect.TypeFor[bool]()}
	stringType = &Type{kind: KindString, goType: reflect.TypeFor[string]()}
	bytesType  = &Type{kind: KindBytes, goType: reflect.TypeFor[[]byte]()}
	anyType    = reflect.TypeFor[any]()
)

// Bool declares a boolean.
func Bool() *Type { return boolType }

// String declares a string.
func String() *Type { return stringType }

// Bytes declares a byte buffer, exposed to script code as a Uint8Array.
func Bytes() *Type { return bytesType }

// Text declares a string whose Go payload T converts through its text
// form. T must implement [encoding.TextMarshaler], and *T
// [encoding.TextUnmarshaler]. Text types are valid mapping keys.
func Text[T any]() *Type {
	rt := reflect.TypeFor[T]()
	if !textKey(rt) {
		panic(fmt.Sprintf("gojabridge: Text type %s must implement encoding.TextMarshaler and encoding.TextUnmarshaler", rt))
	}
	return &Type{kind: KindString, goType: rt, text: true}
}

// Int declares an integer with the Go payload T. Values outside the safe
// integer range of a script number are exposed as BigInt.
func Int[T constraints.Integer]() *Type {
	return &Type{kind: KindInt, goType: reflect.TypeFor[T]()}
}

// Float declares a floating point number with the Go payload T.
func Float[T constraints.Float]() *Type {
	return &Type{kind: KindFloat, goType: reflect.TypeFor[T]()}
}

// OptionalOf declares a possibly absent t. The payload is *T, except for
// classes, where the class pointer itself is nilable. Nested optionals
// collapse to one level.
func OptionalOf(t *Type) *Type {
	mustDeclared(t, "OptionalOf")
	if t.kind == KindOptional {
		return t
	}
	goType := t.goType
	if t.kind != KindClass {
		goType = reflect.PointerTo(goType)
	}
	return &Type{kind: KindOptional, goType: goType, elem: t}
}

// SequenceOf declares an ordered, duplicate-preserving list of t.
func SequenceOf(t *Type) *Type {
	mustDeclared(t, "SequenceOf")
	return &Type{kind: KindSequence, goType: reflect.SliceOf(t.goType), elem: t}
}

// MappingOf declares a unique-keyed mapping. Only keys which stringify
// without loss convert successfully: strings, integers, booleans, and
// types implementing both [encoding.TextMarshaler] and
// [encoding.TextUnmarshaler]. Other comparable keys are accepted here but
// fail every conversion with [ErrUnrepresentableKey].
//
// MappingOf panics if the key payload is not comparable.
func MappingOf(key, value *Type) *Type {
	mustDeclared(key, "MappingOf")
	mustDeclared(value, "MappingOf")
	if !key.goType.Comparable() {
		panic(&TypeContractViolation{
			Path:     "$",
			Declared: "mapping<" + key.String() + ", " + value.String() + ">",
			Actual:   key.goType.String(),
			Reason:   "mapping key is not comparable",
		})
	}
	return &Type{kind: KindMapping, goType: reflect.MapOf(key.goType, value.goType), key: key, value: value}
}

// VariantOf declares a tagged union of the given alternatives, whose payload
// is an any holding exactly one alternative's Go type. Inbound values are
// matched against alternatives in declaration order.
//
// VariantOf panics on zero alternatives, or when two alternatives share a
// Go payload type, since the native tag would be ambiguous.
func VariantOf(alts ...*Type) *Type {
	if len(alts) == 0 {
		panic("gojabridge: VariantOf requires at least one alternative")
	}
	seen := make(map[reflect.Type]struct{}, len(alts))
	for _, alt := range alts {
		mustDeclared(alt, "VariantOf")
		if alt.goType == anyType {
			panic(fmt.Sprintf("gojabridge: VariantOf alternative %s has no distinct Go type", alt))
		}
		if _, ok := seen[alt.goType]; ok {
			panic(fmt.Sprintf("gojabridge: VariantOf alternatives share the Go type %s", alt.goType))
		}
		seen[alt.goType] = struct{}{}
	}
	return &Type{kind: KindVariant, goType: anyType, alts: append([]*Type(nil), alts...)}
}

// PairOf declares a two element tuple, exposed as a 2 element array. The
// declared key and value must have the payload types K and V.
func PairOf[K, V any](key, value *Type) *Type {
	mustDeclared(key, "PairOf")
	mustDeclared(value, "PairOf")
	t := &Type{kind: KindPair, goType: reflect.TypeFor[Pair[K, V]](), key: key, value: value}
	if key.goType != reflect.TypeFor[K]() || value.goType != reflect.TypeFor[V]() {
		panic(&TypeContractViolation{
			Path:     "$",
			Declared: t.String(),
			Actual:   t.goType.String(),
			Reason:   "pair element declarations do not match the Go type parameters",
		})
	}
	return t
}

// Enum declares a member of the named enum family, with the integer payload
// E. The family must be registered in the module's [Registry] before
// values convert.
func Enum[E constraints.Integer](family string) *Type {
	if family == "" {
		panic("gojabridge: Enum requires a family name")
	}
	return &Type{kind: KindEnum, goType: reflect.TypeFor[E](), family: family}
}

// ClassOf declares an instance of c, with the payload *T of the class.
func ClassOf(c *Class) *Type {
	if c == nil {
		panic("gojabridge: ClassOf requires a class")
	}
	return &Type{kind: KindClass, goType: c.goType, class: c}
}

func mustDeclared(t *Type, fn string) {
	if t == nil || t.kind == KindInvalid {
		panic("gojabridge: " + fn + " requires a declared type")
	}
}

// Kind returns the declared category.
func (t *Type) Kind() Kind { return t.kind }

// GoType returns the Go payload type.
func (t *Type) GoType() reflect.Type { return t.goType }

// Elem returns the element of an optional or sequence, else nil.
func (t *Type) Elem() *Type { return t.elem }

// Key returns the key of a mapping or pair, else nil.
func (t *Type) Key() *Type { return t.key }

// Value returns the value of a mapping or pair, else nil.
func (t *Type) Value() *Type { return t.value }

// Alternatives returns a copy of the alternatives of a variant.
func (t *Type) Alternatives() []*Type { return append([]*Type(nil), t.alts...) }

// Family returns the enum family name of an enum.
func (t *Type) Family() string { return t.family }

// Class returns the class of a class instance.
func (t *Type) Class() *Class { return t.class }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindInt, KindFloat:
		return t.goType.String()
	case KindString:
		if t.text {
			return "string(" + t.goType.String() + ")"
		}
		return "string"
	case KindOptional:
		return "optional<" + t.elem.String() + ">"
	case KindSequence:
		return "sequence<" + t.elem.String() + ">"
	case KindMapping:
		return "mapping<" + t.key.String() + ", " + t.value.String() + ">"
	case KindVariant:
		var b strings.Builder
		b.WriteString("variant<")
		for i, alt := range t.alts {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(alt.String())
		}
		b.WriteByte('>')
		return b.String()
	case KindEnum:
		return "enum " + t.family
	case KindPair:
		return "pair<" + t.key.String() + ", " + t.value.String() + ">"
	case KindClass:
		return "class " + t.class.name
	default:
		return t.kind.String()
	}
}

// nullable reports whether null is a member of the declared type.
func (t *Type) nullable() bool {
	if t.kind == KindOptional {
		return true
	}
	if t.kind == KindVariant {
		for _, alt := range t.alts {
			if alt.kind == KindOptional {
				return true
			}
		}
	}
	return false
}
