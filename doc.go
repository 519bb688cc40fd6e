// Package gojabridge converts values between native Go code and the [goja]
// JavaScript runtime, according to declared types.
//
// # Overview
//
// A [Module] is bound to one [goja.Runtime]. Native code declares the shape
// of each value that crosses the boundary as a [*Type], built from the
// constructors in this package, and converts with [Module.ToScript] and
// [Module.ToNative]. Conversions are strict: script values of the wrong
// shape, integers out of range, and unknown enum values are rejected with a
// [*ConversionError] naming the offending path, e.g.
// arguments[1]["tags"][3]. A native value that does not satisfy its own
// declaration is a programming error, and panics with a
// [*TypeContractViolation].
//
// # Type Mapping
//
//   - [Bool], [String], [Int], [Float] → boolean, string, number
//   - 64-bit integers beyond 2^53 → BigInt
//   - [Bytes] → Uint8Array (ArrayBuffer is also accepted)
//   - [Text] → string, via encoding.TextMarshaler
//   - [OptionalOf] → the value, or null (undefined is also accepted)
//   - [SequenceOf] → Array
//   - [MappingOf] → plain object, keys sorted
//   - [PairOf] → two element Array
//   - [VariantOf] → the first alternative matching the value's shape
//   - [Enum] → frozen member object with $name, name, and value
//   - [ClassOf] → instance of the class constructor
//
// # Classes
//
// Native types are exposed as classes via [DefineClass]. Instances carry a
// handle to the native object. A handle either owns the native object,
// releasing it once the handle is collected or explicitly released, or
// borrows it. An object owned by one handle cannot be borrowed or owned by
// another. Every instance has a $equals method: two instances are equal if
// they alias the same object, or if the nearest Equal function of their
// common class says so.
//
// # Enums
//
// Enum families are registered in a [Registry] and exposed as frozen
// objects. Members carry their family name as $name. Families may also be
// loaded from Protocol Buffers descriptors, see
// [Module.LoadDescriptorSetBytes].
//
// # JavaScript API
//
// The [Require] loader exposes:
//
//	const bridge = require('bridge');
//
//   - bridge.enumType(family) - the frozen object of a registered family
//   - bridge.familyOf(member) - the family name of an enum member
//   - bridge.isEnumMember(value[, family]) - enum member type guard
//   - bridge.isInstance(value[, className]) - class instance type guard
//   - bridge.equals(a, b) - bridge equality of two values
//   - bridge.classType(name) - the constructor of a registered class
//   - bridge.release(instance) - releases an owned instance early
//   - bridge.loadDescriptorSet(bytes) - registers the enums of a serialized
//     FileDescriptorSet, returning their names
//
// # Thread Safety
//
// A [Module], like its runtime, must only be used by one goroutine at a
// time. [Host] runs a module on an event loop, and routes releases found by
// the garbage collector onto that loop. A [Registry] is safe for concurrent
// use, and may be shared.
package gojabridge
