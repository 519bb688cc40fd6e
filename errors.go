package gojabridge

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by [ConversionError] and the [Registry]. Match
// them with [errors.Is].
var (
	// ErrShapeMismatch indicates a script value whose structure does not
	// satisfy the declared type (e.g. a string where a number is declared).
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrOutOfRange indicates a number which does not fit the declared
	// native integer or float type.
	ErrOutOfRange = errors.New("value out of range")

	// ErrUnrepresentableKey indicates a mapping key that cannot be
	// converted to or from a string without loss.
	ErrUnrepresentableKey = errors.New("unrepresentable mapping key")

	// ErrUnknownVariantAlternative indicates a variant payload that is not
	// one of the declared alternatives.
	ErrUnknownVariantAlternative = errors.New("unknown variant alternative")

	// ErrArity indicates a pair with other than exactly two elements.
	ErrArity = errors.New("arity mismatch")

	// ErrUnknownMember indicates an enum value or member object that does
	// not resolve within the declared family.
	ErrUnknownMember = errors.New("unknown enum member")

	// ErrOwnershipConflict indicates an attempt to mix borrowed and owning
	// views of the same native address, or to own it twice.
	ErrOwnershipConflict = errors.New("ownership conflict")

	// ErrReleased indicates a handle whose native object has been released
	// or collected.
	ErrReleased = errors.New("native object is no longer available")

	// ErrDuplicateEnumFamily is returned by [Registry.Register] when the
	// family name is already registered.
	ErrDuplicateEnumFamily = errors.New("duplicate enum family")

	// ErrDuplicateMember is returned by [Registry.Register] when two
	// members of one family share a name or a value.
	ErrDuplicateMember = errors.New("duplicate enum member")
)

// ConversionError is the recoverable failure of a single conversion. It
// names where in the value tree the failure happened, the declared shape,
// and the shape actually observed.
type ConversionError struct {
	// Err is the underlying cause, usually one of the sentinel errors.
	Err error
	// Path locates the failing element, "$" being the converted value.
	Path string
	// Expected describes the declared type.
	Expected string
	// Actual describes the observed value.
	Actual string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("gojabridge: %s: expected %s, got %s: %v", e.Path, e.Expected, e.Actual, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// TypeContractViolation reports a native payload that does not match its
// declaration, meaning the declaration itself is wrong. It is raised as a
// panic, never returned, since continuing would expose an inconsistent
// object to script code.
type TypeContractViolation struct {
	Path     string
	Declared string
	Actual   string
	Reason   string
}

func (e *TypeContractViolation) Error() string {
	msg := fmt.Sprintf("gojabridge: type contract violation at %s: declared %s, native %s", e.Path, e.Declared, e.Actual)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func newConversionError(path string, expected string, actual string, err error) *ConversionError {
	return &ConversionError{
		Err:      err,
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}
