package gojabridge

import (
	"reflect"
)

func (m *Module) logContractViolation(e *TypeContractViolation) {
	m.logger.Err().
		Str("path", e.Path).
		Str("declared", e.Declared).
		Str("native", e.Actual).
		Str("reason", e.Reason).
		Log("gojabridge: type contract violation")
}

func (m *Module) logOwnershipConflict(c *Class, v reflect.Value, err error) {
	m.logger.Warning().
		Str("class", c.name).
		Uint64("addr", uint64(v.Pointer())).
		Err(err).
		Log("gojabridge: ownership conflict")
}

func (m *Module) logUnknownMember(path string, t *Type, err error) {
	m.logger.Warning().
		Str("path", path).
		Str("family", t.family).
		Err(err).
		Log("gojabridge: unknown enum member")
}
