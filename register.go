package gojabridge

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

// Require returns a [require.ModuleLoader] that initialises the bridge
// module when loaded by a [goja.Runtime]. The integrator registers the
// loader under whatever module name they choose:
//
//	registry := require.NewRegistry()
//	registry.RegisterNativeModule("bridge", gojabridge.Require())
//	registry.Enable(runtime)
//
// After registration, JavaScript code loads the module by name:
//
//	const bridge = require('bridge');
//
// Classes and enums are installed on the exports object by [WithSetup]
// callbacks. The provided options are captured and applied each time a new
// runtime calls require for this module.
func Require(opts ...Option) require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		m, err := New(runtime, opts...)
		if err != nil {
			panic(runtime.NewGoError(err))
		}
		exports := module.Get("exports").(*goja.Object)
		for _, fn := range m.setup {
			if err := fn(m, exports); err != nil {
				panic(runtime.NewGoError(err))
			}
		}
		m.setupExports(exports)
	}
}
