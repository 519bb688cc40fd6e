package gojabridge

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// moduleOptions holds configuration for a [Module] instance.
type moduleOptions struct {
	registry  *Registry
	logger    *logiface.Logger[logiface.Event]
	scheduler func(func()) error
	setup     []func(*Module, *goja.Object) error
}

// Option configures a [Module] instance. Options are applied during
// module construction.
type Option interface {
	applyOption(*moduleOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*moduleOptions) error
}

func (o *optionFunc) applyOption(opts *moduleOptions) error {
	return o.fn(opts)
}

// WithRegistry configures the enum [Registry] of the module, which may be
// shared between modules. If not set, each module has its own registry.
func WithRegistry(registry *Registry) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if registry == nil {
			return errors.New("registry must not be nil")
		}
		opts.registry = registry
		return nil
	}}
}

// WithLogger configures the logger. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithReleaseScheduler routes the release of owned instances whose script
// handle was collected. The garbage collector finds such handles on its own
// goroutine; a scheduler lets the release run where the native resource
// expects it, e.g. on an event loop. If the scheduler returns an error the
// release runs immediately instead.
func WithReleaseScheduler(scheduler func(task func()) error) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.scheduler = scheduler
		return nil
	}}
}

// WithSetup adds a callback run by the [Require] loader against each new
// module, before the module's own exports are added. It typically defines
// classes and enums on the exports object.
func WithSetup(fn func(m *Module, exports *goja.Object) error) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if fn == nil {
			return errors.New("setup function must not be nil")
		}
		opts.setup = append(opts.setup, fn)
		return nil
	}}
}

// resolveOptions applies the given options to a default [moduleOptions].
func resolveOptions(opts []Option) (*moduleOptions, error) {
	cfg := &moduleOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
