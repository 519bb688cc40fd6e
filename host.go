package gojabridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// ErrHostNotStarted is returned by [Host.Do] before [Host.Start].
var ErrHostNotStarted = errors.New("gojabridge: host not started")

// Host owns a [goja.Runtime], its [Module], and the event loop that is the
// single thread allowed to touch them. Releases of owned instances found by
// the garbage collector are routed onto the loop.
type Host struct {
	loop    *eventloop.Loop
	runtime *goja.Runtime
	module  *Module
	logger  *logiface.Logger[logiface.Event]

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

type hostOptions struct {
	module []Option
	logger *logiface.Logger[logiface.Event]
}

// HostOption configures a [Host].
type HostOption interface {
	applyHostOption(*hostOptions) error
}

type hostOptionFunc struct {
	fn func(*hostOptions) error
}

func (o *hostOptionFunc) applyHostOption(opts *hostOptions) error {
	return o.fn(opts)
}

// WithModuleOptions configures the [Module] created by the host.
// [WithReleaseScheduler] is always overridden.
func WithModuleOptions(opts ...Option) HostOption {
	return &hostOptionFunc{fn: func(h *hostOptions) error {
		h.module = append(h.module, opts...)
		return nil
	}}
}

// WithHostLogger configures the logger of the host and its module.
func WithHostLogger(logger *logiface.Logger[logiface.Event]) HostOption {
	return &hostOptionFunc{fn: func(h *hostOptions) error {
		h.logger = logger
		return nil
	}}
}

// NewHost creates a [Host] with a fresh runtime and event loop. The loop
// does not run until [Host.Start].
func NewHost(opts ...HostOption) (*Host, error) {
	cfg := &hostOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyHostOption(cfg); err != nil {
			return nil, fmt.Errorf("gojabridge: %w", err)
		}
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, fmt.Errorf("gojabridge: create event loop: %w", err)
	}

	runtime := goja.New()
	modOpts := make([]Option, 0, len(cfg.module)+2)
	if cfg.logger != nil {
		modOpts = append(modOpts, WithLogger(cfg.logger))
	}
	modOpts = append(modOpts, cfg.module...)
	modOpts = append(modOpts, WithReleaseScheduler(func(task func()) error {
		return loop.Submit(task)
	}))
	module, err := New(runtime, modOpts...)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	return &Host{
		loop:    loop,
		runtime: runtime,
		module:  module,
		logger:  cfg.logger,
		done:    make(chan struct{}),
	}, nil
}

// Module returns the module of the host. It must only be used from within
// [Host.Do].
func (h *Host) Module() *Module {
	return h.module
}

// Start runs the event loop in a new goroutine, until ctx is canceled or
// [Host.Shutdown] is called.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return errors.New("gojabridge: host already started")
	}
	h.started = true
	go func() {
		defer close(h.done)
		err := h.loop.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Err().
				Err(err).
				Log("event loop stopped")
		}
	}()
	return nil
}

// Done is closed once the event loop has stopped.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Do runs fn on the event loop and waits for it to return. A panic in fn
// is re-raised on the calling goroutine. If ctx is done first, Do returns
// ctx.Err() and fn may still run.
func (h *Host) Do(ctx context.Context, fn func(m *Module) error) error {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return ErrHostNotStarted
	}

	type result struct {
		err   error
		panic any
	}
	ch := make(chan result, 1)
	if err := h.loop.Submit(func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.panic = p
			}
			ch <- r
		}()
		r.err = fn(h.module)
	}); err != nil {
		return fmt.Errorf("gojabridge: submit: %w", err)
	}

	select {
	case r := <-ch:
		if r.panic != nil {
			panic(r.panic)
		}
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		// the task may have run just before the loop stopped
		select {
		case r := <-ch:
			if r.panic != nil {
				panic(r.panic)
			}
			return r.err
		default:
			return eventloop.ErrLoopTerminated
		}
	}
}

// RunString evaluates src on the event loop, converting the completion
// value to t.
func (h *Host) RunString(ctx context.Context, src string, t *Type) (any, error) {
	var out any
	err := h.Do(ctx, func(m *Module) error {
		v, err := m.runtime.RunString(src)
		if err != nil {
			return err
		}
		out, err = m.ToNative(v, t)
		return err
	})
	return out, err
}

// Shutdown stops the event loop after draining queued tasks. A host that
// was never started is closed directly.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return h.loop.Close()
	}
	err := h.loop.Shutdown(ctx)
	if err != nil && !errors.Is(err, eventloop.ErrLoopTerminated) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
