package gojabridge

import (
	"bytes"
	"errors"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResource(id int) *resource {
	return &resource{ID: id, released: new(releaseCounter)}
}

func TestOwnership_BorrowedByDefault(t *testing.T) {
	env := newTestEnv(t)
	r := newResource(1)
	v := env.toScript(t, r, ClassOf(resourceClass))
	assert.False(t, env.m.IsOwned(v))
	assert.Zero(t, env.m.owners.len())

	err := env.m.Release(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "borrowed")
	assert.Zero(t, r.released.get(1))
}

func TestOwnership_Conflicts(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, WithLogger(newTestLogger(&buf)))
	r := newResource(2)

	owned, err := env.m.ToScriptOwned(r, ClassOf(resourceClass))
	require.NoError(t, err)
	assert.True(t, env.m.IsOwned(owned))
	assert.Equal(t, 1, env.m.owners.len())

	_, err = env.m.ToScriptOwned(r, ClassOf(resourceClass))
	require.ErrorIs(t, err, ErrOwnershipConflict, "a second owner")

	_, err = env.m.ToScript(r, ClassOf(resourceClass))
	require.ErrorIs(t, err, ErrOwnershipConflict, "a borrowed view of an owned address")
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "$", ce.Path)

	_, err = env.m.ToScript([]*resource{newResource(3), r}, SequenceOf(ClassOf(resourceClass)))
	require.ErrorIs(t, err, ErrOwnershipConflict)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "$[1]", ce.Path)

	assert.Contains(t, buf.String(), "ownership conflict")

	require.NoError(t, env.m.Release(owned))
	_, err = env.m.ToScript(r, ClassOf(resourceClass))
	require.NoError(t, err, "released addresses may be borrowed again")
	runtime.KeepAlive(owned)
}

func TestOwnership_BorrowedThenOwned(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t, WithLogger(newTestLogger(&buf)))
	r := newResource(11)
	addr := reflect.ValueOf(r).Pointer()

	func() {
		a := env.toScript(t, r, ClassOf(resourceClass))
		b := env.toScript(t, r, ClassOf(resourceClass))
		assert.Equal(t, 2, env.m.owners.borrows(addr))

		_, err := env.m.ToScriptOwned(r, ClassOf(resourceClass))
		require.ErrorIs(t, err, ErrOwnershipConflict)
		assert.Contains(t, err.Error(), "is borrowed by 2 script handle(s)")
		assert.Zero(t, env.m.owners.len())
		runtime.KeepAlive(a)
		runtime.KeepAlive(b)
	}()
	assert.Contains(t, buf.String(), "ownership conflict")

	assert.Eventually(t, func() bool {
		runtime.GC()
		return env.m.owners.borrows(addr) == 0
	}, 5*time.Second, 10*time.Millisecond)

	v, err := env.m.ToScriptOwned(r, ClassOf(resourceClass))
	require.NoError(t, err, "collected borrowed views no longer count")
	require.NoError(t, env.m.Release(v))
}

func TestOwnership_Release(t *testing.T) {
	env := newTestEnv(t)
	r := newResource(4)
	v, err := env.m.ToScriptOwned(r, ClassOf(resourceClass))
	require.NoError(t, err)
	env.set(t, "r", v)
	assert.Equal(t, int64(4), env.run(t, `r.id`).ToInteger())

	require.NoError(t, env.m.Release(v))
	require.NoError(t, env.m.Release(v), "release is idempotent")
	assert.Equal(t, 1, r.released.get(4))
	assert.False(t, env.m.IsOwned(v))
	assert.Zero(t, env.m.owners.len())

	_, err = env.rt.RunString(`r.id`)
	var ex *goja.Exception
	require.ErrorAs(t, err, &ex)
	assert.Contains(t, ex.Error(), "ReferenceError")

	ce := env.toNativeErr(t, `r`, ClassOf(resourceClass))
	assert.ErrorIs(t, ce, ErrReleased)

	v2, err := env.m.ToScriptOwned(r, ClassOf(resourceClass))
	require.NoError(t, err, "released addresses may be owned again")
	require.NoError(t, env.m.Release(v2))
	assert.Equal(t, 2, r.released.get(4))
}

func TestOwnership_ScriptRelease(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, `var r = new Resource(5)`)
	native := env.toNative(t, `r`, ClassOf(resourceClass)).(*resource)

	env.run(t, `bridge.release(r); bridge.release(r)`)
	assert.Equal(t, 1, native.released.get(5))
	env.mustFail(t, `r.id`)
	env.mustFail(t, `bridge.release({})`)

	env.set(t, "b", env.toScript(t, newResource(6), ClassOf(resourceClass)))
	env.mustFail(t, `bridge.release(b)`)
}

func TestOwnership_OptionalClass(t *testing.T) {
	env := newTestEnv(t)
	typ := OptionalOf(ClassOf(resourceClass))
	v, err := env.m.ToScriptOwned((*resource)(nil), typ)
	require.NoError(t, err)
	assert.True(t, goja.IsNull(v))

	r := newResource(7)
	v, err = env.m.ToScriptOwned(r, typ)
	require.NoError(t, err)
	assert.True(t, env.m.IsOwned(v))
	require.NoError(t, env.m.Release(v))
}

func TestOwnership_ZeroSizeUntracked(t *testing.T) {
	env := newTestEnv(t)
	type empty struct{}
	c := DefineClass[empty]("Empty").Build()
	a, b := new(empty), new(empty)

	va, err := env.m.ToScriptOwned(a, ClassOf(c))
	require.NoError(t, err)
	vb, err := env.m.ToScriptOwned(b, ClassOf(c))
	require.NoError(t, err, "zero sized values may share an address")
	_, err = env.m.ToScript(a, ClassOf(c))
	require.NoError(t, err)
	assert.Zero(t, env.m.owners.len())

	require.NoError(t, env.m.Release(va))
	assert.True(t, env.m.IsOwned(vb))
	require.NoError(t, env.m.Release(vb))
}

func TestOwnership_ReleasedOnCollection(t *testing.T) {
	env := newTestEnv(t)
	r := newResource(8)
	func() {
		_, err := env.m.ToScriptOwned(r, ClassOf(resourceClass))
		require.NoError(t, err)
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return r.released.get(8) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, env.m.owners.len())
}

func TestOwnership_Scheduler(t *testing.T) {
	var tasks []func()
	env := newTestEnv(t, WithReleaseScheduler(func(task func()) error {
		tasks = append(tasks, task)
		return nil
	}))
	r := newResource(9)
	entry, err := env.m.owners.acquire(resourceClass, reflect.ValueOf(r))
	require.NoError(t, err)

	env.m.owners.scheduleRelease(entry)
	assert.Zero(t, r.released.get(9), "release waits for the scheduler")
	require.Len(t, tasks, 1)
	tasks[0]()
	tasks[0]()
	assert.Equal(t, 1, r.released.get(9))
	assert.Zero(t, env.m.owners.len())
}

func TestOwnership_SchedulerRejects(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t,
		WithLogger(newTestLogger(&buf)),
		WithReleaseScheduler(func(func()) error { return errors.New("closed") }),
	)
	r := newResource(10)
	entry, err := env.m.owners.acquire(resourceClass, reflect.ValueOf(r))
	require.NoError(t, err)

	env.m.owners.scheduleRelease(entry)
	assert.Equal(t, 1, r.released.get(10), "released inline")
	assert.Contains(t, buf.String(), "releasing inline")
	assert.Contains(t, buf.String(), "released owned instance")
}
