package gojabridge

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// ownershipTable tracks native addresses owned by script handles, and the
// number of live borrowed handles per address. It is guarded by a mutex
// because cleanups run on arbitrary goroutines.
type ownershipTable struct {
	mu        sync.Mutex
	owned     map[uintptr]*ownedEntry
	borrowed  map[uintptr]int
	scheduler func(func()) error
	logger    *logiface.Logger[logiface.Event]
}

// ownedEntry holds the strong reference of one owning handle. It must never
// reference the handle itself, or the handle could not be collected.
type ownedEntry struct {
	table   *ownershipTable
	class   *Class
	addr    uintptr
	tracked bool
	once    sync.Once
	mu      sync.Mutex
	native  reflect.Value
}

// instanceHandle is the Go payload of a script instance object. A borrowed
// handle references the native object, but never releases it.
type instanceHandle struct {
	class    *Class
	entry    *ownedEntry
	borrowed reflect.Value
}

func newOwnershipTable(scheduler func(func()) error, logger *logiface.Logger[logiface.Event]) *ownershipTable {
	return &ownershipTable{
		owned:     make(map[uintptr]*ownedEntry),
		borrowed:  make(map[uintptr]int),
		scheduler: scheduler,
		logger:    logger,
	}
}

// trackable reports whether v has an address distinct from other live
// objects. Pointers to zero sized values may share one address.
func trackable(v reflect.Value) bool {
	return v.Type().Elem().Size() != 0
}

// borrow counts a borrowed handle of addr, unless addr is owned.
func (t *ownershipTable) borrow(addr uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.owned[addr]; ok {
		return false
	}
	t.borrowed[addr]++
	return true
}

// unborrow is the cleanup of an unreachable borrowed handle.
func (t *ownershipTable) unborrow(addr uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := t.borrowed[addr] - 1; n > 0 {
		t.borrowed[addr] = n
	} else {
		delete(t.borrowed, addr)
	}
}

func (t *ownershipTable) borrows(addr uintptr) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.borrowed[addr]
}

func (t *ownershipTable) acquire(c *Class, v reflect.Value) (*ownedEntry, error) {
	e := &ownedEntry{
		table:   t,
		class:   c,
		addr:    v.Pointer(),
		tracked: trackable(v),
		native:  v,
	}
	if !e.tracked {
		return e, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.owned[e.addr]; ok {
		return nil, fmt.Errorf("%s at %#x is already owned by a script handle: %w", c.name, e.addr, ErrOwnershipConflict)
	}
	if n := t.borrowed[e.addr]; n != 0 {
		return nil, fmt.Errorf("%s at %#x is borrowed by %d script handle(s) and cannot be owned: %w", c.name, e.addr, n, ErrOwnershipConflict)
	}
	t.owned[e.addr] = e
	return e, nil
}

func (t *ownershipTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.owned)
}

// scheduleRelease is the cleanup of an unreachable owning handle.
func (t *ownershipTable) scheduleRelease(e *ownedEntry) {
	if t.scheduler != nil {
		err := t.scheduler(e.release)
		if err == nil {
			return
		}
		t.logger.Warning().
			Str("class", e.class.name).
			Err(err).
			Log("gojabridge: release scheduler rejected task, releasing inline")
	}
	e.release()
}

func (e *ownedEntry) get() reflect.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.native
}

// release drops the strong reference and runs the class release function.
// Only the first call has any effect.
func (e *ownedEntry) release() {
	e.once.Do(func() {
		e.mu.Lock()
		v := e.native
		e.native = reflect.Value{}
		e.mu.Unlock()

		if e.tracked {
			e.table.mu.Lock()
			if e.table.owned[e.addr] == e {
				delete(e.table.owned, e.addr)
			}
			e.table.mu.Unlock()
		}

		if e.class.release != nil && v.IsValid() {
			e.class.release(v)
		}

		e.table.logger.Debug().
			Str("class", e.class.name).
			Uint64("addr", uint64(e.addr)).
			Log("gojabridge: released owned instance")
	})
}

func (h *instanceHandle) native() reflect.Value {
	if h.entry != nil {
		return h.entry.get()
	}
	return h.borrowed
}

// newHandle creates the handle of a script view of v, an instance of c.
// Borrowed views of an owned address, and owners of an address that is
// owned or still borrowed, are rejected. A borrowed view counts until its
// handle is collected.
func (m *Module) newHandle(c *Class, v reflect.Value, owning bool) (*instanceHandle, error) {
	h := &instanceHandle{class: c}
	if owning {
		entry, err := m.owners.acquire(c, v)
		if err != nil {
			m.logOwnershipConflict(c, v, err)
			return nil, err
		}
		h.entry = entry
		runtime.AddCleanup(h, m.owners.scheduleRelease, entry)
		m.logger.Debug().
			Str("class", c.name).
			Uint64("addr", uint64(entry.addr)).
			Log("gojabridge: script handle owns instance")
		return h, nil
	}
	if trackable(v) {
		addr := v.Pointer()
		if !m.owners.borrow(addr) {
			err := fmt.Errorf("%s at %#x is owned by a script handle and cannot be borrowed: %w", c.name, addr, ErrOwnershipConflict)
			m.logOwnershipConflict(c, v, err)
			return nil, err
		}
		runtime.AddCleanup(h, m.owners.unborrow, addr)
	}
	h.borrowed = v
	return h, nil
}

// Release releases the native object owned by the script handle v. It is
// idempotent; the handle throws a ReferenceError when used afterwards.
// Borrowed handles cannot be released.
func (m *Module) Release(v goja.Value) error {
	h := m.handleOf(v)
	if h == nil {
		return fmt.Errorf("gojabridge: release: value is not a class instance")
	}
	if h.entry == nil {
		return fmt.Errorf("gojabridge: release: %s instance is borrowed, not owned", h.class.name)
	}
	h.entry.release()
	return nil
}

// IsOwned reports whether v is a script handle which owns its native
// object, and has not yet released it.
func (m *Module) IsOwned(v goja.Value) bool {
	h := m.handleOf(v)
	return h != nil && h.entry != nil && h.entry.get().IsValid()
}
