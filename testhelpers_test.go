package gojabridge

import (
	"bytes"
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	rt *goja.Runtime
	m  *Module
}

// newTestEnv creates a module with the Color and Shape enums, and the
// Point, Animal, Dog and Resource classes, installed as globals. The JS
// API is available as the global bridge.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	rt := goja.New()
	m, err := New(rt, append([]Option{WithRegistry(testRegistry(t))}, opts...)...)
	require.NoError(t, err)
	bridge := rt.NewObject()
	m.setupExports(bridge)
	if err := rt.Set("bridge", bridge); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Class{pointClass, animalClass, dogClass, resourceClass} {
		require.NoError(t, m.DefineClass(nil, c))
	}
	require.NoError(t, m.DefineEnum(nil, "Color"))
	require.NoError(t, m.DefineEnum(nil, "Shape"))
	return &testEnv{rt: rt, m: m}
}

func (e *testEnv) run(t *testing.T, code string) goja.Value {
	t.Helper()
	v, err := e.rt.RunString(code)
	require.NoError(t, err)
	return v
}

func (e *testEnv) mustFail(t *testing.T, code string) {
	t.Helper()
	_, err := e.rt.RunString(code)
	require.Error(t, err)
}

func (e *testEnv) set(t *testing.T, name string, v goja.Value) {
	t.Helper()
	require.NoError(t, e.rt.Set(name, v))
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	_, err := r.Register("Color",
		EnumEntry{Name: "RED", Value: 0},
		EnumEntry{Name: "GREEN", Value: 1},
		EnumEntry{Name: "BLUE", Value: 4},
	)
	require.NoError(t, err)
	_, err = r.Register("Shape",
		EnumEntry{Name: "CIRCLE", Value: 0},
		EnumEntry{Name: "SQUARE", Value: 1},
	)
	require.NoError(t, err)
	return r
}

// newTestLogger returns a debug level logger writing JSON lines to buf.
func newTestLogger(buf *bytes.Buffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(stumpy.L.LevelDebug()),
	).Logger()
}

type point struct {
	X, Y int64
}

func (p *point) Equal(other any) bool {
	o, ok := other.(*point)
	return ok && p.X == o.X && p.Y == o.Y
}

type animal struct {
	Name string
}

type dog struct {
	animal
	Breed string
}

type resource struct {
	ID       int
	released *releaseCounter
}

type releaseCounter struct {
	mu     sync.Mutex
	counts map[int]int
}

func (c *releaseCounter) inc(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[int]int)
	}
	c.counts[id]++
}

func (c *releaseCounter) get(id int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[id]
}

var pointClass = DefineClass[point]("Point").
	Constructor([]*Type{Int[int64](), Int[int64]()}, func(args []any) (*point, error) {
		return &point{X: args[0].(int64), Y: args[1].(int64)}, nil
	}).
	Property("x", Int[int64](), func(p *point) any { return p.X }, func(p *point, v any) { p.X = v.(int64) }).
	Property("y", Int[int64](), func(p *point) any { return p.Y }, nil).
	TypedMethod("translate", []*Type{Int[int64](), Int[int64]()}, nil, func(p *point, args []any) (any, error) {
		p.X += args[0].(int64)
		p.Y += args[1].(int64)
		return nil, nil
	}).
	TypedMethod("sum", nil, Int[int64](), func(p *point, _ []any) (any, error) {
		return p.X + p.Y, nil
	}).
	Method("self", func(p *point, call goja.FunctionCall) goja.Value {
		return call.This
	}).
	Build()

var animalClass = DefineClass[animal]("Animal").
	Constructor([]*Type{String()}, func(args []any) (*animal, error) {
		return &animal{Name: args[0].(string)}, nil
	}).
	Property("name", String(), func(a *animal) any { return a.Name }, nil).
	Equal(func(a, b *animal) bool { return a.Name == b.Name }).
	Build()

var dogClass = DefineClass[dog]("Dog").
	Extends(animalClass).
	Constructor([]*Type{String(), String()}, func(args []any) (*dog, error) {
		return &dog{animal: animal{Name: args[0].(string)}, Breed: args[1].(string)}, nil
	}).
	Property("breed", String(), func(d *dog) any { return d.Breed }, nil).
	Build()

var resourceCounter = new(releaseCounter)

var resourceClass = DefineClass[resource]("Resource").
	Constructor([]*Type{Int[int]()}, func(args []any) (*resource, error) {
		return &resource{ID: args[0].(int), released: resourceCounter}, nil
	}).
	Property("id", Int[int](), func(r *resource) any { return r.ID }, nil).
	Release(func(r *resource) { r.released.inc(r.ID) }).
	Build()
