package gojabridge

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquals_Reflexive(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, `var p = new Point(1, 2), a = new Animal("cat"), d = new Dog("rex", "lab")`)
	for _, name := range []string{"p", "a", "d"} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, env.run(t, name+`.$equals(`+name+`)`).ToBoolean())
		})
	}

	opaque := DefineClass[animal]("Opaque").Build()
	require.NoError(t, env.m.DefineClass(nil, opaque))
	env.set(t, "o", env.toScript(t, &animal{}, ClassOf(opaque)))
	assert.True(t, env.run(t, `o.$equals(o)`).ToBoolean(), "identity holds without an equality function")
}

func TestEquals_Symmetric(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, `
		var p1 = new Point(1, 2), p2 = new Point(1, 2), p3 = new Point(2, 1);
		var a = new Animal("rex"), d = new Dog("rex", "lab"), d2 = new Dog("rex", "pug");
	`)
	for _, tc := range []struct {
		x, y string
		want bool
	}{
		{"p1", "p2", true},
		{"p1", "p3", false},
		{"a", "d", true},
		{"d", "d2", true},
		{"p1", "a", false},
	} {
		t.Run(tc.x+"_"+tc.y, func(t *testing.T) {
			assert.Equal(t, tc.want, env.run(t, tc.x+`.$equals(`+tc.y+`)`).ToBoolean())
			assert.Equal(t, tc.want, env.run(t, tc.y+`.$equals(`+tc.x+`)`).ToBoolean())
			assert.Equal(t, tc.want, env.run(t, `bridge.equals(`+tc.x+`, `+tc.y+`)`).ToBoolean())
		})
	}
}

func TestEquals_NonInstance(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, `var p = new Point(1, 2)`)
	for _, code := range []string{`null`, `undefined`, `1`, `"p"`, `({X: 1, Y: 2})`, `Color.RED`, `Object.create(Point.prototype)`} {
		t.Run(code, func(t *testing.T) {
			assert.False(t, env.run(t, `p.$equals(`+code+`)`).ToBoolean())
		})
	}
	env.mustFail(t, `p.$equals()`)
	env.mustFail(t, `p.$equals(p, p)`)
	env.mustFail(t, `Point.prototype.$equals.call({}, p)`)
}

func TestEquals_Aliases(t *testing.T) {
	env := newTestEnv(t)
	shared := &animal{Name: "x"}
	c := DefineClass[animal]("Volatile").
		Equal(func(a, b *animal) bool { return false }).
		Build()
	require.NoError(t, env.m.DefineClass(nil, c))
	env.set(t, "a", env.toScript(t, shared, ClassOf(c)))
	env.set(t, "b", env.toScript(t, shared, ClassOf(c)))
	assert.True(t, env.run(t, `a.$equals(b) && b.$equals(a)`).ToBoolean(), "aliases of one native object are always equal")
}

func TestEquals_SubclassAlias(t *testing.T) {
	env := newTestEnv(t)
	d := &dog{animal: animal{Name: "rex"}}
	v, err := env.m.ToScript(d, ClassOf(dogClass))
	require.NoError(t, err)
	env.set(t, "d", v)
	kc := DefineClass[kennel]("Kennel").Extends(animalClass).Build()
	env.m.RegisterClass(kc)
	v, err = env.m.ToScript(&kennel{animal: &d.animal}, ClassOf(kc))
	require.NoError(t, err)
	env.set(t, "k", v)
	assert.True(t, env.m.Equal(env.rt.Get("d"), env.rt.Get("k")))
}

func TestEquals_SetDeduplication(t *testing.T) {
	env := newTestEnv(t)
	v := env.run(t, `
		var items = [new Point(1, 1), new Point(1, 1), new Point(2, 2), new Point(1, 1)];
		var set = [];
		for (const it of items) {
			if (!set.some(x => x.$equals(it))) set.push(it);
		}
		set.length
	`)
	assert.Equal(t, int64(2), v.ToInteger())
}

func TestModule_Equal(t *testing.T) {
	env := newTestEnv(t)
	assert.True(t, env.m.Equal(env.run(t, `"a"`), env.run(t, `"a"`)))
	assert.False(t, env.m.Equal(env.run(t, `1`), env.run(t, `"1"`)))
	assert.True(t, env.m.Equal(nil, goja.Undefined()))
	assert.False(t, env.m.Equal(env.run(t, `({})`), env.run(t, `({})`)))
	assert.True(t, env.m.Equal(env.run(t, `Color.GREEN`), env.toScript(t, 1, Enum[int]("Color"))))
	assert.False(t, env.m.Equal(env.run(t, `Color.RED`), env.run(t, `Shape.CIRCLE`)))
	assert.False(t, env.m.Equal(env.run(t, `Color.RED`), env.run(t, `0`)))
	assert.False(t, env.m.Equal(env.run(t, `new Point(0, 0)`), env.run(t, `({})`)))
}

func TestEquals_Released(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, `var a = new Point(1, 1), b = new Point(1, 1)`)
	require.NoError(t, env.m.Release(env.rt.Get("b")))
	assert.False(t, env.run(t, `a.$equals(b)`).ToBoolean())
	assert.False(t, env.m.Equal(env.rt.Get("a"), env.rt.Get("b")))
	assert.True(t, env.m.Equal(env.rt.Get("b"), env.rt.Get("b")))
	env.mustFail(t, `b.$equals(a)`)
}
