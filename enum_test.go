package gojabridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	f, err := r.Register("Level",
		EnumEntry{Name: "LOW", Value: -5},
		EnumEntry{Name: "HIGH", Value: 100},
	)
	require.NoError(t, err)
	assert.Equal(t, "Level", f.Name())
	require.Len(t, f.Members(), 2)
	assert.Equal(t, "LOW", f.Members()[0].Name())
	assert.Equal(t, int64(100), f.Members()[1].Value())
	assert.Same(t, f, r.Family("Level"))
	assert.Nil(t, r.Family("Nope"))
}

func TestRegistry_DuplicateFamily(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("Level", EnumEntry{Name: "LOW", Value: 0})
	require.NoError(t, err)
	_, err = r.Register("Level", EnumEntry{Name: "HIGH", Value: 1})
	require.ErrorIs(t, err, ErrDuplicateEnumFamily)
	m, err := r.Resolve("Level", 0)
	require.NoError(t, err)
	assert.Equal(t, "LOW", m.Name(), "families must not be merged")
}

func TestRegistry_DuplicateMember(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("A", EnumEntry{Name: "X", Value: 0}, EnumEntry{Name: "X", Value: 1})
	require.ErrorIs(t, err, ErrDuplicateMember)
	_, err = r.Register("B", EnumEntry{Name: "X", Value: 0}, EnumEntry{Name: "Y", Value: 0})
	require.ErrorIs(t, err, ErrDuplicateMember)
	assert.Empty(t, r.Families(), "failed registrations must not leave a family behind")
}

func TestRegistry_RegisterAll(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterAll(
		FamilyDecl{Name: "Size", Members: []EnumEntry{{Name: "S", Value: 0}}},
		FamilyDecl{Name: "Alias", Members: []EnumEntry{{Name: "A", Value: 0}, {Name: "A_ALIAS", Value: 0}}},
	)
	require.ErrorIs(t, err, ErrDuplicateMember)
	assert.Equal(t, []string{"Color", "Shape"}, r.Families(), "no family of a failed batch is registered")

	_, err = r.RegisterAll(
		FamilyDecl{Name: "Size", Members: []EnumEntry{{Name: "S", Value: 0}}},
		FamilyDecl{Name: "Color"},
	)
	require.ErrorIs(t, err, ErrDuplicateEnumFamily)
	_, err = r.RegisterAll(FamilyDecl{Name: "Size"}, FamilyDecl{Name: "Size"})
	require.ErrorIs(t, err, ErrDuplicateEnumFamily)
	assert.Nil(t, r.Family("Size"))

	fs, err := r.RegisterAll(
		FamilyDecl{Name: "Size", Members: []EnumEntry{{Name: "S", Value: 0}, {Name: "L", Value: 2}}},
		FamilyDecl{Name: "Weight"},
	)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Same(t, fs[0], r.Family("Size"))
	assert.Empty(t, fs[1].Members())
}

func TestRegistry_InvalidNames(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("")
	require.Error(t, err)
	_, err = r.Register("A", EnumEntry{Name: "$name", Value: 0})
	require.Error(t, err)
	_, err = r.Register("A", EnumEntry{Name: "", Value: 0})
	require.Error(t, err)
}

func TestRegistry_Resolve(t *testing.T) {
	r := testRegistry(t)
	m, err := r.Resolve("Color", 4)
	require.NoError(t, err)
	assert.Equal(t, "BLUE", m.Name())
	assert.Equal(t, "Color.BLUE", m.String())
	assert.Equal(t, "Color", FamilyOf(m))

	_, err = r.Resolve("Color", 3)
	require.ErrorIs(t, err, ErrUnknownMember)
	_, err = r.Resolve("Nope", 0)
	require.ErrorIs(t, err, ErrUnknownMember)

	m2, err := r.Lookup("Color", "BLUE")
	require.NoError(t, err)
	assert.Same(t, m, m2)
	_, err = r.Lookup("Color", "PURPLE")
	require.ErrorIs(t, err, ErrUnknownMember)
}

func TestMember_Equal(t *testing.T) {
	r := testRegistry(t)
	red, err := r.Resolve("Color", 0)
	require.NoError(t, err)
	circle, err := r.Resolve("Shape", 0)
	require.NoError(t, err)
	red2, err := r.Lookup("Color", "RED")
	require.NoError(t, err)

	assert.Equal(t, red.Value(), circle.Value())
	assert.False(t, red.Equal(circle), "members of distinct families are never equal")
	assert.True(t, red.Equal(red2))
	assert.False(t, red.Equal("RED"))
	assert.False(t, red.Equal((*Member)(nil)))
	assert.Same(t, red.Family(), red2.Family())
}

func TestRegistry_Families(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, []string{"Color", "Shape"}, r.Families())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Register("Race", EnumEntry{Name: "A", Value: 1})
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			} else if !errors.Is(err, ErrDuplicateEnumFamily) {
				t.Error(err)
			}
			_ = r.Family("Race")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestEnumObjects(t *testing.T) {
	env := newTestEnv(t)

	t.Run("family", func(t *testing.T) {
		assert.Equal(t, "Color", env.run(t, `Color.$name`).String())
		assert.True(t, env.run(t, `Object.isFrozen(Color)`).ToBoolean())
		assert.Equal(t, "RED,GREEN,BLUE", env.run(t, `Object.keys(Color).join(",")`).String())
	})

	t.Run("member", func(t *testing.T) {
		assert.Equal(t, "Color", env.run(t, `Color.BLUE.$name`).String())
		assert.Equal(t, "BLUE", env.run(t, `Color.BLUE.name`).String())
		assert.Equal(t, int64(4), env.run(t, `Color.BLUE.value`).ToInteger())
		assert.Equal(t, "Color.BLUE", env.run(t, `String(Color.BLUE)`).String())
		assert.Equal(t, int64(5), env.run(t, `Color.BLUE + 1`).ToInteger())
		assert.True(t, env.run(t, `Object.isFrozen(Color.RED)`).ToBoolean())
		assert.Equal(t, "[object Color]", env.run(t, `Object.prototype.toString.call(Color.RED)`).String())
	})

	t.Run("immutable $name", func(t *testing.T) {
		env.mustFail(t, `'use strict'; Color.RED.$name = 'Other'`)
		assert.Equal(t, "Color", env.run(t, `Color.RED.$name`).String())
	})

	t.Run("enumType", func(t *testing.T) {
		assert.True(t, env.run(t, `bridge.enumType('Shape') === Shape`).ToBoolean())
		env.mustFail(t, `bridge.enumType('Nope')`)
	})

	t.Run("familyOf", func(t *testing.T) {
		assert.Equal(t, "Shape", env.run(t, `bridge.familyOf(Shape.SQUARE)`).String())
		env.mustFail(t, `bridge.familyOf(1)`)
	})

	t.Run("isEnumMember", func(t *testing.T) {
		assert.True(t, env.run(t, `bridge.isEnumMember(Color.RED)`).ToBoolean())
		assert.True(t, env.run(t, `bridge.isEnumMember(Color.RED, 'Color')`).ToBoolean())
		assert.False(t, env.run(t, `bridge.isEnumMember(Color.RED, 'Shape')`).ToBoolean())
		assert.False(t, env.run(t, `bridge.isEnumMember({$name: 'Color', name: 'RED', value: 0})`).ToBoolean())
	})

	t.Run("cross family", func(t *testing.T) {
		assert.False(t, env.run(t, `bridge.equals(Color.RED, Shape.CIRCLE)`).ToBoolean())
		assert.True(t, env.run(t, `bridge.equals(Color.RED, Color.RED)`).ToBoolean())
	})
}

func TestEnumObject_Unregistered(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.m.EnumObject("Nope")
	require.ErrorIs(t, err, ErrUnknownMember)
	require.Error(t, env.m.DefineEnum(nil, "Nope"))
}
