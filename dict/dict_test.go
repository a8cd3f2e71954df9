package dict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/dict"
)

func TestCaseInsensitiveLookup(t *testing.T) {
	d := dict.New()
	require.NoError(t, d.DefinePrimitive("Dup", func() error { return nil }))

	assert.True(t, d.Has("dup"))
	assert.True(t, d.Has("DUP"))
	assert.True(t, d.Has("Dup"))
	assert.Equal(t, "DUP", d.Get("dup").Name)
}

func TestFrozenRedefinitionRejected(t *testing.T) {
	d := dict.New()
	require.NoError(t, d.DefineNative("SQUARE", func([]byte, *uintptr, *uintptr) {}))

	err := d.DefinePrimitive("square", func() error { return nil })
	require.Error(t, err)
	assert.IsType(t, dict.FrozenRedefinitionError{}, err)

	// the native entry must survive the rejected redefinition attempt
	assert.Equal(t, dict.VariantNative, d.Get("square").Variant)
}

func TestMarkImmediateAffectsLastDefined(t *testing.T) {
	d := dict.New()
	require.NoError(t, d.DefinePrimitive("A", func() error { return nil }))
	require.NoError(t, d.DefinePrimitive("B", func() error { return nil }))
	require.NoError(t, d.MarkImmediate())

	assert.False(t, d.Get("A").Immediate)
	assert.True(t, d.Get("B").Immediate)
}

func TestExecuteDispatchesByVariant(t *testing.T) {
	d := dict.New()
	var ran string

	require.NoError(t, d.DefinePrimitive("PRIM", func() error { ran = "prim"; return nil }))
	n := ast.PushNumber(1)
	require.NoError(t, d.DefineCompiled("COMP", n))
	require.NoError(t, d.DefineNative("NAT", func([]byte, *uintptr, *uintptr) { ran = "native" }))

	runCompiled := func(got *ast.Node) error {
		ran = "compiled"
		assert.Equal(t, ast.TagPushNumber, got.Tag)
		return nil
	}
	callNative := func(fn dict.NativeFunc) error { fn(nil, nil, nil); return nil }
	callPrimitive := func(fn dict.PrimitiveFunc) error { return fn() }

	require.NoError(t, d.Execute("prim", runCompiled, callNative, callPrimitive))
	assert.Equal(t, "prim", ran)

	require.NoError(t, d.Execute("comp", runCompiled, callNative, callPrimitive))
	assert.Equal(t, "compiled", ran)

	require.NoError(t, d.Execute("nat", runCompiled, callNative, callPrimitive))
	assert.Equal(t, "native", ran)
}

func TestUndefinedWord(t *testing.T) {
	d := dict.New()
	err := d.Execute("nope", nil, nil, nil)
	assert.Equal(t, dict.UndefinedWordError{"nope"}, err)
}
