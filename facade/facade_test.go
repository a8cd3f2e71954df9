package facade_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/dict"
	"github.com/quarter-lang/quarter/facade"
	"github.com/quarter-lang/quarter/memory"
	"github.com/quarter-lang/quarter/native"
	"github.com/quarter-lang/quarter/stacks"
)

// fakeMachine satisfies facade.Machine without constructing a real
// native.Backend (which links libLLVM via cgo) — the AST-handle words
// this file exercises never touch NativeBackend, only the LLVM-* words
// do, and those aren't called here.
type fakeMachine struct {
	data *stacks.Stack
	mem  *memory.Arena
	dict *dict.Dictionary
	out  bytes.Buffer
	reg  *ast.Registry
}

func newFakeMachine() *fakeMachine {
	mem := memory.New(memory.Config{})
	return &fakeMachine{
		data: stacks.NewDataStack(mem),
		mem:  mem,
		dict: dict.New(),
		reg:  ast.NewRegistry(),
	}
}

func (f *fakeMachine) Data() *stacks.Stack          { return f.data }
func (f *fakeMachine) Mem() *memory.Arena           { return f.mem }
func (f *fakeMachine) Dict() *dict.Dictionary       { return f.dict }
func (f *fakeMachine) Out() io.Writer               { return &f.out }
func (f *fakeMachine) ASTRegistry() *ast.Registry   { return f.reg }
func (f *fakeMachine) NativeBackend() *native.Backend { return nil }

func TestASTTypeAndGetNumber(t *testing.T) {
	m := newFakeMachine()
	require.NoError(t, facade.Register(m, m.dict))

	h := m.reg.Store(ast.PushNumber(42))
	require.NoError(t, m.data.Push(cell.Cell(h)))
	require.NoError(t, m.dict.Execute("AST-TYPE", nil, nil, func(fn dict.PrimitiveFunc) error { return fn() }))
	tag, err := m.data.Pop()
	require.NoError(t, err)
	assert.EqualValues(t, ast.TagPushNumber, tag)

	h = m.reg.Store(ast.PushNumber(42))
	require.NoError(t, m.data.Push(cell.Cell(h)))
	require.NoError(t, m.dict.Execute("AST-GET-NUMBER", nil, nil, func(fn dict.PrimitiveFunc) error { return fn() }))
	n, err := m.data.Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
}

func TestASTSeqLengthAndChild(t *testing.T) {
	m := newFakeMachine()
	require.NoError(t, facade.Register(m, m.dict))

	seq := ast.Sequence([]ast.Node{ast.PushNumber(1), ast.PushNumber(2), ast.PushNumber(3)})
	h := m.reg.Store(seq)

	require.NoError(t, m.data.Push(cell.Cell(h)))
	require.NoError(t, m.dict.Execute("AST-SEQ-LENGTH", nil, nil, func(fn dict.PrimitiveFunc) error { return fn() }))
	n, err := m.data.Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, m.data.Push(cell.Cell(h)))
	require.NoError(t, m.data.Push(1))
	require.NoError(t, m.dict.Execute("AST-SEQ-CHILD", nil, nil, func(fn dict.PrimitiveFunc) error { return fn() }))
	childHandle, err := m.data.Pop()
	require.NoError(t, err)

	require.NoError(t, m.data.Push(childHandle))
	require.NoError(t, m.dict.Execute("AST-GET-NUMBER", nil, nil, func(fn dict.PrimitiveFunc) error { return fn() }))
	v, err := m.data.Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestRegisterInstallsLLVMAndJITWords(t *testing.T) {
	m := newFakeMachine()
	require.NoError(t, facade.Register(m, m.dict))

	for _, name := range []string{
		"LLVM-CREATE-MODULE", "LLVM-BUILD-ADD", "LLVM-JIT-COMPILE", "REGISTER-JIT-WORD",
	} {
		assert.True(t, m.dict.Has(name), "missing word %s", name)
	}
}
