package stacks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/memory"
	"github.com/quarter-lang/quarter/stacks"
)

func newStack(t *testing.T) *stacks.Stack {
	t.Helper()
	a := memory.New(memory.Config{})
	return stacks.NewDataStack(a)
}

func TestPushPop(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.Push(42))
	v, err := s.Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestSwapLaw(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))

	b, _ := s.Pop()
	a, _ := s.Pop()
	require.NoError(t, s.Push(b))
	require.NoError(t, s.Push(a))

	top, _ := s.Pop()
	bot, _ := s.Pop()
	assert.EqualValues(t, 1, top)
	assert.EqualValues(t, 2, bot)
}

func TestUnderflow(t *testing.T) {
	s := newStack(t)
	_, err := s.Pop()
	require.Error(t, err)
	assert.IsType(t, stacks.ErrUnderflow{}, err)
}

func TestOverflow(t *testing.T) {
	a := memory.New(memory.Config{DataStackSize: 16})
	s := stacks.NewDataStack(a)
	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))
	err := s.Push(3)
	require.Error(t, err)
	assert.IsType(t, stacks.ErrOverflow{}, err)
}

func TestPeekAndPick(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.Push(10))
	require.NoError(t, s.Push(20))
	require.NoError(t, s.Push(30))

	top, err := s.Peek(0)
	require.NoError(t, err)
	assert.EqualValues(t, 30, top)

	assert.EqualValues(t, 20, s.Pick(1))
	assert.EqualValues(t, 0, s.Pick(99)) // out of range defaults to 0, not a fault
}

func TestSnapshotRestore(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.Push(1))
	mark := s.Snapshot()
	require.NoError(t, s.Push(2))
	require.NoError(t, s.Push(3))

	s.Restore(mark)
	assert.EqualValues(t, 1, s.Depth())
}

func TestLoopStackIJ(t *testing.T) {
	var ls stacks.LoopStack
	ls.Push(0, 10)
	ls.Push(100, 110)

	inner, err := ls.Top()
	require.NoError(t, err)
	assert.EqualValues(t, 100, inner.Index)

	outer, err := ls.Outer()
	require.NoError(t, err)
	assert.EqualValues(t, 0, outer.Index)

	_, err = ls.Pop()
	require.NoError(t, err)
	_, err = ls.Outer()
	assert.Equal(t, stacks.ErrLoopMisuse, err)
}

func TestLoopMisuseWithNoLoop(t *testing.T) {
	var ls stacks.LoopStack
	_, err := ls.Top()
	assert.Equal(t, stacks.ErrLoopMisuse, err)
}
