package interp_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/interp"
)

func newVM(t *testing.T) (*interp.Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	i := interp.New(interp.WithOutput(&out))
	return i, &out
}

func TestSquare(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`: SQUARE DUP * ; 7 SQUARE`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 49, v)
}

func TestFactorial(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`
		: FACT DUP 1 = IF DROP 1 ELSE DUP 1 - FACT * THEN ;
		5 FACT`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 120, v)
}

func TestCountdownTailCallDoesNotGrowHostStack(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`
		: COUNTDOWN DUP 0 = IF ELSE 1 - COUNTDOWN THEN ;`))
	require.NoError(t, i.LoadSource(`1000000 COUNTDOWN`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
	assert.Zero(t, i.Data().Depth())
}

func TestCountedLoopPrintsIndices(t *testing.T) {
	i, out := newVM(t)
	require.NoError(t, i.LoadSource(`10 0 DO I . LOOP`))
	assert.Equal(t, "0 1 2 3 4 5 6 7 8 9 ", out.String())
	assert.Zero(t, i.Data().Depth())
}

func TestAbs(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`: ABS DUP 0 < IF NEGATE THEN ;`))

	require.NoError(t, i.LoadSource(`-42 ABS`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	require.NoError(t, i.LoadSource(`42 ABS`))
	v, err = i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestVariableLayout(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`VARIABLE X VARIABLE Y`))
	require.NoError(t, i.LoadSource(`42 X ! X @`))

	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	require.NoError(t, i.LoadSource(`X Y`))
	yAddr, err := i.Data().Pop()
	require.NoError(t, err)
	xAddr, err := i.Data().Pop()
	require.NoError(t, err)
	assert.Equal(t, xAddr+8, yAddr)
}

func TestLeaveExitsLoopEarly(t *testing.T) {
	i, out := newVM(t)
	require.NoError(t, i.LoadSource(`
		10 0 DO I 3 = IF LEAVE THEN I . LOOP`))
	assert.Equal(t, "0 1 2 ", out.String())
}

func TestCatchCapturesThrow(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`: BOOM 99 THROW ;`))
	require.NoError(t, i.LoadSource(`['] BOOM CATCH`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 99, v)
}

func TestDoLoopSkippedWhenStartNotLessLimit(t *testing.T) {
	i, out := newVM(t)
	require.NoError(t, i.LoadSource(`0 5 DO I . LOOP`))
	assert.Equal(t, "", out.String())
}

func TestStringLiteralsTypeAndPrint(t *testing.T) {
	i, out := newVM(t)
	require.NoError(t, i.LoadSource(`." hello" S" world" TYPE`))
	assert.Equal(t, "helloworld", out.String())
}

func TestUndefinedWordRejectsDefinitionAtomically(t *testing.T) {
	i, _ := newVM(t)
	err := i.LoadSource(`: BAD NOPE ;`)
	require.Error(t, err)
	assert.False(t, i.Dict().Has("BAD"))
}

func TestSelfRecursionAllowedDuringValidation(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`: LOOP-ER DUP 0 = IF ELSE 1 - LOOP-ER THEN ;`))
	assert.True(t, i.Dict().Has("LOOP-ER"))
}

func TestBaseAffectsNumberParsing(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`16 BASE !`))
	require.NoError(t, i.LoadSource(`FF`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 255, v)
}

func TestBeginWhileRepeat(t *testing.T) {
	i, out := newVM(t)
	require.NoError(t, i.LoadSource(`
		: COUNT-UP 0 BEGIN DUP 5 < WHILE DUP . 1 + REPEAT DROP ;
		COUNT-UP`))
	assert.Equal(t, "0 1 2 3 4 ", out.String())
}

func TestIncompleteDefinitionReportsIncomplete(t *testing.T) {
	i, _ := newVM(t)
	err := i.LoadSource(`: FOO DUP`)
	require.Error(t, err)
	var incomplete interp.IncompleteError
	require.ErrorAs(t, err, &incomplete)
}

func TestEvaluatePrimitive(t *testing.T) {
	i, _ := newVM(t)
	require.NoError(t, i.LoadSource(`: RUN-IT S" 3 4 +" EVALUATE ;`))
	require.NoError(t, i.LoadSource(`RUN-IT`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
}
