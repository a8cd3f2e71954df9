// End-to-end scenarios against a full interpreter instance: stdlib
// bootstrap followed by user source, the same sequence cmd/quarter runs.
// Grounded on the teacher's table-driven vmTestCases/testify style
// (vm_test.go), adapted to Quarter's LoadSource/Data().Pop() surface.
package quarter_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/interp"
	"github.com/quarter-lang/quarter/stdlib"
)

func stackSnapshot(i *interp.Interpreter) []cell.Cell {
	depth := i.Data().Depth()
	snap := make([]cell.Cell, depth)
	for n := uint(0); n < depth; n++ {
		snap[n] = i.Data().Pick(depth - 1 - n)
	}
	return snap
}

func newBootedVM(t *testing.T) (*interp.Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	i := interp.New(interp.WithOutput(&out))

	var boot bytes.Buffer
	_, err := stdlib.Source.WriteTo(&boot)
	require.NoError(t, err)
	require.NoError(t, i.LoadSource(boot.String()))

	return i, &out
}

func TestStdlibBootstrapLoadsCleanly(t *testing.T) {
	newBootedVM(t)
}

func TestStdlibConstants(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NoError(t, i.LoadSource(`true false`))
	f, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 0, f)
	tr, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, -1, tr)
}

func TestStdlibNipTuck(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NoError(t, i.LoadSource(`1 2 nip`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	assert.EqualValues(t, 0, i.Data().Depth())

	require.NoError(t, i.LoadSource(`1 2 tuck`))
	assert.EqualValues(t, 3, i.Data().Depth())
	c, err := i.Data().Pop()
	require.NoError(t, err)
	b, err := i.Data().Pop()
	require.NoError(t, err)
	a, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 2, c)
	assert.EqualValues(t, 1, b)
	assert.EqualValues(t, 2, a)
}

func TestStdlib2DupAnd2Drop(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NoError(t, i.LoadSource(`1 2 2dup 2drop`))
	assert.EqualValues(t, 2, i.Data().Depth())
}

func TestStdlibWithin(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NoError(t, i.LoadSource(`5 0 10 within`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, -1, v)

	require.NoError(t, i.LoadSource(`15 0 10 within`))
	v, err = i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
}

func TestStdlibSpacesEmitsBlanks(t *testing.T) {
	i, out := newBootedVM(t)
	out.Reset()
	require.NoError(t, i.LoadSource(`3 spaces`))
	assert.Equal(t, "   ", out.String())
}

// TestDataStackSnapshotDiff compares a whole-stack snapshot structurally
// rather than cell by cell, grounded on mna-starlark-go's use of go-cmp for
// diffing interpreter state in its own table-driven tests.
func TestDataStackSnapshotDiff(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NoError(t, i.LoadSource(`1 2 3 2dup 2drop`))

	want := []cell.Cell{1, 2, 3}
	if diff := cmp.Diff(want, stackSnapshot(i)); diff != "" {
		t.Errorf("data stack snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSquareSeedScenario(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NoError(t, i.LoadSource(`: SQUARE DUP * ; 7 SQUARE`))
	v, err := i.Data().Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 49, v)
}

func TestCountedLoopSeedScenario(t *testing.T) {
	i, out := newBootedVM(t)
	require.NoError(t, i.LoadSource(`10 0 DO I . LOOP`))
	assert.Equal(t, "0 1 2 3 4 5 6 7 8 9 ", out.String())
	assert.EqualValues(t, 0, i.Data().Depth())
}

// The AST-handle and LLVM-facade primitives are wired into every
// Interpreter (interp.New), not only reachable from a self-hosted
// compiler; this checks the dictionary carries them and that the
// registries behind them are live.
func TestASTAndLLVMFacadesWired(t *testing.T) {
	i, _ := newBootedVM(t)
	require.NotNil(t, i.ASTRegistry())
	require.NotNil(t, i.NativeBackend())

	for _, name := range []string{
		"AST-TYPE", "AST-SEQ-LENGTH", "AST-SEQ-CHILD",
		"LLVM-CREATE-MODULE", "LLVM-CREATE-BUILDER", "LLVM-JIT-COMPILE",
		"REGISTER-JIT-WORD",
	} {
		assert.True(t, i.Dict().Has(name), "missing facade word %s", name)
	}
}
