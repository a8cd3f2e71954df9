package native_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarter-lang/quarter/native"
)

// These exercise the pure-Go bookkeeping (symbol table, ABI symbol
// naming, object registry) without touching the LLVM context — Backend
// construction links libLLVM via cgo, which these tests don't invoke
// (compile_test.go covers the Backend).

func TestSymbolTableRegisterLookup(t *testing.T) {
	st := native.NewSymbolTable()
	_, ok := st.Lookup("quarter_square")
	assert.False(t, ok)

	st.Register("quarter_square", 0xdead)
	addr, ok := st.Lookup("quarter_square")
	assert.True(t, ok)
	assert.EqualValues(t, 0xdead, addr)

	st.Register("quarter_square", 0xbeef)
	addr, ok = st.Lookup("quarter_square")
	assert.True(t, ok)
	assert.EqualValues(t, 0xbeef, addr)
}

func TestSymbolNaming(t *testing.T) {
	assert.Equal(t, "quarter_add", native.Symbol("+"))
	assert.Equal(t, "quarter_dup", native.Symbol("dup"))
	assert.Equal(t, "quarter_dup", native.Symbol("DUP"))
}

func TestUnsupportedWordError(t *testing.T) {
	err := native.UnsupportedWord{Name: "FROBNICATE"}
	assert.Contains(t, err.Error(), "FROBNICATE")
}

func TestUnknownInlineOpError(t *testing.T) {
	err := native.UnknownInlineOp{Op: "bogus"}
	assert.Contains(t, err.Error(), "bogus")
}
