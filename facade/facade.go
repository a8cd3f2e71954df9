// Package facade implements the two reflective primitive surfaces a
// self-hosted Forth compiler would drive (spec.md §4.5 and §6's
// "SSA-builder facade"/"AST facade" word categories): the AST-handle API
// over ast.Registry, and a subset of LLVM IR construction wrapped as
// Forth words returning opaque handle cells, backed by native.Backend's
// shared llvm.Context. The self-hosted compiler itself is out of scope
// (spec.md §1); these primitives are its would-be foundation.
package facade

import (
	"io"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/dict"
	"github.com/quarter-lang/quarter/memory"
	"github.com/quarter-lang/quarter/native"
	"github.com/quarter-lang/quarter/stacks"
)

// Machine is the slice of interp.Interpreter the facade needs: stack/memory
// access for reading and writing cells and strings, plus the AST registry
// and native backend this VM was built with. Mirrors prim.Machine's shape
// (interp implements both without either package importing the other).
type Machine interface {
	Data() *stacks.Stack
	Mem() *memory.Arena
	Dict() *dict.Dictionary
	Out() io.Writer

	ASTRegistry() *ast.Registry
	NativeBackend() *native.Backend
}

// Register defines every AST-handle and LLVM-facade primitive into d,
// closing over m.
func Register(m Machine, d *dict.Dictionary) error {
	for _, f := range astFuncs() {
		f := f
		if err := d.DefinePrimitive(f.Name, func() error { return f.Run(m) }); err != nil {
			return err
		}
	}
	for _, f := range llvmFuncs() {
		f := f
		if err := d.DefinePrimitive(f.Name, func() error { return f.Run(m) }); err != nil {
			return err
		}
	}
	return d.DefinePrimitive("REGISTER-JIT-WORD", func() error { return registerJITWord(m) })
}

type primFunc struct {
	Name string
	Run  func(m Machine) error
}

func popCell(m Machine) (cell.Cell, error) { return m.Data().Pop() }
