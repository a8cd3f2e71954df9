// Package native implements Quarter's native-code backend (spec.md §4.4):
// it lowers a compiled word's AST to an SSA function over
// tinygo.org/x/go-llvm (the pack's one SSA-builder library with a real JIT
// execution engine — github.com/llir/llvm only assembles IR text and
// cannot "register the resulting function pointer"), materialises it with
// MCJIT, and registers the function address in a process-wide
// SymbolTable before upgrading the dictionary entry to native and
// freezing it.
//
// Grounded on the pack's one example that drives this same library,
// other_examples' vslc llvm/transform.go (context/builder/module
// lifecycle, AddFunction/AddBasicBlock/CreateXxx IR construction style);
// adapted from a whole-program AST-to-object-file compiler into a
// per-word JIT compiler matching spec.md §4.4's four-step "compile".
package native

import (
	"fmt"
	"sync"
	"unsafe"

	"tinygo.org/x/go-llvm"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/dict"
)

var initTargetsOnce sync.Once

func initTargets() {
	llvm.LinkInMCJIT()
	llvm.InitializeNativeTarget()
	llvm.InitializeNativeAsmPrinter()
}

// Backend owns the SSA context and the process-wide native state: the
// symbol table, the retained (never-disposed) JIT modules, and the set of
// primitive fallback functions a compiled word may call out to.
//
// Per spec.md §9.4 / Open Question 4, Backend never disposes an
// ExecutionEngine once any of its function addresses have been registered
// in symtab: a later compilation may have linked against that address, and
// there is no way to know every such caller has stopped running.
type Backend struct {
	mu        sync.Mutex
	ctx       llvm.Context
	symtab    *SymbolTable
	dict      *dict.Dictionary
	fallbacks map[string]dict.NativeFunc // quarter_<name> -> Go implementation
	engines   []llvm.ExecutionEngine     // retained for process lifetime
	modules   []llvm.Module              // retained alongside their engines
	objects   *ObjectRegistry            // LLVM-* facade handle table

	i64    llvm.Type
	i8     llvm.Type
	i8ptr  llvm.Type
	i64ptr llvm.Type
	fnType llvm.Type
}

// NewBackend creates a Backend bound to d (whose entries Compile upgrades)
// and fallbacks (the Go-side implementations of primitives a compiled word
// calls out to rather than inlines, keyed by their quarter_<name> ABI
// symbol — see Symbol).
func NewBackend(d *dict.Dictionary, fallbacks map[string]dict.NativeFunc) *Backend {
	initTargetsOnce.Do(initTargets)
	ctx := llvm.NewContext()
	i64 := ctx.Int64Type()
	i8 := ctx.Int8Type()
	i8ptr := llvm.PointerType(i8, 0)
	i64ptr := llvm.PointerType(i64, 0)
	return &Backend{
		ctx:       ctx,
		symtab:    NewSymbolTable(),
		dict:      d,
		fallbacks: fallbacks,
		i64:       i64,
		i8:        i8,
		i8ptr:     i8ptr,
		i64ptr:    i64ptr,
		fnType:    llvm.FunctionType(ctx.VoidType(), []llvm.Type{i8ptr, i64ptr, i64ptr}, false),
	}
}

// Symbols exposes the backend's symbol table, for the AST-handle/LLVM
// facade's REGISTER-JIT-WORD primitive (facade.Register).
func (b *Backend) Symbols() *SymbolTable { return b.symtab }

// Context exposes the backend's shared llvm.Context, for the LLVM-*
// facade primitives that build IR directly (facade package).
func (b *Backend) Context() llvm.Context { return b.ctx }

// Fallbacks exposes the backend's primitive fallback table, for the LLVM-*
// facade's JIT-compile primitive (facade package) to link a Forth-built
// module's extern declarations the same way Compile does.
func (b *Backend) Fallbacks() map[string]dict.NativeFunc { return b.fallbacks }

// JITCompile verifies module, materialises it with a fresh execution
// engine, links any declaration-only (extern) function against the symbol
// table or the fallback table — the same linking rule Compile applies to
// a compiled word's callees — and returns fn's function address. Used by
// the LLVM-* facade's LLVM-JIT-COMPILE word, for modules a Forth program
// builds directly rather than AST-driven Compile.
func (b *Backend) JITCompile(module llvm.Module, fn llvm.Value) (uintptr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := llvm.VerifyModule(module, llvm.ReturnStatusAction); err != nil {
		return 0, fmt.Errorf("verify: %v", err)
	}
	engine, err := llvm.NewExecutionEngine(module)
	if err != nil {
		return 0, fmt.Errorf("jit: %v", err)
	}

	for decl := module.FirstFunction(); !decl.IsNil(); decl = llvm.NextFunction(decl) {
		if !decl.IsDeclaration() {
			continue
		}
		sym := decl.Name()
		if addr, ok := b.symtab.Lookup(sym); ok {
			engine.AddGlobalMapping(decl, unsafe.Pointer(addr))
			continue
		}
		if impl, ok := b.fallbacks[sym]; ok {
			addr, err := bridgeFuncPointer(impl)
			if err != nil {
				return 0, err
			}
			engine.AddGlobalMapping(decl, unsafe.Pointer(addr))
		}
	}

	addr := uintptr(engine.GetFunctionAddress(fn.Name()))
	b.symtab.Register(fn.Name(), addr)
	b.engines = append(b.engines, engine)
	b.modules = append(b.modules, module)
	return addr, nil
}

// Compile lowers name's body to a native function, per spec.md §4.4:
// declares previously-registered natives as externs, creates the function
// with the fixed ABI signature, lowers the body to IR, verifies, JIT
// materialises, registers the address, and freezes the dictionary entry.
func (b *Backend) Compile(name string, body []ast.Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	module := b.ctx.NewModule(name)
	builder := b.ctx.NewBuilder()
	defer builder.Dispose()

	sym := Symbol(name)
	fn := llvm.AddFunction(module, sym, b.fnType)
	entry := llvm.AddBasicBlock(fn, "entry")
	builder.SetInsertPointAtEnd(entry)

	lc := &lowerCtx{
		b:       b,
		module:  module,
		builder: builder,
		fn:      fn,
		self:    name,
		mem:     fn.Param(0),
		sp:      fn.Param(1),
		rp:      fn.Param(2),
		externs: make(map[string]bool),
	}

	if err := lc.lowerSequence(body); err != nil {
		return compileError{name, err}
	}
	if !lc.terminated {
		builder.CreateRetVoid()
	}

	if err := llvm.VerifyModule(module, llvm.ReturnStatusAction); err != nil {
		return compileError{name, fmt.Errorf("verify: %v", err)}
	}

	engine, err := llvm.NewExecutionEngine(module)
	if err != nil {
		return compileError{name, fmt.Errorf("jit: %v", err)}
	}

	for extSym := range lc.externs {
		ext := module.NamedFunction(extSym)
		if ext.IsNil() {
			continue
		}
		if addr, ok := b.symtab.Lookup(extSym); ok {
			engine.AddGlobalMapping(ext, unsafe.Pointer(addr))
			continue
		}
		if impl, ok := b.fallbacks[extSym]; ok {
			addr, err := bridgeFuncPointer(impl)
			if err != nil {
				return compileError{name, err}
			}
			engine.AddGlobalMapping(ext, unsafe.Pointer(addr))
			continue
		}
		return compileError{name, UnsupportedWord{extSym}}
	}

	addr := uintptr(engine.GetFunctionAddress(sym))
	b.symtab.Register(sym, addr)
	b.engines = append(b.engines, engine)
	b.modules = append(b.modules, module)

	nativeFn := func(memory []byte, sp, rp *uintptr) { callNativeAddr(addr, memory, sp, rp) }
	return b.dict.UpgradeToNative(name, nativeFn)
}

// DeclareFunction adds a function named name to module using Backend's
// fixed three-pointer ABI signature, for the LLVM-* facade's
// LLVM-CREATE-FUNCTION word — any function built through the facade
// shares Compile's calling convention, so it is directly eligible for
// REGISTER-JIT-WORD once JIT-compiled.
func (b *Backend) DeclareFunction(module llvm.Module, name string) llvm.Value {
	return llvm.AddFunction(module, name, b.fnType)
}

// cellConst builds an i64 constant for a Cell literal.
func (lc *lowerCtx) cellConst(c cell.Cell) llvm.Value {
	return llvm.ConstInt(lc.b.i64, uint64(int64(c)), true)
}
