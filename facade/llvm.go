package facade

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/native"
)

// The LLVM-* words wrap a representative subset of SSA IR construction
// (spec.md §6's "SSA-builder facade") as Forth primitives returning opaque
// handle cells over native.Backend's object registry — the self-hosted
// compiler's would-be foundation, not a complete LLVM binding. Every
// handle read or written here is an native.ObjectHandle wrapping one of
// llvm.Context/Module/Builder/Value/BasicBlock; a handle from the wrong
// kind of object fails with a type-assertion error rather than panicking.
//
// Built functions always use Backend's fixed three-pointer ABI signature
// (see native.Backend's fnType), so a function built this way is directly
// eligible for REGISTER-JIT-WORD without any extra adaptation.

func popHandle(m Machine) (native.ObjectHandle, error) {
	c, err := popCell(m)
	if err != nil {
		return 0, err
	}
	return native.ObjectHandle(c), nil
}

func pushHandle(m Machine, h native.ObjectHandle) error {
	return m.Data().Push(cell.Cell(h))
}

func objectFor(m Machine, h native.ObjectHandle) (interface{}, error) {
	obj, ok := m.NativeBackend().Objects().Get(h)
	if !ok {
		return nil, fmt.Errorf("llvm: unknown object handle %d", h)
	}
	return obj, nil
}

func popModule(m Machine) (llvm.Module, error) {
	h, err := popHandle(m)
	if err != nil {
		return llvm.Module{}, err
	}
	obj, err := objectFor(m, h)
	if err != nil {
		return llvm.Module{}, err
	}
	mod, ok := obj.(llvm.Module)
	if !ok {
		return llvm.Module{}, fmt.Errorf("llvm: handle %d is not a module", h)
	}
	return mod, nil
}

func popBuilder(m Machine) (llvm.Builder, error) {
	h, err := popHandle(m)
	if err != nil {
		return llvm.Builder{}, err
	}
	obj, err := objectFor(m, h)
	if err != nil {
		return llvm.Builder{}, err
	}
	b, ok := obj.(llvm.Builder)
	if !ok {
		return llvm.Builder{}, fmt.Errorf("llvm: handle %d is not a builder", h)
	}
	return b, nil
}

func popValue(m Machine) (llvm.Value, error) {
	h, err := popHandle(m)
	if err != nil {
		return llvm.Value{}, err
	}
	obj, err := objectFor(m, h)
	if err != nil {
		return llvm.Value{}, err
	}
	v, ok := obj.(llvm.Value)
	if !ok {
		return llvm.Value{}, fmt.Errorf("llvm: handle %d is not a value", h)
	}
	return v, nil
}

func popBlock(m Machine) (llvm.BasicBlock, error) {
	h, err := popHandle(m)
	if err != nil {
		return llvm.BasicBlock{}, err
	}
	obj, err := objectFor(m, h)
	if err != nil {
		return llvm.BasicBlock{}, err
	}
	bb, ok := obj.(llvm.BasicBlock)
	if !ok {
		return llvm.BasicBlock{}, fmt.Errorf("llvm: handle %d is not a basic block", h)
	}
	return bb, nil
}

// popCountedString reads a FIND/TYPE-style ( addr len -- ) counted
// argument pair (length popped first, per Quarter's left-to-right
// evaluation order pushing addr then len).
func popCountedString(m Machine) (string, error) {
	n, err := popCell(m)
	if err != nil {
		return "", err
	}
	addr, err := popCell(m)
	if err != nil {
		return "", err
	}
	return m.Mem().ReadString(uint(addr), int(n))
}

func binOp(name string, build func(b llvm.Builder, lhs, rhs llvm.Value, name string) llvm.Value) primFunc {
	return primFunc{name, func(m Machine) error {
		rhs, err := popValue(m)
		if err != nil {
			return err
		}
		lhs, err := popValue(m)
		if err != nil {
			return err
		}
		b, err := popBuilder(m)
		if err != nil {
			return err
		}
		v := build(b, lhs, rhs, "")
		return pushHandle(m, m.NativeBackend().Objects().Store(v))
	}}
}

var icmpPredicates = []llvm.IntPredicate{
	llvm.IntEQ, llvm.IntNE, llvm.IntSLT, llvm.IntSGT, llvm.IntSLE, llvm.IntSGE,
}

func llvmFuncs() []primFunc {
	return []primFunc{
		{"LLVM-CREATE-MODULE", func(m Machine) error {
			name, err := popCountedString(m)
			if err != nil {
				return err
			}
			mod := m.NativeBackend().Context().NewModule(name)
			return pushHandle(m, m.NativeBackend().Objects().Store(mod))
		}},
		{"LLVM-CREATE-BUILDER", func(m Machine) error {
			b := m.NativeBackend().Context().NewBuilder()
			return pushHandle(m, m.NativeBackend().Objects().Store(b))
		}},
		{"LLVM-CREATE-FUNCTION", func(m Machine) error {
			name, err := popCountedString(m)
			if err != nil {
				return err
			}
			mod, err := popModule(m)
			if err != nil {
				return err
			}
			fn := m.NativeBackend().DeclareFunction(mod, name)
			return pushHandle(m, m.NativeBackend().Objects().Store(fn))
		}},
		{"LLVM-CREATE-BLOCK", func(m Machine) error {
			name, err := popCountedString(m)
			if err != nil {
				return err
			}
			fn, err := popValue(m)
			if err != nil {
				return err
			}
			bb := llvm.AddBasicBlock(fn, name)
			return pushHandle(m, m.NativeBackend().Objects().Store(bb))
		}},
		{"LLVM-POSITION-BUILDER", func(m Machine) error {
			bb, err := popBlock(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			b.SetInsertPointAtEnd(bb)
			return nil
		}},
		{"LLVM-GET-PARAM", func(m Machine) error {
			index, err := popCell(m)
			if err != nil {
				return err
			}
			fn, err := popValue(m)
			if err != nil {
				return err
			}
			return pushHandle(m, m.NativeBackend().Objects().Store(fn.Param(int(index))))
		}},
		{"LLVM-CONST", func(m Machine) error {
			n, err := popCell(m)
			if err != nil {
				return err
			}
			v := llvm.ConstInt(m.NativeBackend().Context().Int64Type(), uint64(int64(n)), true)
			return pushHandle(m, m.NativeBackend().Objects().Store(v))
		}},
		binOp("LLVM-BUILD-ADD", func(b llvm.Builder, l, r llvm.Value, name string) llvm.Value { return b.CreateAdd(l, r, name) }),
		binOp("LLVM-BUILD-SUB", func(b llvm.Builder, l, r llvm.Value, name string) llvm.Value { return b.CreateSub(l, r, name) }),
		binOp("LLVM-BUILD-MUL", func(b llvm.Builder, l, r llvm.Value, name string) llvm.Value { return b.CreateMul(l, r, name) }),
		binOp("LLVM-BUILD-AND", func(b llvm.Builder, l, r llvm.Value, name string) llvm.Value { return b.CreateAnd(l, r, name) }),
		binOp("LLVM-BUILD-OR", func(b llvm.Builder, l, r llvm.Value, name string) llvm.Value { return b.CreateOr(l, r, name) }),
		binOp("LLVM-BUILD-XOR", func(b llvm.Builder, l, r llvm.Value, name string) llvm.Value { return b.CreateXor(l, r, name) }),
		{"LLVM-BUILD-ICMP", func(m Machine) error {
			rhs, err := popValue(m)
			if err != nil {
				return err
			}
			lhs, err := popValue(m)
			if err != nil {
				return err
			}
			pred, err := popCell(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			if int(pred) < 0 || int(pred) >= len(icmpPredicates) {
				return fmt.Errorf("llvm: unknown icmp predicate %d", pred)
			}
			v := b.CreateICmp(icmpPredicates[pred], lhs, rhs, "")
			return pushHandle(m, m.NativeBackend().Objects().Store(v))
		}},
		{"LLVM-BUILD-LOAD", func(m Machine) error {
			addr, err := popValue(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			v := b.CreateLoad(addr, "")
			return pushHandle(m, m.NativeBackend().Objects().Store(v))
		}},
		{"LLVM-BUILD-STORE", func(m Machine) error {
			addr, err := popValue(m)
			if err != nil {
				return err
			}
			val, err := popValue(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			b.CreateStore(val, addr)
			return nil
		}},
		{"LLVM-BUILD-BR", func(m Machine) error {
			bb, err := popBlock(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			b.CreateBr(bb)
			return nil
		}},
		{"LLVM-BUILD-COND-BR", func(m Machine) error {
			elseBB, err := popBlock(m)
			if err != nil {
				return err
			}
			thenBB, err := popBlock(m)
			if err != nil {
				return err
			}
			cond, err := popValue(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			b.CreateCondBr(cond, thenBB, elseBB)
			return nil
		}},
		{"LLVM-BUILD-SELECT", func(m Machine) error {
			elseV, err := popValue(m)
			if err != nil {
				return err
			}
			thenV, err := popValue(m)
			if err != nil {
				return err
			}
			cond, err := popValue(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			v := b.CreateSelect(cond, thenV, elseV, "")
			return pushHandle(m, m.NativeBackend().Objects().Store(v))
		}},
		{"LLVM-BUILD-PHI", func(m Machine) error {
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			phi := b.CreatePHI(m.NativeBackend().Context().Int64Type(), "")
			return pushHandle(m, m.NativeBackend().Objects().Store(phi))
		}},
		{"LLVM-PHI-ADD-INCOMING", func(m Machine) error {
			bb, err := popBlock(m)
			if err != nil {
				return err
			}
			val, err := popValue(m)
			if err != nil {
				return err
			}
			phi, err := popValue(m)
			if err != nil {
				return err
			}
			phi.AddIncoming([]llvm.Value{val}, []llvm.BasicBlock{bb})
			return nil
		}},
		{"LLVM-BUILD-CALL", func(m Machine) error {
			rp, err := popValue(m)
			if err != nil {
				return err
			}
			sp, err := popValue(m)
			if err != nil {
				return err
			}
			mem, err := popValue(m)
			if err != nil {
				return err
			}
			fn, err := popValue(m)
			if err != nil {
				return err
			}
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			b.CreateCall(fn, []llvm.Value{mem, sp, rp}, "")
			return nil
		}},
		{"LLVM-BUILD-RET-VOID", func(m Machine) error {
			b, err := popBuilder(m)
			if err != nil {
				return err
			}
			b.CreateRetVoid()
			return nil
		}},
		{"LLVM-VERIFY-MODULE", func(m Machine) error {
			mod, err := popModule(m)
			if err != nil {
				return err
			}
			ok := cell.True
			if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
				ok = cell.False
			}
			return m.Data().Push(ok)
		}},
		{"LLVM-JIT-COMPILE", func(m Machine) error {
			fn, err := popValue(m)
			if err != nil {
				return err
			}
			mod, err := popModule(m)
			if err != nil {
				return err
			}
			addr, err := m.NativeBackend().JITCompile(mod, fn)
			if err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(addr))
		}},
	}
}
