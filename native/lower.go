package native

import (
	"strings"

	"tinygo.org/x/go-llvm"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/dict"
	"github.com/quarter-lang/quarter/stacks"
)

// loopFrame tracks one nested DO/?DO loop's PHI index and exit block, so I,
// J, and LEAVE can find the right one while lowering the loop's body.
type loopFrame struct {
	idx  llvm.Value
	exit llvm.BasicBlock
}

// lowerCtx carries the per-compile state threaded through one word's IR
// construction: the module/builder/function under construction, the
// (memory, sp, rp) argument values every inline op reads and writes, the
// set of externs this word ends up calling (resolved to real addresses
// back in Backend.Compile once the module is complete), and the nested
// loop stack for I/J/LEAVE.
type lowerCtx struct {
	b       *Backend
	module  llvm.Module
	builder llvm.Builder
	fn      llvm.Value
	self    string

	mem llvm.Value
	sp  llvm.Value
	rp  llvm.Value

	externs map[string]bool
	loops   []loopFrame

	// terminated is true once the current basic block already ends in a
	// terminator (ret, br, unreachable); further nodes in the same
	// sequence are unreachable and are not lowered, mirroring how EXIT
	// makes the rest of a Forth definition dead.
	terminated bool
}

func (lc *lowerCtx) callArgs() []llvm.Value { return []llvm.Value{lc.mem, lc.sp, lc.rp} }

// push stores v at [memory + *sp] and advances *sp by one cell, matching
// stacks.Stack.Push's byte-offset convention.
func (lc *lowerCtx) push(v llvm.Value) {
	lc.storeAt(lc.sp, v, 8)
}

// pop loads and returns the top cell, retreating *sp by one cell first.
func (lc *lowerCtx) pop() llvm.Value {
	return lc.loadAt(lc.sp, -8)
}

func (lc *lowerCtx) rpush(v llvm.Value) { lc.storeAt(lc.rp, v, 8) }
func (lc *lowerCtx) rpop() llvm.Value   { return lc.loadAt(lc.rp, -8) }

// storeAt loads the current pointer from ptrVar, writes v at
// memory[pointer], and advances the pointer by delta (positive: push).
func (lc *lowerCtx) storeAt(ptrVar llvm.Value, v llvm.Value, delta int64) {
	b := lc.builder
	off := b.CreateLoad(ptrVar, "")
	slot := b.CreateGEP(lc.mem, []llvm.Value{off}, "")
	cellSlot := b.CreateBitCast(slot, lc.b.i64ptr, "")
	b.CreateStore(v, cellSlot)
	next := b.CreateAdd(off, llvm.ConstInt(lc.b.i64, uint64(delta), true), "")
	b.CreateStore(next, ptrVar)
}

// loadAt advances the pointer in ptrVar by delta first (negative: pop),
// then reads the cell at the resulting offset.
func (lc *lowerCtx) loadAt(ptrVar llvm.Value, delta int64) llvm.Value {
	b := lc.builder
	off := b.CreateLoad(ptrVar, "")
	next := b.CreateAdd(off, llvm.ConstInt(lc.b.i64, uint64(delta), true), "")
	b.CreateStore(next, ptrVar)
	slot := b.CreateGEP(lc.mem, []llvm.Value{next}, "")
	cellSlot := b.CreateBitCast(slot, lc.b.i64ptr, "")
	return b.CreateLoad(cellSlot, "")
}

func (lc *lowerCtx) lowerSequence(nodes []ast.Node) error {
	for _, n := range nodes {
		if lc.terminated {
			break
		}
		if err := lc.lowerNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (lc *lowerCtx) lowerNode(n ast.Node) error {
	switch n.Tag {
	case ast.TagPushNumber:
		lc.push(lc.cellConst(n.Number))
		return nil
	case ast.TagCallWord:
		return lc.lowerCallWord(n)
	case ast.TagSequence:
		return lc.lowerSequence(n.Children)
	case ast.TagIfThenElse:
		return lc.lowerIfThenElse(n)
	case ast.TagBeginUntil:
		return lc.lowerBeginUntil(n)
	case ast.TagBeginWhileRepeat:
		return lc.lowerBeginWhile(n)
	case ast.TagDoLoop:
		return lc.lowerDoLoop(n)
	case ast.TagLeave:
		return lc.lowerLeave()
	case ast.TagExit:
		lc.builder.CreateRetVoid()
		lc.terminated = true
		return nil
	case ast.TagInlineInstruction:
		return lc.lowerInlineOp(n.Op)
	}
	return UnsupportedWord{lc.self}
}

// lowerCallWord implements spec.md §4.4 step 3's CallWord priority order.
func (lc *lowerCtx) lowerCallWord(n ast.Node) error {
	if strings.EqualFold(n.Name, lc.self) {
		call := lc.builder.CreateCall(lc.fn, lc.callArgs(), "")
		if n.IsTailPosition {
			call.SetTailCall(true)
		}
		return nil
	}

	sym := Symbol(n.Name)
	if _, ok := lc.b.symtab.Lookup(sym); ok {
		return lc.emitExternCall(sym)
	}

	if entry := lc.b.dict.Get(n.Name); entry != nil && entry.Variant == dict.VariantCompiled &&
		entry.AST != nil && len(entry.AST.Children) == 1 &&
		entry.AST.Children[0].Tag == ast.TagInlineInstruction {
		return lc.lowerInlineOp(entry.AST.Children[0].Op)
	}

	if _, ok := inlineOps[strings.ToLower(n.Name)]; ok {
		return lc.lowerInlineOp(n.Name)
	}

	return lc.emitExternCall(sym)
}

func (lc *lowerCtx) emitExternCall(sym string) error {
	fn := lc.module.NamedFunction(sym)
	if fn.IsNil() {
		fn = llvm.AddFunction(lc.module, sym, lc.b.fnType)
	}
	lc.externs[sym] = true
	lc.builder.CreateCall(fn, lc.callArgs(), "")
	return nil
}

func (lc *lowerCtx) lowerIfThenElse(n ast.Node) error {
	zero := llvm.ConstInt(lc.b.i64, 0, false)
	cond := lc.builder.CreateICmp(llvm.IntNE, lc.pop(), zero, "")

	thenBB := llvm.AddBasicBlock(lc.fn, "if.then")
	elseBB := llvm.AddBasicBlock(lc.fn, "if.else")
	mergeBB := llvm.AddBasicBlock(lc.fn, "if.merge")
	lc.builder.CreateCondBr(cond, thenBB, elseBB)

	lc.builder.SetInsertPointAtEnd(thenBB)
	lc.terminated = false
	if err := lc.lowerSequence(n.Then); err != nil {
		return err
	}
	thenTerm := lc.terminated
	if !thenTerm {
		lc.builder.CreateBr(mergeBB)
	}

	lc.builder.SetInsertPointAtEnd(elseBB)
	lc.terminated = false
	if err := lc.lowerSequence(n.Else); err != nil {
		return err
	}
	elseTerm := lc.terminated
	if !elseTerm {
		lc.builder.CreateBr(mergeBB)
	}

	lc.builder.SetInsertPointAtEnd(mergeBB)
	if thenTerm && elseTerm {
		// Neither branch reaches merge; it has no predecessors but must
		// still end in a terminator to be valid IR.
		lc.builder.CreateUnreachable()
		lc.terminated = true
	} else {
		lc.terminated = false
	}
	return nil
}

func (lc *lowerCtx) lowerBeginUntil(n ast.Node) error {
	loopBB := llvm.AddBasicBlock(lc.fn, "begin.loop")
	exitBB := llvm.AddBasicBlock(lc.fn, "begin.exit")
	lc.builder.CreateBr(loopBB)

	lc.builder.SetInsertPointAtEnd(loopBB)
	lc.terminated = false
	if err := lc.lowerSequence(n.Body); err != nil {
		return err
	}
	if !lc.terminated {
		zero := llvm.ConstInt(lc.b.i64, 0, false)
		cond := lc.builder.CreateICmp(llvm.IntNE, lc.pop(), zero, "")
		lc.builder.CreateCondBr(cond, exitBB, loopBB)
	}

	lc.builder.SetInsertPointAtEnd(exitBB)
	lc.terminated = false
	return nil
}

func (lc *lowerCtx) lowerBeginWhile(n ast.Node) error {
	condBB := llvm.AddBasicBlock(lc.fn, "while.cond")
	bodyBB := llvm.AddBasicBlock(lc.fn, "while.body")
	exitBB := llvm.AddBasicBlock(lc.fn, "while.exit")
	lc.builder.CreateBr(condBB)

	lc.builder.SetInsertPointAtEnd(condBB)
	lc.terminated = false
	if err := lc.lowerSequence(n.Condition); err != nil {
		return err
	}
	zero := llvm.ConstInt(lc.b.i64, 0, false)
	cond := lc.builder.CreateICmp(llvm.IntNE, lc.pop(), zero, "")
	lc.builder.CreateCondBr(cond, bodyBB, exitBB)

	lc.builder.SetInsertPointAtEnd(bodyBB)
	lc.terminated = false
	if err := lc.lowerSequence(n.Body); err != nil {
		return err
	}
	if !lc.terminated {
		lc.builder.CreateBr(condBB)
	}

	lc.builder.SetInsertPointAtEnd(exitBB)
	lc.terminated = false
	return nil
}

// lowerDoLoop unifies DO/?DO exactly as interp.runDoLoop does: the body is
// skipped entirely when start >= limit, and LOOP/+LOOP termination is a
// sign change of (index - limit) across the increment, per spec.md §4.3.
func (lc *lowerCtx) lowerDoLoop(n ast.Node) error {
	start := lc.pop()
	limit := lc.pop()
	preheader := lc.builder.GetInsertBlock()

	loopBB := llvm.AddBasicBlock(lc.fn, "do.loop")
	exitBB := llvm.AddBasicBlock(lc.fn, "do.exit")

	skip := lc.builder.CreateICmp(llvm.IntSGE, start, limit, "")
	lc.builder.CreateCondBr(skip, exitBB, loopBB)

	lc.builder.SetInsertPointAtEnd(loopBB)
	phi := lc.builder.CreatePHI(lc.b.i64, "do.idx")
	phi.AddIncoming([]llvm.Value{start}, []llvm.BasicBlock{preheader})

	lc.loops = append(lc.loops, loopFrame{idx: phi, exit: exitBB})
	lc.terminated = false
	if err := lc.lowerSequence(n.Body); err != nil {
		lc.loops = lc.loops[:len(lc.loops)-1]
		return err
	}

	if !lc.terminated {
		var inc llvm.Value
		if n.Increment != 0 {
			inc = lc.cellConst(n.Increment)
		} else {
			inc = lc.pop() // +LOOP: increment popped fresh each iteration
		}
		newIdx := lc.builder.CreateAdd(phi, inc, "do.idx.next")
		zero := llvm.ConstInt(lc.b.i64, 0, false)
		before := lc.builder.CreateICmp(llvm.IntSLT, lc.builder.CreateSub(phi, limit, ""), zero, "")
		after := lc.builder.CreateICmp(llvm.IntSLT, lc.builder.CreateSub(newIdx, limit, ""), zero, "")
		crossed := lc.builder.CreateXor(before, after, "")
		latch := lc.builder.GetInsertBlock()
		lc.builder.CreateCondBr(crossed, exitBB, loopBB)
		phi.AddIncoming([]llvm.Value{newIdx}, []llvm.BasicBlock{latch})
	}

	lc.loops = lc.loops[:len(lc.loops)-1]
	lc.builder.SetInsertPointAtEnd(exitBB)
	lc.terminated = false
	return nil
}

func (lc *lowerCtx) lowerLeave() error {
	if len(lc.loops) == 0 {
		return stacks.ErrLoopMisuse
	}
	top := lc.loops[len(lc.loops)-1]
	lc.builder.CreateBr(top.exit)
	lc.terminated = true
	return nil
}

func (lc *lowerCtx) lowerInlineOp(op string) error {
	fn, ok := inlineOps[strings.ToLower(op)]
	if !ok {
		return UnknownInlineOp{op}
	}
	fn(lc)
	return nil
}

// inlineOps lowers spec.md §6's arithmetic, stack-shuffle, comparison, and
// bitwise primitives with pure IR (no call emitted), per spec.md §4.4 step
// 3. I and J read the innermost/next-outer DO loop's PHI directly instead
// of a host loop stack, since native loops carry their own index in SSA.
var inlineOps map[string]func(*lowerCtx)

func init() {
	one := func(lc *lowerCtx) llvm.Value { return llvm.ConstInt(lc.b.i64, 1, true) }
	boolOf := func(lc *lowerCtx, i1 llvm.Value) llvm.Value {
		return lc.builder.CreateSExt(i1, lc.b.i64, "")
	}
	zero := func(lc *lowerCtx) llvm.Value { return llvm.ConstInt(lc.b.i64, 0, false) }

	inlineOps = map[string]func(*lowerCtx){
		"+": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateAdd(a, b, "")) },
		"-": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateSub(a, b, "")) },
		"*": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateMul(a, b, "")) },
		"/": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateSDiv(a, b, "")) },
		"mod": func(lc *lowerCtx) {
			b, a := lc.pop(), lc.pop()
			lc.push(lc.builder.CreateSRem(a, b, ""))
		},
		"negate": func(lc *lowerCtx) { lc.push(lc.builder.CreateSub(zero(lc), lc.pop(), "")) },
		"abs": func(lc *lowerCtx) {
			a := lc.pop()
			neg := lc.builder.CreateSub(zero(lc), a, "")
			isNeg := lc.builder.CreateICmp(llvm.IntSLT, a, zero(lc), "")
			lc.push(lc.builder.CreateSelect(isNeg, neg, a, ""))
		},
		"min": func(lc *lowerCtx) {
			b, a := lc.pop(), lc.pop()
			lt := lc.builder.CreateICmp(llvm.IntSLT, a, b, "")
			lc.push(lc.builder.CreateSelect(lt, a, b, ""))
		},
		"max": func(lc *lowerCtx) {
			b, a := lc.pop(), lc.pop()
			gt := lc.builder.CreateICmp(llvm.IntSGT, a, b, "")
			lc.push(lc.builder.CreateSelect(gt, a, b, ""))
		},
		"1+": func(lc *lowerCtx) { lc.push(lc.builder.CreateAdd(lc.pop(), one(lc), "")) },
		"1-": func(lc *lowerCtx) { lc.push(lc.builder.CreateSub(lc.pop(), one(lc), "")) },
		"2*": func(lc *lowerCtx) { lc.push(lc.builder.CreateShl(lc.pop(), one(lc), "")) },
		"2/": func(lc *lowerCtx) { lc.push(lc.builder.CreateAShr(lc.pop(), one(lc), "")) },

		"<":  func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntSLT, a, b, ""))) },
		">":  func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntSGT, a, b, ""))) },
		"=":  func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntEQ, a, b, ""))) },
		"<>": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntNE, a, b, ""))) },
		"<=": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntSLE, a, b, ""))) },
		">=": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntSGE, a, b, ""))) },
		"u<": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntULT, a, b, ""))) },
		"0=": func(lc *lowerCtx) { lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntEQ, lc.pop(), zero(lc), ""))) },
		"0<": func(lc *lowerCtx) { lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntSLT, lc.pop(), zero(lc), ""))) },
		"0>": func(lc *lowerCtx) { lc.push(boolOf(lc, lc.builder.CreateICmp(llvm.IntSGT, lc.pop(), zero(lc), ""))) },

		"dup":  func(lc *lowerCtx) { a := lc.pop(); lc.push(a); lc.push(a) },
		"drop": func(lc *lowerCtx) { lc.pop() },
		"swap": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(b); lc.push(a) },
		"over": func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(a); lc.push(b); lc.push(a) },
		"rot": func(lc *lowerCtx) {
			c, b, a := lc.pop(), lc.pop(), lc.pop()
			lc.push(b)
			lc.push(c)
			lc.push(a)
		},

		">r": func(lc *lowerCtx) { lc.rpush(lc.pop()) },
		"r>": func(lc *lowerCtx) { lc.push(lc.rpop()) },
		"r@": func(lc *lowerCtx) { v := lc.rpop(); lc.rpush(v); lc.push(v) },

		"and":    func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateAnd(a, b, "")) },
		"or":     func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateOr(a, b, "")) },
		"xor":    func(lc *lowerCtx) { b, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateXor(a, b, "")) },
		"invert": func(lc *lowerCtx) { lc.push(lc.builder.CreateXor(lc.pop(), llvm.ConstInt(lc.b.i64, ^uint64(0), false), "")) },
		"lshift": func(lc *lowerCtx) { n, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateShl(a, n, "")) },
		"rshift": func(lc *lowerCtx) { n, a := lc.pop(), lc.pop(); lc.push(lc.builder.CreateLShr(a, n, "")) },

		"i": func(lc *lowerCtx) { lc.push(lc.loops[len(lc.loops)-1].idx) },
		"j": func(lc *lowerCtx) { lc.push(lc.loops[len(lc.loops)-2].idx) },
	}
}
