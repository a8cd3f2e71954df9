// Package interp implements Quarter's tree-walking interpreter (spec.md
// §4.3): AST evaluation against shared memory/stacks/dictionary state, the
// `: NAME ... ;`/VARIABLE/CONSTANT/CREATE/IMMEDIATE top-level driver (source
// file format, spec.md §6), and the tail-call trampoline that keeps
// arbitrarily deep self-recursion at constant host-stack depth.
//
// The explicit-walk-plus-trampoline shape is grounded on the teacher's
// first.go threaded-code dispatch loop (a flat "keep stepping" driver
// rather than recursive descent per instruction); it is adapted here to
// walk a tree instead of a linear instruction tape, since spec.md replaces
// FIRST's flat memory-coded program with an AST.
package interp

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/dict"
	"github.com/quarter-lang/quarter/facade"
	"github.com/quarter-lang/quarter/memory"
	"github.com/quarter-lang/quarter/native"
	"github.com/quarter-lang/quarter/parse"
	"github.com/quarter-lang/quarter/prim"
	"github.com/quarter-lang/quarter/signal"
	"github.com/quarter-lang/quarter/stacks"
)

// Interpreter owns one Quarter machine: its memory, stacks, dictionary,
// and the bookkeeping (BASE cell, the token stream FIND reads) the primitive
// library and the source-file driver both need.
type Interpreter struct {
	mem    *memory.Arena
	data   *stacks.Stack
	ret    *stacks.Stack
	loops  stacks.LoopStack
	dict   *dict.Dictionary
	parser *parse.Parser

	astReg        *ast.Registry
	nativeBackend *native.Backend

	ctx context.Context

	out   io.Writer
	key   func() (rune, error)
	trace func(format string, args ...interface{})

	baseAddr uint

	tokens []string // the token stream currently backing FIND/EVALUATE
	tokPos int
}

// Option configures a new Interpreter, following the functional-options
// pattern the teacher uses for its VM (options.go: VMOption/apply).
type Option func(*Interpreter)

// WithOutput sets the interpreter's output stream (default io.Discard).
func WithOutput(w io.Writer) Option { return func(i *Interpreter) { i.out = w } }

// WithKeyReader sets the function KEY reads one rune from.
func WithKeyReader(f func() (rune, error)) Option { return func(i *Interpreter) { i.key = f } }

// WithArenaConfig overrides the memory arena's region sizes.
func WithArenaConfig(cfg memory.Config) Option {
	return func(i *Interpreter) { i.mem = memory.New(cfg) }
}

// WithContext sets the context checked once per trampoline step (runBody),
// grounded on the teacher's exec loop checking ctx.Err() every instruction
// (internals.go); cancelling it (e.g. a CLI -timeout) unwinds the current
// Run/LoadSource call with ctx.Err(). Defaults to context.Background().
func WithContext(ctx context.Context) Option { return func(i *Interpreter) { i.ctx = ctx } }

// WithTrace logs every dictionary call (CallByName) through logf, per the
// CLI's -trace flag (teacher's main.go "tron" kernel command, adapted here
// from FIRST's memory-tape step trace to a per-word-call trace matching
// Quarter's AST-walking interpreter).
func WithTrace(logf func(format string, args ...interface{})) Option {
	return func(i *Interpreter) { i.trace = logf }
}

// New builds an Interpreter with its dictionary pre-populated from the
// primitive library (prim.Register), ready to load source.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		out:  io.Discard,
		dict: dict.New(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.mem == nil {
		i.mem = memory.New(memory.Config{})
	}
	if i.ctx == nil {
		i.ctx = context.Background()
	}
	i.data = stacks.NewDataStack(i.mem)
	i.ret = stacks.NewReturnStack(i.mem)
	i.parser = parse.New(i.dict)
	i.parser.Base = func() int { return i.currentBase() }

	addr, err := i.mem.Allot(cell.Size)
	if err != nil {
		panic(err) // the default arena always has room for one cell
	}
	i.baseAddr = addr
	_ = i.mem.Store(i.baseAddr, 10)

	if err := prim.Register(i, i.dict); err != nil {
		panic(err)
	}

	i.astReg = ast.NewRegistry()
	i.nativeBackend = native.NewBackend(i.dict, prim.NativeFallbacks(i.out))
	if err := facade.Register(i, i.dict); err != nil {
		panic(err)
	}
	return i
}

func (i *Interpreter) currentBase() int {
	v, err := i.mem.Fetch(i.baseAddr)
	if err != nil || v < 2 || v > 36 {
		return 10
	}
	return int(v)
}

// -- prim.Machine --

func (i *Interpreter) Data() *stacks.Stack        { return i.data }
func (i *Interpreter) Return() *stacks.Stack      { return i.ret }
func (i *Interpreter) Loops() *stacks.LoopStack   { return &i.loops }
func (i *Interpreter) Mem() *memory.Arena         { return i.mem }
func (i *Interpreter) Dict() *dict.Dictionary     { return i.dict }
func (i *Interpreter) Out() io.Writer             { return i.out }
func (i *Interpreter) BaseAddr() uint             { return i.baseAddr }

// -- facade.Machine --

func (i *Interpreter) ASTRegistry() *ast.Registry     { return i.astReg }
func (i *Interpreter) NativeBackend() *native.Backend { return i.nativeBackend }

func (i *Interpreter) ReadKey() (rune, error) {
	if i.key == nil {
		return 0, io.EOF
	}
	return i.key()
}

func (i *Interpreter) Evaluate(source string) error { return i.LoadSource(source) }

func (i *Interpreter) NextToken() (string, bool) {
	if i.tokPos >= len(i.tokens) {
		return "", false
	}
	t := i.tokens[i.tokPos]
	i.tokPos++
	return t, true
}

func (i *Interpreter) CallByName(name string) error {
	if i.trace != nil {
		i.trace("%s", name)
	}
	return i.dict.Execute(name,
		func(n *ast.Node) error { return i.runWordBody(n.Children) },
		i.callNative,
		func(fn dict.PrimitiveFunc) error { return fn() },
	)
}

func (i *Interpreter) callNative(fn dict.NativeFunc) error {
	sp := uintptr(i.data.Pointer())
	rp := uintptr(i.ret.Pointer())
	fn(i.mem.Base(), &sp, &rp)
	if err := i.data.SetPointer(uint(sp)); err != nil {
		return err
	}
	return i.ret.SetPointer(uint(rp))
}

// -- source-file driver (spec.md §6) --

// IncompleteError is returned by LoadSource when the token stream ends
// mid-definition (a `:` with no name or no closing `;`, or a
// VARIABLE/CONSTANT/CREATE with no name); the REPL uses it to decide
// whether to keep accumulating lines before retrying. An unterminated
// string literal or control word is reported as a parse error instead.
type IncompleteError struct{ Reason string }

func (e IncompleteError) Error() string { return "incomplete: " + e.Reason }

var boundaryWords = map[string]bool{
	":": true, "VARIABLE": true, "CONSTANT": true, "CREATE": true, "IMMEDIATE": true,
}

// LoadSource processes a complete chunk of Quarter source: it slices out
// `: NAME ... ;` definitions (validating and storing each), handles
// VARIABLE/CONSTANT/CREATE/IMMEDIATE, and executes any other top-level
// tokens immediately, left to right, per spec.md §6's source file format.
func (i *Interpreter) LoadSource(src string) error {
	tokens := parse.Tokenize(src)
	pos := 0
	for pos < len(tokens) {
		tok := strings.ToUpper(tokens[pos])
		switch tok {
		case ":":
			pos++
			if pos >= len(tokens) {
				return IncompleteError{"`:` with no name"}
			}
			name := tokens[pos]
			pos++
			end := -1
			for j := pos; j < len(tokens); j++ {
				if tokens[j] == ";" {
					end = j
					break
				}
			}
			if end == -1 {
				return IncompleteError{"`: " + name + "` with no closing `;`"}
			}
			if err := i.defineWord(name, tokens[pos:end]); err != nil {
				return err
			}
			pos = end + 1

		case "IMMEDIATE":
			pos++
			if err := i.dict.MarkImmediate(); err != nil {
				return err
			}

		case "VARIABLE", "CONSTANT", "CREATE":
			pos++
			if pos >= len(tokens) {
				return IncompleteError{tok + " with no name"}
			}
			name := tokens[pos]
			pos++
			if err := i.defineDataWord(tok, name); err != nil {
				return err
			}

		default:
			start := pos
			for pos < len(tokens) && !boundaryWords[strings.ToUpper(tokens[pos])] {
				pos++
			}
			chunk := tokens[start:pos]
			i.tokens, i.tokPos = chunk, 0
			node, err := i.parser.Parse(chunk)
			if err != nil {
				return err
			}
			if err := i.runWordBody(node.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Interpreter) defineWord(name string, bodyTokens []string) error {
	node, err := i.parser.Parse(bodyTokens)
	if err != nil {
		return err
	}
	node = ast.MarkTail(node)
	if err := parse.Validate(node, i.dict, name); err != nil {
		return err
	}
	return i.dict.DefineCompiled(name, node)
}

func (i *Interpreter) defineDataWord(kind, name string) error {
	switch kind {
	case "VARIABLE":
		addr, err := i.mem.Allot(cell.Size)
		if err != nil {
			return err
		}
		if err := i.mem.Store(addr, 0); err != nil {
			return err
		}
		return i.dict.DefineCompiled(name, ast.Sequence([]ast.Node{ast.PushNumber(cell.Cell(addr))}))
	case "CREATE":
		addr := i.mem.Here()
		return i.dict.DefineCompiled(name, ast.Sequence([]ast.Node{ast.PushNumber(cell.Cell(addr))}))
	case "CONSTANT":
		v, err := i.data.Pop()
		if err != nil {
			return err
		}
		return i.dict.DefineCompiled(name, ast.Sequence([]ast.Node{ast.PushNumber(v)}))
	}
	return fmt.Errorf("unreachable: defineDataWord(%s)", kind)
}

// -- AST evaluation --

// runWordBody runs a word's (or a top-level chunk's) body, treating a
// propagated EXIT as the word's normal return, per spec.md §4.3 ("EXIT is
// caught by the enclosing execute_word call, which returns success").
func (i *Interpreter) runWordBody(body []ast.Node) error {
	err := i.runBody(body)
	if _, ok := err.(signal.Exit); ok {
		return nil
	}
	return err
}

// runBody is the tail-call trampoline (spec.md §4.3): when the last node of
// body is in tail position and is a self/other compiled-word call, or a
// terminal IfThenElse/Sequence, it restarts the loop over the replacement
// body instead of recursing, holding host stack depth constant across
// arbitrarily deep tail recursion.
func (i *Interpreter) runBody(body []ast.Node) error {
outer:
	for {
		if err := i.ctx.Err(); err != nil {
			return err
		}
		for idx, n := range body {
			last := idx == len(body)-1
			if last && n.IsTailPosition {
				switch n.Tag {
				case ast.TagCallWord:
					if entry := i.dict.Get(n.Name); entry != nil && entry.Variant == dict.VariantCompiled {
						body = entry.AST.Children
						continue outer
					}
				case ast.TagSequence:
					body = n.Children
					continue outer
				case ast.TagIfThenElse:
					cond, err := i.data.Pop()
					if err != nil {
						return err
					}
					if cell.Truthy(cond) {
						body = n.Then
					} else {
						body = n.Else
					}
					continue outer
				}
			}
			if err := i.evalNode(n); err != nil {
				return err
			}
		}
		return nil
	}
}

func (i *Interpreter) evalNode(n ast.Node) error {
	switch n.Tag {
	case ast.TagPushNumber:
		return i.data.Push(n.Number)
	case ast.TagCallWord:
		return i.CallByName(n.Name)
	case ast.TagSequence:
		return i.runBody(n.Children)
	case ast.TagIfThenElse:
		cond, err := i.data.Pop()
		if err != nil {
			return err
		}
		if cell.Truthy(cond) {
			return i.runBody(n.Then)
		}
		return i.runBody(n.Else)
	case ast.TagBeginUntil:
		return i.runBeginUntil(n)
	case ast.TagBeginWhileRepeat:
		return i.runBeginWhile(n)
	case ast.TagDoLoop:
		return i.runDoLoop(n)
	case ast.TagPrintString:
		_, err := fmt.Fprint(i.out, n.Text)
		return err
	case ast.TagStackString:
		return i.pushStackString(n.Text)
	case ast.TagLeave:
		if i.loops.Depth() == 0 {
			return stacks.ErrLoopMisuse
		}
		return signal.Leave{}
	case ast.TagExit:
		return signal.Exit{}
	case ast.TagInlineInstruction:
		// Inline directives exist for the native backend's IR lowering
		// (spec.md §4.4); interpreted, they fall back to the primitive of
		// the same name.
		return i.CallByName(n.Op)
	}
	switch {
	case n.IsTickLiteral():
		return i.pushTickLiteral(n.Name)
	case n.IsUnloop():
		_, err := i.loops.Pop()
		return err
	case n.IsExecute():
		xt, err := i.data.Pop()
		if err != nil {
			return err
		}
		name, err := prim.ReadCountedString(i, xt)
		if err != nil {
			return err
		}
		return i.CallByName(name)
	}
	return fmt.Errorf("unhandled AST node tag %d", n.Tag)
}

func (i *Interpreter) pushStackString(text string) error {
	addr, err := i.mem.Allot(len(text))
	if err != nil {
		return err
	}
	if _, err := i.mem.WriteString(addr, text); err != nil {
		return err
	}
	if err := i.data.Push(cell.Cell(addr)); err != nil {
		return err
	}
	return i.data.Push(cell.Cell(len(text)))
}

// pushTickLiteral writes a counted string (length byte + bytes) at HERE
// and pushes its address, per spec.md §4.3's ['] execution semantics. It
// shares its wire format with FIND and EXECUTE via prim.WriteCountedString,
// since an xt is that same counted-string address.
func (i *Interpreter) pushTickLiteral(word string) error {
	addr, err := prim.WriteCountedString(i, word)
	if err != nil {
		return err
	}
	return i.data.Push(addr)
}

func (i *Interpreter) runBeginUntil(n ast.Node) error {
	for {
		if err := i.runBody(n.Body); err != nil {
			return err
		}
		cond, err := i.data.Pop()
		if err != nil {
			return err
		}
		if cell.Truthy(cond) {
			return nil
		}
	}
}

func (i *Interpreter) runBeginWhile(n ast.Node) error {
	for {
		if err := i.runBody(n.Condition); err != nil {
			return err
		}
		cond, err := i.data.Pop()
		if err != nil {
			return err
		}
		if !cell.Truthy(cond) {
			return nil
		}
		if err := i.runBody(n.Body); err != nil {
			return err
		}
	}
}

// runDoLoop implements DO/?DO/LOOP/+LOOP. Per spec.md §4.3, DO and ?DO are
// unified: the body is skipped entirely whenever start >= limit, which is
// a deliberate deviation from strict Forth-83 DO semantics.
func (i *Interpreter) runDoLoop(n ast.Node) error {
	start, err := i.data.Pop()
	if err != nil {
		return err
	}
	limit, err := i.data.Pop()
	if err != nil {
		return err
	}
	if start >= limit {
		return nil
	}

	i.loops.Push(start, limit)
	idx := start
	for {
		if err := i.runBody(n.Body); err != nil {
			i.loops.Pop()
			if _, ok := err.(signal.Leave); ok {
				return nil
			}
			return err
		}

		inc := n.Increment
		if inc == 0 { // +LOOP: pop the increment fresh each iteration
			inc, err = i.data.Pop()
			if err != nil {
				i.loops.Pop()
				return err
			}
		}

		before := idx - limit
		idx += inc
		after := idx - limit
		if err := i.loops.SetTopIndex(idx); err != nil {
			i.loops.Pop()
			return err
		}
		if (before < 0) != (after < 0) {
			i.loops.Pop()
			return nil
		}
	}
}

// Run executes the children of a single already-built AST (e.g. from the
// AST-handle API's reflective callers), applying the same EXIT-as-return
// boundary as a word call.
func (i *Interpreter) Run(n ast.Node) error {
	return i.runWordBody(n.Children)
}
