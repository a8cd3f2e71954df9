// Package prim implements Quarter's fixed primitive word library:
// spec.md §6's I/O, arithmetic, comparison, stack, return-stack, bitwise,
// memory, stack-pointer, loop, string/literal, and reflective/driver words.
//
// Each primitive is a small closure over Machine in the funcs table,
// grounded directly on the teacher's first.go style (vm.sub, vm.get,
// vm.set: pop/compute/push, one func per word). Every primitive has a
// quarter_<name> ABI symbol (see NativeSymbol). native.Backend declares
// each non-inlined call as an external quarter_<name> function and, at JIT
// link time, maps that symbol to the matching NativeFallbacks entry through
// a C bridge trampoline (native's bridgeFuncPointer). Only the primitives
// in NativeFallbacks (memory, stack-pointer and I/O words) can be bound
// this way.
package prim

import (
	"fmt"
	"io"
	"strings"

	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/dict"
	"github.com/quarter-lang/quarter/memory"
	"github.com/quarter-lang/quarter/signal"
	"github.com/quarter-lang/quarter/stacks"
)

// Machine is the shared runtime state a primitive needs. interp.Interpreter
// implements it; prim never imports interp, breaking what would otherwise
// be a cycle (interp needs prim's registrations, prim needs interp's
// evaluation loop for EVALUATE).
type Machine interface {
	Data() *stacks.Stack
	Return() *stacks.Stack
	Loops() *stacks.LoopStack
	Mem() *memory.Arena
	Dict() *dict.Dictionary
	Out() io.Writer
	ReadKey() (rune, error)

	// BaseAddr is the fixed address of the BASE variable cell.
	BaseAddr() uint

	// Evaluate parses and runs source text inline, for EVALUATE.
	Evaluate(source string) error

	// NextToken pulls the next whitespace-delimited token from whatever
	// input is currently driving top-level interpretation, for FIND.
	NextToken() (string, bool)

	// CallByName runs a dictionary word exactly as a CallWord AST node
	// would: full variant dispatch (compiled/native/primitive) and tail-call
	// handling stay interp's job, so EXECUTE/CATCH only need a name.
	CallByName(name string) error
}

// Func is a registered primitive: its Forth name and its interpreter-tier
// body. Control and defining words are parser-level and have no Func.
type Func struct {
	Name string
	Run  func(m Machine) error
}

// NativeSymbol maps a Forth name to its ABI export name quarter_<name>,
// applying spec.md §6's punctuation-to-ASCII-word substitution table. The
// table covers every primitive name below that contains punctuation; any
// other name falls back to a generic transliteration (asciiTransliterate),
// which keeps letters and digits and turns anything else into '_'.
var nativeSymbolOverrides = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "*/": "mul_div",
	"/mod": "div_mod", "mod": "mod", "negate": "negate",
	"1+": "one_plus", "1-": "one_minus", "2*": "two_times", "2/": "two_div",
	"<": "less_than", ">": "greater_than", "=": "equals", "<>": "not_equals",
	"<=": "less_equal", ">=": "greater_equal", "u<": "u_less_than",
	"0=": "zero_equals", "0<": "zero_less", "0>": "zero_greater",
	"?dup": "question_dup", ">r": "to_r", "r>": "r_from", "r@": "r_fetch",
	"!": "store", "@": "fetch", "c!": "c_store", "c@": "c_fetch",
	",": "comma", ">number": "to_number",
	"sp@": "sp_fetch", "sp!": "sp_store", "rp@": "rp_fetch", "rp!": "rp_store",
	`s"`: "s_quote", `."`: "dot_quote", "[']": "tick",
	".": "dot", ".s": "dot_s", "u.": "u_dot", ".r": "dot_r", "u.r": "u_dot_r",
	"-trailing": "dash_trailing",
}

// NativeSymbol returns the quarter_<name> ABI symbol for a primitive name.
func NativeSymbol(name string) string {
	lower := strings.ToLower(name)
	if sym, ok := nativeSymbolOverrides[lower]; ok {
		return "quarter_" + sym
	}
	return "quarter_" + asciiTransliterate(lower)
}

func asciiTransliterate(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// Register defines every primitive in funcs() into d, closing over m.
func Register(m Machine, d *dict.Dictionary) error {
	for _, f := range funcs() {
		f := f
		if err := d.DefinePrimitive(f.Name, func() error { return f.Run(m) }); err != nil {
			return err
		}
	}
	return nil
}

func pop2(m Machine) (a, b cell.Cell, err error) {
	bv, err := m.Data().Pop()
	if err != nil {
		return 0, 0, err
	}
	av, err := m.Data().Pop()
	if err != nil {
		return 0, 0, err
	}
	return av, bv, nil
}

// DivisionByZeroError reports a zero divisor to /, MOD, /MOD, or */.
type DivisionByZeroError struct{ Op string }

func (e DivisionByZeroError) Error() string { return "division by zero: " + e.Op }

// LoopMisuseError reports I, J, or LEAVE outside a loop, or surfaces
// stacks.ErrLoopMisuse under the spec's naming.
var LoopMisuseError = stacks.ErrLoopMisuse

func funcs() []Func {
	return []Func{
		// -- arithmetic --
		{"+", func(m Machine) error { a, b, err := pop2(m); if err != nil { return err }; return m.Data().Push(a + b) }},
		{"-", func(m Machine) error { a, b, err := pop2(m); if err != nil { return err }; return m.Data().Push(a - b) }},
		{"*", func(m Machine) error { a, b, err := pop2(m); if err != nil { return err }; return m.Data().Push(a * b) }},
		{"/", func(m Machine) error {
			a, b, err := pop2(m)
			if err != nil {
				return err
			}
			if b == 0 {
				return DivisionByZeroError{"/"}
			}
			return m.Data().Push(a / b)
		}},
		{"mod", func(m Machine) error {
			a, b, err := pop2(m)
			if err != nil {
				return err
			}
			if b == 0 {
				return DivisionByZeroError{"MOD"}
			}
			return m.Data().Push(a % b)
		}},
		{"/mod", func(m Machine) error {
			a, b, err := pop2(m)
			if err != nil {
				return err
			}
			if b == 0 {
				return DivisionByZeroError{"/MOD"}
			}
			if err := m.Data().Push(a % b); err != nil {
				return err
			}
			return m.Data().Push(a / b)
		}},
		{"*/", func(m Machine) error {
			n3, err := m.Data().Pop()
			if err != nil {
				return err
			}
			n2, err := m.Data().Pop()
			if err != nil {
				return err
			}
			n1, err := m.Data().Pop()
			if err != nil {
				return err
			}
			if n3 == 0 {
				return DivisionByZeroError{"*/"}
			}
			return m.Data().Push(n1 * n2 / n3)
		}},
		{"negate", func(m Machine) error {
			a, err := m.Data().Pop()
			if err != nil {
				return err
			}
			return m.Data().Push(-a)
		}},
		{"abs", func(m Machine) error {
			a, err := m.Data().Pop()
			if err != nil {
				return err
			}
			if a < 0 {
				a = -a
			}
			return m.Data().Push(a)
		}},
		{"min", func(m Machine) error {
			a, b, err := pop2(m)
			if err != nil {
				return err
			}
			if a < b {
				return m.Data().Push(a)
			}
			return m.Data().Push(b)
		}},
		{"max", func(m Machine) error {
			a, b, err := pop2(m)
			if err != nil {
				return err
			}
			if a > b {
				return m.Data().Push(a)
			}
			return m.Data().Push(b)
		}},
		{"1+", func(m Machine) error { return unary(m, func(a cell.Cell) cell.Cell { return a + 1 }) }},
		{"1-", func(m Machine) error { return unary(m, func(a cell.Cell) cell.Cell { return a - 1 }) }},
		{"2*", func(m Machine) error { return unary(m, func(a cell.Cell) cell.Cell { return a * 2 }) }},
		{"2/", func(m Machine) error { return unary(m, func(a cell.Cell) cell.Cell { return a >> 1 }) }},

		// -- comparison --
		{"<", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return a < b }) }},
		{">", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return a > b }) }},
		{"=", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return a == b }) }},
		{"<>", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return a != b }) }},
		{"<=", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return a <= b }) }},
		{">=", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return a >= b }) }},
		{"u<", func(m Machine) error { return cmp(m, func(a, b cell.Cell) bool { return uint64(a) < uint64(b) }) }},
		{"0=", func(m Machine) error { return unaryBool(m, func(a cell.Cell) bool { return a == 0 }) }},
		{"0<", func(m Machine) error { return unaryBool(m, func(a cell.Cell) bool { return a < 0 }) }},
		{"0>", func(m Machine) error { return unaryBool(m, func(a cell.Cell) bool { return a > 0 }) }},

		// -- stack --
		{"dup", func(m Machine) error {
			v, err := m.Data().Peek(0)
			if err != nil {
				return err
			}
			return m.Data().Push(v)
		}},
		{"?dup", func(m Machine) error {
			v, err := m.Data().Peek(0)
			if err != nil {
				return err
			}
			if v == 0 {
				return nil
			}
			return m.Data().Push(v)
		}},
		{"drop", func(m Machine) error { _, err := m.Data().Pop(); return err }},
		{"swap", func(m Machine) error {
			a, b, err := pop2(m)
			if err != nil {
				return err
			}
			if err := m.Data().Push(b); err != nil {
				return err
			}
			return m.Data().Push(a)
		}},
		{"over", func(m Machine) error {
			v, err := m.Data().Peek(1)
			if err != nil {
				return err
			}
			return m.Data().Push(v)
		}},
		{"rot", func(m Machine) error {
			c, err := m.Data().Pop()
			if err != nil {
				return err
			}
			b, err := m.Data().Pop()
			if err != nil {
				return err
			}
			a, err := m.Data().Pop()
			if err != nil {
				return err
			}
			if err := m.Data().Push(b); err != nil {
				return err
			}
			if err := m.Data().Push(c); err != nil {
				return err
			}
			return m.Data().Push(a)
		}},
		{"pick", func(m Machine) error {
			n, err := m.Data().Pop()
			if err != nil {
				return err
			}
			return m.Data().Push(m.Data().Pick(uint(n)))
		}},
		{"depth", func(m Machine) error { return m.Data().Push(cell.Cell(m.Data().Depth())) }},

		// -- return stack --
		{">r", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			return m.Return().Push(v)
		}},
		{"r>", func(m Machine) error {
			v, err := m.Return().Pop()
			if err != nil {
				return err
			}
			return m.Data().Push(v)
		}},
		{"r@", func(m Machine) error {
			v, err := m.Return().Peek(0)
			if err != nil {
				return err
			}
			return m.Data().Push(v)
		}},

		// -- bitwise --
		{"and", func(m Machine) error { return binInt(m, func(a, b cell.Cell) cell.Cell { return a & b }) }},
		{"or", func(m Machine) error { return binInt(m, func(a, b cell.Cell) cell.Cell { return a | b }) }},
		{"xor", func(m Machine) error { return binInt(m, func(a, b cell.Cell) cell.Cell { return a ^ b }) }},
		{"invert", func(m Machine) error { return unary(m, func(a cell.Cell) cell.Cell { return ^a }) }},
		{"lshift", func(m Machine) error { return binInt(m, func(a, n cell.Cell) cell.Cell { return a << uint(n) }) }},
		{"rshift", func(m Machine) error { return binInt(m, func(a, n cell.Cell) cell.Cell { return cell.Cell(uint64(a) >> uint(n)) }) }},

		// -- memory --
		{"!", func(m Machine) error {
			v, addr, err := pop2(m)
			if err != nil {
				return err
			}
			return m.Mem().Store(uint(addr), v)
		}},
		{"@", func(m Machine) error {
			addr, err := m.Data().Pop()
			if err != nil {
				return err
			}
			v, err := m.Mem().Fetch(uint(addr))
			if err != nil {
				return err
			}
			return m.Data().Push(v)
		}},
		{"c!", func(m Machine) error {
			v, addr, err := pop2(m)
			if err != nil {
				return err
			}
			return m.Mem().StoreByte(uint(addr), byte(v))
		}},
		{"c@", func(m Machine) error {
			addr, err := m.Data().Pop()
			if err != nil {
				return err
			}
			v, err := m.Mem().FetchByte(uint(addr))
			if err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(v))
		}},
		{"here", func(m Machine) error { return m.Data().Push(cell.Cell(m.Mem().Here())) }},
		{"allot", func(m Machine) error {
			n, err := m.Data().Pop()
			if err != nil {
				return err
			}
			_, err = m.Mem().Allot(int(n))
			return err
		}},
		{",", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			addr, err := m.Mem().Allot(cell.Size)
			if err != nil {
				return err
			}
			return m.Mem().Store(addr, v)
		}},
		{"base", func(m Machine) error { return m.Data().Push(cell.Cell(m.BaseAddr())) }},
		{">number", func(m Machine) error {
			addr, n, err := pop2(m)
			if err != nil {
				return err
			}
			s, err := m.Mem().ReadString(uint(addr), int(n))
			if err != nil {
				return err
			}
			base, err := m.Mem().Fetch(m.BaseAddr())
			if err != nil {
				return err
			}
			v, rest, ok := parseNumberPrefix(s, int(base))
			if !ok {
				if err := m.Data().Push(0); err != nil {
					return err
				}
				return m.Data().Push(n)
			}
			if err := m.Data().Push(v); err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(rest))
		}},

		// -- stack pointers --
		{"sp@", func(m Machine) error { return m.Data().Push(cell.Cell(m.Data().Pointer())) }},
		{"sp!", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			return m.Data().SetPointer(uint(v))
		}},
		{"rp@", func(m Machine) error { return m.Data().Push(cell.Cell(m.Return().Pointer())) }},
		{"rp!", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			return m.Return().SetPointer(uint(v))
		}},

		// -- loops --
		{"i", func(m Machine) error {
			f, err := m.Loops().Top()
			if err != nil {
				return err
			}
			return m.Data().Push(f.Index)
		}},
		{"j", func(m Machine) error {
			f, err := m.Loops().Outer()
			if err != nil {
				return err
			}
			return m.Data().Push(f.Index)
		}},

		// -- I/O --
		{".", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(m.Out(), "%d ", v)
			return err
		}},
		{".s", func(m Machine) error {
			depth := m.Data().Depth()
			for i := int(depth) - 1; i >= 0; i-- {
				if _, err := fmt.Fprintf(m.Out(), "%d ", m.Data().Pick(uint(i))); err != nil {
					return err
				}
			}
			return nil
		}},
		{"u.", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(m.Out(), "%d ", uint64(v))
			return err
		}},
		{".r", func(m Machine) error {
			width, v, err := pop2(m)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(m.Out(), "%*d", int(width), v)
			return err
		}},
		{"u.r", func(m Machine) error {
			width, v, err := pop2(m)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(m.Out(), "%*d", int(width), uint64(v))
			return err
		}},
		{"cr", func(m Machine) error { _, err := fmt.Fprintln(m.Out()); return err }},
		{"emit", func(m Machine) error {
			v, err := m.Data().Pop()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(m.Out(), "%c", rune(v))
			return err
		}},
		{"space", func(m Machine) error { _, err := fmt.Fprint(m.Out(), " "); return err }},
		{"type", func(m Machine) error {
			addr, n, err := pop2(m)
			if err != nil {
				return err
			}
			s, err := m.Mem().ReadString(uint(addr), int(n))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(m.Out(), s)
			return err
		}},
		{"key", func(m Machine) error {
			r, err := m.ReadKey()
			if err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(r))
		}},
		{"compare", func(m Machine) error {
			addr2, n2, err := pop2(m)
			if err != nil {
				return err
			}
			addr1, n1, err := pop2(m)
			if err != nil {
				return err
			}
			s1, err := m.Mem().ReadString(uint(addr1), int(n1))
			if err != nil {
				return err
			}
			s2, err := m.Mem().ReadString(uint(addr2), int(n2))
			if err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(strings.Compare(s1, s2)))
		}},
		{"-trailing", func(m Machine) error {
			addr, n, err := pop2(m)
			if err != nil {
				return err
			}
			s, err := m.Mem().ReadString(uint(addr), int(n))
			if err != nil {
				return err
			}
			trimmed := strings.TrimRight(s, " ")
			if err := m.Data().Push(addr); err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(len(trimmed)))
		}},
		{"search", func(m Machine) error {
			needleAddr, needleLen, err := pop2(m)
			if err != nil {
				return err
			}
			hayAddr, hayLen, err := pop2(m)
			if err != nil {
				return err
			}
			hay, err := m.Mem().ReadString(uint(hayAddr), int(hayLen))
			if err != nil {
				return err
			}
			needle, err := m.Mem().ReadString(uint(needleAddr), int(needleLen))
			if err != nil {
				return err
			}
			idx := strings.Index(hay, needle)
			if idx < 0 {
				if err := m.Data().Push(hayAddr); err != nil {
					return err
				}
				if err := m.Data().Push(hayLen); err != nil {
					return err
				}
				return m.Data().Push(cell.False)
			}
			if err := m.Data().Push(hayAddr + cell.Cell(idx)); err != nil {
				return err
			}
			if err := m.Data().Push(hayLen - cell.Cell(idx)); err != nil {
				return err
			}
			return m.Data().Push(cell.True)
		}},

		// -- reflective/driver --
		{"execute", func(m Machine) error { return execXT(m) }},
		{"find", func(m Machine) error {
			tok, ok := m.NextToken()
			if !ok || !m.Dict().Has(tok) {
				return m.Data().Push(0)
			}
			addr, err := WriteCountedString(m, tok)
			if err != nil {
				return err
			}
			return m.Data().Push(addr)
		}},
		{"evaluate", func(m Machine) error {
			addr, n, err := pop2(m)
			if err != nil {
				return err
			}
			src, err := m.Mem().ReadString(uint(addr), int(n))
			if err != nil {
				return err
			}
			return m.Evaluate(src)
		}},
		{"catch", func(m Machine) error { return doCatch(m) }},
		{"throw", func(m Machine) error {
			code, err := m.Data().Pop()
			if err != nil {
				return err
			}
			if code == 0 {
				return nil
			}
			return signal.Throw{Code: code}
		}},
		{"abort", func(m Machine) error { return signal.Abort{} }},
		{"bye", func(m Machine) error { return signal.Bye{} }},
		{"cmove", func(m Machine) error {
			src, dst, n, err := pop3(m)
			if err != nil {
				return err
			}
			return cmove(m, src, dst, n)
		}},
	}
}

func pop3(m Machine) (n1, n2, n3 cell.Cell, err error) {
	n3, err = m.Data().Pop()
	if err != nil {
		return
	}
	n2, err = m.Data().Pop()
	if err != nil {
		return
	}
	n1, err = m.Data().Pop()
	return
}

func cmove(m Machine, src, dst, n cell.Cell) error {
	for i := cell.Cell(0); i < n; i++ {
		b, err := m.Mem().FetchByte(uint(src + i))
		if err != nil {
			return err
		}
		if err := m.Mem().StoreByte(uint(dst+i), b); err != nil {
			return err
		}
	}
	return nil
}

func unary(m Machine, f func(cell.Cell) cell.Cell) error {
	a, err := m.Data().Pop()
	if err != nil {
		return err
	}
	return m.Data().Push(f(a))
}

func unaryBool(m Machine, f func(cell.Cell) bool) error {
	a, err := m.Data().Pop()
	if err != nil {
		return err
	}
	return m.Data().Push(cell.Bool(f(a)))
}

func cmp(m Machine, f func(a, b cell.Cell) bool) error {
	a, b, err := pop2(m)
	if err != nil {
		return err
	}
	return m.Data().Push(cell.Bool(f(a, b)))
}

func binInt(m Machine, f func(a, b cell.Cell) cell.Cell) error {
	a, b, err := pop2(m)
	if err != nil {
		return err
	}
	return m.Data().Push(f(a, b))
}

// ReadCountedString reads a length-prefixed (1 byte + bytes) string at
// addr, the representation EXECUTE, CATCH, and ['] share for execution
// tokens, per spec.md §4.3 ("EXECUTE... reads a counted-string name from
// memory... This is how execution tokens round-trip").
func ReadCountedString(m Machine, addr cell.Cell) (string, error) {
	n, err := m.Mem().FetchByte(uint(addr))
	if err != nil {
		return "", err
	}
	return m.Mem().ReadString(uint(addr)+1, int(n))
}

// WriteCountedString materialises name as a counted string at HERE and
// returns its address, the execution-token representation ['] and FIND
// both produce.
func WriteCountedString(m Machine, name string) (cell.Cell, error) {
	if len(name) > 255 {
		name = name[:255]
	}
	addr, err := m.Mem().Allot(1 + len(name))
	if err != nil {
		return 0, err
	}
	if err := m.Mem().StoreByte(addr, byte(len(name))); err != nil {
		return 0, err
	}
	if _, err := m.Mem().WriteString(addr+1, name); err != nil {
		return 0, err
	}
	return cell.Cell(addr), nil
}

func execXT(m Machine) error {
	xt, err := m.Data().Pop()
	if err != nil {
		return err
	}
	return callXT(m, xt)
}

func callXT(m Machine, xt cell.Cell) error {
	name, err := ReadCountedString(m, xt)
	if err != nil {
		return err
	}
	return m.CallByName(name)
}

// doCatch implements CATCH ( xt -- code ): per spec.md §7's reimplementation
// note, a caught error unwinds the data and return stacks back to the depth
// recorded before xt ran, rather than leaving them in whatever state the
// failing call left them (the original source's bug this fixes).
func doCatch(m Machine) error {
	xt, err := m.Data().Pop()
	if err != nil {
		return err
	}
	dataMark := m.Data().Snapshot()
	returnMark := m.Return().Snapshot()

	runErr := callXT(m, xt)
	if runErr == nil {
		return m.Data().Push(0)
	}

	switch sig := runErr.(type) {
	case signal.Leave, signal.Exit, signal.Abort, signal.Bye:
		// Not catchable: these unwind past CATCH to their own designated
		// boundary (innermost loop, word return, or the top-level driver).
		return runErr
	case signal.Throw:
		m.Data().Restore(dataMark)
		m.Return().Restore(returnMark)
		return m.Data().Push(sig.Code)
	default:
		// Any other runtime error (StackUnderflow, MemoryFault, ...) is
		// also caught, per spec.md §7: CATCH returns non-zero on "caught
		// error", not just on an explicit THROW.
		m.Data().Restore(dataMark)
		m.Return().Restore(returnMark)
		return m.Data().Push(-1)
	}
}

// parseNumberPrefix parses as much of s as forms a valid base-radix
// integer, mirroring >NUMBER's "convert as far as possible" contract.
func parseNumberPrefix(s string, base int) (cell.Cell, int, bool) {
	i := 0
	neg := false
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	start := i
	var v int64
	for i < len(s) {
		d := digitValue(s[i])
		if d < 0 || d >= base {
			break
		}
		v = v*int64(base) + int64(d)
		i++
	}
	if i == start {
		return 0, len(s), false
	}
	if neg {
		v = -v
	}
	return cell.Cell(v), len(s) - i, true
}

func digitValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'z':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'Z':
		return int(b-'A') + 10
	default:
		return -1
	}
}
