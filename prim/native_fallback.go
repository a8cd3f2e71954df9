package prim

import (
	"fmt"
	"io"

	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/dict"
)

// NativeFallbacks returns the subset of primitives implemented directly
// against the raw native ABI (memory, sp, rp), for native.Backend to bind
// a compiled word's extern fallback calls to (see native.Backend.Compile
// and this package's doc comment). Unlike the Func table above, these
// never go through a Machine: they read and write cells with the same
// little-endian encoding as memory.Arena, against the exact memory slice
// and stack pointers the calling convention hands across the boundary, so
// a chain of native calls never needs to re-enter Go's higher-level
// Stack/Arena wrappers.
//
// Only memory, stack-pointer, and I/O primitives are covered; anything
// else a compiled word calls that isn't inlined or already native fails
// native compilation with native.UnsupportedWord and stays interpreter-only
// — a deliberate, documented scope limit (see DESIGN.md).
func NativeFallbacks(out io.Writer) map[string]dict.NativeFunc {
	fallbacks := map[string]dict.NativeFunc{
		NativeSymbol("!"):    rawStore,
		NativeSymbol("@"):    rawFetch,
		NativeSymbol("c!"):   rawStoreByte,
		NativeSymbol("c@"):   rawFetchByte,
		NativeSymbol("cmove"): rawCMove,

		NativeSymbol("sp@"): rawSPFetch,
		NativeSymbol("sp!"): rawSPStore,
		NativeSymbol("rp@"): rawRPFetch,
		NativeSymbol("rp!"): rawRPStore,

		NativeSymbol("."):     rawDot(out),
		NativeSymbol("emit"):  rawEmit(out),
		NativeSymbol("cr"):    rawCR(out),
		NativeSymbol("space"): rawSpace(out),
		NativeSymbol("type"):  rawType(out),
	}
	return fallbacks
}

func rawPush(memory []byte, sp *uintptr, v cell.Cell) {
	cell.PutLittleEndian(memory[*sp:*sp+uintptr(cell.Size)], v)
	*sp += uintptr(cell.Size)
}

func rawPop(memory []byte, sp *uintptr) cell.Cell {
	*sp -= uintptr(cell.Size)
	return cell.LittleEndian(memory[*sp : *sp+uintptr(cell.Size)])
}

func rawStore(memory []byte, sp, rp *uintptr) {
	addr := rawPop(memory, sp)
	v := rawPop(memory, sp)
	cell.PutLittleEndian(memory[addr:int(addr)+cell.Size], v)
}

func rawFetch(memory []byte, sp, rp *uintptr) {
	addr := rawPop(memory, sp)
	rawPush(memory, sp, cell.LittleEndian(memory[addr:int(addr)+cell.Size]))
}

func rawStoreByte(memory []byte, sp, rp *uintptr) {
	addr := rawPop(memory, sp)
	v := rawPop(memory, sp)
	memory[addr] = byte(v)
}

func rawFetchByte(memory []byte, sp, rp *uintptr) {
	addr := rawPop(memory, sp)
	rawPush(memory, sp, cell.Cell(memory[addr]))
}

func rawCMove(memory []byte, sp, rp *uintptr) {
	n := rawPop(memory, sp)
	dst := rawPop(memory, sp)
	src := rawPop(memory, sp)
	copy(memory[dst:int(dst)+int(n)], memory[src:int(src)+int(n)])
}

func rawSPFetch(memory []byte, sp, rp *uintptr) { rawPush(memory, sp, cell.Cell(*sp)) }
func rawSPStore(memory []byte, sp, rp *uintptr) { *sp = uintptr(rawPop(memory, sp)) }
func rawRPFetch(memory []byte, sp, rp *uintptr) { rawPush(memory, sp, cell.Cell(*rp)) }
func rawRPStore(memory []byte, sp, rp *uintptr) { *rp = uintptr(rawPop(memory, sp)) }

func rawDot(out io.Writer) dict.NativeFunc {
	return func(memory []byte, sp, rp *uintptr) {
		v := rawPop(memory, sp)
		fmt.Fprintf(out, "%d ", v)
	}
}

func rawEmit(out io.Writer) dict.NativeFunc {
	return func(memory []byte, sp, rp *uintptr) {
		v := rawPop(memory, sp)
		fmt.Fprintf(out, "%c", rune(v))
	}
}

func rawCR(out io.Writer) dict.NativeFunc {
	return func(memory []byte, sp, rp *uintptr) { fmt.Fprintln(out) }
}

func rawSpace(out io.Writer) dict.NativeFunc {
	return func(memory []byte, sp, rp *uintptr) { fmt.Fprint(out, " ") }
}

func rawType(out io.Writer) dict.NativeFunc {
	return func(memory []byte, sp, rp *uintptr) {
		n := rawPop(memory, sp)
		addr := rawPop(memory, sp)
		fmt.Fprint(out, string(memory[addr:int(addr)+int(n)]))
	}
}
