// Package memory implements Quarter's flat, byte-addressed memory arena:
// one contiguous buffer hosting the data-stack region, the return-stack
// region, and the user region ("HERE"/ALLOT/strings/variables), per
// spec.md §3. Bounds and alignment are checked on every access; violations
// surface as Fault, never a silent corruption.
//
// The paged, sparsely-allocated memory in the teacher's internal/mem and
// memcore.go does not fit here: spec.md requires one fixed-capacity arena
// with three named sub-regions at known offsets (the native calling
// convention addresses memory by a flat i8* base), so Arena keeps a single
// []byte instead of growing pages on demand.
package memory

import (
	"fmt"

	"github.com/quarter-lang/quarter/cell"
)

// Minimum floor values from spec.md §3.
const (
	MinCapacity = 8 << 20 // 8 MiB

	// DefaultCapacity, DefaultDataStackSize and DefaultReturnStackSize give
	// Quarter's reference layout; see Open Question 3 in DESIGN.md.
	DefaultCapacity        = 16 << 20
	DefaultDataStackSize   = 64 << 10
	DefaultReturnStackSize = 64 << 10
)

// Config names the arena's region sizes, resolving spec.md's Open Question
// 3 (the original hard-codes these as literal constants).
type Config struct {
	// Capacity is the total arena size in bytes. Zero selects DefaultCapacity.
	Capacity int
	// DataStackSize is the size in bytes of the data-stack region [0, S_end).
	// Zero selects DefaultDataStackSize.
	DataStackSize int
	// ReturnStackSize is the size in bytes of the return-stack region
	// [R_begin, R_end). Zero selects DefaultReturnStackSize.
	ReturnStackSize int
}

func (c Config) resolved() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Capacity < MinCapacity {
		c.Capacity = MinCapacity
	}
	if c.DataStackSize <= 0 {
		c.DataStackSize = DefaultDataStackSize
	}
	if c.ReturnStackSize <= 0 {
		c.ReturnStackSize = DefaultReturnStackSize
	}
	return c
}

// Arena is the flat byte buffer backing all of Quarter's addressable state.
type Arena struct {
	buf []byte

	sEnd    uint // end of the data-stack region, exclusive
	rBegin  uint // start of the return-stack region
	rEnd    uint // end of the return-stack region, exclusive
	uBegin  uint // start of the user region

	here uint // monotonically increasing HERE pointer, within [uBegin, cap)
}

// New allocates a fresh Arena with the given Config (zero value selects
// Quarter's reference layout).
func New(cfg Config) *Arena {
	cfg = cfg.resolved()
	a := &Arena{
		buf:    make([]byte, cfg.Capacity),
		sEnd:   uint(cfg.DataStackSize),
		rBegin: uint(cfg.DataStackSize),
		rEnd:   uint(cfg.DataStackSize + cfg.ReturnStackSize),
		uBegin: uint(cfg.DataStackSize + cfg.ReturnStackSize),
	}
	a.here = a.uBegin
	return a
}

// Cap returns the arena's total capacity in bytes.
func (a *Arena) Cap() uint { return uint(len(a.buf)) }

// DataStackRegion returns the [0, end) bounds of the data-stack region.
func (a *Arena) DataStackRegion() (begin, end uint) { return 0, a.sEnd }

// ReturnStackRegion returns the [begin, end) bounds of the return-stack region.
func (a *Arena) ReturnStackRegion() (begin, end uint) { return a.rBegin, a.rEnd }

// UserRegion returns the [begin, cap) bounds of the user region.
func (a *Arena) UserRegion() (begin, end uint) { return a.uBegin, a.Cap() }

// Here returns the current HERE pointer: the next free address in the user
// region.
func (a *Arena) Here() uint { return a.here }

// Allot advances HERE by n bytes (n may be negative, e.g. to back up over a
// just-written cell), returning the address HERE pointed to before the
// advance. It does not itself touch memory contents.
func (a *Arena) Allot(n int) (uint, error) {
	prev := a.here
	next := int(prev) + n
	if next < int(a.uBegin) || uint(next) > a.Cap() {
		return 0, Fault{Addr: prev, Op: "allot", Reason: "out of bounds"}
	}
	a.here = uint(next)
	return prev, nil
}

// Fault reports an out-of-range or misaligned memory access.
type Fault struct {
	Addr   uint
	Op     string
	Reason string
}

func (f Fault) Error() string {
	return fmt.Sprintf("memory fault: %s @%d: %s", f.Op, f.Addr, f.Reason)
}

func (a *Arena) checkByte(addr uint, op string) error {
	if addr >= a.Cap() {
		return Fault{addr, op, "address past capacity"}
	}
	return nil
}

func (a *Arena) checkCell(addr uint, op string) error {
	if addr%uint(cell.Size) != 0 {
		return Fault{addr, op, "misaligned cell access"}
	}
	if addr+uint(cell.Size) > a.Cap() {
		return Fault{addr, op, "cell access past capacity"}
	}
	return nil
}

// FetchByte reads one byte at addr.
func (a *Arena) FetchByte(addr uint) (byte, error) {
	if err := a.checkByte(addr, "c@"); err != nil {
		return 0, err
	}
	return a.buf[addr], nil
}

// StoreByte writes one byte at addr.
func (a *Arena) StoreByte(addr uint, b byte) error {
	if err := a.checkByte(addr, "c!"); err != nil {
		return err
	}
	a.buf[addr] = b
	return nil
}

// Fetch reads one cell at addr (must be cell-aligned), little-endian.
func (a *Arena) Fetch(addr uint) (cell.Cell, error) {
	if err := a.checkCell(addr, "@"); err != nil {
		return 0, err
	}
	return cell.LittleEndian(a.buf[addr : addr+uint(cell.Size)]), nil
}

// Store writes one cell at addr (must be cell-aligned), little-endian.
func (a *Arena) Store(addr uint, v cell.Cell) error {
	if err := a.checkCell(addr, "!"); err != nil {
		return err
	}
	cell.PutLittleEndian(a.buf[addr:addr+uint(cell.Size)], v)
	return nil
}

// Bytes returns a read-write view of n bytes starting at addr, for bulk
// operations like string literal materialisation or CMOVE. The returned
// slice aliases the arena.
func (a *Arena) Bytes(addr uint, n int) ([]byte, error) {
	if n < 0 {
		return nil, Fault{addr, "bytes", "negative length"}
	}
	end := addr + uint(n)
	if end < addr || end > a.Cap() {
		return nil, Fault{addr, "bytes", "range past capacity"}
	}
	return a.buf[addr:end], nil
}

// WriteString materialises s at addr (no terminator), returning the number
// of bytes written.
func (a *Arena) WriteString(addr uint, s string) (int, error) {
	dst, err := a.Bytes(addr, len(s))
	if err != nil {
		return 0, err
	}
	return copy(dst, s), nil
}

// ReadString reads n bytes at addr back out as a string.
func (a *Arena) ReadString(addr uint, n int) (string, error) {
	src, err := a.Bytes(addr, n)
	if err != nil {
		return "", err
	}
	return string(src), nil
}

// Base returns the raw backing slice, for handing a base pointer to the
// native calling convention (memory_base in fn(memory*, sp*, rp*)).
func (a *Arena) Base() []byte { return a.buf }
