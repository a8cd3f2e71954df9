// Package stacks implements the three stacks shared by Quarter's
// interpreter and native tiers: the data stack and return stack (both
// realised as cells living inside a memory.Arena region, per spec.md §3),
// and the loop-control stack (a plain host-side slice of (index, limit)
// pairs, per spec.md §4.3).
package stacks

import (
	"fmt"

	"github.com/quarter-lang/quarter/cell"
	"github.com/quarter-lang/quarter/memory"
)

// Stack is a cell LIFO embedded in a region of a memory.Arena. Both the
// data stack and the return stack are instances of Stack, differing only
// in which region and error kinds they report.
type Stack struct {
	arena     *memory.Arena
	begin     uint
	end       uint
	pointer   uint // byte offset into the arena; begin <= pointer <= end
	underflow error
	overflow  error
}

// ErrUnderflow and ErrOverflow are returned (wrapped with stack identity)
// when a Stack's bounds would be violated.
type ErrUnderflow struct{ Stack string }
type ErrOverflow struct{ Stack string }

func (e ErrUnderflow) Error() string { return fmt.Sprintf("%s stack underflow", e.Stack) }
func (e ErrOverflow) Error() string  { return fmt.Sprintf("%s stack overflow", e.Stack) }

// NewDataStack creates the data stack over the arena's data-stack region.
func NewDataStack(a *memory.Arena) *Stack {
	begin, end := a.DataStackRegion()
	return &Stack{arena: a, begin: begin, end: end, pointer: begin,
		underflow: ErrUnderflow{"data"}, overflow: ErrOverflow{"data"}}
}

// NewReturnStack creates the return stack over the arena's return-stack region.
func NewReturnStack(a *memory.Arena) *Stack {
	begin, end := a.ReturnStackRegion()
	return &Stack{arena: a, begin: begin, end: end, pointer: begin,
		underflow: ErrUnderflow{"return"}, overflow: ErrOverflow{"return"}}
}

// Depth returns the number of cells currently on the stack.
func (s *Stack) Depth() uint { return (s.pointer - s.begin) / uint(cell.Size) }

// Pointer returns the current stack pointer (a byte offset into the arena).
func (s *Stack) Pointer() uint { return s.pointer }

// SetPointer directly sets the stack pointer, as used by SP!/RP! and by the
// native calling convention handing control back across the ABI boundary.
// It is bounds-checked against the stack's region and cell alignment.
func (s *Stack) SetPointer(p uint) error {
	if p < s.begin || p > s.end || (p-s.begin)%uint(cell.Size) != 0 {
		return s.overflow
	}
	s.pointer = p
	return nil
}

// Push writes v at the top of the stack and advances the pointer.
func (s *Stack) Push(v cell.Cell) error {
	if s.pointer+uint(cell.Size) > s.end {
		return s.overflow
	}
	if err := s.arena.Store(s.pointer, v); err != nil {
		return err
	}
	s.pointer += uint(cell.Size)
	return nil
}

// Pop removes and returns the top of the stack.
func (s *Stack) Pop() (cell.Cell, error) {
	if s.pointer < s.begin+uint(cell.Size) {
		return 0, s.underflow
	}
	s.pointer -= uint(cell.Size)
	return s.arena.Fetch(s.pointer)
}

// Peek returns the nth cell from the top (0 is the top) without popping it.
func (s *Stack) Peek(n uint) (cell.Cell, error) {
	need := (n + 1) * uint(cell.Size)
	if s.pointer-s.begin < need {
		return 0, s.underflow
	}
	return s.arena.Fetch(s.pointer - need)
}

// Pick is PICK's primitive behaviour: the same as Peek, but returns 0
// instead of an error when the index is out of range (matching the
// teacher's first.go pick, which favors silent defaulting over faulting
// since PICK's index is programmer-supplied and unchecked in the source
// Forth this dialect descends from).
func (s *Stack) Pick(n uint) cell.Cell {
	v, err := s.Peek(n)
	if err != nil {
		return 0
	}
	return v
}

// Snapshot captures the current pointer, for CATCH to restore on THROW.
func (s *Stack) Snapshot() uint { return s.pointer }

// Restore resets the pointer to a prior Snapshot, e.g. after a caught THROW.
func (s *Stack) Restore(p uint) { s.pointer = p }

// LoopFrame is one (index, limit) pair pushed by DO/?DO.
type LoopFrame struct {
	Index cell.Cell
	Limit cell.Cell
}

// LoopStack holds nested counted-loop control frames, queried by I and J.
type LoopStack struct {
	frames []LoopFrame
}

// Push starts a new counted loop.
func (ls *LoopStack) Push(index, limit cell.Cell) { ls.frames = append(ls.frames, LoopFrame{index, limit}) }

// Pop discards the innermost loop frame (LOOP/+LOOP completion, LEAVE, or
// UNLOOP).
func (ls *LoopStack) Pop() (LoopFrame, error) {
	if len(ls.frames) == 0 {
		return LoopFrame{}, ErrLoopMisuse
	}
	f := ls.frames[len(ls.frames)-1]
	ls.frames = ls.frames[:len(ls.frames)-1]
	return f, nil
}

// Top returns the innermost loop frame, for I.
func (ls *LoopStack) Top() (LoopFrame, error) {
	if len(ls.frames) == 0 {
		return LoopFrame{}, ErrLoopMisuse
	}
	return ls.frames[len(ls.frames)-1], nil
}

// Outer returns the next-to-innermost loop frame, for J.
func (ls *LoopStack) Outer() (LoopFrame, error) {
	if len(ls.frames) < 2 {
		return LoopFrame{}, ErrLoopMisuse
	}
	return ls.frames[len(ls.frames)-2], nil
}

// SetTopIndex updates the innermost frame's index, used by LOOP/+LOOP
// incrementing and by the native backend's PHI-driven lowering equivalent.
func (ls *LoopStack) SetTopIndex(idx cell.Cell) error {
	if len(ls.frames) == 0 {
		return ErrLoopMisuse
	}
	ls.frames[len(ls.frames)-1].Index = idx
	return nil
}

// Depth reports the current loop nesting depth.
func (ls *LoopStack) Depth() int { return len(ls.frames) }

// Truncate drops frames back to a prior depth.
func (ls *LoopStack) Truncate(depth int) {
	if depth < len(ls.frames) {
		ls.frames = ls.frames[:depth]
	}
}

// ErrLoopMisuse is returned when I, J, LEAVE or UNLOOP run with no
// enclosing loop.
var ErrLoopMisuse = loopMisuseError{}

type loopMisuseError struct{}

func (loopMisuseError) Error() string { return "loop control used outside of a DO loop" }
