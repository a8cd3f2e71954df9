// Package signal defines Quarter's non-local control signals: typed Go
// values returned as errors from the interpreter's evaluation functions,
// never host panics, per spec.md §3 ("Control signals... represented as a
// small closed set of typed values, not host-language exceptions") and §7.
package signal

import (
	"fmt"

	"github.com/quarter-lang/quarter/cell"
)

// Leave unwinds the innermost counted loop, per the LEAVE word.
type Leave struct{}

func (Leave) Error() string { return "LEAVE outside of CATCH" }

// Exit unwinds the current word definition, per the EXIT word.
type Exit struct{}

func (Exit) Error() string { return "EXIT outside of CATCH" }

// Throw carries a THROW code upward to the nearest CATCH frame, per
// spec.md §7's reimplementation note: unlike the original source (which
// merely prints and leaves the code on the stack), THROW here unwinds
// properly, restoring the data and return stacks to the depth CATCH
// recorded before it invoked its execution token.
type Throw struct{ Code cell.Cell }

func (t Throw) Error() string { return fmt.Sprintf("THROW %d uncaught", t.Code) }

// Abort unwinds all the way to the top-level driver (CATCH does not stop
// it); the data and return stacks are left as they are.
type Abort struct{}

func (Abort) Error() string { return "ABORT" }

// Bye requests clean program termination (exit code 0).
type Bye struct{}

func (Bye) Error() string { return "BYE" }
