// Package stdlib provides Quarter's minimal bootstrap: a handful of
// standard Forth words derived from the primitive library rather than
// implemented in Go, written as literate Quarter source and loaded ahead
// of user/REPL input.
//
// Grounded on the teacher's third.go literate io.WriterTo bootstrap
// technique (building up a whole language from a tiny primitive kernel,
// one commented `line` at a time); trimmed here since prim already
// supplies Quarter's full fixed primitive set (spec.md §6) — this package
// only derives the handful of conventional Forth words spec.md leaves for
// a standard library to define, the way a real Forth system's kernel
// bootstraps FORTH-79 words from a much smaller primitive core.
package stdlib

import (
	"bytes"
	"io"
)

// Source is Quarter's bootstrap kernel, an io.WriterTo in the teacher's
// style so it composes with any input queue (internal/fileinput.Input)
// the same way the teacher's thirdKernel does.
var Source bootstrapSource

type bootstrapSource struct{}

func (bootstrapSource) Name() string { return "stdlib.qtr" }

func (bootstrapSource) WriteTo(w io.Writer) (n int64, err error) {
	flush := func(buf *bytes.Buffer) {
		if err != nil {
			return
		}
		var m int64
		m, err = buf.WriteTo(w)
		n += m
	}

	var buf bytes.Buffer
	line := func(parts ...string) {
		if err != nil {
			return
		}
		for _, s := range parts {
			buf.WriteString(s)
		}
		buf.WriteByte('\n')
	}

	// Constants every Forth program expects, in terms of the bare
	// arithmetic/IO primitives.
	line(`: true -1 ;`)
	line(`: false 0 ;`)
	line(`: bl 32 ;`)
	line(`: 0<> 0= 0= ;`)
	line(`: not 0= ;`)

	// Cell-counted addressing: CELLS/CELL+ let source stay portable across
	// cell widths despite W being fixed at 64 here (spec.md §3).
	line(`: cell+ 8 + ;`)
	line(`: cells 8 * ;`)
	line(`: char+ 1 + ;`)
	line(`: chars 1 * ;`) // byte-addressed chars: scale is 1, kept for source portability

	// Double-cell stack shuffling, each built from the single-cell
	// primitives the same way the teacher builds DUP out of scratch
	// memory cells before a real DUP primitive exists.
	line(`: nip swap drop ;`)
	line(`: tuck swap over ;`)
	line(`: -rot rot rot ;`)
	line(`: 2dup over over ;`)
	line(`: 2drop drop drop ;`)
	line(`: 2swap`,
		` >r -rot r> -rot ;`)

	// SPACES emits n blanks via EMIT/BL, mirroring spec.md's derived-word
	// examples (drop from *0+, dup from scratch cells) in spirit if not
	// in the exact mechanism.
	line(`: spaces`,
		` begin`,
		`  dup 0>`,
		` while`,
		`  bl emit 1 -`,
		` repeat`,
		` drop ;`)

	// WITHIN: lo <= n < hi, the classic Forth range test.
	line(`: within over - >r - r> u< ;`)

	flush(&buf)
	return n, err
}
