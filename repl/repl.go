// Package repl implements Quarter's interactive top-level (spec.md §6's
// "AMBIENT CLI" interactive mode): a readline-backed read/compile/execute
// loop with multi-line continuation, falling back to a plain sequential
// reader when stdin isn't a terminal.
//
// Grounded on mna-starlark-go/repl's readline + prompt-swap shape
// (">>> "/"... ", Ctrl-C cancelling only the in-flight read); Quarter's
// continuation test is interp.IncompleteError rather than a parse retry,
// since LoadSource's own token scan already detects an unterminated `:`
// or VARIABLE/CONSTANT/CREATE name.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/quarter-lang/quarter/internal/fileinput"
	"github.com/quarter-lang/quarter/internal/panicerr"
	"github.com/quarter-lang/quarter/interp"
)

// Machine is the slice of interp.Interpreter the REPL drives.
type Machine interface {
	LoadSource(src string) error
}

// Run drives in as a REPL against out/errOut, using readline when in is a
// terminal and a plain line scanner otherwise (piped/redirected stdin,
// matching the teacher's fallback to a bare bufio reader for non-tty
// input).
func Run(m Machine, in *os.File, out, errOut io.Writer) error {
	if term.IsTerminal(int(in.Fd())) {
		return runInteractive(m, out, errOut)
	}
	return runPlain(m, in, errOut)
}

func runInteractive(m Machine, out, errOut io.Writer) error {
	rl, err := readline.New(">>> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	var pending string
	for {
		rl.SetPrompt(promptFor(pending))
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				pending = ""
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		pending += line + "\n"

		err = panicerr.Recover("repl", func() error { return m.LoadSource(pending) })
		var incomplete interp.IncompleteError
		if errors.As(err, &incomplete) {
			continue // keep accumulating lines
		}
		pending = ""
		if err != nil {
			if panicerr.IsPanic(err) {
				fmt.Fprintln(errOut, err)
				fmt.Fprint(errOut, panicerr.PanicStack(err))
				continue
			}
			fmt.Fprintln(errOut, err)
		}
	}
}

func promptFor(pending string) string {
	if pending == "" {
		return ">>> "
	}
	return "... "
}

// runPlain drives piped/non-interactive input line by line, reporting
// errors to errOut but never stopping the stream early on a word error —
// only on read EOF — so a script with one bad line still runs the rest,
// matching the teacher's tolerant top-level driver. Reading goes through
// fileinput.Input rather than a bare bufio.Scanner so a load error can be
// reported against the Location (source name + line) it occurred on.
func runPlain(m Machine, in *os.File, errOut io.Writer) error {
	var src fileinput.Input
	src.Queue = []io.Reader{in}

	var pending, line strings.Builder
	for {
		r, _, err := src.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if r != '\n' {
			line.WriteRune(r)
			continue
		}

		pending.WriteString(line.String())
		pending.WriteByte('\n')
		line.Reset()

		loadErr := panicerr.Recover("repl", func() error { return m.LoadSource(pending.String()) })
		var incomplete interp.IncompleteError
		if errors.As(loadErr, &incomplete) {
			continue
		}
		pending.Reset()
		if loadErr == nil {
			continue
		}
		if panicerr.IsPanic(loadErr) {
			fmt.Fprintf(errOut, "%s: %v\n%s", src.Last.Location, loadErr, panicerr.PanicStack(loadErr))
			continue
		}
		fmt.Fprintf(errOut, "%s: %v\n", src.Last.Location, loadErr)
	}
}
