package facade

import (
	"fmt"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/cell"
)

// errUnrepresentedTag is returned by AST-TYPE for a
// node whose tag has no entry in spec.md §4.5's external tag table (the
// tick-literal/unloop/execute nodes ast.go documents as handle-model-only).
func errUnrepresentedTag(t ast.Tag) error {
	return fmt.Errorf("ast: tag %d has no external representation", t)
}

func handleArg(m Machine) (ast.Node, ast.Handle, error) {
	h, err := popCell(m)
	if err != nil {
		return ast.Node{}, 0, err
	}
	handle := ast.Handle(h)
	n, err := m.ASTRegistry().Get(handle)
	return n, handle, err
}

// writeCountedOut stores s's bytes at addr (a caller-supplied memory
// address, per spec.md §4.5: "never allocates on the data stack") and
// pushes its length.
func writeCountedOut(m Machine, addr cell.Cell, s string) error {
	if _, err := m.Mem().WriteString(uint(addr), s); err != nil {
		return err
	}
	return m.Data().Push(cell.Cell(len(s)))
}

func astFuncs() []primFunc {
	return []primFunc{
		{"AST-TYPE", func(m Machine) error {
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			switch {
			case n.IsTickLiteral(), n.IsUnloop(), n.IsExecute():
				return errUnrepresentedTag(n.Tag)
			}
			return m.Data().Push(cell.Cell(n.Tag))
		}},
		{"AST-GET-NUMBER", func(m Machine) error {
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			return m.Data().Push(n.Number)
		}},
		{"AST-GET-WORD", func(m Machine) error {
			addr, err := popCell(m)
			if err != nil {
				return err
			}
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			name := n.Name
			if n.Tag == ast.TagInlineInstruction {
				name = n.Op
			}
			return writeCountedOut(m, addr, name)
		}},
		{"AST-GET-STRING", func(m Machine) error {
			addr, err := popCell(m)
			if err != nil {
				return err
			}
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			return writeCountedOut(m, addr, n.Text)
		}},
		{"AST-SEQ-LENGTH", func(m Machine) error {
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(len(n.Children)))
		}},
		{"AST-SEQ-CHILD", func(m Machine) error {
			index, err := popCell(m)
			if err != nil {
				return err
			}
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			h, err := m.ASTRegistry().CloneChild(n, int(index))
			if err != nil {
				return err
			}
			return m.Data().Push(cell.Cell(h))
		}},
		{"AST-IF-THEN", storeBranch(func(n ast.Node) []ast.Node { return n.Then })},
		{"AST-IF-ELSE", storeBranch(func(n ast.Node) []ast.Node { return n.Else })},
		{"AST-LOOP-BODY", storeBranch(func(n ast.Node) []ast.Node { return n.Body })},
		{"AST-LOOP-CONDITION", storeBranch(func(n ast.Node) []ast.Node { return n.Condition })},
		{"AST-LOOP-INCREMENT", func(m Machine) error {
			n, _, err := handleArg(m)
			if err != nil {
				return err
			}
			return m.Data().Push(n.Increment)
		}},
	}
}

// storeBranch builds an AST-* reader that clones one of n's node-slice
// fields (Then/Else/Body/Condition) into a fresh Sequence handle.
func storeBranch(field func(ast.Node) []ast.Node) func(Machine) error {
	return func(m Machine) error {
		n, _, err := handleArg(m)
		if err != nil {
			return err
		}
		seq := ast.Sequence(field(n))
		return m.Data().Push(cell.Cell(m.ASTRegistry().Store(seq)))
	}
}
