// Package parse implements Quarter's recursive-descent parser: token
// stream to AST, per spec.md §4.1. It is a hand-written parser (no
// combinator library), matching the teacher's own hand-rolled scan/lookup
// style in internals.go rather than e.g. the nand2tetris example's
// goparsec combinators, because spec.md's grammar is a small, fixed set of
// keyword-triggered productions better expressed as a direct switch than
// assembled from generic combinators.
package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/cell"
)

// Lookup resolves whether a name is a known dictionary word, used to
// validate CallWord references and to resolve ['] tick literals.
type Lookup interface {
	Has(name string) bool
}

// ParseError reports a malformed construct. Kind distinguishes the
// taxonomy entries from spec.md §7 (UnbalancedConditional, MissingThen,
// ParseError, UndefinedWord) without losing the offending token.
type ParseError struct {
	Kind  string
	Token string
	Msg   string
}

func (e ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: %s (at %q)", e.Kind, e.Msg, e.Token)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func errUnbalanced(tok, msg string) error { return ParseError{"UnbalancedConditional", tok, msg} }
func errMissingThen(msg string) error     { return ParseError{"MissingThen", "", msg} }
func errParse(tok, msg string) error      { return ParseError{"ParseError", tok, msg} }
func errUndefined(tok string) error       { return ParseError{"UndefinedWord", tok, "unresolved word"} }

// stopSet terminator tokens, always compared upper-cased.
var (
	stopThenElse  = set("ELSE", "THEN")
	stopThen      = set("THEN")
	stopUntilWhile = set("UNTIL", "WHILE")
	stopRepeat    = set("REPEAT")
	stopLoop      = set("LOOP", "+LOOP")
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Parser turns a token stream into an AST, per spec.md §4.1.
type Parser struct {
	lookup Lookup
	// Base returns the current numeric radix (BASE); defaults to 10 if nil.
	Base func() int
}

// New creates a Parser that validates ['] references (and, later, a
// distinct CallWord-validation pass) against lookup.
func New(lookup Lookup) *Parser { return &Parser{lookup: lookup} }

func (p *Parser) base() int {
	if p.Base == nil {
		return 10
	}
	if b := p.Base(); b >= 2 && b <= 36 {
		return b
	}
	return 10
}

// Parse parses an entire token stream as one top-level sequence, running
// to end of input. Used both for a `: NAME ... ;` definition's body (the
// caller slices out the `;`-terminated token run first) and for a
// top-level command-mode chunk.
func (p *Parser) Parse(tokens []string) (ast.Node, error) {
	src := NewSource(tokens)
	body, stop, err := p.parseBody(src, nil)
	if err != nil {
		return ast.Node{}, err
	}
	if stop != "" {
		return ast.Node{}, errUnbalanced(stop, "unexpected terminator at top level")
	}
	return ast.Sequence(body), nil
}

// parseBody consumes tokens until one of stop is seen (the stop token is
// consumed and returned as stopTok) or input ends
// (stopTok == "" with a nil error signalling plain EOF, which callers
// expecting a specific terminator must turn into a MissingThen/ParseError
// themselves).
func (p *Parser) parseBody(src TokenSource, stop map[string]bool) (nodes []ast.Node, stopTok string, err error) {
	for {
		tok, ok := src.Next()
		if !ok {
			return nodes, "", nil
		}
		upper := strings.ToUpper(tok)
		if stop != nil && stop[upper] {
			return nodes, upper, nil
		}

		switch upper {
		case "IF":
			n, err := p.parseIf(src)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, n)

		case "BEGIN":
			n, err := p.parseBegin(src)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, n)

		case "DO", "?DO":
			n, err := p.parseDo(src, upper == "?DO")
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, n)

		case "ELSE", "THEN", "UNTIL", "WHILE", "REPEAT", "LOOP", "+LOOP":
			return nil, "", errUnbalanced(tok, "terminator with no matching opener")

		case `S"`:
			text, err := readQuoted(src)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, ast.StackString(text))

		case `."`:
			text, err := readQuoted(src)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, ast.PrintString(text))

		case "[']":
			name, ok := src.Next()
			if !ok {
				return nil, "", errParse(tok, "['] with no following word")
			}
			if p.lookup != nil && !p.lookup.Has(name) {
				return nil, "", errUndefined(name)
			}
			nodes = append(nodes, ast.TickLiteral(name))

		case "LEAVE":
			nodes = append(nodes, ast.Leave())

		case "EXIT":
			nodes = append(nodes, ast.Exit())

		case "UNLOOP":
			nodes = append(nodes, ast.Unloop())

		case "EXECUTE":
			nodes = append(nodes, ast.Execute())

		default:
			if n, ok := p.parseNumber(tok); ok {
				nodes = append(nodes, n)
			} else {
				nodes = append(nodes, ast.CallWord(tok))
			}
		}
	}
}

func (p *Parser) parseNumber(tok string) (ast.Node, bool) {
	n, err := strconv.ParseInt(tok, p.base(), 64)
	if err != nil {
		return ast.Node{}, false
	}
	return ast.PushNumber(cell.Cell(n)), true
}

func (p *Parser) parseIf(src TokenSource) (ast.Node, error) {
	then, stop, err := p.parseBody(src, stopThenElse)
	if err != nil {
		return ast.Node{}, err
	}
	switch stop {
	case "THEN":
		return ast.IfThenElse(then, nil), nil
	case "ELSE":
		els, stop2, err := p.parseBody(src, stopThen)
		if err != nil {
			return ast.Node{}, err
		}
		if stop2 != "THEN" {
			return ast.Node{}, errMissingThen("IF/ELSE with no THEN")
		}
		return ast.IfThenElse(then, els), nil
	default:
		return ast.Node{}, errMissingThen("IF with no THEN")
	}
}

func (p *Parser) parseBegin(src TokenSource) (ast.Node, error) {
	first, stop, err := p.parseBody(src, stopUntilWhile)
	if err != nil {
		return ast.Node{}, err
	}
	switch stop {
	case "UNTIL":
		return ast.BeginUntil(first), nil
	case "WHILE":
		body, stop2, err := p.parseBody(src, stopRepeat)
		if err != nil {
			return ast.Node{}, err
		}
		if stop2 != "REPEAT" {
			return ast.Node{}, errParse("BEGIN", "BEGIN/WHILE with no REPEAT")
		}
		return ast.BeginWhileRepeat(first, body), nil
	default:
		return ast.Node{}, errParse("BEGIN", "BEGIN with no UNTIL/WHILE")
	}
}

func (p *Parser) parseDo(src TokenSource, conditional bool) (ast.Node, error) {
	body, stop, err := p.parseBody(src, stopLoop)
	if err != nil {
		return ast.Node{}, err
	}
	switch stop {
	case "LOOP":
		return ast.DoLoop(body, 1, conditional), nil
	case "+LOOP":
		return ast.DoLoop(body, 0, conditional), nil
	default:
		return ast.Node{}, errParse("DO", "DO/?DO with no LOOP/+LOOP")
	}
}

// readQuoted consumes tokens, rejoining them with a single space, up to
// (and stripping) the token that carries the closing `"`, per spec.md
// §4.1 ("the enclosed text (with a single space between tokens)").
func readQuoted(src TokenSource) (string, error) {
	var parts []string
	for {
		tok, ok := src.Next()
		if !ok {
			return "", errParse(`"`, "unterminated string literal")
		}
		if strings.HasSuffix(tok, `"`) {
			parts = append(parts, strings.TrimSuffix(tok, `"`))
			return strings.Join(parts, " "), nil
		}
		parts = append(parts, tok)
	}
}

// Validate performs the distinct word-resolution pass spec.md §4.1
// requires after parsing a definition: every CallWord must resolve against
// lookup, except a call to selfName (the word currently being defined),
// which is permitted as self-recursion. It never mutates the dictionary,
// so a definition that fails validation leaves it untouched.
func Validate(n ast.Node, lookup Lookup, selfName string) error {
	self := strings.ToUpper(selfName)
	var walk func(ast.Node) error
	walk = func(n ast.Node) error {
		switch n.Tag {
		case ast.TagCallWord:
			if strings.ToUpper(n.Name) == self {
				return nil
			}
			if lookup != nil && !lookup.Has(n.Name) {
				return errUndefined(n.Name)
			}
		case ast.TagSequence:
			for _, c := range n.Children {
				if err := walk(c); err != nil {
					return err
				}
			}
		case ast.TagIfThenElse:
			for _, c := range n.Then {
				if err := walk(c); err != nil {
					return err
				}
			}
			for _, c := range n.Else {
				if err := walk(c); err != nil {
					return err
				}
			}
		case ast.TagBeginUntil:
			for _, c := range n.Body {
				if err := walk(c); err != nil {
					return err
				}
			}
		case ast.TagBeginWhileRepeat:
			for _, c := range n.Condition {
				if err := walk(c); err != nil {
					return err
				}
			}
			for _, c := range n.Body {
				if err := walk(c); err != nil {
					return err
				}
			}
		case ast.TagDoLoop:
			for _, c := range n.Body {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		if n.IsTickLiteral() {
			if lookup != nil && !lookup.Has(n.Name) {
				return errUndefined(n.Name)
			}
		}
		return nil
	}
	return walk(n)
}
