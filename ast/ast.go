// Package ast defines Quarter's AST: the tree produced by parse, stored
// immutably in dict.Entry for compiled words, walked by interp, and lowered
// to SSA by native. See spec.md §3 "AST" and §4.5.
package ast

import "github.com/quarter-lang/quarter/cell"

// Tag identifies a Node's concrete variant. Values are part of the
// AST-handle API's external contract (spec.md §4.5) and must not change.
type Tag int

const (
	TagPushNumber Tag = iota + 1
	TagCallWord
	TagSequence
	TagIfThenElse
	TagBeginUntil
	TagBeginWhileRepeat
	TagDoLoop
	TagPrintString
	TagStackString
	TagLeave
	TagExit
	TagInlineInstruction

	// The following tags exist in the Go data model but have no entry in
	// spec.md's external tag table because they are never surfaced through
	// the AST-handle API (spec.md enumerates only tags 1-12); AST-TYPE
	// reports an error for them (facade's errUnrepresentedTag).
	tagTickLiteral
	tagUnloop
	tagExecute
)

// Node is a single AST node. Exactly one of the typed fields is meaningful
// for a given Tag; Node is a sum type expressed as a tagged struct (the Go
// idiom for what the spec calls "algebraic variants") rather than an
// interface-per-variant, so that it clones cheaply for the handle registry.
type Node struct {
	Tag Tag

	Number cell.Cell // TagPushNumber
	Name   string    // TagCallWord, tagTickLiteral
	Text   string    // TagPrintString, TagStackString
	Op     string    // TagInlineInstruction

	Children []Node // TagSequence
	Then     []Node // TagIfThenElse
	Else     []Node // TagIfThenElse

	Body      []Node   // TagBeginUntil, TagBeginWhileRepeat, TagDoLoop
	Condition []Node   // TagBeginWhileRepeat
	Increment cell.Cell // TagDoLoop; 0 means +LOOP (increment popped at runtime)
	Conditional bool    // TagDoLoop; true means ?DO

	// IsTailPosition is computed by the tail-position analysis shared by
	// interp (trampoline restart) and native (tail-call IR attribute); see
	// spec.md §4.3 and §4.4. It is not part of the parser's output and is
	// filled in by a separate pass (ast.MarkTail, run by interp when it
	// stores a definition; native lowering only reads the flag).
	IsTailPosition bool
}

// PushNumber builds a PushNumber node.
func PushNumber(n cell.Cell) Node { return Node{Tag: TagPushNumber, Number: n} }

// CallWord builds a CallWord node.
func CallWord(name string) Node { return Node{Tag: TagCallWord, Name: name} }

// Sequence builds a Sequence node from a list of children.
func Sequence(children []Node) Node { return Node{Tag: TagSequence, Children: children} }

// IfThenElse builds an IfThenElse node. els may be nil for a bare IF/THEN.
func IfThenElse(then, els []Node) Node { return Node{Tag: TagIfThenElse, Then: then, Else: els} }

// BeginUntil builds a BEGIN/UNTIL node.
func BeginUntil(body []Node) Node { return Node{Tag: TagBeginUntil, Body: body} }

// BeginWhileRepeat builds a BEGIN/WHILE/REPEAT node.
func BeginWhileRepeat(cond, body []Node) Node {
	return Node{Tag: TagBeginWhileRepeat, Condition: cond, Body: body}
}

// DoLoop builds a DO/LOOP, DO/+LOOP, or ?DO node. increment==0 means +LOOP.
func DoLoop(body []Node, increment cell.Cell, conditional bool) Node {
	return Node{Tag: TagDoLoop, Body: body, Increment: increment, Conditional: conditional}
}

// PrintString builds a ." node.
func PrintString(text string) Node { return Node{Tag: TagPrintString, Text: text} }

// StackString builds an S" node.
func StackString(text string) Node { return Node{Tag: TagStackString, Text: text} }

// TickLiteral builds a ['] node.
func TickLiteral(word string) Node { return Node{Tag: tagTickLiteral, Name: word} }

// Leave, Exit, Unloop, and Execute are the zero-field control nodes.
func Leave() Node   { return Node{Tag: TagLeave} }
func Exit() Node    { return Node{Tag: TagExit} }
func Unloop() Node  { return Node{Tag: tagUnloop} }
func Execute() Node { return Node{Tag: tagExecute} }

// InlineInstruction builds an inline-directive node naming a primitive's
// IR-emitting lowering, for use from native-compiled words (spec.md §3,
// "directs the native backend to emit a specific primitive inline").
func InlineInstruction(op string) Node { return Node{Tag: TagInlineInstruction, Op: op} }

// IsTickLiteral, IsUnloop, IsExecute let callers outside this package
// recognise the tags that have no public Tag constant (kept unexported so
// that external switches are forced through these predicates rather than
// hard-coding tag numbers that aren't part of the handle-API contract).
func (n Node) IsTickLiteral() bool { return n.Tag == tagTickLiteral }
func (n Node) IsUnloop() bool      { return n.Tag == tagUnloop }
func (n Node) IsExecute() bool     { return n.Tag == tagExecute }

// MarkTail computes IsTailPosition over seq (normally a word's top-level
// Sequence), shared by interp's trampoline restart and native's tail-call
// IR attribute (spec.md §4.3, §4.4): the last node of a sequence inherits
// tail position from its enclosing sequence, both branches of a terminal
// IfThenElse inherit it from the IfThenElse, and loop bodies (BeginUntil,
// BeginWhileRepeat, DoLoop) never inherit it.
func MarkTail(seq Node) Node {
	seq.Children = markTailList(seq.Children)
	return seq
}

func markTailList(nodes []Node) []Node {
	if len(nodes) == 0 {
		return nodes
	}
	out := make([]Node, len(nodes))
	copy(out, nodes)
	last := len(out) - 1
	out[last] = markTailNode(out[last])
	return out
}

func markTailNode(n Node) Node {
	n.IsTailPosition = true
	switch n.Tag {
	case TagIfThenElse:
		n.Then = markTailList(n.Then)
		n.Else = markTailList(n.Else)
	case TagSequence:
		n.Children = markTailList(n.Children)
	}
	return n
}

// Clone deep-copies a Node and its children, as required by the AST-handle
// registry (spec.md §4.5: "clones sub-trees into a thread-local registry").
func (n Node) Clone() Node {
	c := n
	c.Children = cloneSlice(n.Children)
	c.Then = cloneSlice(n.Then)
	c.Else = cloneSlice(n.Else)
	c.Body = cloneSlice(n.Body)
	c.Condition = cloneSlice(n.Condition)
	return c
}

func cloneSlice(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
