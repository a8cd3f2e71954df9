package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/ast"
	"github.com/quarter-lang/quarter/parse"
)

type fakeLookup map[string]bool

func (f fakeLookup) Has(name string) bool { return f[name] }

func parseOK(t *testing.T, lookup parse.Lookup, src string) ast.Node {
	t.Helper()
	p := parse.New(lookup)
	n, err := p.Parse(parse.Tokenize(src))
	require.NoError(t, err)
	return n
}

func TestParseNumberAndCallWord(t *testing.T) {
	n := parseOK(t, fakeLookup{"DUP": true}, "42 dup")
	require.Len(t, n.Children, 2)
	assert.Equal(t, ast.TagPushNumber, n.Children[0].Tag)
	assert.EqualValues(t, 42, n.Children[0].Number)
	assert.Equal(t, ast.TagCallWord, n.Children[1].Tag)
	assert.Equal(t, "dup", n.Children[1].Name)
}

func TestParseNegativeNumber(t *testing.T) {
	n := parseOK(t, nil, "-17")
	require.Len(t, n.Children, 1)
	assert.Equal(t, ast.TagPushNumber, n.Children[0].Tag)
	assert.EqualValues(t, -17, n.Children[0].Number)
}

func TestParseIfThen(t *testing.T) {
	n := parseOK(t, nil, "IF 1 THEN")
	require.Len(t, n.Children, 1)
	node := n.Children[0]
	assert.Equal(t, ast.TagIfThenElse, node.Tag)
	assert.Len(t, node.Then, 1)
	assert.Nil(t, node.Else)
}

func TestParseIfElseThen(t *testing.T) {
	n := parseOK(t, nil, "IF 1 ELSE 2 THEN")
	node := n.Children[0]
	require.Len(t, node.Then, 1)
	require.Len(t, node.Else, 1)
}

func TestParseIfMissingThen(t *testing.T) {
	p := parse.New(nil)
	_, err := p.Parse(parse.Tokenize("IF 1"))
	require.Error(t, err)
	assert.Equal(t, "MissingThen", err.(parse.ParseError).Kind)
}

func TestParseUnbalancedTerminator(t *testing.T) {
	p := parse.New(nil)
	_, err := p.Parse(parse.Tokenize("1 THEN"))
	require.Error(t, err)
	assert.Equal(t, "UnbalancedConditional", err.(parse.ParseError).Kind)
}

func TestParseBeginUntil(t *testing.T) {
	n := parseOK(t, nil, "BEGIN 1 UNTIL")
	node := n.Children[0]
	assert.Equal(t, ast.TagBeginUntil, node.Tag)
	assert.Len(t, node.Body, 1)
}

func TestParseBeginWhileRepeat(t *testing.T) {
	n := parseOK(t, nil, "BEGIN 1 WHILE 2 REPEAT")
	node := n.Children[0]
	assert.Equal(t, ast.TagBeginWhileRepeat, node.Tag)
	assert.Len(t, node.Condition, 1)
	assert.Len(t, node.Body, 1)
}

func TestParseDoLoop(t *testing.T) {
	n := parseOK(t, nil, "10 0 DO I . LOOP")
	require.Len(t, n.Children, 3) // PushNumber(10), PushNumber(0), DoLoop
	loop := n.Children[2]
	assert.Equal(t, ast.TagDoLoop, loop.Tag)
	assert.EqualValues(t, 1, loop.Increment)
	assert.False(t, loop.Conditional)
}

func TestParseQuestionDoPlusLoop(t *testing.T) {
	n := parseOK(t, nil, "?DO 1 +LOOP")
	loop := n.Children[0]
	assert.True(t, loop.Conditional)
	assert.EqualValues(t, 0, loop.Increment)
}

func TestParseStackStringAndPrintString(t *testing.T) {
	n := parseOK(t, nil, `S" hello world" ." hi"`)
	require.Len(t, n.Children, 2)
	assert.Equal(t, ast.TagStackString, n.Children[0].Tag)
	assert.Equal(t, "hello world", n.Children[0].Text)
	assert.Equal(t, ast.TagPrintString, n.Children[1].Tag)
	assert.Equal(t, "hi", n.Children[1].Text)
}

func TestParseTickLiteralRequiresKnownWord(t *testing.T) {
	p := parse.New(fakeLookup{"DUP": true})
	n, err := p.Parse(parse.Tokenize("['] DUP"))
	require.NoError(t, err)
	assert.True(t, n.Children[0].IsTickLiteral())

	_, err = p.Parse(parse.Tokenize("['] NOPE"))
	require.Error(t, err)
	assert.Equal(t, "UndefinedWord", err.(parse.ParseError).Kind)
}

func TestParseControlWords(t *testing.T) {
	n := parseOK(t, nil, "LEAVE EXIT UNLOOP EXECUTE")
	assert.Equal(t, ast.TagLeave, n.Children[0].Tag)
	assert.Equal(t, ast.TagExit, n.Children[1].Tag)
	assert.True(t, n.Children[2].IsUnloop())
	assert.True(t, n.Children[3].IsExecute())
}

func TestValidateAllowsSelfRecursion(t *testing.T) {
	n := ast.Sequence([]ast.Node{ast.CallWord("FACT")})
	err := parse.Validate(n, fakeLookup{}, "FACT")
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownWord(t *testing.T) {
	n := ast.Sequence([]ast.Node{ast.CallWord("NOPE")})
	err := parse.Validate(n, fakeLookup{}, "FACT")
	require.Error(t, err)
	assert.Equal(t, "UndefinedWord", err.(parse.ParseError).Kind)
}

func TestValidateWalksNestedConstructs(t *testing.T) {
	n := ast.Sequence([]ast.Node{
		ast.IfThenElse([]ast.Node{ast.CallWord("NOPE")}, nil),
	})
	err := parse.Validate(n, fakeLookup{}, "")
	require.Error(t, err)
}

func TestParseBaseHex(t *testing.T) {
	p := parse.New(nil)
	p.Base = func() int { return 16 }
	n, err := p.Parse(parse.Tokenize("FF"))
	require.NoError(t, err)
	assert.EqualValues(t, 255, n.Children[0].Number)
}
