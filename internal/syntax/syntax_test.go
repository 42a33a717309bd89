package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/syntax"
)

func TestParseSimpleCommandWithArgs(t *testing.T) {
	prog, err := syntax.Parse("echo hello world")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)

	cmd, ok := prog.Statements[0].(*ast.Command)
	require.True(t, ok)
	name, ok := cmd.Name.(*ast.StringLiteral)
	require.True(t, ok)
	require.Equal(t, "echo", name.Value)
	require.Len(t, cmd.Args, 2)
}

func TestParseBackgroundCommand(t *testing.T) {
	prog, err := syntax.Parse("sleep 1 &")
	require.NoError(t, err)
	cmd, ok := prog.Statements[0].(*ast.Command)
	require.True(t, ok)
	require.True(t, cmd.Background)
}

func TestParsePipeline(t *testing.T) {
	prog, err := syntax.Parse("echo hi | wc")
	require.NoError(t, err)
	pipe, ok := prog.Statements[0].(*ast.Pipeline)
	require.True(t, ok)
	require.Len(t, pipe.Elements, 2)
}

func TestParseLogicalAndOr(t *testing.T) {
	prog, err := syntax.Parse("true && false || true")
	require.NoError(t, err)
	or, ok := prog.Statements[0].(*ast.LogicalOr)
	require.True(t, ok)
	_, ok = or.Left.(*ast.LogicalAnd)
	require.True(t, ok)
}

func TestParseIfElse(t *testing.T) {
	prog, err := syntax.Parse("if true; then echo yes; else echo no; fi")
	require.NoError(t, err)
	ifNode, ok := prog.Statements[0].(*ast.If)
	require.True(t, ok)
	require.NotNil(t, ifNode.Then)
	require.NotNil(t, ifNode.Else)
}

func TestParseIfWithoutElse(t *testing.T) {
	prog, err := syntax.Parse("if true; then echo yes; fi")
	require.NoError(t, err)
	ifNode, ok := prog.Statements[0].(*ast.If)
	require.True(t, ok)
	require.Nil(t, ifNode.Else)
}

func TestParseForLoop(t *testing.T) {
	prog, err := syntax.Parse("for x in a b c; do echo $x; done")
	require.NoError(t, err)
	forNode, ok := prog.Statements[0].(*ast.For)
	require.True(t, ok)
	require.Equal(t, "x", forNode.Var)
	iter, ok := forNode.Iterable.(*ast.Pipeline)
	require.True(t, ok)
	require.Len(t, iter.Elements, 3)
}

func TestParseWhileLoop(t *testing.T) {
	prog, err := syntax.Parse("while true; do echo spin; done")
	require.NoError(t, err)
	_, ok := prog.Statements[0].(*ast.While)
	require.True(t, ok)
}

func TestParseSubshell(t *testing.T) {
	prog, err := syntax.Parse("(echo inside)")
	require.NoError(t, err)
	sub, ok := prog.Statements[0].(*ast.Subshell)
	require.True(t, ok)
	require.Len(t, sub.Commands, 1)
}

func TestParseVariableAssignment(t *testing.T) {
	prog, err := syntax.Parse("x=42")
	require.NoError(t, err)
	assign, ok := prog.Statements[0].(*ast.VariableAssignment)
	require.True(t, ok)
	require.Equal(t, "x", assign.Name)
	num, ok := assign.Value.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, int64(42), num.Value)
}

func TestParseVariableReference(t *testing.T) {
	prog, err := syntax.Parse("echo $HOME")
	require.NoError(t, err)
	cmd := prog.Statements[0].(*ast.Command)
	require.Len(t, cmd.Args, 1)
	ref, ok := cmd.Args[0].(*ast.VariableReference)
	require.True(t, ok)
	require.Equal(t, "HOME", ref.Name)
}

func TestParseCommandSubstitution(t *testing.T) {
	prog, err := syntax.Parse("echo $(true)")
	require.NoError(t, err)
	cmd := prog.Statements[0].(*ast.Command)
	sub, ok := cmd.Args[0].(*ast.CommandSubstitution)
	require.True(t, ok)
	require.NotNil(t, sub.Command)
}

func TestParseQuotedStringIsNotParsedAsKeyword(t *testing.T) {
	prog, err := syntax.Parse(`echo "if"`)
	require.NoError(t, err)
	cmd := prog.Statements[0].(*ast.Command)
	lit, ok := cmd.Args[0].(*ast.StringLiteral)
	require.True(t, ok)
	require.Equal(t, "if", lit.Value)
}

func TestParseUnterminatedQuoteFails(t *testing.T) {
	_, err := syntax.Parse(`echo "unterminated`)
	require.Error(t, err)
}

func TestParseUnterminatedCommandSubstitutionFails(t *testing.T) {
	_, err := syntax.Parse("echo $(true")
	require.Error(t, err)
}

func TestParseMissingFiFails(t *testing.T) {
	_, err := syntax.Parse("if true; then echo yes")
	require.Error(t, err)
}

func TestParseMultipleStatementsSeparatedBySemicolons(t *testing.T) {
	prog, err := syntax.Parse("echo a; echo b; echo c")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 3)
}
