package interp_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/builtin"
	"github.com/nexusshell/nexusshell/internal/interp"
	"github.com/nexusshell/nexusshell/internal/shell"
	"github.com/nexusshell/nexusshell/internal/syntax"
)

func run(t *testing.T, script string) (stdout string, exitCode int) {
	t.Helper()
	prog, err := syntax.Parse(script)
	require.NoError(t, err)

	reg := builtin.NewRegistry()
	builtin.RegisterCore(reg)
	it := interp.New(reg)

	shCtx := shell.New("/tmp")
	var out bytes.Buffer
	code, err := it.Execute(context.Background(), shCtx, prog, interp.Streams{Stdout: &out, Stderr: &out})
	require.NoError(t, err)
	return out.String(), code
}

func TestEchoHello(t *testing.T) {
	out, code := run(t, "echo hello")
	require.Equal(t, "hello\n", out)
	require.Equal(t, 0, code)
}

func TestTrueAndEchoOkOrEchoKo(t *testing.T) {
	out, code := run(t, "true && echo ok || echo ko")
	require.Equal(t, "ok\n", out)
	require.Equal(t, 0, code)
}

func TestFalseAndEchoOkOrEchoKo(t *testing.T) {
	out, code := run(t, "false && echo ok || echo ko")
	require.Equal(t, "ko\n", out)
	require.Equal(t, 0, code)
}

func TestSubshellDoesNotLeakVariableToParent(t *testing.T) {
	prog, err := syntax.Parse("(x=1; echo $x)\necho $x")
	require.NoError(t, err)

	reg := builtin.NewRegistry()
	builtin.RegisterCore(reg)
	it := interp.New(reg)
	shCtx := shell.New("/tmp")

	var out bytes.Buffer
	_, err = it.Execute(context.Background(), shCtx, prog, interp.Streams{Stdout: &out, Stderr: &out})
	require.NoError(t, err)
	require.Equal(t, "1\n\n", out.String())

	_, ok := shCtx.Variable("x")
	require.False(t, ok)
}

func TestEmptyPipelineReturnsExitZero(t *testing.T) {
	out, code := run(t, "")
	require.Equal(t, "", out)
	require.Equal(t, 0, code)
}

func TestIfElse(t *testing.T) {
	out, code := run(t, "if true; then echo yes; else echo no; fi")
	require.Equal(t, "yes\n", out)
	require.Equal(t, 0, code)

	out, code = run(t, "if false; then echo yes; else echo no; fi")
	require.Equal(t, "no\n", out)
	require.Equal(t, 0, code)
}

func TestForLoop(t *testing.T) {
	out, _ := run(t, "for i in a b c; do echo $i; done")
	require.Equal(t, "a\nb\nc\n", out)
}
