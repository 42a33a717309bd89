package shell_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/shell"
)

func TestSetVariableExportedAddsToEnvironment(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.SetVariable("FOO", shell.Variable{Value: "bar", Exported: true})

	v, ok := ctx.Variable("FOO")
	require.True(t, ok)
	require.Equal(t, "bar", v.Value)
	require.Equal(t, "bar", ctx.Environment["FOO"])
}

func TestSetVariableUnexportedRemovesFromEnvironment(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.SetVariable("FOO", shell.Variable{Value: "bar", Exported: true})
	ctx.SetVariable("FOO", shell.Variable{Value: "bar", Exported: false})

	_, inEnv := ctx.Environment["FOO"]
	require.False(t, inEnv)
}

func TestUnsetRemovesVariableAndEnvironmentEntry(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.SetVariable("FOO", shell.Variable{Value: "bar", Exported: true})
	ctx.Unset("FOO")

	_, ok := ctx.Variable("FOO")
	require.False(t, ok)
	_, inEnv := ctx.Environment["FOO"]
	require.False(t, inEnv)
}

func TestExportAddsExistingVariableToEnvironment(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.SetVariable("FOO", shell.Variable{Value: "bar"})
	ctx.Export("FOO")

	v, _ := ctx.Variable("FOO")
	require.True(t, v.Exported)
	require.Equal(t, "bar", ctx.Environment["FOO"])
}

func TestExportOfUnknownVariableIsNoop(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.Export("NOPE")
	_, ok := ctx.Variable("NOPE")
	require.False(t, ok)
}

func TestEnvSliceRendersNameEqualsValue(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.SetVariable("A", shell.Variable{Value: "1", Exported: true})
	ctx.SetVariable("B", shell.Variable{Value: "2", Exported: true})

	env := ctx.EnvSlice()
	require.Len(t, env, 2)
	require.Contains(t, env, "A=1")
	require.Contains(t, env, "B=2")
}

func TestClearControlFlowResetsBreakAndContinue(t *testing.T) {
	ctx := shell.New("/tmp")
	ctx.Opts.BreakRequested = true
	ctx.Opts.ContinueRequested = true

	ctx.ClearControlFlow()
	require.False(t, ctx.Opts.BreakRequested)
	require.False(t, ctx.Opts.ContinueRequested)
}

func TestNewContextStartsEmpty(t *testing.T) {
	ctx := shell.New("/home/nexus")
	require.Equal(t, "/home/nexus", ctx.Cwd)
	require.Empty(t, ctx.Variables)
	require.Empty(t, ctx.Environment)
	require.NotNil(t, ctx.Jobs)
}
