package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/builtin"
	"github.com/nexusshell/nexusshell/internal/shell"
)

func TestPingWithNoTargetReturnsUsageError(t *testing.T) {
	reg := builtin.NewRegistry()
	builtin.RegisterPing(reg)

	res, ok := reg.Run(shell.New("/tmp"), "ping", []string{"-c", "3"})
	require.True(t, ok)
	require.Equal(t, 2, res.ExitCode)
	require.Contains(t, res.Stderr, "usage")
}

func TestPingWithUnresolvableHostReturnsErrorExitCode(t *testing.T) {
	reg := builtin.NewRegistry()
	builtin.RegisterPing(reg)

	res, ok := reg.Run(shell.New("/tmp"), "ping", []string{"this-host-should-never-resolve.invalid"})
	require.True(t, ok)
	require.Equal(t, 2, res.ExitCode)
	require.Contains(t, res.Stderr, "cannot resolve")
}
