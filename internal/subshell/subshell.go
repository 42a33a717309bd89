// Package subshell implements the C6 Subshell Isolator (spec.md §4.5):
// in-process context cloning and external-process spawning, both
// guaranteeing the parent's variable/function/alias/history tables are
// never mutated.
package subshell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/shell"
)

// Mode selects the isolation strategy. It is a configuration flag, not
// an implicit choice (spec.md §9 Design Notes).
type Mode uint8

const (
	// ModeInProcess deep-copies the parent context; cheaper, but cannot
	// isolate address-space mutations inside loaded plugins.
	ModeInProcess Mode = iota
	// ModeExternalProcess serializes the command list back to a script
	// and spawns a child shell process.
	ModeExternalProcess
)

// Clone builds a fresh Context for an in-process subshell: only
// exported variables propagate; functions, aliases and history are not
// inherited; break/continue are cleared; shell_level carries over and
// subshell_level increments.
func Clone(parent *shell.Context) *shell.Context {
	child := shell.New(parent.Cwd)
	child.ShellLevel = parent.ShellLevel
	child.Opts = shell.Options{
		ErrExit:       parent.Opts.ErrExit,
		SubshellLevel: parent.Opts.SubshellLevel + 1,
	}
	for name, env := range parent.Environment {
		child.SetVariable(name, shell.Variable{Value: env, Exported: true})
	}
	return child
}

// ExternalEnv builds the environment for a spawned subshell process:
// the parent's exported variables plus SHLVL and NXSH_SUBSHELL=1
// (spec.md §4.5/§6).
func ExternalEnv(parent *shell.Context) []string {
	env := parent.EnvSlice()
	env = append(env, fmt.Sprintf("SHLVL=%d", parent.ShellLevel+1))
	env = append(env, "NXSH_SUBSHELL=1")
	return env
}

// RunExternal serializes commands to a script, spawns shellPath with
// the "--subshell <path>" convention (spec.md §6) by writing the script
// to a temp file, and pipes stdin/stdout/stderr through. It returns the
// child's exit code.
func RunExternal(ctx context.Context, parent *shell.Context, shellPath string, commands []ast.Node, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	script, err := Serialize(commands)
	if err != nil {
		return 1, err
	}

	f, err := os.CreateTemp("", "nxsh-subshell-*.nxsh")
	if err != nil {
		return 1, fmt.Errorf("subshell: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return 1, fmt.Errorf("subshell: %w", err)
	}
	if err := f.Close(); err != nil {
		return 1, fmt.Errorf("subshell: %w", err)
	}

	cmd := exec.CommandContext(ctx, shellPath, "--subshell", f.Name())
	cmd.Env = ExternalEnv(parent)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("subshell: %w", err)
	}
	return 0, nil
}

// RunExternalCaptured is a convenience over RunExternal for callers
// that want the child's combined stdout rather than streaming it.
func RunExternalCaptured(ctx context.Context, parent *shell.Context, shellPath string, commands []ast.Node) (stdout string, exitCode int, err error) {
	var buf bytes.Buffer
	code, err := RunExternal(ctx, parent, shellPath, commands, nil, &buf, io.Discard)
	return buf.String(), code, err
}
