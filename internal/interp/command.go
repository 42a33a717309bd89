package interp

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/nxerrors"
	"github.com/nexusshell/nexusshell/internal/shell"
)

func (it *Interpreter) execCommand(ctx context.Context, shCtx *shell.Context, cmd *ast.Command, s Streams) (int, error) {
	name, err := it.evalWord(ctx, shCtx, cmd.Name)
	if err != nil {
		return 1, err
	}
	args, err := it.evalWords(ctx, shCtx, cmd.Args)
	if err != nil {
		return 1, err
	}

	if cmd.Background {
		return it.execBackground(ctx, shCtx, name, args, s)
	}
	return it.runCommand(ctx, shCtx, name, args, s)
}

// runCommand resolves name against the builtin registry first, falling
// back to an external process on miss (spec.md §4.4).
func (it *Interpreter) runCommand(ctx context.Context, shCtx *shell.Context, name string, args []string, s Streams) (int, error) {
	if it.Builtins != nil {
		if res, ok := it.Builtins.Run(shCtx, name, args); ok {
			if s.Stdout != nil && res.Stdout != "" {
				fmt.Fprint(s.Stdout, res.Stdout)
			}
			if s.Stderr != nil && res.Stderr != "" {
				fmt.Fprint(s.Stderr, res.Stderr)
			}
			return res.ExitCode, nil
		}
	}
	return it.runExternalProcess(ctx, shCtx, name, args, s)
}

func (it *Interpreter) runExternalProcess(ctx context.Context, shCtx *shell.Context, name string, args []string, s Streams) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = shCtx.Cwd
	cmd.Env = shCtx.EnvSlice()
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 127, nxerrors.NewCommandNotFound(name)
}

// execBackground launches name in the background, registers it with the
// JobManager, prints the "[job_id] command" notice to stdout and
// returns immediately with exit 0 (spec.md §4.4).
func (it *Interpreter) execBackground(ctx context.Context, shCtx *shell.Context, name string, args []string, s Streams) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = shCtx.Cwd
	cmd.Env = shCtx.EnvSlice()

	display := name
	for _, a := range args {
		display += " " + a
	}

	job := shCtx.Jobs.Start(display, cmd)
	if s.Stdout != nil {
		fmt.Fprintln(s.Stdout, job.Notice())
	}
	if err := cmd.Start(); err != nil {
		shCtx.Jobs.Finish(job.ID, 127)
		return 0, nil
	}
	go func() {
		err := cmd.Wait()
		code := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else if err != nil {
			code = 1
		}
		shCtx.Jobs.Finish(job.ID, code)
	}()

	return 0, nil
}
