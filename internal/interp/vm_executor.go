package interp

import (
	"context"
	"io"

	"github.com/nexusshell/nexusshell/internal/shell"
)

// VMExecutor adapts Interpreter's command resolution (builtin lookup,
// then external-process fallback) to internal/mir/vm.Executor, so the
// register VM and the direct interpreter agree on what "run a command"
// means (spec.md §8's cross-strategy equivalence).
type VMExecutor struct {
	it *Interpreter
}

func NewVMExecutor(it *Interpreter) *VMExecutor { return &VMExecutor{it: it} }

func (e *VMExecutor) RunCommand(ctx context.Context, shCtx *shell.Context, name string, args []string, stdout, stderr io.Writer) (int, error) {
	return e.it.runCommand(ctx, shCtx, name, args, Streams{Stdout: stdout, Stderr: stderr})
}
