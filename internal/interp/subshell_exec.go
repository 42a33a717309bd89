package interp

import (
	"context"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/shell"
	"github.com/nexusshell/nexusshell/internal/subshell"
)

// execSubshell dispatches to one of the two isolation strategies
// (spec.md §4.5); in both cases the parent's variable, function, alias
// and history tables are left untouched.
func (it *Interpreter) execSubshell(ctx context.Context, shCtx *shell.Context, node *ast.Subshell, s Streams) (int, error) {
	if it.SubshellMode == subshell.ModeExternalProcess {
		code, err := subshell.RunExternal(ctx, shCtx, it.ShellPath, node.Commands, s.Stdin, s.Stdout, s.Stderr)
		return code, err
	}

	child := subshell.Clone(shCtx)
	code := 0
	for _, c := range node.Commands {
		var err error
		code, err = it.Execute(ctx, child, c, s)
		if err != nil {
			return code, err
		}
		if child.Opts.ErrExit && code != 0 {
			break
		}
	}
	return code, nil
}
