package interp

import (
	"context"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/shell"
)

func (it *Interpreter) execIf(ctx context.Context, shCtx *shell.Context, node *ast.If, s Streams) (int, error) {
	condCode, err := it.Execute(ctx, shCtx, node.Cond, s)
	if err != nil {
		return condCode, err
	}
	if condCode == 0 {
		return it.Execute(ctx, shCtx, node.Then, s)
	}
	if node.Else != nil {
		return it.Execute(ctx, shCtx, node.Else, s)
	}
	return 0, nil
}

func (it *Interpreter) execFor(ctx context.Context, shCtx *shell.Context, node *ast.For, s Streams) (int, error) {
	items, err := it.iterableValues(ctx, shCtx, node.Iterable)
	if err != nil {
		return 1, err
	}
	code := 0
	for _, item := range items {
		shCtx.SetVariable(node.Var, shell.Variable{Value: item})
		code, err = it.Execute(ctx, shCtx, node.Body, s)
		if err != nil {
			return code, err
		}
		if shCtx.Opts.BreakRequested {
			shCtx.ClearControlFlow()
			break
		}
		if shCtx.Opts.ContinueRequested {
			shCtx.ClearControlFlow()
			continue
		}
		if shCtx.Opts.ErrExit && code != 0 {
			break
		}
	}
	return code, nil
}

func (it *Interpreter) execWhile(ctx context.Context, shCtx *shell.Context, node *ast.While, s Streams) (int, error) {
	code := 0
	for {
		condCode, err := it.Execute(ctx, shCtx, node.Cond, s)
		if err != nil {
			return condCode, err
		}
		if condCode != 0 {
			break
		}
		code, err = it.Execute(ctx, shCtx, node.Body, s)
		if err != nil {
			return code, err
		}
		if shCtx.Opts.BreakRequested {
			shCtx.ClearControlFlow()
			break
		}
		if shCtx.Opts.ContinueRequested {
			shCtx.ClearControlFlow()
			continue
		}
		if shCtx.Opts.ErrExit && code != 0 {
			break
		}
	}
	return code, nil
}

// iterableValues reduces a For loop's Iterable (a Pipeline of literal
// expressions, per internal/syntax) to plain strings.
func (it *Interpreter) iterableValues(ctx context.Context, shCtx *shell.Context, node ast.Node) ([]string, error) {
	pl, ok := node.(*ast.Pipeline)
	if !ok {
		v, err := it.evalWord(ctx, shCtx, node)
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	}
	return it.evalWords(ctx, shCtx, pl.Elements)
}
