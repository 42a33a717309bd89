// Package interp implements the C5 Direct AST Interpreter (spec.md
// §4.4): it walks the syntax tree without lowering to MIR, handling
// subshells, pipelines, conditionals, loops and background jobs.
package interp

import (
	"context"
	"io"
	"os"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/builtin"
	"github.com/nexusshell/nexusshell/internal/nxerrors"
	"github.com/nexusshell/nexusshell/internal/shell"
	"github.com/nexusshell/nexusshell/internal/subshell"
)

// Interpreter walks an ast.Node tree against a shell.Context. Strategy
// selection (direct vs MIR) is a per-invocation flag on the caller, not
// on the Interpreter itself (spec.md §4.4): this type only implements
// the direct path.
type Interpreter struct {
	Builtins     *builtin.Registry
	SubshellMode subshell.Mode
	ShellPath    string // used only in ModeExternalProcess
}

// New builds an Interpreter with the given builtin registry. Subshell
// mode defaults to in-process.
func New(reg *builtin.Registry) *Interpreter {
	return &Interpreter{Builtins: reg, SubshellMode: subshell.ModeInProcess, ShellPath: os.Args[0]}
}

// Streams bundles the three standard streams an execution writes to
// and reads from.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Execute runs node against ctx, honouring break/continue/errexit. It
// returns the node's exit code (0 for success, by shell convention).
func (it *Interpreter) Execute(ctx context.Context, shCtx *shell.Context, node ast.Node, s Streams) (int, error) {
	switch v := node.(type) {
	case *ast.Program:
		return it.execProgram(ctx, shCtx, v, s)
	case *ast.Command:
		return it.execCommand(ctx, shCtx, v, s)
	case *ast.Pipeline:
		return it.execPipeline(ctx, shCtx, v, s)
	case *ast.If:
		return it.execIf(ctx, shCtx, v, s)
	case *ast.For:
		return it.execFor(ctx, shCtx, v, s)
	case *ast.While:
		return it.execWhile(ctx, shCtx, v, s)
	case *ast.Subshell:
		return it.execSubshell(ctx, shCtx, v, s)
	case *ast.VariableAssignment:
		return it.execAssignment(ctx, shCtx, v)
	case *ast.LogicalAnd:
		left, err := it.Execute(ctx, shCtx, v.Left, s)
		if err != nil || left != 0 {
			return left, err
		}
		return it.Execute(ctx, shCtx, v.Right, s)
	case *ast.LogicalOr:
		left, err := it.Execute(ctx, shCtx, v.Left, s)
		if err != nil {
			return left, err
		}
		if left == 0 {
			return 0, nil
		}
		return it.Execute(ctx, shCtx, v.Right, s)
	default:
		return 1, nxerrors.NewInternalError("interp: unhandled node type", nil)
	}
}

func (it *Interpreter) execProgram(ctx context.Context, shCtx *shell.Context, p *ast.Program, s Streams) (int, error) {
	code := 0
	for _, stmt := range p.Statements {
		var err error
		code, err = it.Execute(ctx, shCtx, stmt, s)
		if err != nil {
			return code, err
		}
		if shCtx.Opts.ErrExit && code != 0 {
			return code, nil
		}
		if shCtx.Opts.BreakRequested || shCtx.Opts.ContinueRequested {
			return code, nil
		}
	}
	return code, nil
}

func (it *Interpreter) execAssignment(ctx context.Context, shCtx *shell.Context, v *ast.VariableAssignment) (int, error) {
	value, err := it.evalWord(ctx, shCtx, v.Value)
	if err != nil {
		return 1, err
	}
	if existing, ok := shCtx.Variable(v.Name); ok && existing.Readonly {
		return 1, nxerrors.NewInvalidArgument("cannot assign to readonly variable " + v.Name)
	}
	shCtx.SetVariable(v.Name, shell.Variable{Value: value, Exported: v.Export, Readonly: v.Readonly})
	return 0, nil
}
