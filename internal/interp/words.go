package interp

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/nxerrors"
	"github.com/nexusshell/nexusshell/internal/shell"
)

// evalWord reduces a leaf expression node to its string value,
// evaluating command substitutions (spec.md §4.4) along the way.
func (it *Interpreter) evalWord(ctx context.Context, shCtx *shell.Context, node ast.Node) (string, error) {
	switch v := node.(type) {
	case *ast.StringLiteral:
		return v.Value, nil
	case *ast.NumberLiteral:
		return strconv.FormatInt(v.Value, 10), nil
	case *ast.VariableReference:
		val, ok := shCtx.Variable(v.Name)
		if !ok {
			return "", nil
		}
		return val.Value, nil
	case *ast.CommandSubstitution:
		var buf bytes.Buffer
		_, err := it.Execute(ctx, shCtx, v.Command, Streams{Stdout: &buf, Stderr: &bytes.Buffer{}})
		if err != nil {
			return "", err
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	default:
		return "", nxerrors.NewInternalError(fmt.Sprintf("interp: %T is not a word", node), nil)
	}
}

// evalWords evaluates a slice of expression nodes in order.
func (it *Interpreter) evalWords(ctx context.Context, shCtx *shell.Context, nodes []ast.Node) ([]string, error) {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		s, err := it.evalWord(ctx, shCtx, n)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
