package subshell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nexusshell/nexusshell/internal/ast"
)

// Serialize renders a command list back into script text, for the
// external-process subshell path (spec.md §4.5's "serialize the
// command list back to a shell script").
func Serialize(commands []ast.Node) (string, error) {
	var lines []string
	for _, c := range commands {
		line, err := nodeToString(c)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func nodeToString(n ast.Node) (string, error) {
	switch v := n.(type) {
	case *ast.Command:
		name, err := nodeToString(v.Name)
		if err != nil {
			return "", err
		}
		parts := []string{name}
		for _, a := range v.Args {
			s, err := nodeToString(a)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		line := strings.Join(parts, " ")
		if v.Background {
			line += " &"
		}
		return line, nil
	case *ast.Pipeline:
		parts := make([]string, len(v.Elements))
		for i, e := range v.Elements {
			s, err := nodeToString(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, " | "), nil
	case *ast.LogicalAnd:
		l, err := nodeToString(v.Left)
		if err != nil {
			return "", err
		}
		r, err := nodeToString(v.Right)
		if err != nil {
			return "", err
		}
		return l + " && " + r, nil
	case *ast.LogicalOr:
		l, err := nodeToString(v.Left)
		if err != nil {
			return "", err
		}
		r, err := nodeToString(v.Right)
		if err != nil {
			return "", err
		}
		return l + " || " + r, nil
	case *ast.VariableAssignment:
		val, err := nodeToString(v.Value)
		if err != nil {
			return "", err
		}
		return v.Name + "=" + val, nil
	case *ast.StringLiteral:
		return v.Value, nil
	case *ast.NumberLiteral:
		return strconv.FormatInt(v.Value, 10), nil
	case *ast.VariableReference:
		return "$" + v.Name, nil
	case *ast.Subshell:
		inner, err := Serialize(v.Commands)
		if err != nil {
			return "", err
		}
		return "(" + strings.TrimSuffix(inner, "\n") + ")", nil
	case *ast.Program:
		return Serialize(v.Statements)
	default:
		return "", fmt.Errorf("subshell: cannot serialize node %T", n)
	}
}
