// Package lower implements the C3 AST→MIR lowerer (spec.md §4.2): it
// walks an ast.Node tree and emits a mir.Program whose "main" function
// the register VM (internal/mir/vm) can execute. Lowering keeps an
// explicit "current function / current block" cursor, the way the
// original executor's compile_*_to_mir family threads a &mut
// MirBasicBlock through each call.
package lower

import (
	"strconv"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/mir"
)

// cursor tracks the basic block instructions are currently being
// appended to; lowering a conditional or loop advances it to the
// control flow's join block once both branches have been compiled.
type cursor struct {
	block *mir.BasicBlock
}

type lowerer struct {
	fn *mir.Function
}

// Lower compiles prog into a single-function mir.Program whose main
// function returns the exit code of prog's last statement (spec.md
// §4.2's "last result register" rule).
func Lower(prog *ast.Program) (*mir.Program, error) {
	mprog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	entry, _ := fn.Block(fn.EntryBlock())

	l := &lowerer{fn: fn}
	cur := &cursor{block: entry}
	result, err := l.lowerNode(cur, prog)
	if err != nil {
		return nil, err
	}
	cur.block.Append(mir.ReturnValue(result))

	mprog.AddFunction(fn)
	return mprog, nil
}

// lowerNode compiles any node that can appear as a statement and
// returns the register holding its result.
func (l *lowerer) lowerNode(cur *cursor, node ast.Node) (mir.Register, error) {
	switch v := node.(type) {
	case *ast.Program:
		return l.lowerSequence(cur, v.Statements)
	case *ast.Command:
		return l.lowerCommand(cur, v)
	case *ast.Pipeline:
		return l.lowerPipeline(cur, v)
	case *ast.If:
		return l.lowerIf(cur, v)
	case *ast.For:
		// Simplified loop lowering: the body is compiled once, matching
		// the original executor's compile_loop_to_mir. A real iterating
		// loop needs per-iteration blocks and a back-edge; the direct
		// interpreter (internal/interp) is the execution strategy that
		// implements full iteration, so only it is exercised for actual
		// for-loop scenarios (spec.md §8's equivalence class excludes
		// multi-iteration loops for the MIR path).
		return l.lowerNode(cur, v.Body)
	case *ast.While:
		return l.lowerNode(cur, v.Body)
	case *ast.Subshell:
		return l.lowerSequence(cur, v.Commands)
	case *ast.VariableAssignment:
		// The register VM has no named-variable store (spec.md §4.2's
		// MIR operates purely on registers); an assignment lowers to a
		// success result only. internal/interp is authoritative for
		// variable semantics.
		reg := l.fn.NewRegister()
		cur.block.Append(mir.LoadImmediate(reg, mir.Int(0)))
		return reg, nil
	case *ast.LogicalAnd, *ast.LogicalOr:
		return l.lowerCondition(cur, v)
	default:
		reg := l.fn.NewRegister()
		cur.block.Append(mir.LoadImmediate(reg, mir.Int(0)))
		return reg, nil
	}
}

func (l *lowerer) lowerSequence(cur *cursor, stmts []ast.Node) (mir.Register, error) {
	if len(stmts) == 0 {
		reg := l.fn.NewRegister()
		cur.block.Append(mir.LoadImmediate(reg, mir.Int(0)))
		return reg, nil
	}
	var last mir.Register
	for _, s := range stmts {
		r, err := l.lowerNode(cur, s)
		if err != nil {
			return 0, err
		}
		last = r
	}
	return last, nil
}

// lowerCommand loads the command name and each argument into its own
// register, then emits ExecuteCommand.
func (l *lowerer) lowerCommand(cur *cursor, cmd *ast.Command) (mir.Register, error) {
	name := literalCommandName(cmd.Name)

	argRegs := make([]mir.Register, len(cmd.Args))
	for i, a := range cmd.Args {
		r := l.fn.NewRegister()
		cur.block.Append(mir.LoadImmediate(r, literalValue(a)))
		argRegs[i] = r
	}

	dest := l.fn.NewRegister()
	cur.block.Append(mir.ExecuteCommand(dest, name, argRegs))
	return dest, nil
}

// lowerPipeline compiles each Command element as a serial composition —
// the last Command's result becomes the pipeline's result — rather than
// wiring up real inter-stage I/O; I/O piping is the direct
// interpreter's job (internal/interp.execPipeline). Elements that are
// not simple commands are skipped.
func (l *lowerer) lowerPipeline(cur *cursor, pl *ast.Pipeline) (mir.Register, error) {
	result := l.fn.NewRegister()
	cur.block.Append(mir.LoadImmediate(result, mir.Int(0)))

	for _, el := range pl.Elements {
		cmd, ok := el.(*ast.Command)
		if !ok {
			continue
		}
		r, err := l.lowerCommand(cur, cmd)
		if err != nil {
			return 0, err
		}
		result = r
	}
	return result, nil
}

// lowerIf compiles condition/then/else into four blocks (entry,
// then, else, end) joined by Move+Jump, mirroring
// compile_conditional_to_mir.
func (l *lowerer) lowerIf(cur *cursor, n *ast.If) (mir.Register, error) {
	condReg, err := l.lowerCondition(cur, n.Cond)
	if err != nil {
		return 0, err
	}
	resultReg := l.fn.NewRegister()

	thenBlock := l.fn.NewBlock()
	elseBlock := l.fn.NewBlock()
	endBlock := l.fn.NewBlock()

	cur.block.Append(mir.Branch(condReg, thenBlock.ID, elseBlock.ID))

	thenCur := &cursor{block: thenBlock}
	thenResult, err := l.lowerNode(thenCur, n.Then)
	if err != nil {
		return 0, err
	}
	thenCur.block.Append(mir.Move(resultReg, thenResult))
	thenCur.block.Append(mir.Jump(endBlock.ID))

	elseCur := &cursor{block: elseBlock}
	var elseResult mir.Register
	if n.Else != nil {
		elseResult, err = l.lowerNode(elseCur, n.Else)
		if err != nil {
			return 0, err
		}
	} else {
		elseResult = l.fn.NewRegister()
		elseCur.block.Append(mir.LoadImmediate(elseResult, mir.Int(0)))
	}
	elseCur.block.Append(mir.Move(resultReg, elseResult))
	elseCur.block.Append(mir.Jump(endBlock.ID))

	cur.block = endBlock
	return resultReg, nil
}

// lowerCondition compiles a boolean-context expression: a Command's
// exit code is compared against 0, LogicalAnd/Or recurse and combine
// with And/Or (evaluated eagerly, without the direct interpreter's
// short-circuiting — spec.md §8's equivalence class only exercises
// conditions where both sides are side-effect-free).
func (l *lowerer) lowerCondition(cur *cursor, node ast.Node) (mir.Register, error) {
	switch v := node.(type) {
	case *ast.Command:
		cmdResult, err := l.lowerCommand(cur, v)
		if err != nil {
			return 0, err
		}
		return l.equalsZero(cur, cmdResult), nil

	case *ast.Pipeline:
		if len(v.Elements) == 1 {
			return l.lowerCondition(cur, v.Elements[0])
		}
		r, err := l.lowerPipeline(cur, v)
		if err != nil {
			return 0, err
		}
		return l.equalsZero(cur, r), nil

	case *ast.LogicalAnd:
		left, err := l.lowerCondition(cur, v.Left)
		if err != nil {
			return 0, err
		}
		right, err := l.lowerCondition(cur, v.Right)
		if err != nil {
			return 0, err
		}
		result := l.fn.NewRegister()
		cur.block.Append(mir.BinOp(mir.OpAnd, result, left, right))
		return result, nil

	case *ast.LogicalOr:
		left, err := l.lowerCondition(cur, v.Left)
		if err != nil {
			return 0, err
		}
		right, err := l.lowerCondition(cur, v.Right)
		if err != nil {
			return 0, err
		}
		result := l.fn.NewRegister()
		cur.block.Append(mir.BinOp(mir.OpOr, result, left, right))
		return result, nil

	default:
		reg := l.fn.NewRegister()
		cur.block.Append(mir.LoadImmediate(reg, mir.Bool(true)))
		return reg, nil
	}
}

func (l *lowerer) equalsZero(cur *cursor, reg mir.Register) mir.Register {
	zero := l.fn.NewRegister()
	cur.block.Append(mir.LoadImmediate(zero, mir.Int(0)))
	result := l.fn.NewRegister()
	cur.block.Append(mir.BinOp(mir.OpEqual, result, reg, zero))
	return result
}

func literalValue(node ast.Node) mir.Value {
	switch v := node.(type) {
	case *ast.StringLiteral:
		return mir.Str(v.Value)
	case *ast.NumberLiteral:
		return mir.Int(v.Value)
	default:
		return mir.Str("")
	}
}

func literalCommandName(node ast.Node) string {
	switch v := node.(type) {
	case *ast.StringLiteral:
		return v.Value
	case *ast.NumberLiteral:
		return strconv.FormatInt(v.Value, 10)
	default:
		return "unknown"
	}
}
