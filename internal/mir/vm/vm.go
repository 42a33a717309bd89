// Package vm implements the C2 register VM (spec.md §2): it executes a
// mir.Program by dispatching each instruction on a big switch, the way
// the teacher's callEngine dispatches on wazero's interpreterOp kinds
// (tetratelabs-wazero/internal/engine/interpreter/interpreter.go). A VM
// holds no program-specific state; a frame is pushed per function call
// and carries that call's register file.
package vm

import (
	"bytes"
	"context"
	"io"

	"github.com/nexusshell/nexusshell/internal/builtin"
	"github.com/nexusshell/nexusshell/internal/mir"
	"github.com/nexusshell/nexusshell/internal/nxerrors"
	"github.com/nexusshell/nexusshell/internal/shell"
)

// Executor runs an external or builtin command on behalf of
// OpExecuteCommand, writing the command's output to stdout/stderr.
// internal/interp's command-resolution logic implements this so the VM
// and the direct interpreter share one notion of "run a command"
// (spec.md §8's equivalence property).
type Executor interface {
	RunCommand(ctx context.Context, shCtx *shell.Context, name string, args []string, stdout, stderr io.Writer) (exitCode int, err error)
}

// Stats is the VM statistics spec.md §4.1 commits to exposing:
// "instruction count, allocated-register count, executed-branch count."
type Stats struct {
	Instructions uint64
	Registers    uint64
	Branches     uint64
}

// frame is one function activation: its register file and the program
// counter (block id + instruction index within that block).
type frame struct {
	fn       *mir.Function
	regs     []mir.Value
	block    mir.BlockID
	index    int
	returned bool
	result   mir.Value
}

func newFrame(fn *mir.Function) *frame {
	return &frame{
		fn:    fn,
		regs:  make([]mir.Value, fn.RegisterCount()),
		block: fn.EntryBlock(),
	}
}

func (f *frame) get(r mir.Register) mir.Value { return f.regs[r] }
func (f *frame) set(r mir.Register, v mir.Value) { f.regs[r] = v }

// VM executes mir.Program values. Run resets the VM's counters and
// output buffers at the start of each call and accumulates into them
// for that call's duration, so a VM should be driven by one Run at a
// time rather than shared across concurrent Run calls.
type VM struct {
	Builtins *builtin.Registry
	Exec     Executor

	stats  Stats
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func New(reg *builtin.Registry, exec Executor) *VM {
	return &VM{Builtins: reg, Exec: exec}
}

// Stats returns the instruction/register/branch counters accumulated
// by the most recently completed Run call (spec.md §4.1).
func (v *VM) Stats() Stats { return v.stats }

// Stdout and Stderr return the output ExecuteCommand appended to the
// VM's output buffers during the most recently completed Run call
// (spec.md §4.1: "Standard output/error are captured and appended to
// the VM's output buffers").
func (v *VM) Stdout() string { return v.stdout.String() }
func (v *VM) Stderr() string { return v.stderr.String() }

// Run executes prog's "main" function to completion and returns the
// process-style exit code its Return terminator carries (0 if it
// returns no value, by shell convention).
func (v *VM) Run(ctx context.Context, shCtx *shell.Context, prog *mir.Program) (int, error) {
	v.stats = Stats{}
	v.stdout.Reset()
	v.stderr.Reset()

	fn, ok := prog.Main()
	if !ok {
		return 1, nxerrors.NewInternalError("vm: program has no main function", nil)
	}
	return v.call(ctx, shCtx, fn, nil)
}

// call executes fn with the given argument values bound to its first
// len(args) registers and runs it to a Return terminator.
func (v *VM) call(ctx context.Context, shCtx *shell.Context, fn *mir.Function, args []mir.Value) (int, error) {
	fr := newFrame(fn)
	v.stats.Registers += uint64(len(fr.regs))
	for i, a := range args {
		if i >= len(fr.regs) {
			break
		}
		fr.regs[i] = a
	}

	for !fr.returned {
		if err := ctx.Err(); err != nil {
			return 1, err
		}
		block, ok := fn.Block(fr.block)
		if !ok {
			return 1, nxerrors.NewInternalError("vm: jump to undefined block", nil)
		}
		if fr.index >= len(block.Instructions) {
			return 1, nxerrors.NewInternalError("vm: fell off end of block without terminator", nil)
		}
		inst := block.Instructions[fr.index]
		if err := v.step(ctx, shCtx, fr, inst); err != nil {
			return 1, err
		}
	}

	code, ok := exitCodeOf(fr.result)
	if !ok {
		return 0, nil
	}
	return code, nil
}

// exitCodeOf coerces a return value to a shell-style exit code: an
// Integer register is returned verbatim, a Boolean maps true/false to
// 0/1, anything else (including Unit) means "no explicit code".
func exitCodeOf(v mir.Value) (int, bool) {
	switch v.Kind {
	case mir.KindInteger:
		return int(v.Int), true
	case mir.KindBoolean:
		if v.Bool {
			return 0, true
		}
		return 1, true
	default:
		return 0, false
	}
}

// step executes one instruction, advancing fr.block/fr.index per the
// instruction's control-flow effect (fallthrough, jump or branch).
func (v *VM) step(ctx context.Context, shCtx *shell.Context, fr *frame, inst mir.Instruction) error {
	v.stats.Instructions++
	switch inst.Op {
	case mir.OpLoadImmediate:
		fr.set(inst.Dest, inst.Imm)
		fr.index++

	case mir.OpMove:
		fr.set(inst.Dest, fr.get(inst.Src1))
		fr.index++

	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpDiv:
		result, err := arith(inst.Op, fr.get(inst.Src1), fr.get(inst.Src2))
		if err != nil {
			return err
		}
		fr.set(inst.Dest, result)
		fr.index++

	case mir.OpEqual, mir.OpNotEqual, mir.OpLess, mir.OpGreater:
		fr.set(inst.Dest, compare(inst.Op, fr.get(inst.Src1), fr.get(inst.Src2)))
		fr.index++

	case mir.OpAnd, mir.OpOr:
		fr.set(inst.Dest, logical(inst.Op, fr.get(inst.Src1), fr.get(inst.Src2)))
		fr.index++

	case mir.OpNot:
		t, _ := fr.get(inst.Src1).Truthy()
		fr.set(inst.Dest, mir.Bool(!t))
		fr.index++

	case mir.OpExecuteCommand:
		args := make([]string, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = fr.get(a).String()
		}
		code, err := v.Exec.RunCommand(ctx, shCtx, inst.Command, stripQuotes(args), &v.stdout, &v.stderr)
		if err != nil {
			return err
		}
		fr.set(inst.Dest, mir.Int(int64(code)))
		fr.index++

	case mir.OpBranch:
		v.stats.Branches++
		t, ok := fr.get(inst.Src1).Truthy()
		if !ok {
			return nxerrors.NewInternalError("vm: branch on non-truthy-coercible value", nil)
		}
		if t {
			fr.block, fr.index = inst.ThenBlock, 0
		} else {
			fr.block, fr.index = inst.ElseBlock, 0
		}

	case mir.OpJump:
		fr.block, fr.index = inst.ThenBlock, 0

	case mir.OpReturn:
		if inst.HasValue {
			fr.result = fr.get(inst.Src1)
		}
		fr.returned = true

	default:
		return nxerrors.NewInternalError("vm: unknown opcode", nil)
	}
	return nil
}

func arith(op mir.Op, a, b mir.Value) (mir.Value, error) {
	if a.Kind == mir.KindFloat || b.Kind == mir.KindFloat {
		x, y := toFloat(a), toFloat(b)
		switch op {
		case mir.OpAdd:
			return mir.Float(x + y), nil
		case mir.OpSub:
			return mir.Float(x - y), nil
		case mir.OpMul:
			return mir.Float(x * y), nil
		case mir.OpDiv:
			if y == 0 {
				return mir.Value{}, nxerrors.NewInvalidArgument("division by zero")
			}
			return mir.Float(x / y), nil
		}
	}
	if a.Kind == mir.KindString && op == mir.OpAdd {
		return mir.Str(a.Str + b.Str), nil
	}
	x, y := a.Int, b.Int
	switch op {
	case mir.OpAdd:
		return mir.Int(x + y), nil
	case mir.OpSub:
		return mir.Int(x - y), nil
	case mir.OpMul:
		return mir.Int(x * y), nil
	case mir.OpDiv:
		if y == 0 {
			return mir.Value{}, nxerrors.NewInvalidArgument("division by zero")
		}
		return mir.Int(x / y), nil
	}
	return mir.Value{}, nxerrors.NewInternalError("vm: unreachable arithmetic op", nil)
}

func toFloat(v mir.Value) float64 {
	switch v.Kind {
	case mir.KindFloat:
		return v.Flt
	case mir.KindInteger:
		return float64(v.Int)
	default:
		return 0
	}
}

func compare(op mir.Op, a, b mir.Value) mir.Value {
	switch op {
	case mir.OpEqual:
		return mir.Bool(valuesEqual(a, b))
	case mir.OpNotEqual:
		return mir.Bool(!valuesEqual(a, b))
	case mir.OpLess:
		return mir.Bool(toFloat(a) < toFloat(b))
	case mir.OpGreater:
		return mir.Bool(toFloat(a) > toFloat(b))
	default:
		return mir.Bool(false)
	}
}

func valuesEqual(a, b mir.Value) bool {
	if a.Kind != b.Kind {
		if (a.Kind == mir.KindInteger || a.Kind == mir.KindFloat) &&
			(b.Kind == mir.KindInteger || b.Kind == mir.KindFloat) {
			return toFloat(a) == toFloat(b)
		}
		return false
	}
	switch a.Kind {
	case mir.KindInteger:
		return a.Int == b.Int
	case mir.KindFloat:
		return a.Flt == b.Flt
	case mir.KindString:
		return a.Str == b.Str
	case mir.KindBoolean:
		return a.Bool == b.Bool
	case mir.KindUnit:
		return true
	default:
		return false
	}
}

func logical(op mir.Op, a, b mir.Value) mir.Value {
	at, _ := a.Truthy()
	bt, _ := b.Truthy()
	if op == mir.OpAnd {
		return mir.Bool(at && bt)
	}
	return mir.Bool(at || bt)
}

func stripQuotes(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) >= 2 && a[0] == '"' && a[len(a)-1] == '"' {
			out[i] = a[1 : len(a)-1]
			continue
		}
		out[i] = a
	}
	return out
}
