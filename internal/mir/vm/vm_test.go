package vm_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/mir"
	"github.com/nexusshell/nexusshell/internal/mir/vm"
	"github.com/nexusshell/nexusshell/internal/shell"
)

type fakeExecutor struct {
	calls []string
	code  int
}

func (f *fakeExecutor) RunCommand(_ context.Context, _ *shell.Context, name string, args []string, stdout, stderr io.Writer) (int, error) {
	f.calls = append(f.calls, name)
	if stdout != nil {
		io.WriteString(stdout, name+"\n")
	}
	return f.code, nil
}

// buildReturnProgram builds a one-block main function that loads imm into r0
// and returns it.
func buildReturnProgram(imm mir.Value) *mir.Program {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	r0 := fn.NewRegister()
	b, _ := fn.Block(fn.EntryBlock())
	b.Append(mir.LoadImmediate(r0, imm))
	b.Append(mir.ReturnValue(r0))
	prog.AddFunction(fn)
	return prog
}

func TestRunReturnsImmediateIntegerAsExitCode(t *testing.T) {
	prog := buildReturnProgram(mir.Int(7))
	machine := vm.New(nil, &fakeExecutor{})
	code, err := machine.Run(context.Background(), shell.New("/tmp"), prog)
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

func TestRunArithmetic(t *testing.T) {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	a := fn.NewRegister()
	b := fn.NewRegister()
	sum := fn.NewRegister()
	blk, _ := fn.Block(fn.EntryBlock())
	blk.Append(mir.LoadImmediate(a, mir.Int(3)))
	blk.Append(mir.LoadImmediate(b, mir.Int(4)))
	blk.Append(mir.BinOp(mir.OpAdd, sum, a, b))
	blk.Append(mir.ReturnValue(sum))
	prog.AddFunction(fn)

	machine := vm.New(nil, &fakeExecutor{})
	code, err := machine.Run(context.Background(), shell.New("/tmp"), prog)
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

func TestRunBranchTakesThenOnTruthy(t *testing.T) {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	cond := fn.NewRegister()
	result := fn.NewRegister()
	entry, _ := fn.Block(fn.EntryBlock())
	thenBlk := fn.NewBlock()
	elseBlk := fn.NewBlock()

	entry.Append(mir.LoadImmediate(cond, mir.Bool(true)))
	entry.Append(mir.Branch(cond, thenBlk.ID, elseBlk.ID))

	thenBlk.Append(mir.LoadImmediate(result, mir.Int(0)))
	thenBlk.Append(mir.ReturnValue(result))

	elseBlk.Append(mir.LoadImmediate(result, mir.Int(1)))
	elseBlk.Append(mir.ReturnValue(result))

	prog.AddFunction(fn)

	machine := vm.New(nil, &fakeExecutor{})
	code, err := machine.Run(context.Background(), shell.New("/tmp"), prog)
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestRunExecuteCommandDelegatesToExecutor(t *testing.T) {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	arg := fn.NewRegister()
	dest := fn.NewRegister()
	blk, _ := fn.Block(fn.EntryBlock())
	blk.Append(mir.LoadImmediate(arg, mir.Str("hello")))
	blk.Append(mir.ExecuteCommand(dest, "echo", []mir.Register{arg}))
	blk.Append(mir.ReturnValue(dest))
	prog.AddFunction(fn)

	exec := &fakeExecutor{code: 0}
	machine := vm.New(nil, exec)
	code, err := machine.Run(context.Background(), shell.New("/tmp"), prog)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, []string{"echo"}, exec.calls)
	require.Equal(t, "echo\n", machine.Stdout())
}

func TestRunExposesStats(t *testing.T) {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	cond := fn.NewRegister()
	result := fn.NewRegister()
	entry, _ := fn.Block(fn.EntryBlock())
	thenBlk := fn.NewBlock()
	elseBlk := fn.NewBlock()

	entry.Append(mir.LoadImmediate(cond, mir.Bool(true)))
	entry.Append(mir.Branch(cond, thenBlk.ID, elseBlk.ID))

	thenBlk.Append(mir.LoadImmediate(result, mir.Int(0)))
	thenBlk.Append(mir.ReturnValue(result))

	elseBlk.Append(mir.LoadImmediate(result, mir.Int(1)))
	elseBlk.Append(mir.ReturnValue(result))

	prog.AddFunction(fn)

	machine := vm.New(nil, &fakeExecutor{})
	_, err := machine.Run(context.Background(), shell.New("/tmp"), prog)
	require.NoError(t, err)

	stats := machine.Stats()
	require.Equal(t, uint64(4), stats.Instructions)
	require.Equal(t, uint64(1), stats.Branches)
	require.Equal(t, uint64(2), stats.Registers)
}

func TestDivisionByZeroReturnsError(t *testing.T) {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	a := fn.NewRegister()
	b := fn.NewRegister()
	dest := fn.NewRegister()
	blk, _ := fn.Block(fn.EntryBlock())
	blk.Append(mir.LoadImmediate(a, mir.Int(1)))
	blk.Append(mir.LoadImmediate(b, mir.Int(0)))
	blk.Append(mir.BinOp(mir.OpDiv, dest, a, b))
	blk.Append(mir.ReturnValue(dest))
	prog.AddFunction(fn)

	machine := vm.New(nil, &fakeExecutor{})
	_, err := machine.Run(context.Background(), shell.New("/tmp"), prog)
	require.Error(t, err)
}
