package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/mir"
	"github.com/nexusshell/nexusshell/internal/optimize"
)

func TestConstantFoldingFoldsArithmetic(t *testing.T) {
	fn := mir.NewFunction("main", nil)
	a := fn.NewRegister()
	b := fn.NewRegister()
	sum := fn.NewRegister()
	block, _ := fn.Block(fn.EntryBlock())
	block.Append(mir.LoadImmediate(a, mir.Int(2)))
	block.Append(mir.LoadImmediate(b, mir.Int(3)))
	block.Append(mir.BinOp(mir.OpAdd, sum, a, b))
	block.Append(mir.ReturnValue(sum))

	pass := optimize.ConstantFolding{}
	changed, err := pass.Run(fn)
	require.NoError(t, err)
	require.True(t, changed)

	inst := block.Instructions[2]
	require.Equal(t, mir.OpLoadImmediate, inst.Op)
	require.Equal(t, int64(5), inst.Imm.Int)
}

func TestConstantFoldingResolvesBranch(t *testing.T) {
	fn := mir.NewFunction("main", nil)
	cond := fn.NewRegister()
	entry, _ := fn.Block(fn.EntryBlock())
	thenBlock := fn.NewBlock()
	elseBlock := fn.NewBlock()

	entry.Append(mir.LoadImmediate(cond, mir.Bool(true)))
	entry.Append(mir.Branch(cond, thenBlock.ID, elseBlock.ID))
	thenBlock.Append(mir.ReturnValue(cond))
	elseBlock.Append(mir.ReturnValue(cond))

	pass := optimize.ConstantFolding{}
	changed, err := pass.Run(fn)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, mir.OpJump, entry.Instructions[1].Op)
	require.Equal(t, thenBlock.ID, entry.Instructions[1].ThenBlock)
}

func TestDeadCodeEliminationDropsUnreachableBlock(t *testing.T) {
	fn := mir.NewFunction("main", nil)
	dest := fn.NewRegister()
	entry, _ := fn.Block(fn.EntryBlock())
	reachable := fn.NewBlock()
	unreachable := fn.NewBlock()

	entry.Append(mir.Jump(reachable.ID))
	reachable.Append(mir.LoadImmediate(dest, mir.Int(0)))
	reachable.Append(mir.ReturnValue(dest))
	unreachable.Append(mir.LoadImmediate(dest, mir.Int(1)))
	unreachable.Append(mir.ReturnValue(dest))

	pass := optimize.DeadCodeElimination{}
	changed, err := pass.Run(fn)
	require.NoError(t, err)
	require.True(t, changed)

	_, ok := fn.Block(unreachable.ID)
	require.False(t, ok)
	_, ok = fn.Block(reachable.ID)
	require.True(t, ok)
}

func TestRegisterAllocationHintCountsImmediateReuse(t *testing.T) {
	fn := mir.NewFunction("main", nil)
	a := fn.NewRegister()
	dest := fn.NewRegister()
	block, _ := fn.Block(fn.EntryBlock())
	block.Append(mir.LoadImmediate(a, mir.Int(1)))
	block.Append(mir.Move(dest, a))
	block.Append(mir.ReturnValue(dest))

	pass := optimize.RegisterAllocationHint{}
	changed, err := pass.Run(fn)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestRunPipelineAcrossProgram(t *testing.T) {
	prog := mir.NewProgram()
	fn := mir.NewFunction("main", nil)
	a := fn.NewRegister()
	b := fn.NewRegister()
	sum := fn.NewRegister()
	block, _ := fn.Block(fn.EntryBlock())
	block.Append(mir.LoadImmediate(a, mir.Int(1)))
	block.Append(mir.LoadImmediate(b, mir.Int(1)))
	block.Append(mir.BinOp(mir.OpAdd, sum, a, b))
	block.Append(mir.ReturnValue(sum))
	prog.AddFunction(fn)

	stats, err := optimize.Run(prog, optimize.Pipeline())
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.ConstantsFolded, 1)
}
