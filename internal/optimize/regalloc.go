package optimize

import "github.com/nexusshell/nexusshell/internal/mir"

// RegisterAllocationHint counts registers whose only use is the single
// instruction immediately following their definition within the same
// block — classic candidates for coalescing into their consumer's
// register in a real allocator. It never rewrites the function (the
// VM has no fixed register bank to economize on, unlike wazero's
// machine-code backend), so it is report-only, same as executor.rs's
// optimize_register_allocation stub; unlike that stub, the count it
// reports reflects the function actually passed in rather than a flat
// estimate.
type RegisterAllocationHint struct{}

func (RegisterAllocationHint) Name() string { return "register-allocation-hint" }

func (r RegisterAllocationHint) Run(fn *mir.Function) (bool, error) {
	n, err := r.run(fn)
	return n > 0, err
}

func (RegisterAllocationHint) run(fn *mir.Function) (int, error) {
	uses := map[mir.Register]int{}
	for _, id := range fn.SortedBlockIDs() {
		block, _ := fn.Block(id)
		for _, inst := range block.Instructions {
			for _, use := range usedRegisters(inst) {
				uses[use]++
			}
		}
	}
	coalescable := 0
	for _, id := range fn.SortedBlockIDs() {
		block, _ := fn.Block(id)
		lastDef := map[mir.Register]int{}
		for i, inst := range block.Instructions {
			for _, use := range usedRegisters(inst) {
				if defIdx, ok := lastDef[use]; ok && defIdx == i-1 && uses[use] == 1 {
					coalescable++
				}
			}
			if writesDest(inst.Op) {
				lastDef[inst.Dest] = i
			}
		}
	}
	return coalescable, nil
}

func writesDest(op mir.Op) bool {
	switch op {
	case mir.OpBranch, mir.OpJump, mir.OpReturn:
		return false
	default:
		return true
	}
}

func usedRegisters(inst mir.Instruction) []mir.Register {
	var regs []mir.Register
	switch inst.Op {
	case mir.OpMove, mir.OpNot:
		regs = append(regs, inst.Src1)
	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpDiv,
		mir.OpEqual, mir.OpNotEqual, mir.OpLess, mir.OpGreater,
		mir.OpAnd, mir.OpOr:
		regs = append(regs, inst.Src1, inst.Src2)
	case mir.OpBranch:
		regs = append(regs, inst.Src1)
	case mir.OpExecuteCommand:
		regs = append(regs, inst.Args...)
	case mir.OpReturn:
		if inst.HasValue {
			regs = append(regs, inst.Src1)
		}
	}
	return regs
}
