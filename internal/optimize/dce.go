package optimize

import "github.com/nexusshell/nexusshell/internal/mir"

// DeadCodeElimination removes basic blocks unreachable from the
// function's entry block. Within a block, nothing can follow its
// terminator (mir.BasicBlock.Append enforces that), so the only
// dead code a register-IR function the lowerer emits can carry is an
// entire unreferenced block — e.g. one of an If's then/else targets
// when the condition is a compile-time constant and ConstantFolding
// has already resolved the Branch to a Jump.
type DeadCodeElimination struct{}

func (DeadCodeElimination) Name() string { return "dead-code-elimination" }

func (d DeadCodeElimination) Run(fn *mir.Function) (bool, error) {
	n, err := d.run(fn)
	return n > 0, err
}

func (DeadCodeElimination) run(fn *mir.Function) (int, error) {
	reachable := map[mir.BlockID]bool{fn.EntryBlock(): true}
	queue := []mir.BlockID{fn.EntryBlock()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		block, ok := fn.Block(id)
		if !ok {
			continue
		}
		term, ok := block.Terminator()
		if !ok {
			continue
		}
		var targets []mir.BlockID
		switch term.Op {
		case mir.OpJump:
			targets = []mir.BlockID{term.ThenBlock}
		case mir.OpBranch:
			targets = []mir.BlockID{term.ThenBlock, term.ElseBlock}
		}
		for _, target := range targets {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	removed := 0
	for id := range fn.Blocks {
		if !reachable[id] {
			removed += len(fn.Blocks[id].Instructions)
			delete(fn.Blocks, id)
		}
	}
	return removed, nil
}
